/*
Package btree implements an ordered map that lives entirely inside a memory.Memory.

The map is a classic B-tree of minimum degree B: every node holds at most 2B-1 keys,
every node except the root at least B-1, and all leaves are on the same level. Values
are stored next to their keys in leaves and internal nodes alike.

# Layout

The memory starts with a 64 byte header (see header) followed by fixed size chunks.
A chunk is either a node, a piece of an overflow chain or free:

	node:      kind u8 | pad u8 | count u16 | pad u32 | entries[capacity] | children[capacity+1] u64
	entry:     key length u32 | key [max key size] | value length u32 | value slot
	overflow:  next u64 | used u32 | pad u32 | data
	free:      next free u64

The value slot holds the value itself when the value codec is bounded by at most
MaxInlineValueSize bytes, otherwise the address of the first overflow chunk. Freed
chunks go onto a free list and are reused by later allocations of the same map.
Memory is never returned.

# Insert and Remove

Insert splits every full node on the way down, so the parent of a split always has
room for the promoted median. Remove makes sure every node it descends into can lose
a key, by borrowing from a sibling or merging with it, and replaces keys found in
internal nodes by their predecessor or successor. An empty root is collapsed.

# Known limitations

Every node is written with one bounded write, but splits, merges and the replacement
of overflow chains write several chunks one after another. An interruption between
those writes leaves a partially updated tree.

# Usage

	m, err := btree.Init(mem, codec.Uint128{}, codec.Bytes{}, nil)
	if err != nil { ... }
	_, _, err = m.Insert(uint128.From64(1), []byte("one"))
	v, ok, err := m.Get(uint128.From64(1))
*/
package btree
