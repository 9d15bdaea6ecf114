package btree

// Iterator walks the entries of a Map in ascending key order.
//
//	it := m.Range(from, to)
//	for it.Next() {
//		fmt.Println(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
//
// An iterator must not be used after the map was modified.
type Iterator[K, V any] struct {
	m     *Map[K, V]
	stack []frame[K]
	to    *K
	key   K
	value V
	err   error
	done  bool
}

// frame is a node on the path to the next entry. idx is the next entry of the node
// to yield; the subtree left of it is already done or above on the stack.
type frame[K any] struct {
	n   *node[K]
	idx int
}

// Iter returns an iterator over all entries.
func (m *Map[K, V]) Iter() *Iterator[K, V] {
	return m.newIterator(nil, nil)
}

// IterFrom returns an iterator over all entries with a key not less than from.
func (m *Map[K, V]) IterFrom(from K) *Iterator[K, V] {
	return m.newIterator(&from, nil)
}

// Range returns an iterator over the entries with from <= key < to.
func (m *Map[K, V]) Range(from, to K) *Iterator[K, V] {
	return m.newIterator(&from, &to)
}

func (m *Map[K, V]) newIterator(from, to *K) *Iterator[K, V] {
	it := &Iterator[K, V]{m: m, to: to}
	if m.hdr.root == nullAddr {
		it.done = true
		return it
	}
	it.seek(m.hdr.root, from)
	return it
}

// seek pushes the path from addr to the first entry not less than from.
func (it *Iterator[K, V]) seek(addr uint64, from *K) {
	for {
		n, err := it.m.loadNode(addr)
		if err != nil {
			it.fail(err)
			return
		}
		i, found := 0, false
		if from != nil {
			i, found = it.m.search(n, *from)
		}
		it.stack = append(it.stack, frame[K]{n: n, idx: i})
		if found || n.leaf {
			return
		}
		addr = n.children[i]
	}
}

// Next advances to the next entry and reports whether there is one.
func (it *Iterator[K, V]) Next() bool {
	for !it.done && len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		if top.idx >= len(top.n.entries) {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}

		e := top.n.entries[top.idx]
		if it.to != nil && it.m.kc.Compare(e.key, *it.to) >= 0 {
			it.finish()
			return false
		}

		top.idx++
		if !top.n.leaf {
			it.seek(top.n.children[top.idx], nil)
			if it.done {
				return false
			}
		}

		v, err := it.m.decodeValue(e.val)
		if err != nil {
			it.fail(err)
			return false
		}
		it.key, it.value = e.key, v
		return true
	}
	it.finish()
	return false
}

// Key returns the key of the current entry.
func (it *Iterator[K, V]) Key() K {
	return it.key
}

// Value returns the value of the current entry.
func (it *Iterator[K, V]) Value() V {
	return it.value
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator[K, V]) Err() error {
	return it.err
}

func (it *Iterator[K, V]) fail(err error) {
	it.err = err
	it.finish()
}

func (it *Iterator[K, V]) finish() {
	it.done = true
	it.stack = nil
}
