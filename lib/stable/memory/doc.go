// Package memory provides the physical memory the stable storage layer is built on:
// a single linear, byte-addressable region that grows in 64 KiB pages and never shrinks.
//
// Implementations:
//   - VectorMemory: kept on the heap, used for tests and ephemeral setups.
//   - FileMemory: kept in a file on an afero.Fs, durable across process restarts.
//
// Accesses outside the current size are programming errors and panic with ErrOutOfBounds.
// SafeWrite grows a memory by exactly enough pages before writing past its end.
package memory
