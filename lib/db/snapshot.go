package db

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"lukechampine.com/uint128"
)

// --------------------------------------------------------------------------
// Snapshot Format
// --------------------------------------------------------------------------

// Snapshot layout (integers little endian):
//
//	magic "SMAPDB\x00\x00" | version u8 | count u64 | count * (key 16 bytes BE | len u32 | value)

const (
	snapshotMagic   = "SMAPDB\x00\x00"
	snapshotVersion = 1
)

// ErrInvalidSnapshot is returned when a reader does not hold a snapshot.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// SnapshotWriter writes the snapshot format shared by all engines.
type SnapshotWriter struct {
	bw        *bufio.Writer
	remaining uint64
}

// NewSnapshotWriter writes the snapshot header for count entries.
func NewSnapshotWriter(w io.Writer, count uint64) (*SnapshotWriter, error) {
	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return nil, err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return nil, err
	}
	if err := binary.Write(bw, binary.LittleEndian, count); err != nil {
		return nil, err
	}
	return &SnapshotWriter{bw: bw, remaining: count}, nil
}

// Write appends one entry.
func (s *SnapshotWriter) Write(key Key, value []byte) error {
	if s.remaining == 0 {
		return fmt.Errorf("%w: more entries than announced", ErrInvalidSnapshot)
	}
	s.remaining--

	var k [16]byte
	key.PutBytesBE(k[:])
	if _, err := s.bw.Write(k[:]); err != nil {
		return err
	}
	if err := binary.Write(s.bw, binary.LittleEndian, uint32(len(value))); err != nil {
		return err
	}
	_, err := s.bw.Write(value)
	return err
}

// Close flushes the snapshot. All announced entries must have been written.
func (s *SnapshotWriter) Close() error {
	if s.remaining != 0 {
		return fmt.Errorf("%w: %d announced entries missing", ErrInvalidSnapshot, s.remaining)
	}
	return s.bw.Flush()
}

// ReadSnapshot reads a snapshot and calls fn for every entry in order.
func ReadSnapshot(r io.Reader, fn func(key Key, value []byte) error) error {
	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return err
	}
	if string(magic) != snapshotMagic {
		return fmt.Errorf("%w: magic number mismatch", ErrInvalidSnapshot)
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d (expected %d)", ErrInvalidSnapshot, version, snapshotVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	var k [16]byte
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(br, k[:]); err != nil {
			return err
		}
		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return err
		}
		if err := fn(uint128.FromBytesBE(k[:]), value); err != nil {
			return err
		}
	}
	return nil
}
