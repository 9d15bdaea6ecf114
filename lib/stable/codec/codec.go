package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptRecord is returned when stored bytes cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt record")
	// ErrSizeBoundExceeded is returned when an encoding is larger than the declared bound.
	ErrSizeBoundExceeded = errors.New("encoded size exceeds bound")
	// ErrUnboundedKey is returned when an unbounded codec is used for keys.
	ErrUnboundedKey = errors.New("key codec must have a bounded encoding")
)

// Bound declares the size limits of an encoding.
type Bound struct {
	// MaxSize is the largest encoding in bytes. Ignored if Unbounded is set.
	MaxSize uint32
	// IsFixedSize is set when every encoding has exactly MaxSize bytes.
	IsFixedSize bool
	// Unbounded is set when encodings can have any size.
	Unbounded bool
}

// Codec converts values of type T to bytes and back.
// Encode must be deterministic: equal values produce equal bytes.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	// Decode returns an error wrapping ErrCorruptRecord for malformed input.
	Decode(b []byte) (T, error)
	Bound() Bound
}

// KeyCodec is a Codec whose values are totally ordered.
type KeyCodec[K any] interface {
	Codec[K]
	// Compare returns -1, 0 or +1 if a is less than, equal to or greater than b.
	Compare(a, b K) int
}

// EncodeBounded encodes v and checks the result against the bound of c.
func EncodeBounded[T any](c Codec[T], v T) ([]byte, error) {
	b, err := c.Encode(v)
	if err != nil {
		return nil, err
	}
	if bound := c.Bound(); !bound.Unbounded && uint64(len(b)) > uint64(bound.MaxSize) {
		return nil, fmt.Errorf("%w: %d bytes, bound is %d", ErrSizeBoundExceeded, len(b), bound.MaxSize)
	}
	return b, nil
}

// RequireBounded returns ErrUnboundedKey if c has no size bound.
func RequireBounded[T any](c Codec[T]) error {
	if c.Bound().Unbounded {
		return ErrUnboundedKey
	}
	return nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptRecord, fmt.Sprintf(format, args...))
}
