package codec

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// Bytes stores byte slices as they are. Max is the size bound, 0 means unbounded.
type Bytes struct {
	Max uint32
}

var _ KeyCodec[[]byte] = Bytes{}

func (c Bytes) Encode(v []byte) ([]byte, error) {
	return bytes.Clone(v), nil
}

func (c Bytes) Decode(b []byte) ([]byte, error) {
	if c.Max > 0 && uint64(len(b)) > uint64(c.Max) {
		return nil, corrupt("%d bytes exceed the bound of %d", len(b), c.Max)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (c Bytes) Bound() Bound {
	return Bound{MaxSize: c.Max, Unbounded: c.Max == 0}
}

func (Bytes) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// String stores UTF-8 strings. Max is the size bound in bytes, 0 means unbounded.
type String struct {
	Max uint32
}

var _ KeyCodec[string] = String{}

func (c String) Encode(v string) ([]byte, error) {
	return []byte(v), nil
}

func (c String) Decode(b []byte) (string, error) {
	if c.Max > 0 && uint64(len(b)) > uint64(c.Max) {
		return "", corrupt("%d bytes exceed the bound of %d", len(b), c.Max)
	}
	if !utf8.Valid(b) {
		return "", corrupt("invalid utf-8")
	}
	return string(b), nil
}

func (c String) Bound() Bound {
	return Bound{MaxSize: c.Max, Unbounded: c.Max == 0}
}

func (String) Compare(a, b string) int {
	return strings.Compare(a, b)
}
