package codec

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

// CBOR encodes any value as core deterministic CBOR.
// Max is the size bound in bytes, 0 means unbounded.
type CBOR[T any] struct {
	Max uint32
}

func (c CBOR[T]) Encode(v T) ([]byte, error) {
	return encMode.Marshal(v)
}

func (c CBOR[T]) Decode(b []byte) (T, error) {
	var v T
	if err := decMode.Unmarshal(b, &v); err != nil {
		var zero T
		return zero, corrupt("%v", err)
	}
	return v, nil
}

func (c CBOR[T]) Bound() Bound {
	return Bound{MaxSize: c.Max, Unbounded: c.Max == 0}
}

// MarshalCBOR encodes v with the deterministic encoding used by the CBOR codec.
func MarshalCBOR(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// UnmarshalCBOR decodes b into v. Errors wrap ErrCorruptRecord.
func UnmarshalCBOR(b []byte, v any) error {
	if err := decMode.Unmarshal(b, v); err != nil {
		return corrupt("%v", err)
	}
	return nil
}
