package serializer

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/pramitgaha/map-error/rpc/common"
)

// NewCBORSerializer creates a new serializer using CBOR with integer map keys.
// Users already travel as CBOR inside Value, so this keeps the whole frame in one format.
func NewCBORSerializer() IRPCSerializer {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{MaxArrayElements: 1 << 20}.DecMode()
	if err != nil {
		panic(err)
	}
	return &cborSerializerImpl{enc: enc, dec: dec}
}

// cborSerializerImpl implements the IRPCSerializer interface using cbor encoding
type cborSerializerImpl struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (c *cborSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return c.enc.Marshal(msg)
}

func (c *cborSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}
	if err := c.dec.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("cbor: %w", err)
	}
	return nil
}
