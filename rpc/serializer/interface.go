package serializer

import (
	"fmt"

	"github.com/pramitgaha/map-error/rpc/common"
)

// IRPCSerializer converts Messages to bytes and back.
// Client and server must use the same implementation.
type IRPCSerializer interface {
	// Serialize encodes msg
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg, replacing its previous content
	Deserialize(b []byte, msg *common.Message) error
}

// Names lists the serializers accepted by New.
var Names = []string{"binary", "cbor", "json", "gob"}

// New returns the serializer with the given name.
func New(name string) (IRPCSerializer, error) {
	switch name {
	case "binary":
		return NewBinarySerializer(), nil
	case "cbor":
		return NewCBORSerializer(), nil
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %q, must be one of %v", name, Names)
	}
}
