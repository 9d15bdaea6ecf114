// Package serializer converts rpc Messages to bytes and back. Client and server pick
// the same implementation by name (New, the --serializer flag).
//
// Implementations:
//
//   - binary: a hand written format. A flag byte marks the fields present, integers are
//     little endian and byte fields are length prefixed. Smallest and fastest, the default.
//     Decoded slices are copies and never alias the input buffer.
//
//   - cbor: CBOR with integer map keys (fxamacker/cbor). The user records inside Value are
//     CBOR as well, so a frame can be inspected with any CBOR tool.
//
//   - json: readable, useful when debugging with curl against the http transport.
//     Byte fields are base64 encoded, which makes seeded users about a third larger.
//
//   - gob: Go's gob encoding. Every frame carries its own type description, so it is the
//     largest and slowest format; kept for compatibility.
//
// All implementations are stateless and safe for concurrent use. Deserialize replaces
// the complete content of the target message.
//
// Usage:
//
//	s, err := serializer.New("binary")
//	data, err := s.Serialize(*common.NewGetRequest("7"))
//	var resp common.Message
//	err = s.Deserialize(respData, &resp)
package serializer
