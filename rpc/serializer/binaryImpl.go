package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/pramitgaha/map-error/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	1 byte  message type
//	1 byte  flags (which of the fields below are present)
//	...     present fields in flag order, integers big endian,
//	        strings and byte slices prefixed with a u32 length
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey     byte = 1 << 0
	hasLimit   byte = 1 << 1
	hasValue   byte = 1 << 2
	hasOk      byte = 1 << 3
	hasCode    byte = 1 << 4
	hasErr     byte = 1 << 5
	hasEntries byte = 1 << 6
	hasMeta    byte = 1 << 7
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	w := binaryWriter{buf: make([]byte, 2, b.sizeBytes(msg))}
	w.buf[0] = byte(msg.MsgType)

	var flags byte
	if msg.Key != "" {
		flags |= hasKey
		w.bytes([]byte(msg.Key))
	}
	if msg.Limit > 0 {
		flags |= hasLimit
		w.uint64(msg.Limit)
	}
	if msg.Value != nil {
		flags |= hasValue
		w.bytes(msg.Value)
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.Code > 0 {
		flags |= hasCode
		w.uint64(msg.Code)
	}
	if msg.Err != "" {
		flags |= hasErr
		w.bytes([]byte(msg.Err))
	}
	if msg.Entries != nil {
		flags |= hasEntries
		w.uint32(uint32(len(msg.Entries)))
		for _, e := range msg.Entries {
			w.bytes([]byte(e.Key))
			w.bytes(e.Value)
		}
	}
	if msg.Meta != nil {
		flags |= hasMeta
		w.bytes(msg.Meta)
	}

	// Set flags byte after knowing which fields are present
	w.buf[1] = flags
	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := data[1]
	r := binaryReader{data: data, pos: 2}

	if flags&hasKey != 0 {
		msg.Key = string(r.bytes("key"))
	}
	if flags&hasLimit != 0 {
		msg.Limit = r.uint64("limit")
	}
	if flags&hasValue != 0 {
		msg.Value = r.bytes("value")
	}
	msg.Ok = flags&hasOk != 0
	if flags&hasCode != 0 {
		msg.Code = r.uint64("code")
	}
	if flags&hasErr != 0 {
		msg.Err = string(r.bytes("error"))
	}
	if flags&hasEntries != 0 {
		n := r.uint32("entry count")
		// every entry needs at least two length prefixes
		if r.err == nil && uint64(n)*8 > uint64(len(data)-r.pos) {
			r.err = fmt.Errorf("data too short for %d entries", n)
		}
		if r.err == nil {
			msg.Entries = make([]common.Entry, n)
			for i := range msg.Entries {
				msg.Entries[i].Key = string(r.bytes("entry key"))
				msg.Entries[i].Value = r.bytes("entry value")
			}
		}
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.bytes("meta")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Limit > 0 {
		size += 8
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Code > 0 {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Entries != nil {
		size += 4
		for _, e := range msg.Entries {
			size += 8 + len(e.Key) + len(e.Value)
		}
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

// binaryWriter appends fields to a preallocated buffer
type binaryWriter struct {
	buf []byte
}

func (w *binaryWriter) uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *binaryWriter) uint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *binaryWriter) bytes(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// binaryReader reads fields until the first error, which it keeps
type binaryReader struct {
	data []byte
	pos  int
	err  error
}

func (r *binaryReader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if n > len(r.data)-r.pos {
		r.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

func (r *binaryReader) uint32(field string) uint32 {
	if !r.need(4, field) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *binaryReader) uint64(field string) uint64 {
	if !r.need(8, field) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

// bytes returns a copy, so the result does not alias a pooled transport buffer.
// An empty field is returned as an empty, non-nil slice.
func (r *binaryReader) bytes(field string) []byte {
	n := int(r.uint32(field + " length"))
	if !r.need(n, field) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b
}
