package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pramitgaha/map-error/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type" cbor:"1,keyasint"`

	// General fields
	Key   string `json:"key,omitempty" cbor:"2,keyasint,omitempty"`   // Decimal uint128. Used for: Insert, Get, Remove, Has, Scan (start key)
	Limit uint64 `json:"limit,omitempty" cbor:"3,keyasint,omitempty"` // Used for: Scan, Seed (requests), Len, Seed (responses)
	Value []byte `json:"value,omitempty" cbor:"4,keyasint,omitempty"` // CBOR encoded user. Used for: Insert (request), Get (response)

	// Response only fields
	Ok      bool    `json:"ok,omitempty" cbor:"5,keyasint,omitempty"`      // Used for: Insert (replaced), Get, Remove, Has responses
	Code    uint64  `json:"code,omitempty" cbor:"6,keyasint,omitempty"`    // store.RetCode of Err
	Err     string  `json:"err,omitempty" cbor:"7,keyasint,omitempty"`     // Empty if no error, otherwise contains the error message
	Entries []Entry `json:"entries,omitempty" cbor:"8,keyasint,omitempty"` // Used for: Scan responses

	// Meta information
	Meta []byte `json:"meta,omitempty" cbor:"9,keyasint,omitempty"` // Used for: Info responses (json encoded db.DatabaseInfo)
}

// Entry is one key/user pair of a Scan response.
type Entry struct {
	_     struct{} `cbor:",toarray"`
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// SetErr stores err in the message. A *store.Error keeps its code, any other error is
// reported as an internal error.
func (m *Message) SetErr(err error) *Message {
	if err == nil {
		return m
	}
	var se *store.Error
	if errors.As(err, &se) {
		m.Code = uint64(se.Code)
		m.Err = se.Msg
	} else {
		m.Code = uint64(store.RetCInternalError)
		m.Err = err.Error()
	}
	return m
}

// ResponseError rebuilds the *store.Error carried by a response, nil if there is none.
func (m *Message) ResponseError() error {
	if m.Err == "" && m.MsgType != MsgTError {
		return nil
	}
	code := store.RetCode(m.Code)
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewInsertRequest creates a new Insert request
func NewInsertRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTInsert,
		Key:     key,
		Value:   value,
	}
}

// NewInsertResponse creates a new Insert response
func NewInsertResponse(replaced bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTInsert,
		Ok:      replaced,
	}
	return msg.SetErr(err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTGet,
		Ok:      ok,
		Value:   value,
	}
	return msg.SetErr(err)
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(key string) *Message {
	return &Message{
		MsgType: MsgTRemove,
		Key:     key,
	}
}

// NewRemoveResponse creates a new Remove response
func NewRemoveResponse(removed bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTRemove,
		Ok:      removed,
	}
	return msg.SetErr(err)
}

// NewHasRequest creates a new Has request
func NewHasRequest(key string) *Message {
	return &Message{
		MsgType: MsgTHas,
		Key:     key,
	}
}

// NewHasResponse creates a new Has response
func NewHasResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTHas,
		Ok:      ok,
	}
	return msg.SetErr(err)
}

// NewScanRequest creates a new Scan request
func NewScanRequest(from string, limit uint64) *Message {
	return &Message{
		MsgType: MsgTScan,
		Key:     from,
		Limit:   limit,
	}
}

// NewScanResponse creates a new Scan response
func NewScanResponse(entries []Entry, err error) *Message {
	msg := &Message{
		MsgType: MsgTScan,
		Entries: entries,
	}
	return msg.SetErr(err)
}

// NewLenRequest creates a new Len request
func NewLenRequest() *Message {
	return &Message{
		MsgType: MsgTLen,
	}
}

// NewLenResponse creates a new Len response
func NewLenResponse(length uint64, err error) *Message {
	msg := &Message{
		MsgType: MsgTLen,
		Limit:   length,
	}
	return msg.SetErr(err)
}

// NewSeedRequest creates a new Seed request for count users
func NewSeedRequest(count uint64) *Message {
	return &Message{
		MsgType: MsgTSeed,
		Limit:   count,
	}
}

// NewSeedResponse creates a new Seed response
func NewSeedResponse(replaced uint64, err error) *Message {
	msg := &Message{
		MsgType: MsgTSeed,
		Limit:   replaced,
	}
	return msg.SetErr(err)
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTInfo,
	}
}

// NewInfoResponse creates a new Info response
func NewInfoResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTInfo,
		Meta:    meta,
	}
	return msg.SetErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(code store.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    uint64(code),
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess: "success",
	MsgTError:   "error",
	MsgTInsert:  "insert",
	MsgTGet:     "get",
	MsgTRemove:  "remove",
	MsgTHas:     "has",
	MsgTScan:    "scan",
	MsgTLen:     "len",
	MsgTSeed:    "seed",
	MsgTInfo:    "info",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for mt, name := range messageTypeNames {
		if name == s {
			*t = mt
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTInsert // Insert or overwrite a user
	MsgTGet    // Get a user by key
	MsgTRemove // Remove a user
	MsgTHas    // Check if a key exists
	MsgTScan   // Ordered listing starting at a key
	MsgTLen    // Number of users

	// Control operations

	MsgTSeed // Write the demo users
	MsgTInfo // Database information
)
