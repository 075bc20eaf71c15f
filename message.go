package fjage

import (
	"bytes"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	jsoniter "github.com/json-iterator/go"
)

// idAlphabet is the 64-symbol alphabet spec.md requires message IDs to be
// drawn from, independently sampled per symbol.
const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const idLength = 36

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func newMessageID() string {
	id, err := gonanoid.Generate(idAlphabet, idLength)
	if err != nil {
		// Generate only fails if the alphabet or length is invalid, which
		// never happens with the constants above.
		panic(fmt.Sprintf("fjage: nanoid generation failed: %v", err))
	}
	return id
}

// payloadEntry is one writable-message payload key/value pair, kept in a
// slice rather than a map so that encoding preserves insertion order.
type payloadEntry struct {
	Key   string
	Value any
}

// byteArray, int32Array and float32Array mark payload values that must be
// encoded as the wire's typed-array objects ({"clazz":"[B"/"[I"/"[F", ...})
// rather than as a literal JSON array.
type byteArray []byte
type int32Array []int32
type float32Array []float32

// MessageBuilder constructs an outbound message. It is the writable half of
// spec.md's readable/writable duality (spec.md §9): once handed to
// Gateway.Send it must not be reused.
type MessageBuilder struct {
	id        string
	clazz     string
	perf      Performative
	recipient AID
	hasRecip  bool
	inReplyTo string
	payload   []payloadEntry
	sent      bool
}

// NewMessage creates a writable message of the given class and performative.
// An ID is generated immediately; it is non-empty for the lifetime of the
// builder and the Message sent from it.
func NewMessage(clazz string, perf Performative) *MessageBuilder {
	return &MessageBuilder{
		id:    newMessageID(),
		clazz: clazz,
		perf:  perf,
	}
}

// ID returns the message's generated identifier.
func (m *MessageBuilder) ID() string { return m.id }

// Clazz returns the message's class.
func (m *MessageBuilder) Clazz() string { return m.clazz }

// Performative returns the message's performative.
func (m *MessageBuilder) Performative() Performative { return m.perf }

// SetRecipient sets the destination agent or topic.
func (m *MessageBuilder) SetRecipient(aid AID) *MessageBuilder {
	m.recipient = aid
	m.hasRecip = true
	return m
}

// SetInReplyTo links this message to the id of a message it answers.
func (m *MessageBuilder) SetInReplyTo(id string) *MessageBuilder {
	m.inReplyTo = id
	return m
}

func (m *MessageBuilder) add(key string, value any) *MessageBuilder {
	m.payload = append(m.payload, payloadEntry{Key: key, Value: value})
	return m
}

// AddString adds a string-valued payload entry.
func (m *MessageBuilder) AddString(key, value string) *MessageBuilder { return m.add(key, value) }

// AddInt32 adds an int32-valued payload entry.
func (m *MessageBuilder) AddInt32(key string, value int32) *MessageBuilder { return m.add(key, value) }

// AddInt64 adds an int64-valued payload entry.
func (m *MessageBuilder) AddInt64(key string, value int64) *MessageBuilder { return m.add(key, value) }

// AddFloat32 adds a float32-valued payload entry.
func (m *MessageBuilder) AddFloat32(key string, value float32) *MessageBuilder {
	return m.add(key, value)
}

// AddBool adds a bool-valued payload entry.
func (m *MessageBuilder) AddBool(key string, value bool) *MessageBuilder { return m.add(key, value) }

// AddByteArray adds a byte-array payload entry, wire-encoded as "[B".
func (m *MessageBuilder) AddByteArray(key string, value []byte) *MessageBuilder {
	cp := make(byteArray, len(value))
	copy(cp, value)
	return m.add(key, cp)
}

// AddInt32Array adds a 32-bit integer array payload entry, wire-encoded as "[I".
func (m *MessageBuilder) AddInt32Array(key string, value []int32) *MessageBuilder {
	cp := make(int32Array, len(value))
	copy(cp, value)
	return m.add(key, cp)
}

// AddFloat32Array adds a 32-bit float array payload entry, wire-encoded as "[F".
func (m *MessageBuilder) AddFloat32Array(key string, value []float32) *MessageBuilder {
	cp := make(float32Array, len(value))
	copy(cp, value)
	return m.add(key, cp)
}

// invalidate marks the builder consumed. Go cannot free caller memory the
// way spec.md's fjage_send destroys msg, but re-sending the same builder (or
// reading its fields afterward) is a programmer error we can at least make
// harmless.
func (m *MessageBuilder) invalidate() {
	m.sent = true
	m.payload = nil
}

// Message is a parsed, read-only inbound message: the readable half of
// spec.md's duality. It is never constructed directly by callers, only
// returned by the gateway from Receive/ReceiveAny/Request.
type Message struct {
	id          string
	clazz       string
	perf        Performative
	sender      AID
	recipient   AID
	hasRecip    bool
	inReplyTo   string
	payload     map[string]jsoniter.RawMessage
}

// ID returns the message's identifier.
func (m *Message) ID() string { return m.id }

// Clazz returns the message's class.
func (m *Message) Clazz() string { return m.clazz }

// Performative returns the message's performative.
func (m *Message) Performative() Performative { return m.perf }

// Sender returns the AID of the agent that sent this message.
func (m *Message) Sender() AID { return m.sender }

// Recipient returns the message's recipient, and whether one was set.
func (m *Message) Recipient() (AID, bool) { return m.recipient, m.hasRecip }

// InReplyTo returns the id this message is a reply to, or "" if none.
func (m *Message) InReplyTo() string { return m.inReplyTo }

func (m *Message) rawField(key string) (jsoniter.RawMessage, bool) {
	if m.payload == nil {
		return nil, false
	}
	raw, ok := m.payload[key]
	return raw, ok
}

// jsonNull is the literal JSON encoding of null. spec.md §4.2 maps the null
// primitive to absence, but encoding/json-compatible unmarshaling of null
// into a non-pointer scalar is a silent no-op (value left at its zero
// value, no error) rather than a failure the getters below could detect by
// checking the unmarshal error alone.
var jsonNull = []byte("null")

func isJSONNull(raw jsoniter.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

// GetString returns the string value for key, or defval if absent, null, or
// not a string.
func (m *Message) GetString(key, defval string) string {
	raw, ok := m.rawField(key)
	if !ok || isJSONNull(raw) {
		return defval
	}
	var v string
	if err := jsonAPI.Unmarshal(raw, &v); err != nil {
		return defval
	}
	return v
}

// GetInt32 returns the int32 value for key, or defval if absent or unparsable.
func (m *Message) GetInt32(key string, defval int32) int32 {
	raw, ok := m.rawField(key)
	if !ok || isJSONNull(raw) {
		return defval
	}
	var v int32
	if err := jsonAPI.Unmarshal(raw, &v); err != nil {
		return defval
	}
	return v
}

// GetInt64 returns the int64 value for key, or defval if absent or unparsable.
func (m *Message) GetInt64(key string, defval int64) int64 {
	raw, ok := m.rawField(key)
	if !ok || isJSONNull(raw) {
		return defval
	}
	var v int64
	if err := jsonAPI.Unmarshal(raw, &v); err != nil {
		return defval
	}
	return v
}

// GetFloat32 returns the float32 value for key, or defval if absent or unparsable.
func (m *Message) GetFloat32(key string, defval float32) float32 {
	raw, ok := m.rawField(key)
	if !ok || isJSONNull(raw) {
		return defval
	}
	var v float32
	if err := jsonAPI.Unmarshal(raw, &v); err != nil {
		return defval
	}
	return v
}

// GetBool returns the bool value for key, or defval if absent or unparsable.
func (m *Message) GetBool(key string, defval bool) bool {
	raw, ok := m.rawField(key)
	if !ok || isJSONNull(raw) {
		return defval
	}
	var v bool
	if err := jsonAPI.Unmarshal(raw, &v); err != nil {
		return defval
	}
	return v
}

// GetByteArray returns the byte array value for key, trying a literal JSON
// array first and falling back to the "[B" typed-array encoding. ok is false
// if the key is absent or neither form parses.
func (m *Message) GetByteArray(key string) (value []byte, ok bool) {
	raw, present := m.rawField(key)
	if !present {
		return nil, false
	}
	var arr []byte
	if err := jsonAPI.Unmarshal(raw, &arr); err == nil {
		return arr, true
	}
	data, kind, ok2 := decodeTypedArrayField(raw)
	if !ok2 || kind != typedArrayByte {
		return nil, false
	}
	return data, true
}

// GetInt32Array returns the int32 array value for key, trying a literal JSON
// array first and falling back to the "[I" typed-array encoding.
func (m *Message) GetInt32Array(key string) (value []int32, ok bool) {
	raw, present := m.rawField(key)
	if !present {
		return nil, false
	}
	var arr []int32
	if err := jsonAPI.Unmarshal(raw, &arr); err == nil {
		return arr, true
	}
	bytes, kind, ok2 := decodeTypedArrayField(raw)
	if !ok2 || kind != typedArrayInt32 {
		return nil, false
	}
	return bytesToInt32s(bytes), true
}

// GetFloat32Array returns the float32 array value for key, trying a literal
// JSON array first and falling back to the "[F" typed-array encoding.
func (m *Message) GetFloat32Array(key string) (value []float32, ok bool) {
	raw, present := m.rawField(key)
	if !present {
		return nil, false
	}
	var arr []float32
	if err := jsonAPI.Unmarshal(raw, &arr); err == nil {
		return arr, true
	}
	bytes, kind, ok2 := decodeTypedArrayField(raw)
	if !ok2 || kind != typedArrayFloat32 {
		return nil, false
	}
	return bytesToFloat32s(bytes), true
}
