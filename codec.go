package fjage

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"
)

type typedArrayKind int

const (
	typedArrayByte typedArrayKind = iota
	typedArrayInt32
	typedArrayFloat32
)

var typedArrayClazz = map[typedArrayKind]string{
	typedArrayByte:    "[B",
	typedArrayInt32:   "[I",
	typedArrayFloat32: "[F",
}

// wireFrame is the superset of fields any inbound JSON line might carry.
// spec.md §4.1 distinguishes frames by which subset of these is present.
type wireFrame struct {
	Action       string              `json:"action,omitempty"`
	Message      jsoniter.RawMessage `json:"message,omitempty"`
	ID           string              `json:"id,omitempty"`
	InResponseTo string              `json:"inResponseTo,omitempty"`
	AgentID      string              `json:"agentID,omitempty"`
	AgentIDs     []string            `json:"agentIDs,omitempty"`
}

// decodeWireFrame parses one JSON line into its generic field set. A parse
// failure is a protocol error: spec.md §7 says the caller must silently
// discard the line.
func decodeWireFrame(line []byte) (*wireFrame, error) {
	var f wireFrame
	if err := jsonAPI.Unmarshal(line, &f); err != nil {
		return nil, fmt.Errorf("decode wire frame: %w", err)
	}
	return &f, nil
}

// wireEnvelope mirrors the outbound JSON shape of spec.md §4.1:
//
//	{"clazz":"<clazz>","data":{"msgID":...,"perf":...,"recipient":...,
//	 "inReplyTo":...,"sender":...,<payload k/v>*}}
//
// It is built by hand (not via struct marshaling) to preserve payload
// insertion order and to omit keys that are absent, exactly as specified.
func encodeEnvelope(m *MessageBuilder, self AID) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, `{"clazz":`...)
	buf = appendJSONString(buf, m.clazz)
	buf = append(buf, `,"data":{"msgID":`...)
	buf = appendJSONString(buf, m.id)

	if m.perf != NONE {
		buf = append(buf, `,"perf":`...)
		buf = appendJSONString(buf, m.perf.String())
	}
	if m.hasRecip {
		buf = append(buf, `,"recipient":`...)
		buf = appendJSONString(buf, string(m.recipient))
	}
	if m.inReplyTo != "" {
		buf = append(buf, `,"inReplyTo":`...)
		buf = appendJSONString(buf, m.inReplyTo)
	}
	// sender is always the gateway's own AID: the remote forbids spoofing.
	buf = append(buf, `,"sender":`...)
	buf = appendJSONString(buf, string(self))

	for _, entry := range m.payload {
		buf = append(buf, ',')
		buf = appendJSONString(buf, entry.Key)
		buf = append(buf, ':')
		encoded, err := encodePayloadValue(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("encode payload key %q: %w", entry.Key, err)
		}
		buf = append(buf, encoded...)
	}

	buf = append(buf, '}', '}')
	return buf, nil
}

func encodePayloadValue(value any) ([]byte, error) {
	switch v := value.(type) {
	case byteArray:
		return encodeTypedArray(typedArrayByte, []byte(v))
	case int32Array:
		return encodeTypedArray(typedArrayInt32, int32sToBytes(v))
	case float32Array:
		return encodeTypedArray(typedArrayFloat32, float32sToBytes(v))
	default:
		return jsonAPI.Marshal(v)
	}
}

// encodeTypedArray builds the {"clazz":"[B"|"[I"|"[F","data":"<base64>"}
// nested object used for byte/int32/float32 arrays. Per spec.md §9's Open
// Question, the reference packs raw host-order bytes; this port pins the
// wire format to little-endian (see DESIGN.md) via int32sToBytes/
// float32sToBytes, so base64 here is simply the encoding step.
func encodeTypedArray(kind typedArrayKind, raw []byte) ([]byte, error) {
	buf := make([]byte, 0, 32+base64.StdEncoding.EncodedLen(len(raw)))
	buf = append(buf, `{"clazz":"`...)
	buf = append(buf, typedArrayClazz[kind]...)
	buf = append(buf, `","data":"`...)
	buf = append(buf, base64.StdEncoding.EncodeToString(raw)...)
	buf = append(buf, `"}`...)
	return buf, nil
}

type typedArrayObject struct {
	Clazz string `json:"clazz"`
	Data  string `json:"data"`
}

// decodeTypedArrayField recognizes the nested {"clazz":"[B"/"[I"/"[F",
// "data":"<base64>"} object and returns its decoded raw bytes.
func decodeTypedArrayField(raw jsoniter.RawMessage) ([]byte, typedArrayKind, bool) {
	var obj typedArrayObject
	if err := jsonAPI.Unmarshal(raw, &obj); err != nil || obj.Data == "" {
		return nil, 0, false
	}
	var kind typedArrayKind
	switch obj.Clazz {
	case "[B":
		kind = typedArrayByte
	case "[I":
		kind = typedArrayInt32
	case "[F":
		kind = typedArrayFloat32
	default:
		return nil, 0, false
	}
	data, err := base64.StdEncoding.DecodeString(obj.Data)
	if err != nil {
		return nil, 0, false
	}
	return data, kind, true
}

func int32sToBytes(values []int32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}
	return out
}

func bytesToInt32s(raw []byte) []int32 {
	n := len(raw) / 4
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

func float32sToBytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32s(raw []byte) []float32 {
	n := len(raw) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

// appendJSONString appends the JSON-quoted form of s to buf. Class names,
// AIDs and ids are plain printable strings in practice; jsoniter's marshaler
// is reused here rather than hand-rolling escaping so exotic payload keys
// still round-trip correctly.
func appendJSONString(buf []byte, s string) []byte {
	encoded, _ := jsonAPI.Marshal(s)
	return append(buf, encoded...)
}

// --- outbound control frames (spec.md §4.1) ---

func encodeSendFrame(m *MessageBuilder, self AID) ([]byte, error) {
	envelope, err := encodeEnvelope(m, self)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(envelope)+32)
	buf = append(buf, `{"action":"send","relay":true,"message":`...)
	buf = append(buf, envelope...)
	buf = append(buf, '}')
	return buf, nil
}

func encodeDiscoveryFrame(action, id, service string) []byte {
	buf := make([]byte, 0, 64+len(service))
	buf = append(buf, `{"action":"`...)
	buf = append(buf, action...)
	buf = append(buf, `","id":`...)
	buf = appendJSONString(buf, id)
	buf = append(buf, `,"service":`...)
	buf = appendJSONString(buf, service)
	buf = append(buf, '}')
	return buf
}

func encodeWantsMessagesForFrame(self AID, subs []AID) []byte {
	buf := make([]byte, 0, 48+16*len(subs))
	buf = append(buf, `{"action":"wantsMessagesFor","agentIDs":[`...)
	buf = appendJSONString(buf, string(self))
	for _, s := range subs {
		buf = append(buf, ',')
		buf = appendJSONString(buf, string(s))
	}
	buf = append(buf, ']', '}')
	return buf
}

func encodeRefusalFrame(id, action string) []byte {
	buf := make([]byte, 0, 64+len(id)+len(action))
	buf = append(buf, `{"id":`...)
	buf = appendJSONString(buf, id)
	buf = append(buf, `,"inResponseTo":`...)
	buf = appendJSONString(buf, action)
	buf = append(buf, `,"answer":false}`...)
	return buf
}

// --- inbound message parsing ---

type wireMessage struct {
	Clazz string              `json:"clazz"`
	Data  jsoniter.RawMessage `json:"data"`
}

// reservedDataKeys are the envelope keys that are not payload entries.
var reservedDataKeys = map[string]struct{}{
	"msgID": {}, "perf": {}, "recipient": {}, "inReplyTo": {}, "sender": {},
}

// parseMessage decodes one embedded message object (the value of a "send"
// frame's "message" field) into a readable Message. This is the Go
// replacement for spec.md §4.2's minimal JSON tokenizer: one flat
// top-level decode into a RawMessage map gives exactly the "single
// left-to-right scan, skip whole nested objects" semantics the spec asks
// for, without a hand-rolled tokenizer (sanctioned by spec.md §9).
func parseMessage(raw jsoniter.RawMessage) (*Message, error) {
	var wm wireMessage
	if err := jsonAPI.Unmarshal(raw, &wm); err != nil {
		return nil, fmt.Errorf("parse message envelope: %w", err)
	}

	var allFields map[string]jsoniter.RawMessage
	if err := jsonAPI.Unmarshal(wm.Data, &allFields); err != nil {
		return nil, fmt.Errorf("parse message data: %w", err)
	}

	msg := &Message{
		clazz:   wm.Clazz,
		payload: make(map[string]jsoniter.RawMessage),
	}

	if raw, ok := allFields["msgID"]; ok {
		jsonAPI.Unmarshal(raw, &msg.id)
	}
	if raw, ok := allFields["perf"]; ok {
		var perfName string
		if jsonAPI.Unmarshal(raw, &perfName) == nil {
			if p, known := parsePerformative(perfName); known {
				msg.perf = p
			}
		}
	}
	if raw, ok := allFields["sender"]; ok {
		var s string
		jsonAPI.Unmarshal(raw, &s)
		msg.sender = AID(s)
	}
	if raw, ok := allFields["recipient"]; ok {
		var s string
		if jsonAPI.Unmarshal(raw, &s) == nil {
			msg.recipient = AID(s)
			msg.hasRecip = true
		}
	}
	if raw, ok := allFields["inReplyTo"]; ok {
		jsonAPI.Unmarshal(raw, &msg.inReplyTo)
	}

	for key, value := range allFields {
		if _, reserved := reservedDataKeys[key]; reserved {
			continue
		}
		msg.payload[key] = value
	}

	return msg, nil
}
