package fjage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const self = AID("CGatewayAgent@deadbeef")

func buildAndParse(t *testing.T, m *MessageBuilder) *Message {
	t.Helper()
	envelope, err := encodeEnvelope(m, self)
	require.NoError(t, err)

	frame, err := decodeWireFrame(append([]byte(`{"action":"send","message":`), append(envelope, '}')...))
	require.NoError(t, err)
	msg, err := parseMessage(frame.Message)
	require.NoError(t, err)
	return msg
}

func TestScalarRoundTrip(t *testing.T) {
	m := NewMessage("org.arl.fjage.test.TestMessage", INFORM)
	m.SetRecipient(self)
	m.AddString("mystring", "myvalue")
	m.AddInt32("myint", 7)
	m.AddInt64("mylong", 77)
	m.AddFloat32("myfloat", 2.7)
	m.AddBool("mytbool", true)
	m.AddBool("myfbool", false)

	msg := buildAndParse(t, m)

	assert.Equal(t, "myvalue", msg.GetString("mystring", ""))
	assert.Equal(t, int32(7), msg.GetInt32("myint", 0))
	assert.Equal(t, int64(77), msg.GetInt64("mylong", 0))
	assert.InDelta(t, 2.7, msg.GetFloat32("myfloat", 0), 0.01)
	assert.Equal(t, true, msg.GetBool("mytbool", false))
	assert.Equal(t, false, msg.GetBool("myfbool", true))
	assert.Equal(t, INFORM, msg.Performative())
	assert.Equal(t, "org.arl.fjage.test.TestMessage", msg.Clazz())
}

func TestTypedArrayRoundTrip(t *testing.T) {
	m := NewMessage("c", INFORM)
	bytesIn := []byte{7, 6, 5, 4, 3, 2, 1}
	floatsIn := []float32{3, 1, 4, 1, 5, 9, 2}
	intsIn := []int32{1, 2, 3, 2048}
	m.AddByteArray("mydata", bytesIn)
	m.AddFloat32Array("mysignal", floatsIn)
	m.AddInt32Array("myints", intsIn)

	msg := buildAndParse(t, m)

	gotBytes, ok := msg.GetByteArray("mydata")
	require.True(t, ok)
	assert.Equal(t, bytesIn, gotBytes)

	gotFloats, ok := msg.GetFloat32Array("mysignal")
	require.True(t, ok)
	require.Len(t, gotFloats, len(floatsIn))
	for i := range floatsIn {
		assert.InDelta(t, floatsIn[i], gotFloats[i], 0.01)
	}

	gotInts, ok := msg.GetInt32Array("myints")
	require.True(t, ok)
	assert.Equal(t, intsIn, gotInts)
}

func TestEncodeEnvelopeForcesSender(t *testing.T) {
	m := NewMessage("c", NONE)
	m.AddString("mystring", "irrelevant")
	msg := buildAndParse(t, m)
	assert.Equal(t, self, msg.Sender())
}

func TestDecodeWantsMessagesForFrame(t *testing.T) {
	frame := encodeWantsMessagesForFrame(self, []AID{Topic("a"), Topic("b")})
	decoded, err := decodeWireFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, "wantsMessagesFor", decoded.Action)
}

func TestDecodeDiscoveryFrame(t *testing.T) {
	frame := encodeDiscoveryFrame("agentForService", "id1", "svc")
	decoded, err := decodeWireFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, "agentForService", decoded.Action)
	assert.Equal(t, "id1", decoded.ID)
}
