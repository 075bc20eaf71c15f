package fjage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org-arl/go-fjage/internal/fakecontainer"
)

func dialFakeContainer(t *testing.T) *Gateway {
	t.Helper()
	c, err := fakecontainer.Start()
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	gw, err := OpenTCP(c.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	return gw
}

func TestHandshake(t *testing.T) {
	gw := dialFakeContainer(t)
	assert.True(t, strings.HasPrefix(string(gw.AgentID()), "CGatewayAgent@"))
}

func TestDiscoveryPositive(t *testing.T) {
	gw := dialFakeContainer(t)

	aid, ok := gw.AgentForService("org.arl.fjage.shell.Services.SHELL")
	require.True(t, ok)
	assert.Equal(t, AID("shell"), aid)

	out := make([]AID, 1)
	n := gw.AgentsForService("org.arl.fjage.shell.Services.SHELL", out)
	assert.Equal(t, 1, n)
	assert.Equal(t, AID("shell"), out[0])
}

func TestDiscoveryNegative(t *testing.T) {
	gw := dialFakeContainer(t)
	_, ok := gw.AgentForService("unknown.service")
	assert.False(t, ok)
}

func TestEcho(t *testing.T) {
	gw := dialFakeContainer(t)

	m := NewMessage("org.arl.fjage.test.TestMessage", INFORM)
	m.SetRecipient(gw.AgentID())
	m.AddString("mystring", "myvalue")
	m.AddInt32("myint", 7)
	m.AddInt64("mylong", 77)
	m.AddFloat32("myfloat", 2.7)
	m.AddBool("mytbool", true)
	m.AddBool("myfbool", false)
	m.AddByteArray("mydata", []byte{7, 6, 5, 4, 3, 2, 1})
	m.AddFloat32Array("mysignal", []float32{3, 1, 4, 1, 5, 9, 2})

	require.NoError(t, gw.Send(m))

	msg, ok := gw.Receive("", "", time.Second)
	require.True(t, ok)
	assert.Equal(t, "myvalue", msg.GetString("mystring", ""))
	assert.Equal(t, int32(7), msg.GetInt32("myint", 0))
	assert.Equal(t, int64(77), msg.GetInt64("mylong", 0))
	assert.InDelta(t, 2.7, msg.GetFloat32("myfloat", 0), 0.01)
	assert.Equal(t, true, msg.GetBool("mytbool", false))
	assert.Equal(t, false, msg.GetBool("myfbool", true))

	data, ok := msg.GetByteArray("mydata")
	require.True(t, ok)
	assert.Len(t, data, 7)

	signal, ok := msg.GetFloat32Array("mysignal")
	require.True(t, ok)
	assert.Len(t, signal, 7)
}

func TestTopicRouting(t *testing.T) {
	gw := dialFakeContainer(t)
	topic := Topic("mytopic")

	m := NewMessage("c", INFORM)
	m.SetRecipient(topic)
	require.NoError(t, gw.Send(m))
	_, ok := gw.Receive("", "", 300*time.Millisecond)
	assert.False(t, ok, "must not receive while unsubscribed")

	require.True(t, gw.Subscribe(topic))
	m2 := NewMessage("c", INFORM)
	m2.SetRecipient(topic)
	require.NoError(t, gw.Send(m2))
	_, ok = gw.Receive("", "", time.Second)
	assert.True(t, ok, "must receive once subscribed")
}

func TestRequestResponse(t *testing.T) {
	gw := dialFakeContainer(t)

	shell, ok := gw.AgentForService("org.arl.fjage.shell.Services.SHELL")
	require.True(t, ok)

	req := NewMessage("org.arl.fjage.shell.ShellExecReq", REQUEST)
	req.SetRecipient(shell)
	req.AddString("cmd", "ps")

	resp, ok := gw.Request(req, time.Second)
	require.True(t, ok)
	assert.Equal(t, AGREE, resp.Performative())
}

func TestReceiveCorrelationFilter(t *testing.T) {
	gw := dialFakeContainer(t)

	id1 := NewMessage("C0", REQUEST).ID()
	m1 := NewMessage("C1", INFORM)
	m1.SetRecipient(gw.AgentID())
	m1.SetInReplyTo(id1)
	require.NoError(t, gw.Send(m1))

	m2 := NewMessage("C2", INFORM)
	m2.SetRecipient(gw.AgentID())
	require.NoError(t, gw.Send(m2))

	msg, ok := gw.Receive("", id1, time.Second)
	require.True(t, ok)
	assert.Equal(t, "C1", msg.Clazz())

	msg2, ok := gw.Receive("C2", "", time.Second)
	require.True(t, ok)
	assert.Equal(t, "C2", msg2.Clazz())
}

func TestReceiveTimeoutAccuracy(t *testing.T) {
	gw := dialFakeContainer(t)
	start := time.Now()
	_, ok := gw.Receive("", "", time.Second)
	elapsed := time.Since(start)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
	assert.LessOrEqual(t, elapsed, 1200*time.Millisecond)
}

func TestInterruptDuringReceive(t *testing.T) {
	gw := dialFakeContainer(t)

	go func() {
		time.Sleep(200 * time.Millisecond)
		gw.Interrupt()
	}()

	start := time.Now()
	_, ok := gw.Receive("", "", time.Second)
	elapsed := time.Since(start)
	assert.False(t, ok)
	assert.Less(t, elapsed, 400*time.Millisecond)
}
