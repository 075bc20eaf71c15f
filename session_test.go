package fjage

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) (*session, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return newSession(client, self, false), server
}

func writeLine(t *testing.T, conn net.Conn, data []byte) {
	t.Helper()
	go func() {
		conn.Write(append(data, '\n'))
	}()
}

func TestSessionDeliversSendToSelf(t *testing.T) {
	s, peer := newTestSession(t)

	m := NewMessage("org.arl.fjage.test.TestMessage", INFORM)
	m.SetRecipient(self)
	envelope, err := encodeEnvelope(m, self)
	require.NoError(t, err)

	frame := append([]byte(`{"action":"send","message":`), append(envelope, '}')...)
	writeLine(t, peer, frame)

	outcome, err := s.run(time.Now().Add(2*time.Second), "")
	require.NoError(t, err)
	assert.Equal(t, sessionDone, outcome)
	assert.Equal(t, 1, s.inbound.Len())
}

func TestSessionIgnoresUnmatchedRecipient(t *testing.T) {
	s, peer := newTestSession(t)

	m := NewMessage("c", NONE)
	m.SetRecipient(AID("someoneElse"))
	envelope, err := encodeEnvelope(m, self)
	require.NoError(t, err)
	frame := append([]byte(`{"action":"send","message":`), append(envelope, '}')...)
	writeLine(t, peer, frame)

	outcome, err := s.run(time.Now().Add(150*time.Millisecond), "")
	require.NoError(t, err)
	assert.Equal(t, sessionTimedOut, outcome)
	assert.Equal(t, 0, s.inbound.Len())
}

func TestSessionResolvesDiscoveryCorrelation(t *testing.T) {
	s, peer := newTestSession(t)

	writeLine(t, peer, []byte(`{"id":"corr1","inResponseTo":"agentForService","agentID":"shell"}`))

	outcome, err := s.run(time.Now().Add(2*time.Second), "corr1")
	require.NoError(t, err)
	assert.Equal(t, sessionDone, outcome)
	assert.True(t, s.pendingHasAgentID)
	assert.Equal(t, AID("shell"), s.pendingAgentID)
}

func TestSessionInterrupt(t *testing.T) {
	s, _ := newTestSession(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.interrupt()
	}()

	start := time.Now()
	outcome, err := s.run(start.Add(2*time.Second), "")
	require.NoError(t, err)
	assert.Equal(t, sessionInterrupted, outcome)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
