package fjage

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// discoveryTimeout is the fixed deadline spec.md §4.7 assigns to
// agent_for_service/agents_for_service.
const discoveryTimeout = 1000 * time.Millisecond

// Gateway is a client-side connection to a remote fjåge-style container. It
// registers itself as a pseudo-agent on open and exposes a blocking,
// single-goroutine API for send/receive/request, topic subscription and
// service discovery. A Gateway must not be used from more than one
// goroutine at a time, with the sole exception of Interrupt.
type Gateway struct {
	conn    channel
	session *session
	self    AID
	debug   bool
	closed  bool
}

// GatewayOption configures optional Gateway behavior at open time.
type GatewayOption func(*gatewayOptions)

type gatewayOptions struct {
	debug bool
}

// WithDebug enables debug-level logging of session internals.
func WithDebug(enabled bool) GatewayOption {
	return func(o *gatewayOptions) { o.debug = enabled }
}

func newSelfAID() AID {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand.Read failing means the OS entropy source is broken;
		// fall back to a fixed-but-unique-enough value rather than panic.
		binary.BigEndian.PutUint32(b[:], uint32(time.Now().UnixNano()))
	}
	return AID("CGatewayAgent@" + hex.EncodeToString(b[:]))
}

func applyOptions(opts []GatewayOption) gatewayOptions {
	var o gatewayOptions
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// OpenTCP connects to a remote container over TCP, registers a self AID,
// and advertises it via an initial wantsMessagesFor (TCP only — spec.md §9
// notes the serial path omits this for the reference implementation and we
// preserve that asymmetry rather than silently "fixing" unspecified
// behavior).
func OpenTCP(addr string, opts ...GatewayOption) (*Gateway, error) {
	o := applyOptions(opts)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("fjage: open tcp %s: %w", addr, err)
	}
	gw := newGateway(conn, o)
	if err := gw.session.resubscribe(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("fjage: initial wantsMessagesFor: %w", err)
	}
	gw.session.logf("fjage: opened tcp gateway %s as %s", addr, gw.self)
	return gw, nil
}

func newGateway(conn channel, o gatewayOptions) *Gateway {
	self := newSelfAID()
	gw := &Gateway{
		conn:  conn,
		self:  self,
		debug: o.debug,
	}
	gw.session = newSession(conn, self, o.debug)
	return gw
}

// Close tears down the channel and the wait primitive, discarding any
// queued-but-undelivered messages. It is safe to call Close more than once.
func (gw *Gateway) Close() error {
	if gw.closed {
		return nil
	}
	gw.closed = true
	gw.session.interrupt()
	for {
		if _, ok := gw.session.inbound.Get("", ""); !ok {
			break
		}
	}
	var result *multierror.Error
	if err := gw.conn.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close connection: %w", err))
	}
	return result.ErrorOrNil()
}

// AgentID returns the gateway's own local AID.
func (gw *Gateway) AgentID() AID { return gw.self }

// Subscribe adds topic to the local accept-filter and re-advertises the
// subscription set to the remote. Reports false if the subscription buffer
// is full.
func (gw *Gateway) Subscribe(topic AID) bool {
	if !gw.session.subs.add(topic) {
		return false
	}
	if err := gw.session.resubscribe(); err != nil {
		gw.session.logf("fjage: resubscribe after Subscribe failed: %v", err)
	}
	return true
}

// Unsubscribe removes topic from the local accept-filter and
// re-advertises. Reports false if topic was not subscribed.
func (gw *Gateway) Unsubscribe(topic AID) bool {
	if !gw.session.subs.remove(topic) {
		return false
	}
	if err := gw.session.resubscribe(); err != nil {
		gw.session.logf("fjage: resubscribe after Unsubscribe failed: %v", err)
	}
	return true
}

// IsSubscribed reports whether topic is currently in the accept-filter.
func (gw *Gateway) IsSubscribed(topic AID) bool {
	return gw.session.subs.has(topic)
}

// SubscribeAgent subscribes to an agent's default notification topic,
// "#"+aid+"__ntf".
func (gw *Gateway) SubscribeAgent(aid AID) bool {
	if !gw.session.subs.addAgent(aid) {
		return false
	}
	if err := gw.session.resubscribe(); err != nil {
		gw.session.logf("fjage: resubscribe after SubscribeAgent failed: %v", err)
	}
	return true
}

// Send transmits msg with this gateway's AID forced as sender. The builder
// must not be reused afterward.
func (gw *Gateway) Send(msg *MessageBuilder) error {
	defer msg.invalidate()
	frame, err := encodeSendFrame(msg, gw.self)
	if err != nil {
		return fmt.Errorf("fjage: encode send: %w", err)
	}
	return gw.session.write(frame)
}

// AgentForService resolves one agent providing service, blocking up to
// discoveryTimeout. Returns ("", false) if none respond in time.
func (gw *Gateway) AgentForService(service string) (AID, bool) {
	gw.session.signaler.Drain() // discard any stale interrupt, per spec.md §4.7

	id := discoveryID()
	if err := gw.session.write(encodeDiscoveryFrame("agentForService", id, service)); err != nil {
		gw.session.logf("fjage: agentForService write failed: %v", err)
		return "", false
	}
	outcome, err := gw.session.run(time.Now().Add(discoveryTimeout), id)
	if err != nil || outcome != sessionDone {
		return "", false
	}
	if !gw.session.pendingHasAgentID {
		return "", false
	}
	return gw.session.pendingAgentID, true
}

// AgentsForService resolves every agent providing service, blocking up to
// discoveryTimeout. It returns the total number found; at most len(out)
// AIDs are copied into out (in the order the remote reported them).
func (gw *Gateway) AgentsForService(service string, out []AID) int {
	gw.session.signaler.Drain() // discard any stale interrupt, per spec.md §4.7

	id := discoveryID()
	if err := gw.session.write(encodeDiscoveryFrame("agentsForService", id, service)); err != nil {
		gw.session.logf("fjage: agentsForService write failed: %v", err)
		return 0
	}
	outcome, err := gw.session.run(time.Now().Add(discoveryTimeout), id)
	if err != nil || outcome != sessionDone {
		return 0
	}
	found := gw.session.pendingAgentIDs
	copy(out, found)
	return len(found)
}

// Receive returns the first queued message matching clazz (ignored when
// "") and inReplyTo (ignored when ""), waiting up to timeout for one to
// arrive if the queue has no match yet. A zero timeout means "return
// immediately with whatever is already queued".
func (gw *Gateway) Receive(clazz, inReplyTo string, timeout time.Duration) (*Message, bool) {
	return gw.receiveLoop(timeout, func() (*Message, bool) {
		return gw.session.inbound.Get(clazz, inReplyTo)
	})
}

// ReceiveAny is Receive's class-set variant: it matches any of clazzes. An
// empty clazzes never matches.
func (gw *Gateway) ReceiveAny(clazzes []string, timeout time.Duration) (*Message, bool) {
	return gw.receiveLoop(timeout, func() (*Message, bool) {
		return gw.session.inbound.GetAny(clazzes)
	})
}

func (gw *Gateway) receiveLoop(timeout time.Duration, poll func() (*Message, bool)) (*Message, bool) {
	gw.session.signaler.Drain() // discard any stale interrupt, per spec.md §4.7

	if msg, ok := poll(); ok {
		return msg, true
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	} else {
		return nil, false
	}

	for {
		outcome, err := gw.session.run(deadline, "")
		if err != nil {
			return nil, false
		}
		if msg, ok := poll(); ok {
			return msg, true
		}
		switch outcome {
		case sessionInterrupted, sessionTimedOut:
			return nil, false
		}
		if !time.Now().Before(deadline) {
			return nil, false
		}
	}
}

// Request sends msg (consuming it) and then waits up to timeout for a
// reply whose InReplyTo equals msg's id. Fails if msg has no id, which
// cannot happen for a MessageBuilder created via NewMessage.
func (gw *Gateway) Request(msg *MessageBuilder, timeout time.Duration) (*Message, bool) {
	id := msg.ID()
	if id == "" {
		return nil, false
	}
	if err := gw.Send(msg); err != nil {
		gw.session.logf("fjage: request send failed: %v", err)
		return nil, false
	}
	return gw.Receive("", id, timeout)
}

// Interrupt signals the wait primitive, causing the currently blocked
// Receive/ReceiveAny/Request/AgentForService/AgentsForService call to return
// promptly. An interrupt raised while no call is blocked is discarded when
// the next such call starts. It is the only Gateway method safe to call from
// a goroutine other than the one driving the gateway.
func (gw *Gateway) Interrupt() {
	gw.session.interrupt()
}

// discoveryID generates a correlation id for agentForService/agentsForService
// requests. These are UUIDs rather than message ids (nanoid) since they
// correlate to "inResponseTo", not "inReplyTo", on the wire.
func discoveryID() string {
	return uuid.NewString()
}

// String renders the gateway's internal state for debugging.
func (gw *Gateway) String() string {
	return spew.Sprintf(`
Gateway(
  self:      %v
  closed:    %v
  subs:      %v
  queuelen:  %v
)
`,
		gw.self,
		gw.closed,
		gw.session.subs.list(),
		gw.session.inbound.Len(),
	)
}
