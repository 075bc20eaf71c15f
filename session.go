package fjage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/org-arl/go-fjage/internal/queue"
	"github.com/org-arl/go-fjage/internal/waitsignal"
)

// isTimeout recognizes a deadline expiry on either a net.Conn (TCP) or an
// *os.File (serial) — the two channel implementations differ in how they
// report it.
func isTimeout(err error) bool {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// channel is the narrow byte-stream surface the session machine needs. Both
// net.Conn (TCP) and *os.File (serial, opened non-blocking) satisfy it,
// which is how OpenTCP and OpenSerial share one session implementation.
type channel interface {
	io.Reader
	io.Writer
	io.Closer
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// sessionOutcome is the result of one runSessionMachine invocation.
type sessionOutcome int

const (
	sessionDone sessionOutcome = iota
	sessionTimedOut
	sessionInterrupted
)

// session is the single-goroutine-owned reader/dispatcher described in
// spec.md §4.5. It holds everything a blocking public call needs to drive:
// the connection, the inbound queue, the subscription filter and the
// scratch for whatever correlation id is currently pending. No method on
// session is safe to call concurrently with another, except Interrupt
// (delegated straight to the embedded waitsignal.Signaler).
type session struct {
	conn     channel
	reader   *bufio.Reader
	self     AID
	signaler *waitsignal.Signaler
	inbound  *queue.Queue[*Message]
	subs     *subscriptionSet
	debug    bool

	// pending correlation scratch (spec.md §3 "pending-correlation scratch").
	// pendingID == "" means "first matching inbound send" (spec.md §9's
	// re-entrancy goal), rather than a discovery response.
	pendingID         string
	pendingAgentID    AID
	pendingHasAgentID bool
	pendingAgentIDs   []AID

	// partial holds the start of a line whose newline has not arrived yet.
	partial []byte
}

func newSession(conn channel, self AID, debug bool) *session {
	return &session{
		conn:     conn,
		reader:   bufio.NewReaderSize(conn, 65536),
		self:     self,
		signaler: waitsignal.New(),
		inbound:  queue.New[*Message](),
		subs:     newSubscriptionSet(),
		debug:    debug,
	}
}

func (s *session) logf(format string, args ...any) {
	if s.debug {
		debugLogger.Printf(format, args...)
	}
}

// write sends one already-encoded frame, newline-terminated, on the wire.
func (s *session) write(frame []byte) error {
	s.conn.SetWriteDeadline(time.Time{})
	framed := make([]byte, 0, len(frame)+1)
	framed = append(framed, frame...)
	framed = append(framed, '\n')
	if _, err := s.conn.Write(framed); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ready is the non-blocking readiness probe the wait primitive polls: a
// zero-timeout peek that never consumes bytes.
func (s *session) ready() (bool, error) {
	if err := s.conn.SetReadDeadline(time.Now()); err != nil {
		return false, err
	}
	if _, err := s.reader.Peek(1); err != nil {
		if isTimeout(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// run drives the session machine until the pending goal is satisfied, the
// deadline passes, or an interrupt is observed. A zero deadline means "no
// timeout" (block until done or interrupted). pendingID == "" means "return
// as soon as any matching inbound send is queued"; any other value is a
// discovery/response correlation id to wait for.
func (s *session) run(deadline time.Time, pendingID string) (sessionOutcome, error) {
	s.pendingID = pendingID
	s.pendingHasAgentID = false
	s.pendingAgentIDs = nil

	for {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return sessionTimedOut, nil
		}

		outcome, err := s.signaler.Wait(deadline, waitsignal.DefaultPollInterval, s.ready)
		if err != nil {
			// A transport error terminates the blocking call as TIMED_OUT
			// per spec.md §7; the error itself is returned alongside.
			s.logf("fjage: session read error: %v", err)
			return sessionTimedOut, err
		}

		switch outcome {
		case waitsignal.Interrupted:
			return sessionInterrupted, nil
		case waitsignal.TimedOut:
			return sessionTimedOut, nil
		}

		done, err := s.drainLines()
		if err != nil {
			return sessionTimedOut, err
		}
		if done {
			return sessionDone, nil
		}
	}
}

// drainLines reads and processes every complete line currently buffered,
// stopping (without error) once a read would block. A line cut short by
// that stop is kept in s.partial and completed by a later call. The
// bufio.Reader (64 KiB buffer, with ReadBytes collecting longer lines)
// stands in for spec.md §4.5's manual "compact, grow by 65,536" line buffer.
func (s *session) drainLines() (bool, error) {
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(waitsignal.DefaultPollInterval)); err != nil {
			return false, err
		}
		line, err := s.reader.ReadBytes('\n')
		if err != nil && isTimeout(err) {
			s.partial = append(s.partial, line...)
			return false, nil
		}
		if len(s.partial) > 0 {
			line = append(s.partial, line...)
			s.partial = nil
		}
		if len(line) > 0 {
			trimmed := bytes.TrimRight(line, "\r\n")
			if len(trimmed) > 0 {
				if s.processLine(trimmed) {
					return true, nil
				}
			}
		}
		if err != nil {
			return false, fmt.Errorf("read line: %w", err)
		}
	}
}

// processLine implements spec.md §4.5's process_line. It returns true when
// the line satisfies the current goal (pendingID, or "" for first matching
// inbound send).
func (s *session) processLine(line []byte) bool {
	frame, err := decodeWireFrame(line)
	if err != nil {
		return false
	}

	if frame.Action != "" {
		return s.processAction(frame)
	}

	if frame.ID != "" && frame.ID == s.pendingID {
		switch frame.InResponseTo {
		case "agentForService":
			if frame.AgentID != "" {
				s.pendingAgentID = AID(frame.AgentID)
				s.pendingHasAgentID = true
			}
		case "agentsForService":
			ids := make([]AID, len(frame.AgentIDs))
			for i, a := range frame.AgentIDs {
				ids[i] = AID(a)
			}
			s.pendingAgentIDs = ids
		}
		return true
	}

	return false
}

func (s *session) processAction(frame *wireFrame) bool {
	switch frame.Action {
	case "send":
		msg, err := parseMessage(frame.Message)
		if err != nil {
			return false
		}
		recipient, hasRecip := msg.Recipient()
		accepted := hasRecip && (recipient == s.self || s.subs.has(recipient))
		if !accepted {
			return false
		}
		s.inbound.Put(msg)
		return s.pendingID == ""
	default:
		if werr := s.write(encodeRefusalFrame(frame.ID, frame.Action)); werr != nil {
			s.logf("fjage: refusal write failed: %v", werr)
		}
		return false
	}
}

// interrupt requests that a blocked run() return promptly. Safe to call
// from any goroutine — the only session operation with that guarantee.
func (s *session) interrupt() {
	s.signaler.Interrupt()
}

// resubscribe re-emits wantsMessagesFor with the current subscription set,
// as spec.md §4.3 mandates after every mutation.
func (s *session) resubscribe() error {
	return s.write(encodeWantsMessagesForFrame(s.self, s.subs.list()))
}
