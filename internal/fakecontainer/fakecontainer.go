// Package fakecontainer is a minimal in-process stand-in for a real
// fjåge-style container, just capable enough to drive the gateway's
// end-to-end tests without a live Java/C container on the far end.
package fakecontainer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
)

const (
	shellAID     = "shell"
	shellService = "org.arl.fjage.shell.Services.SHELL"
	shellExecReq = "org.arl.fjage.shell.ShellExecReq"
	paramReq     = "org.arl.fjage.param.ParameterReq"
	paramAID     = "modem"
)

// Container accepts one TCP connection and then: answers a ShellExecReq with
// a canned AGREE and a ParameterReq from its in-memory parameter table,
// relays every other "send" frame straight back to the sender (it is the
// only other participant), and answers agentForService/agentsForService for
// one fixed fixture agent ("shell", providing shellService) — the fixture
// spec.md §8's end-to-end scenarios assume.
type Container struct {
	ln net.Listener

	mu     sync.Mutex
	conn   net.Conn
	params map[string]float64
}

// Start listens on an OS-assigned loopback port and begins serving in the
// background.
func Start() (*Container, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("fakecontainer: listen: %w", err)
	}
	c := &Container{ln: ln, params: map[string]float64{"gain": 1.5}}
	go c.serve()
	return c, nil
}

// Addr returns the dial address for the listener Start opened.
func (c *Container) Addr() string {
	return c.ln.Addr().String()
}

// Close shuts down the listener and any accepted connection.
func (c *Container) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	return c.ln.Close()
}

func (c *Container) serve() {
	conn, err := c.ln.Accept()
	if err != nil {
		return
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			c.handleLine(conn, line)
		}
		if err != nil {
			return
		}
	}
}

func (c *Container) handleLine(conn net.Conn, line []byte) {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(line, &frame); err != nil {
		return
	}

	var action string
	if raw, ok := frame["action"]; ok {
		json.Unmarshal(raw, &action)
	}

	switch action {
	case "send":
		c.handleSend(conn, frame)
	case "agentForService":
		c.handleAgentForService(conn, frame)
	case "agentsForService":
		c.handleAgentsForService(conn, frame)
	}
	// wantsMessagesFor carries no reply and is ignored here: this double
	// relays unconditionally, so any accept-filtering in these tests is done
	// by the gateway's own subscription set.
}

func (c *Container) handleSend(conn net.Conn, frame map[string]json.RawMessage) {
	msgRaw, ok := frame["message"]
	if !ok {
		return
	}

	var envelope struct {
		Clazz string          `json:"clazz"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msgRaw, &envelope); err != nil {
		return
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Data, &data); err == nil {
		switch envelope.Clazz {
		case shellExecReq:
			c.replyShellExec(conn, envelope.Clazz, data)
			return
		case paramReq:
			c.replyParamReq(conn, envelope.Clazz, data)
			return
		}
	}

	writeFrame(conn, map[string]any{
		"action":  "send",
		"relay":   true,
		"message": msgRaw,
	})
}

func (c *Container) replyShellExec(conn net.Conn, clazz string, data map[string]json.RawMessage) {
	var id, sender string
	json.Unmarshal(data["msgID"], &id)
	json.Unmarshal(data["sender"], &sender)

	writeFrame(conn, map[string]any{
		"action": "send",
		"relay":  true,
		"message": map[string]any{
			"clazz": clazz,
			"data": map[string]any{
				"msgID":     newID(),
				"perf":      "AGREE",
				"sender":    shellAID,
				"recipient": sender,
				"inReplyTo": id,
			},
		},
	})
}

// replyParamReq backs the one fixed fixture parameter, "gain" on "modem",
// answering ParameterReq gets and sets from an in-memory value so
// param_test.go can exercise the param package's request/response shape
// without a real parameter-bearing agent.
func (c *Container) replyParamReq(conn net.Conn, clazz string, data map[string]json.RawMessage) {
	var id, sender, name string
	json.Unmarshal(data["msgID"], &id)
	json.Unmarshal(data["sender"], &sender)
	json.Unmarshal(data["param"], &name)

	c.mu.Lock()
	if raw, ok := data["value"]; ok {
		var v float64
		if json.Unmarshal(raw, &v) == nil {
			c.params[name] = v
		}
	}
	value, known := c.params[name]
	c.mu.Unlock()

	if !known {
		writeFrame(conn, map[string]any{
			"action": "send",
			"relay":  true,
			"message": map[string]any{
				"clazz": clazz,
				"data": map[string]any{
					"msgID":     newID(),
					"perf":      "REFUSE",
					"sender":    paramAID,
					"recipient": sender,
					"inReplyTo": id,
				},
			},
		})
		return
	}

	writeFrame(conn, map[string]any{
		"action": "send",
		"relay":  true,
		"message": map[string]any{
			"clazz": clazz,
			"data": map[string]any{
				"msgID":     newID(),
				"perf":      "INFORM",
				"sender":    paramAID,
				"recipient": sender,
				"inReplyTo": id,
				"param":     name,
				"value":     value,
			},
		},
	})
}

func (c *Container) handleAgentForService(conn net.Conn, frame map[string]json.RawMessage) {
	var id, service string
	json.Unmarshal(frame["id"], &id)
	json.Unmarshal(frame["service"], &service)
	if service != shellService {
		return // unknown service: stay silent, the caller times out
	}
	writeFrame(conn, map[string]any{
		"id":           id,
		"inResponseTo": "agentForService",
		"agentID":      shellAID,
	})
}

func (c *Container) handleAgentsForService(conn net.Conn, frame map[string]json.RawMessage) {
	var id, service string
	json.Unmarshal(frame["id"], &id)
	json.Unmarshal(frame["service"], &service)
	agentIDs := []string{}
	if service == shellService {
		agentIDs = []string{shellAID}
	}
	writeFrame(conn, map[string]any{
		"id":           id,
		"inResponseTo": "agentsForService",
		"agentIDs":     agentIDs,
	})
}

func writeFrame(conn net.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	data = append(data, '\n')
	conn.Write(data)
}

var idCounter uint64

func newID() string {
	idCounter++
	return fmt.Sprintf("fake-%d", idCounter)
}
