// Package param implements the gateway's parameter-RPC convenience helper:
// typed get/set of a remote agent's named parameters via
// org.arl.fjage.param.ParameterReq, layered entirely on the core Gateway
// API (Send/Request) with no session-machine involvement of its own.
package param

import (
	"time"

	fjage "github.com/org-arl/go-fjage"
)

// Clazz is the message class the remote parameter-RPC agent recognizes.
const Clazz = "org.arl.fjage.param.ParameterReq"

// requestTimeout is the fixed deadline spec.md §6 assigns to a parameter
// round trip.
const requestTimeout = 1000 * time.Millisecond

// NoIndex marks a parameter request as addressing the agent's default
// (non-indexed) parameter set.
const NoIndex = -1

func roundTrip(gw *fjage.Gateway, aid fjage.AID, name string, ndx int, withValue func(*fjage.MessageBuilder)) (*fjage.Message, bool) {
	req := fjage.NewMessage(Clazz, fjage.REQUEST)
	req.SetRecipient(aid)
	req.AddString("param", name)
	req.AddInt32("index", int32(ndx))
	if withValue != nil {
		withValue(req)
	}
	resp, ok := gw.Request(req, requestTimeout)
	if !ok || resp.Performative() != fjage.INFORM {
		return nil, false
	}
	return resp, true
}

// GetInt32 reads an int32-valued parameter, returning defval on any failure
// (timeout, refusal, or a non-INFORM/missing value response).
func GetInt32(gw *fjage.Gateway, aid fjage.AID, name string, ndx int, defval int32) int32 {
	resp, ok := roundTrip(gw, aid, name, ndx, nil)
	if !ok {
		return defval
	}
	return resp.GetInt32("value", defval)
}

// GetInt64 reads an int64 ("long")-valued parameter.
func GetInt64(gw *fjage.Gateway, aid fjage.AID, name string, ndx int, defval int64) int64 {
	resp, ok := roundTrip(gw, aid, name, ndx, nil)
	if !ok {
		return defval
	}
	return resp.GetInt64("value", defval)
}

// GetFloat32 reads a float32-valued parameter.
func GetFloat32(gw *fjage.Gateway, aid fjage.AID, name string, ndx int, defval float32) float32 {
	resp, ok := roundTrip(gw, aid, name, ndx, nil)
	if !ok {
		return defval
	}
	return resp.GetFloat32("value", defval)
}

// GetBool reads a bool-valued parameter.
func GetBool(gw *fjage.Gateway, aid fjage.AID, name string, ndx int, defval bool) bool {
	resp, ok := roundTrip(gw, aid, name, ndx, nil)
	if !ok {
		return defval
	}
	return resp.GetBool("value", defval)
}

// GetString reads a string-valued parameter.
func GetString(gw *fjage.Gateway, aid fjage.AID, name string, ndx int, defval string) string {
	resp, ok := roundTrip(gw, aid, name, ndx, nil)
	if !ok {
		return defval
	}
	return resp.GetString("value", defval)
}

// SetInt32 sets an int32-valued parameter, returning the value the remote
// echoed back (which may differ from requested, e.g. if clamped) and
// whether the call succeeded.
func SetInt32(gw *fjage.Gateway, aid fjage.AID, name string, ndx int, value int32) (int32, bool) {
	resp, ok := roundTrip(gw, aid, name, ndx, func(m *fjage.MessageBuilder) { m.AddInt32("value", value) })
	if !ok {
		return 0, false
	}
	return resp.GetInt32("value", value), true
}

// SetInt64 sets an int64 ("long")-valued parameter.
func SetInt64(gw *fjage.Gateway, aid fjage.AID, name string, ndx int, value int64) (int64, bool) {
	resp, ok := roundTrip(gw, aid, name, ndx, func(m *fjage.MessageBuilder) { m.AddInt64("value", value) })
	if !ok {
		return 0, false
	}
	return resp.GetInt64("value", value), true
}

// SetFloat32 sets a float32-valued parameter.
func SetFloat32(gw *fjage.Gateway, aid fjage.AID, name string, ndx int, value float32) (float32, bool) {
	resp, ok := roundTrip(gw, aid, name, ndx, func(m *fjage.MessageBuilder) { m.AddFloat32("value", value) })
	if !ok {
		return 0, false
	}
	return resp.GetFloat32("value", value), true
}

// SetBool sets a bool-valued parameter.
func SetBool(gw *fjage.Gateway, aid fjage.AID, name string, ndx int, value bool) (bool, bool) {
	resp, ok := roundTrip(gw, aid, name, ndx, func(m *fjage.MessageBuilder) { m.AddBool("value", value) })
	if !ok {
		return false, false
	}
	return resp.GetBool("value", value), true
}

// SetString sets a string-valued parameter.
func SetString(gw *fjage.Gateway, aid fjage.AID, name string, ndx int, value string) (string, bool) {
	resp, ok := roundTrip(gw, aid, name, ndx, func(m *fjage.MessageBuilder) { m.AddString("value", value) })
	if !ok {
		return "", false
	}
	return resp.GetString("value", value), true
}
