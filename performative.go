package fjage

// Performative is the FIPA-ACL-style intent tag carried by every message.
type Performative int

// The closed set of performatives, numbered exactly as the wire protocol
// expects.
const (
	NONE Performative = iota
	REQUEST
	AGREE
	REFUSE
	FAILURE
	INFORM
	CONFIRM
	DISCONFIRM
	QUERY_IF
	NOT_UNDERSTOOD
	CFP
	PROPOSE
	CANCEL
)

var performativeNames = [...]string{
	NONE:           "NONE",
	REQUEST:        "REQUEST",
	AGREE:          "AGREE",
	REFUSE:         "REFUSE",
	FAILURE:        "FAILURE",
	INFORM:         "INFORM",
	CONFIRM:        "CONFIRM",
	DISCONFIRM:     "DISCONFIRM",
	QUERY_IF:       "QUERY_IF",
	NOT_UNDERSTOOD: "NOT_UNDERSTOOD",
	CFP:            "CFP",
	PROPOSE:        "PROPOSE",
	CANCEL:         "CANCEL",
}

// String returns the exact-case wire name of the performative.
func (p Performative) String() string {
	if p < 0 || int(p) >= len(performativeNames) {
		return "NONE"
	}
	return performativeNames[p]
}

// parsePerformative maps a wire-format performative name back to its enum
// value. Absence of the "perf" key on the wire is represented by the caller
// passing NONE through directly, never by calling this function with "".
func parsePerformative(name string) (Performative, bool) {
	for i, n := range performativeNames {
		if n == name {
			return Performative(i), true
		}
	}
	return NONE, false
}
