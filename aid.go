package fjage

import "strings"

// AID identifies an agent or topic in the remote container. A topic AID has
// a leading '#'.
type AID string

const topicPrefix = "#"

// Topic returns the topic AID for the given name, i.e. "#"+name.
func Topic(name string) AID {
	return AID(topicPrefix + name)
}

// IsTopic reports whether aid names a topic rather than an agent.
func IsTopic(aid AID) bool {
	return strings.HasPrefix(string(aid), topicPrefix)
}

// defaultTopic returns the per-agent notification topic "#"+aid+"__ntf".
func defaultTopic(aid AID) AID {
	return Topic(string(aid) + "__ntf")
}

func (a AID) String() string {
	return string(a)
}
