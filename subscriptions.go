package fjage

// subscriptionBufferCap mirrors spec.md §4.3's packed-NUL-separated-list
// capacity: a topic may be added only while packedLen+len(topic)+1 stays
// within this bound.
const subscriptionBufferCap = 1024

// subscriptionSet is the gateway's local set of topics (and its own AID)
// it accepts inbound "send" frames for. Every mutation must be followed by
// re-emitting wantsMessagesFor — the remote treats that frame as the
// authoritative filter, so the set itself does not talk to the wire.
type subscriptionSet struct {
	order     []AID
	index     map[AID]int
	packedLen int
}

func newSubscriptionSet() *subscriptionSet {
	return &subscriptionSet{index: make(map[AID]int)}
}

// add inserts topic, returning false only if doing so would exceed
// subscriptionBufferCap. Adding a topic that is already present is a no-op
// that reports true.
func (s *subscriptionSet) add(topic AID) bool {
	if _, ok := s.index[topic]; ok {
		return true
	}
	grow := len(topic) + 1
	if s.packedLen+grow > subscriptionBufferCap {
		return false
	}
	s.index[topic] = len(s.order)
	s.order = append(s.order, topic)
	s.packedLen += grow
	return true
}

// remove deletes topic, preserving the relative order of what remains.
// Reports whether topic was present.
func (s *subscriptionSet) remove(topic AID) bool {
	i, ok := s.index[topic]
	if !ok {
		return false
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	delete(s.index, topic)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
	s.packedLen -= len(topic) + 1
	return true
}

func (s *subscriptionSet) has(topic AID) bool {
	_, ok := s.index[topic]
	return ok
}

// addAgent subscribes to an agent's default notification topic.
func (s *subscriptionSet) addAgent(aid AID) bool {
	return s.add(defaultTopic(aid))
}

// list returns a snapshot of the subscribed topics in insertion order, for
// building the wantsMessagesFor frame.
func (s *subscriptionSet) list() []AID {
	out := make([]AID, len(s.order))
	copy(out, s.order)
	return out
}
