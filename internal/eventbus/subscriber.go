package eventbus

import "sync"

// Subscriber tracks one connected client's filters: the set of server
// ids it subscribed to, and the "all" flag. It also carries the outbound
// sink the Hub writes framed JSON into.
type Subscriber struct {
	ID   string
	send chan []byte

	mu        sync.Mutex
	serverIDs map[string]bool
	all       bool
}

func NewSubscriber(id string) *Subscriber {
	return &Subscriber{
		ID:        id,
		send:      make(chan []byte, 256),
		serverIDs: make(map[string]bool),
	}
}

// wants reports whether this subscriber should receive an event for
// serverID: either it subscribed to that id, or it set the "all" flag.
// An event with no server id (e.g. none currently defined) is delivered
// to every subscriber.
func (s *Subscriber) wants(serverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if serverID == "" {
		return true
	}
	return s.all || s.serverIDs[serverID]
}

// Send returns the channel the Hub writes outbound frames into.
func (s *Subscriber) Send() <-chan []byte { return s.send }
