package eventbus

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Hub is the process-wide event bus. Unlike the teacher's per-server hub
// broadcasting raw console bytes, one Hub instance serves the whole
// process, filtering delivery by each subscriber's server-id set or its
// "all" flag.
type Hub struct {
	log zerolog.Logger

	publish    chan Outbound
	register   chan *Subscriber
	unregister chan *Subscriber
	subscribe  chan subscribeReq
	stop       chan struct{}

	mu          sync.RWMutex
	subscribers map[*Subscriber]bool
}

type subscribeReq struct {
	sub      *Subscriber
	action   InboundType
	serverID string
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:         log.With().Str("component", "eventbus").Logger(),
		publish:     make(chan Outbound, 4096),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		subscribe:   make(chan subscribeReq, 64),
		stop:        make(chan struct{}),
		subscribers: make(map[*Subscriber]bool),
	}
}

// Run is the single-writer select-loop owning all mutation of the
// subscriber set. It must run in its own goroutine for the lifetime of
// the Hub.
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			h.mu.Unlock()

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
			}
			h.mu.Unlock()

		case req := <-h.subscribe:
			h.applySubscription(req)

		case msg := <-h.publish:
			h.deliver(msg)

		case <-h.stop:
			h.mu.Lock()
			for sub := range h.subscribers {
				close(sub.send)
			}
			h.subscribers = make(map[*Subscriber]bool)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) applySubscription(req subscribeReq) {
	switch req.action {
	case InboundSubscribe:
		if req.serverID == "" {
			req.sub.mu.Lock()
			req.sub.all = true
			req.sub.mu.Unlock()
			return
		}
		req.sub.mu.Lock()
		req.sub.serverIDs[req.serverID] = true
		req.sub.mu.Unlock()
	case InboundUnsubscribe:
		if req.serverID == "" {
			req.sub.mu.Lock()
			req.sub.all = false
			req.sub.mu.Unlock()
			return
		}
		req.sub.mu.Lock()
		delete(req.sub.serverIDs, req.serverID)
		req.sub.mu.Unlock()
	}
}

// deliver fans msg out to every subscriber matching msg.ServerID or the
// "all" flag. Delivery failures to one subscriber never block others:
// when a subscriber's send buffer is full the message is dropped for it
// with a warning, and the subscriber stays registered.
func (h *Hub) deliver(msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode outbound event")
		return
	}

	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		if sub.wants(msg.ServerID) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.send <- data:
		default:
			h.log.Warn().Str("subscriber_id", sub.ID).Msg("subscriber send buffer full, dropping message")
		}
	}
}

// Publish enqueues msg for delivery. Messages are always published after
// the authoritative mutation they describe has been persisted.
func (h *Hub) Publish(msg Outbound) {
	select {
	case h.publish <- msg:
	default:
		h.log.Warn().Msg("publish buffer full, dropping event")
	}
}

// Register adds sub to the hub. Apply registers a subscribe/unsubscribe
// change to a live subscriber's filters.
func (h *Hub) Register(sub *Subscriber) { h.register <- sub }

func (h *Hub) Unregister(sub *Subscriber) { h.unregister <- sub }

func (h *Hub) Apply(sub *Subscriber, action InboundType, serverID string) {
	h.subscribe <- subscribeReq{sub: sub, action: action, serverID: serverID}
}

func (h *Hub) Stop() { close(h.stop) }
