package stream

import (
	"sync"

	"boardsync/domain"
)

// subscriberBuffer bounds each connection's pending events. A subscriber
// that cannot drain in time loses events rather than stalling the board;
// its client reconciles from the next snapshot.
const subscriberBuffer = 64

// Hub is the single board channel: every connected, authenticated client
// is a member. Broadcast reaches all of them, the initiator included, so
// local optimistic state is reconciled against the authoritative event.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// Subscriber is one live connection. ClientID groups connections belonging
// to the same client session for targeted conflict delivery.
type Subscriber struct {
	ClientID string
	ch       chan []byte
}

// Events yields the serialized events queued for this connection.
func (s *Subscriber) Events() <-chan []byte { return s.ch }

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscriber]struct{})}
}

func (h *Hub) Subscribe(clientID string) *Subscriber {
	sub := &Subscriber{ClientID: clientID, ch: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Dispatch routes one event: conflicts go only to the initiating client,
// everything else to the whole board.
func (h *Hub) Dispatch(ev domain.Event, raw []byte) {
	if ev.Type == domain.EventConflict {
		h.sendTo(ev.TargetClientID, raw)
		return
	}
	h.broadcast(raw)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- data:
		default:
		}
	}
}

func (h *Hub) sendTo(clientID string, data []byte) {
	if clientID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.ClientID != clientID {
			continue
		}
		select {
		case sub.ch <- data:
		default:
		}
	}
}
