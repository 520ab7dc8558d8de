package services

import (
	"sync"
	"time"
)

const subscriberBuffer = 64

// Event is one progress message for an actor.
type Event struct {
	Actor    string    `json:"actor"`
	Message  string    `json:"message"`
	Progress int       `json:"progress"`
	State    string    `json:"state,omitempty"`
	Time     time.Time `json:"time"`
}

// hub fans progress events out to per-actor subscribers. A subscriber that
// falls behind loses events rather than blocking the publisher.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Event
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]chan Event)}
}

func (h *hub) subscribe(actor string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	if h.subs[actor] == nil {
		h.subs[actor] = make(map[int]chan Event)
	}
	h.subs[actor][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[actor], id)
			if len(h.subs[actor]) == 0 {
				delete(h.subs, actor)
			}
			close(ch)
		})
	}
}

func (h *hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[e.Actor] {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *hub) subscribers(actor string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[actor])
}
