package stream

import (
	"sync"

	"github.com/sightgrid/sightgrid/internal/model"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind is dropped rather than blocking ingestion.
const subscriberBuffer = 16

// Hub fans out newly stored events to live dashboard subscribers,
// partitioned by organization.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan model.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan model.Event]struct{})}
}

// Subscribe registers a listener for an organization's events. The
// returned cancel func must be called when the listener goes away.
func (h *Hub) Subscribe(orgID string) (<-chan model.Event, func()) {
	ch := make(chan model.Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[orgID]
	if !ok {
		set = make(map[chan model.Event]struct{})
		h.subs[orgID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[orgID]; ok {
			if _, live := set[ch]; live {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, orgID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its organization.
// Subscribers with full buffers are disconnected.
func (h *Hub) Publish(ev model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[ev.OrgID]
	if !ok {
		return
	}
	for ch := range set {
		select {
		case ch <- ev:
		default:
			delete(set, ch)
			close(ch)
		}
	}
	if len(set) == 0 {
		delete(h.subs, ev.OrgID)
	}
}

// Subscribers reports the current subscriber count for an organization.
func (h *Hub) Subscribers(orgID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[orgID])
}
