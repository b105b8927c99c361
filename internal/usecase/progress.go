package usecase

import (
	"sync"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
)

// ProgressHub fans run progress out to subscribers. Broadcasts never block:
// a subscriber that cannot keep up loses updates, not the run.
type ProgressHub struct {
	mu   sync.RWMutex
	subs map[chan models.Progress]struct{}
}

// NewProgressHub creates a progress hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[chan models.Progress]struct{})}
}

// Subscribe registers a new subscriber channel.
func (h *ProgressHub) Subscribe() chan models.Progress {
	ch := make(chan models.Progress, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (h *ProgressHub) Unsubscribe(ch chan models.Progress) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish broadcasts one progress update to all subscribers.
func (h *ProgressHub) Publish(p models.Progress) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- p:
		default:
			// slow subscriber, drop
		}
	}
}
