package memory

import (
	"context"
	"sync"

	"mathquiz-leaderboard/internal/domain"
)

// Hub is an in-process implementation of app.UpdateNotifier.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan domain.Configuration]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan domain.Configuration]struct{})}
}

// Publish never blocks: a subscriber that has fallen behind loses its oldest pending update.
func (h *Hub) Publish(_ context.Context, cfg domain.Configuration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- cfg:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- cfg
		}
	}
	return nil
}

func (h *Hub) Subscribe(_ context.Context) (<-chan domain.Configuration, func(), error) {
	ch := make(chan domain.Configuration, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel, nil
}

// Subscribers reports how many subscriptions are open.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
