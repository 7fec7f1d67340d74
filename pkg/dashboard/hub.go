package dashboard

import (
	"encoding/json"
	"sync"

	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/orchestrate"
)

const subscriberBuffer = 64

// Hub fans orchestration events out to websocket and SSE subscribers. It
// implements orchestrate.Observer; Observe never blocks the sequencer and a
// subscriber that falls behind loses events.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

func (h *Hub) Observe(e orchestrate.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.WarnCF("dashboard", "Failed to encode event", map[string]any{"error": err.Error()})
		return
	}
	h.publish(data)
}

func (h *Hub) publish(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

func (h *Hub) subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// chain calls every non-nil observer in order.
func chain(observers ...orchestrate.Observer) orchestrate.Observer {
	list := make([]orchestrate.Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	if len(list) == 1 {
		return list[0]
	}
	return orchestrate.ObserverFunc(func(e orchestrate.Event) {
		for _, o := range list {
			o.Observe(e)
		}
	})
}
