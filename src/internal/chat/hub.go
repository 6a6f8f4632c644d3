package chat

import (
	"sync"
	"time"
	"tutorhub-portal-svc/src/clients"

	"github.com/sirupsen/logrus"
)

// Hub holds the chat state of every portal client.
type Hub struct {
	api            API
	interval       time.Duration
	searchDebounce time.Duration
	watchGrace     time.Duration

	mu         sync.Mutex
	pollers    map[string]*Poller
	debouncers map[string]*Debouncer
}

func NewHub(api API, interval, searchDebounce, watchGrace time.Duration) *Hub {
	return &Hub{
		api:            api,
		interval:       interval,
		searchDebounce: searchDebounce,
		watchGrace:     watchGrace,
		pollers:        make(map[string]*Poller),
		debouncers:     make(map[string]*Debouncer),
	}
}

// Poller returns the client's poller, creating it with creds on first use.
func (h *Hub) Poller(clientID string, creds clients.Credentials) *Poller {
	h.mu.Lock()
	defer h.mu.Unlock()

	poller, ok := h.pollers[clientID]
	if !ok {
		poller = NewPoller(h.api, creds, h.interval, h.interval, h.watchGrace)
		h.pollers[clientID] = poller
	}
	return poller
}

func (h *Hub) Debouncer(clientID string) *Debouncer {
	h.mu.Lock()
	defer h.mu.Unlock()

	debouncer, ok := h.debouncers[clientID]
	if !ok {
		debouncer = NewDebouncer(h.searchDebounce)
		h.debouncers[clientID] = debouncer
	}
	return debouncer
}

// Drop stops and forgets the client's chat state.
func (h *Hub) Drop(clientID string) {
	h.mu.Lock()
	poller := h.pollers[clientID]
	delete(h.pollers, clientID)
	delete(h.debouncers, clientID)
	h.mu.Unlock()

	if poller != nil {
		poller.Stop()
		logrus.WithField("client_id", clientID).Debug("Chat state dropped")
	}
}

// Close stops every poller.
func (h *Hub) Close() {
	h.mu.Lock()
	clientIDs := make([]string, 0, len(h.pollers))
	for clientID := range h.pollers {
		clientIDs = append(clientIDs, clientID)
	}
	h.mu.Unlock()

	for _, clientID := range clientIDs {
		h.Drop(clientID)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pollers)
}
