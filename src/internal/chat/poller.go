// Package chat keeps a portal client's open conversation fresh by polling
// the backend, and streams the results to the browser.
package chat

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var (
	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorhub_portal_chat_polls_total",
		Help: "Chat refreshes by result.",
	}, []string{"result"})

	activeLoops = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tutorhub_portal_chat_active_loops",
		Help: "Chat polling loops currently running.",
	})
)

// API is the part of the backend the poller reads.
type API interface {
	Conversations(ctx context.Context, creds clients.Credentials) ([]models.Conversation, error)
	Messages(ctx context.Context, creds clients.Credentials, conversationID string) ([]models.Message, error)
	MarkRead(ctx context.Context, creds clients.Credentials, conversationID string) error
}

// Snapshot is what the chat page shows at one point in time.
type Snapshot struct {
	ConversationID string                `json:"conversationId"`
	Conversations  []models.Conversation `json:"conversations"`
	Messages       []models.Message      `json:"messages"`
	UpdatedAt      time.Time             `json:"updatedAt"`
	Error          string                `json:"error,omitempty"`
}

// Poller refetches the selected conversation every interval. At most one
// polling loop runs per Poller; selecting another conversation stops the
// previous loop before the next one starts. With a positive grace the loop
// also ends once no stream is subscribed and no Select happened for grace.
type Poller struct {
	api         API
	creds       clients.Credentials
	interval    time.Duration
	tickTimeout time.Duration
	grace       time.Duration

	selectMu sync.Mutex

	mu          sync.Mutex
	current     string
	active      *loop
	snapshot    Snapshot
	subscribers map[int]chan Snapshot
	nextSub     int
	lastWatched time.Time
	stopped     bool

	running int32
}

type loop struct {
	conversationID string
	stop           chan struct{}
	done           chan struct{}
	stopOnce       sync.Once
}

// halt signals the loop and waits for it to exit. Safe to call repeatedly.
func (l *loop) halt() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

func NewPoller(api API, creds clients.Credentials, interval, tickTimeout, grace time.Duration) *Poller {
	if tickTimeout <= 0 || tickTimeout > interval {
		tickTimeout = interval
	}
	return &Poller{
		api:         api,
		creds:       creds,
		interval:    interval,
		tickTimeout: tickTimeout,
		grace:       grace,
		subscribers: make(map[int]chan Snapshot),
	}
}

// Select makes conversationID the active conversation: it stops the
// previous loop, marks the conversation read, fetches it immediately and
// starts polling it.
func (p *Poller) Select(ctx context.Context, conversationID string) (Snapshot, error) {
	if conversationID == "" {
		return Snapshot{}, models.ErrConversationNotSelected
	}

	p.selectMu.Lock()
	defer p.selectMu.Unlock()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return Snapshot{}, context.Canceled
	}
	previous := p.active
	p.active = nil
	p.current = conversationID
	p.lastWatched = time.Now()
	p.snapshot = Snapshot{ConversationID: conversationID, Conversations: p.snapshot.Conversations}
	p.mu.Unlock()

	if previous != nil {
		previous.halt()
		logrus.WithField("conversation_id", previous.conversationID).Debug("Chat polling stopped")
	}

	if err := p.api.MarkRead(ctx, p.creds, conversationID); err != nil {
		logrus.WithError(err).WithField("conversation_id", conversationID).Warn("Failed to mark conversation read")
	}

	err := p.refresh(ctx, conversationID)

	l := &loop{
		conversationID: conversationID,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return p.Snapshot(), context.Canceled
	}
	p.active = l
	p.mu.Unlock()

	atomic.AddInt32(&p.running, 1)
	activeLoops.Inc()
	go p.run(l)

	return p.Snapshot(), err
}

func (p *Poller) run(l *loop) {
	defer func() {
		atomic.AddInt32(&p.running, -1)
		activeLoops.Dec()
		close(l.done)
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			if p.unwatched(l) {
				logrus.WithField("conversation_id", l.conversationID).Debug("Chat polling paused, nobody watching")
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), p.tickTimeout)
			if err := p.refresh(ctx, l.conversationID); err != nil {
				logrus.WithError(err).WithField("conversation_id", l.conversationID).Warn("Chat refresh failed, retrying next tick")
			}
			cancel()
		}
	}
}

// unwatched reports whether l should end because nobody is looking at the
// conversation any more. It clears l as the active loop when it does.
func (p *Poller) unwatched(l *loop) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != l {
		return true
	}
	if p.grace <= 0 || len(p.subscribers) > 0 || time.Since(p.lastWatched) < p.grace {
		return false
	}
	p.active = nil
	return true
}

// refresh fetches messages and conversations. A failure keeps the last good
// data and records the error on the snapshot.
func (p *Poller) refresh(ctx context.Context, conversationID string) error {
	messages, err := p.api.Messages(ctx, p.creds, conversationID)
	if err != nil {
		pollsTotal.WithLabelValues("error").Inc()
		p.update(conversationID, func(s *Snapshot) { s.Error = clients.Message(err) })
		return err
	}

	conversations, err := p.api.Conversations(ctx, p.creds)
	if err != nil {
		pollsTotal.WithLabelValues("error").Inc()
		p.update(conversationID, func(s *Snapshot) {
			s.Messages = messages
			s.Error = clients.Message(err)
		})
		return err
	}

	pollsTotal.WithLabelValues("ok").Inc()
	p.update(conversationID, func(s *Snapshot) {
		s.Messages = messages
		s.Conversations = DedupeConversations(conversations)
		s.Error = ""
	})
	return nil
}

// update applies fn unless the client has moved on to another conversation.
func (p *Poller) update(conversationID string, fn func(*Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != conversationID || p.stopped {
		return
	}
	fn(&p.snapshot)
	p.snapshot.UpdatedAt = time.Now()
	p.broadcastLocked()
}

func (p *Poller) broadcastLocked() {
	snapshot := p.copyLocked()
	for _, ch := range p.subscribers {
		// Subscribers only care about the latest state.
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func (p *Poller) copyLocked() Snapshot {
	snapshot := p.snapshot
	snapshot.Conversations = append([]models.Conversation(nil), p.snapshot.Conversations...)
	snapshot.Messages = append([]models.Message(nil), p.snapshot.Messages...)
	return snapshot
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyLocked()
}

// Current is the selected conversation id, or "".
func (p *Poller) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// AppendSent shows a message the user just sent without waiting for the
// next poll.
func (p *Poller) AppendSent(message models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != message.ConversationID || p.stopped {
		return
	}
	for _, existing := range p.snapshot.Messages {
		if message.ID != "" && existing.ID == message.ID {
			return
		}
	}
	p.snapshot.Messages = append(p.snapshot.Messages, message)
	p.broadcastLocked()
}

// Subscribe returns a channel receiving every new snapshot and a function
// to stop receiving. The channel is closed when the poller stops.
func (p *Poller) Subscribe() (<-chan Snapshot, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if p.stopped {
		close(ch)
		return ch, func() {}
	}

	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = ch

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subscribers[id]; ok {
			delete(p.subscribers, id)
			close(sub)
		}
		if len(p.subscribers) == 0 {
			p.lastWatched = time.Now()
		}
	}
}

// Stop ends polling for good. It is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	active := p.active
	p.active = nil
	for id, ch := range p.subscribers {
		delete(p.subscribers, id)
		close(ch)
	}
	p.mu.Unlock()

	if active != nil {
		active.halt()
	}
}

// Polling reports whether a loop is currently refreshing the selected
// conversation.
func (p *Poller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

// Watchers is the number of open subscriptions.
func (p *Poller) Watchers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

// Running reports how many polling loops are alive; never more than one.
func (p *Poller) Running() int {
	return int(atomic.LoadInt32(&p.running))
}

// DedupeConversations keeps one entry per id, the most recently updated,
// and orders the result newest first.
func DedupeConversations(conversations []models.Conversation) []models.Conversation {
	latest := make(map[string]models.Conversation, len(conversations))
	order := make([]string, 0, len(conversations))
	for _, conversation := range conversations {
		existing, seen := latest[conversation.ID]
		if !seen {
			order = append(order, conversation.ID)
			latest[conversation.ID] = conversation
			continue
		}
		if conversation.UpdatedAt.After(existing.UpdatedAt) {
			latest[conversation.ID] = conversation
		}
	}

	result := make([]models.Conversation, 0, len(order))
	for _, id := range order {
		result = append(result, latest[id])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result
}
