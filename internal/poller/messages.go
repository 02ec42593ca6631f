package poller

import (
	"context"
	"sync"

	"peoplemeet-client/internal/models"
)

// MessagesFetcher is the /get_messages call.
type MessagesFetcher interface {
	GetMessages(ctx context.Context, token string) (*models.MessagesSnapshot, error)
}

// MessagesCallback receives each snapshot, or nil when a tick failed or the
// session is gone.
type MessagesCallback func(snapshot *models.MessagesSnapshot)

// MessagesPoller periodically fetches the full messages snapshot. It runs
// for as long as the user is signed in, online or not.
type MessagesPoller struct {
	loop
	fetch  MessagesFetcher
	tokens TokenSource

	cbMu     sync.RWMutex
	callback MessagesCallback
}

func NewMessages(fetch MessagesFetcher, tokens TokenSource, opts ...Option) *MessagesPoller {
	m := &MessagesPoller{fetch: fetch, tokens: tokens}
	m.options = buildOptions(opts)
	m.loop.run = m.tick
	return m
}

// Start fetches immediately and then on every interval. Calling it while
// running does nothing.
func (m *MessagesPoller) Start() {
	if !m.start() {
		m.logger.Println("MessagesPoller: already started")
		return
	}
	m.logger.Println("MessagesPoller: starting polling")
}

// Stop halts future ticks. A fetch already in flight still delivers.
func (m *MessagesPoller) Stop() {
	if m.stop() {
		m.logger.Println("MessagesPoller: stopping polling")
	}
}

func (m *MessagesPoller) Running() bool { return m.running() }

// SetCallback replaces the receiver of future deliveries; nil discards them.
func (m *MessagesPoller) SetCallback(cb MessagesCallback) {
	m.cbMu.Lock()
	m.callback = cb
	m.cbMu.Unlock()
}

func (m *MessagesPoller) deliver(snapshot *models.MessagesSnapshot) {
	m.cbMu.RLock()
	cb := m.callback
	m.cbMu.RUnlock()
	if cb != nil {
		cb(snapshot)
	}
}

func (m *MessagesPoller) tick(gen uint64) {
	ctx, cancel := m.tickContext()
	defer cancel()

	token, err := m.tokens.Token(ctx)
	if err != nil || token == "" {
		if m.stopRun(gen) {
			m.logger.Println("MessagesPoller: no token, stopping polling")
		}
		m.deliver(nil)
		return
	}

	snapshot, err := m.fetch.GetMessages(ctx, token)
	if err != nil {
		m.logger.Printf("MessagesPoller: error fetching messages: %v", err)
		m.deliver(nil)
		return
	}
	m.deliver(snapshot)
}
