package poller

import (
	"context"
	"sync"

	"peoplemeet-client/internal/models"
)

// OnlineUsersFetcher is the /online_users call.
type OnlineUsersFetcher interface {
	OnlineUsers(ctx context.Context, token string) ([]models.Profile, error)
}

// PresenceCallback receives every successfully fetched online users list.
type PresenceCallback func(users []models.Profile)

// PresencePoller periodically fetches who is online. It only runs while the
// local user is online themselves.
type PresencePoller struct {
	loop
	fetch  OnlineUsersFetcher
	tokens TokenSource

	cbMu     sync.RWMutex
	callback PresenceCallback
}

func NewPresence(fetch OnlineUsersFetcher, tokens TokenSource, opts ...Option) *PresencePoller {
	p := &PresencePoller{fetch: fetch, tokens: tokens}
	p.options = buildOptions(opts)
	p.loop.run = p.tick
	return p
}

// Enable fetches immediately and then on every interval. Calling it while
// enabled does nothing.
func (p *PresencePoller) Enable() {
	if !p.start() {
		p.logger.Println("PresencePoller: already enabled")
		return
	}
	p.logger.Println("PresencePoller: enabling polling")
}

// Disable stops future ticks. A fetch already in flight still delivers.
func (p *PresencePoller) Disable() {
	if p.stop() {
		p.logger.Println("PresencePoller: disabling polling")
	}
}

func (p *PresencePoller) Enabled() bool { return p.running() }

// SetCallback replaces the receiver of future deliveries; nil discards them.
func (p *PresencePoller) SetCallback(cb PresenceCallback) {
	p.cbMu.Lock()
	p.callback = cb
	p.cbMu.Unlock()
}

func (p *PresencePoller) tick(gen uint64) {
	ctx, cancel := p.tickContext()
	defer cancel()

	token, err := p.tokens.Token(ctx)
	if err != nil || token == "" {
		if p.stopRun(gen) {
			p.logger.Println("PresencePoller: no token, disabling polling")
		}
		return
	}

	users, err := p.fetch.OnlineUsers(ctx, token)
	if err != nil {
		p.logger.Printf("PresencePoller: error fetching users: %v", err)
		return
	}

	p.cbMu.RLock()
	cb := p.callback
	p.cbMu.RUnlock()
	if cb != nil {
		cb(users)
	}
}
