// Package poller drives the two periodic fetches of a signed-in session:
// the online users list and the messages snapshot.
package poller

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// TokenSource resolves the session token at the start of every tick.
// A missing token is reported as an error or an empty string.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type options struct {
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger
}

type Option func(*options)

// WithInterval sets the tick period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithTimeout bounds a single tick (token lookup plus fetch).
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{interval: DefaultInterval, timeout: DefaultTimeout, logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// loop owns the ticker. Every firing calls run in its own goroutine, so a
// slow fetch never delays the next one. gen numbers each start so a tick
// can only stop the run that spawned it.
type loop struct {
	options
	run func(gen uint64)

	mu   sync.Mutex
	done chan struct{}
	gen  uint64
}

// start returns false when already running.
func (l *loop) start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return false
	}
	l.gen++
	gen := l.gen
	done := make(chan struct{})
	l.done = done

	ticker := time.NewTicker(l.interval)
	go l.run(gen)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				go l.run(gen)
			}
		}
	}()
	return true
}

// stop returns false when not running. In-flight ticks are not aborted.
func (l *loop) stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopLocked()
}

func (l *loop) stopLocked() bool {
	if l.done == nil {
		return false
	}
	close(l.done)
	l.done = nil
	return true
}

// stopRun stops the loop only if run gen is still the current one.
func (l *loop) stopRun(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return false
	}
	return l.stopLocked()
}

func (l *loop) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done != nil
}

func (l *loop) tickContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), l.timeout)
}
