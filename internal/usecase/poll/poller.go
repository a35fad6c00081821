// Package poll runs a repeating background check whose cadence backs off
// while nothing changes and snaps back to the base interval as soon as
// something does.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"agentdesk/internal/domain"
	"agentdesk/internal/infra/backoff"
)

// CheckFunc performs one poll. changed reports whether new data was
// observed; an error counts as "no change" for cadence purposes.
type CheckFunc func(ctx context.Context) (changed bool, err error)

// Poller invokes a CheckFunc on a backoff cadence. Each completed check
// publishes poll.completed.
type Poller struct {
	name   string
	check  CheckFunc
	base   time.Duration
	max    time.Duration
	bus    domain.EventBus
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Options configures a Poller. Zero durations get the shared backoff
// defaults.
type Options struct {
	Name     string        // identifies the poller in logs and events
	Check    CheckFunc     // required
	Interval time.Duration // base cadence, default 1s
	MaxDelay time.Duration // cadence ceiling, default 16s
	Bus      domain.EventBus
	Logger   *slog.Logger
}

// New creates a stopped poller.
func New(opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = backoff.DefaultBase
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = backoff.DefaultMax
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Poller{
		name:   opts.Name,
		check:  opts.Check,
		base:   opts.Interval,
		max:    opts.MaxDelay,
		bus:    opts.Bus,
		logger: opts.Logger,
	}
}

// Start launches the poll loop. Starting an already-running poller restarts
// it.
func (p *Poller) Start(ctx context.Context) {
	p.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go p.loop(ctx, done)
}

// Stop halts the loop and waits for the in-flight check, if any, to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// attempt counts consecutive no-change checks and drives the delay
	// between polls. Any observed change resets it.
	attempt := 0
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		changed, err := p.check(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.logger.Warn("poll failed", "poller", p.name, "error", err)
		}

		if changed {
			attempt = 0
		} else if attempt < 31 {
			attempt++
		}

		if p.bus != nil {
			p.bus.Publish(ctx, domain.NewEvent(domain.EventPollCompleted, map[string]any{
				"poller":  p.name,
				"changed": changed,
			}))
		}

		timer.Reset(nextDelay(p.base, p.max, attempt))
	}
}

// nextDelay maps the consecutive no-change count to the wait before the next
// poll: base after a change, then doubling up to max.
func nextDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	return backoff.Delay(base, max, attempt-1)
}
