// Package stream implements the client side of the run streaming protocol:
// one logical request/response-stream session over WebSocket, with bounded
// automatic reconnection on abnormal drops.
package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"agentdesk/internal/domain"
	"agentdesk/internal/infra/backoff"
)

// maxMessageSize is the read limit for inbound stream messages.
const maxMessageSize = 16 * 1024 * 1024

// Status is the transport connection state surfaced to the UI.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusClosed     Status = "closed"
	StatusError      Status = "error"
)

// Conn is one open streaming connection.
type Conn interface {
	// Read blocks until the next inbound message or a connection error.
	Read(ctx context.Context) ([]byte, error)
	// WriteJSON sends one JSON-encoded message.
	WriteJSON(ctx context.Context, v any) error
	// Close tears the connection down. normal marks a clean closure.
	Close(normal bool)
}

// Dialer opens streaming connections. Abstracted so tests can drive the
// reconnect state machine with a scripted fake.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials over WebSocket with optional bearer authentication. Token
// is consulted on every dial, so a re-login takes effect on the next
// connection without rebuilding the dialer.
type WSDialer struct {
	Token func() string
}

func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	opts := &websocket.DialOptions{}
	if d.Token != nil {
		if tok := d.Token(); tok != "" {
			opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + tok}}
		}
	}
	ws, resp, err := websocket.Dial(ctx, url, opts)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	return data, err
}

func (c *wsConn) WriteJSON(ctx context.Context, v any) error {
	return wsjson.Write(ctx, c.ws, v)
}

func (c *wsConn) Close(normal bool) {
	if normal {
		c.ws.Close(websocket.StatusNormalClosure, "")
	} else {
		c.ws.Close(websocket.StatusGoingAway, "client closing")
	}
}

// Options configures a Transport.
type Options struct {
	URL         string
	Dialer      Dialer
	BackoffBase time.Duration // default 1s
	BackoffMax  time.Duration // default 16s
	MaxAttempts int           // default 5

	// OnEvent receives every successfully decoded inbound event, in arrival
	// order, before any reconnection logic runs. Must not block.
	OnEvent func(domain.StreamEvent)
	// OnStatus receives connection state transitions. Optional.
	OnStatus func(Status)
	// OnError receives transport-level errors. Errors do not by themselves
	// close the connection; the close that follows drives reconnection.
	OnError func(error)

	Logger *slog.Logger
}

// Transport owns one logical streaming session. A new Run supersedes any
// prior session; the stored request is re-sent verbatim on every reconnect
// attempt until complete is observed or the attempt budget is exhausted.
type Transport struct {
	url         string
	dialer      Dialer
	backoffBase time.Duration
	backoffMax  time.Duration
	maxAttempts int
	onEvent     func(domain.StreamEvent)
	onStatus    func(Status)
	onError     func(error)
	logger      *slog.Logger

	mu          sync.Mutex
	conn        Conn
	req         *domain.RunRequest
	runCtx      context.Context
	attempts    int
	completed   bool
	intentional bool
	gen         uint64 // bumped on every Run/Close; guards stale callbacks
	timer       *time.Timer
	done        chan error
	status      Status
}

// New creates a Transport. Zero backoff options get the shared defaults.
func New(opts Options) *Transport {
	if opts.Dialer == nil {
		opts.Dialer = &WSDialer{}
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = backoff.DefaultBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = backoff.DefaultMax
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = backoff.DefaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Transport{
		url:         opts.URL,
		dialer:      opts.Dialer,
		backoffBase: opts.BackoffBase,
		backoffMax:  opts.BackoffMax,
		maxAttempts: opts.MaxAttempts,
		onEvent:     opts.OnEvent,
		onStatus:    opts.OnStatus,
		onError:     opts.OnError,
		logger:      opts.Logger,
		status:      StatusIdle,
	}
}

// Run opens a streaming session for req and blocks until the run completes,
// the retry budget is exhausted, the session is superseded or closed, or ctx
// is cancelled. Any prior session is intentionally closed first and never
// reconnects. Returns nil on the first complete event.
func (t *Transport) Run(ctx context.Context, req domain.RunRequest) error {
	t.mu.Lock()
	prior := t.closeLocked()
	gen := t.gen
	t.req = &req
	t.runCtx = ctx
	t.attempts = 0
	t.completed = false
	t.intentional = false
	done := make(chan error, 1)
	t.done = done
	t.mu.Unlock()

	if prior != nil {
		prior.Close(true)
	}

	t.connect(ctx, gen)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Tear down only this session. A newer Run may already have
		// superseded it, and its state must not be touched by a stale
		// caller's cancellation.
		t.mu.Lock()
		var c Conn
		current := gen == t.gen
		if current {
			c = t.closeLocked()
		}
		t.mu.Unlock()
		if current {
			if c != nil {
				c.Close(true)
			}
			t.setStatus(StatusClosed)
		}
		return ctx.Err()
	}
}

// Close intentionally tears down the active session. The stored request is
// cleared and any pending reconnect timer is stopped synchronously, so no
// reconnect can fire afterwards. Safe to call when idle.
func (t *Transport) Close() {
	t.mu.Lock()
	c := t.closeLocked()
	t.mu.Unlock()

	if c != nil {
		c.Close(true)
	}
	t.setStatus(StatusClosed)
}

// closeLocked marks the current session as intentionally closed and strips
// its state. Callers close the returned conn outside the lock.
func (t *Transport) closeLocked() Conn {
	t.intentional = true
	t.req = nil
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.done != nil && !t.completed {
		t.done <- domain.WrapOp("Transport.Run", domain.ErrTransportClosed)
		t.done = nil
	}
	c := t.conn
	t.conn = nil
	return c
}

// Status returns the current connection state.
func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Transport) setStatus(s Status) {
	t.mu.Lock()
	if t.status == s {
		t.mu.Unlock()
		return
	}
	t.status = s
	t.mu.Unlock()

	if t.onStatus != nil {
		t.onStatus(s)
	}
}

func (t *Transport) connect(ctx context.Context, gen uint64) {
	t.setStatus(StatusConnecting)

	c, err := t.dialer.Dial(ctx, t.url)
	if err != nil {
		t.logger.Warn("stream dial failed", "url", t.url, "error", err)
		t.handleDisconnect(gen, err)
		return
	}

	t.mu.Lock()
	if gen != t.gen || t.intentional || t.req == nil {
		t.mu.Unlock()
		c.Close(true)
		return
	}
	t.conn = c
	t.attempts = 0 // a successful open clears backoff state
	req := *t.req
	t.mu.Unlock()

	t.setStatus(StatusConnected)

	if err := c.WriteJSON(ctx, req); err != nil {
		t.logger.Warn("stream request write failed", "error", err)
		c.Close(false)
		t.handleDisconnect(gen, err)
		return
	}

	go t.readLoop(ctx, gen, c)
}

func (t *Transport) readLoop(ctx context.Context, gen uint64, c Conn) {
	for {
		data, err := c.Read(ctx)
		if err != nil {
			t.handleDisconnect(gen, err)
			return
		}

		ev, perr := domain.ParseStreamEvent(data)
		if perr != nil {
			// Malformed messages never fail the connection.
			t.logger.Warn("dropping malformed stream message", "error", perr)
			continue
		}

		// The handler always observes the event before any reconnect logic.
		if t.onEvent != nil {
			t.onEvent(ev)
		}

		if ev.Type == domain.StreamComplete {
			t.finishRun()
		}
	}
}

// finishRun resolves the pending Run exactly once. Spurious later completes
// are no-ops.
func (t *Transport) finishRun() {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = true
	t.req = nil
	done := t.done
	t.done = nil
	t.mu.Unlock()

	if done != nil {
		done <- nil
	}
}

// handleDisconnect runs whenever a connection attempt or an established
// connection ends. It decides between normal closure, reconnection, and
// giving up.
func (t *Transport) handleDisconnect(gen uint64, cause error) {
	t.mu.Lock()
	if gen != t.gen {
		// Superseded by a newer Run or an explicit Close.
		t.mu.Unlock()
		return
	}
	t.conn = nil

	if t.completed || t.intentional {
		t.mu.Unlock()
		t.setStatus(StatusClosed)
		return
	}

	if t.attempts >= t.maxAttempts {
		done := t.done
		t.done = nil
		t.mu.Unlock()

		t.logger.Error("stream reconnect budget exhausted",
			"attempts", t.maxAttempts, "cause", cause)
		t.setStatus(StatusError)
		if t.onError != nil {
			t.onError(cause)
		}
		if done != nil {
			done <- domain.WrapOp("Transport.Run", domain.ErrRetriesExhausted)
		}
		return
	}

	delay := backoff.Delay(t.backoffBase, t.backoffMax, t.attempts)
	attempt := t.attempts
	t.attempts++
	runCtx := t.runCtx
	t.timer = time.AfterFunc(delay, func() { t.reconnect(runCtx, gen) })
	t.mu.Unlock()

	if t.onError != nil {
		t.onError(cause)
	}
	t.setStatus(StatusConnecting)
	t.logger.Info("stream disconnected, reconnecting",
		"attempt", attempt+1, "delay", delay, "cause", cause)
}

func (t *Transport) reconnect(ctx context.Context, gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.intentional || t.req == nil {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	t.connect(ctx, gen)
}
