// Package api is the REST client for the platform backend. One file per
// resource family; client.go carries the shared plumbing: rate limiting,
// circuit breaking, tracing, auth, and error mapping.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"agentdesk/internal/domain"
	"agentdesk/internal/infra/tracer"
)

// TokenFunc supplies the current bearer token per request, so a re-login
// takes effect without rebuilding the client.
type TokenFunc func() string

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   TokenFunc
	Timeout time.Duration // per-request, default 30s

	RateLimit float64 // requests/sec, default 10
	RateBurst int     // default 5

	BreakerMaxFailures uint32        // consecutive failures before open, default 5
	BreakerTimeout     time.Duration // open duration, default 30s

	HTTPClient *http.Client // override for tests
	Logger     *slog.Logger
}

// Client talks to the platform REST API.
type Client struct {
	baseURL string
	token   TokenFunc
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// New creates a Client with the shared ambient plumbing attached.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 5
	}
	if opts.BreakerMaxFailures == 0 {
		opts.BreakerMaxFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Token == nil {
		opts.Token = func() string { return "" }
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "api",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerMaxFailures
		},
		// Client-side errors (4xx) are the caller's problem, not backend
		// health; only transport failures and 5xx count against the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			for _, benign := range []error{
				domain.ErrInvalidInput,
				domain.ErrUnauthorized,
				domain.ErrNotFound,
				domain.ErrRateLimit,
			} {
				if errors.Is(err, benign) {
					return true
				}
			}
			return false
		},
	})

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    opts.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		breaker: breaker,
		logger:  opts.Logger,
	}
}

// do performs one API request: rate limit, trace span, breaker-guarded HTTP
// round trip, status mapping, JSON decode into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := "api." + method + " " + path

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.WrapOp(op, err)
	}

	ctx, span := tracer.StartSpan(ctx, "api.request")
	span.SetAttributes(
		tracer.StringAttr("http.method", method),
		tracer.StringAttr("http.path", path),
	)
	defer span.End()

	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return domain.WrapOp(op, err)
		}
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		var r io.Reader
		if len(reqBody) > 0 {
			r = bytes.NewReader(reqBody)
		}
		return c.roundTrip(ctx, method, path, "application/json", r)
	})
	if err != nil {
		tracer.RecordError(span, err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.NewDomainError(op, domain.ErrServerError, "circuit breaker open")
		}
		return domain.WrapOp(op, err)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return domain.WrapOp(op, err)
		}
	}
	return nil
}

// roundTrip sends one HTTP request and maps non-2xx statuses onto domain
// sentinels. contentType applies when body is non-empty.
func (c *Client) roundTrip(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, data)
	}
	return data, nil
}

// statusError maps an HTTP status onto the matching domain sentinel, keeping
// a snippet of the response body as detail.
func statusError(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 256 {
		detail = detail[:256]
	}

	var sentinel error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		sentinel = domain.ErrUnauthorized
	case status == http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case status == http.StatusTooManyRequests:
		sentinel = domain.ErrRateLimit
	case status >= 400 && status < 500:
		sentinel = domain.ErrInvalidInput
	default:
		sentinel = domain.ErrServerError
	}
	return domain.NewDomainError(fmt.Sprintf("http %d", status), sentinel, detail)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
