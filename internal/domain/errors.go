package domain

import "fmt"

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrUnauthorized = fmt.Errorf("authentication failed")
	ErrRateLimit    = fmt.Errorf("rate limit exceeded")
	ErrServerError  = fmt.Errorf("server error")

	// Streaming transport errors.
	ErrTransportClosed   = fmt.Errorf("transport closed")
	ErrRetriesExhausted  = fmt.Errorf("reconnect attempts exhausted")
	ErrNoActiveRun       = fmt.Errorf("no active run")
	ErrRunAlreadyActive  = fmt.Errorf("a run is already active")
	ErrMalformedEvent    = fmt.Errorf("malformed stream event")
	ErrConnectorInvalid  = fmt.Errorf("connector definition invalid")
	ErrStateDecrypt      = fmt.Errorf("state decryption failed")
	ErrHistoryStore      = fmt.Errorf("history store failed")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "Transport.Run")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error. Returns nil if err is nil,
// enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
