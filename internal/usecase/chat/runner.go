package chat

import (
	"context"
	"log/slog"
	"sync"

	"agentdesk/internal/domain"
)

// RunTransport is the streaming session surface the runner drives. Satisfied
// by *stream.Transport.
type RunTransport interface {
	Run(ctx context.Context, req domain.RunRequest) error
	Close()
}

// Identity supplies the agent/user selection for outgoing runs.
type Identity func() (agentID, userID string)

// Runner pairs one transport with one aggregator and enforces the single
// active run: sending while a run is outstanding supersedes it.
type Runner struct {
	mu        sync.Mutex
	transport RunTransport
	agg       *Aggregator
	identity  Identity
	logger    *slog.Logger
}

// NewRunner creates a runner. identity is consulted at send time so agent
// switching takes effect without rebuilding the runner.
func NewRunner(transport RunTransport, agg *Aggregator, identity Identity, logger *slog.Logger) *Runner {
	return &Runner{
		transport: transport,
		agg:       agg,
		identity:  identity,
		logger:    logger,
	}
}

// Send records the user message, arms the aggregator, and blocks until the
// run completes or fails. The transport closes any prior session before
// opening the new one, so at most one streaming session is ever active.
func (r *Runner) Send(ctx context.Context, text string) error {
	agentID, userID := r.identity()
	req := domain.RunRequest{
		AgentID:       agentID,
		UserID:        userID,
		InputContent:  text,
		WorkingSource: domain.WorkingSourceDesktop,
	}

	// Arm the aggregator atomically with respect to other senders, but do
	// not hold the lock across the blocking Run: a later Send must be able
	// to supersede an outstanding one through the transport.
	r.mu.Lock()
	r.agg.AddUserMessage(text)
	gen := r.agg.StartRun()
	r.mu.Unlock()

	if err := r.transport.Run(ctx, req); err != nil {
		// Partial steps/text stay visible; nothing is rolled back. The
		// aggregator only finalizes on complete, so a failed run leaves no
		// history entry, but the streaming flag must not stay stuck. The
		// generation keeps a superseded Send from aborting its successor.
		r.agg.AbortRun(gen)
		r.logger.Warn("run failed", "agent", agentID, "error", err)
		return domain.WrapOp("Runner.Send", err)
	}
	return nil
}

// Stop intentionally closes the active streaming session, if any.
func (r *Runner) Stop() {
	r.transport.Close()
}

// Aggregator exposes the conversation state for read access.
func (r *Runner) Aggregator() *Aggregator { return r.agg }
