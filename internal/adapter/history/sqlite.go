// Package history persists finalized conversation turns in a local SQLite
// database. The in-memory aggregator stays the source of truth for the UI;
// this store is a durable write-behind copy fed from the event bus.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"agentdesk/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_text   TEXT NOT NULL,
	turn_json   TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_created_at ON turns(created_at DESC);
`

// Store is the SQLite-backed turn archive.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and migrates) the database at path. ":memory:" works for
// tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.WrapOp("history.Open", err)
	}
	// Single writer; WAL keeps readers unblocked during appends.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, domain.WrapOp("history.Open", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, domain.WrapOp("history.Open", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Append stores one finalized turn.
func (s *Store) Append(ctx context.Context, turn domain.ConversationTurn) error {
	raw, err := json.Marshal(turn)
	if err != nil {
		return domain.WrapOp("history.Append", err)
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO turns (user_text, turn_json, created_at) VALUES (?, ?, ?)",
		turn.UserMessage.Content, string(raw), createdAt.UTC())
	if err != nil {
		return domain.NewDomainError("history.Append", domain.ErrHistoryStore, err.Error())
	}
	return nil
}

// List returns up to limit turns, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]domain.ConversationTurn, error) {
	q := "SELECT turn_json FROM turns ORDER BY created_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, domain.NewDomainError("history.List", domain.ErrHistoryStore, err.Error())
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, domain.NewDomainError("history.List", domain.ErrHistoryStore, err.Error())
		}
		var turn domain.ConversationTurn
		if err := json.Unmarshal([]byte(raw), &turn); err != nil {
			// A single corrupt row must not hide the rest of the archive.
			s.logger.Warn("skipping unreadable history row", "error", err)
			continue
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewDomainError("history.List", domain.ErrHistoryStore, err.Error())
	}
	return turns, nil
}

// Count returns the number of stored turns.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM turns").Scan(&n)
	if err != nil {
		return 0, domain.NewDomainError("history.Count", domain.ErrHistoryStore, err.Error())
	}
	return n, nil
}

// Clear deletes every stored turn.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM turns"); err != nil {
		return domain.NewDomainError("history.Clear", domain.ErrHistoryStore, err.Error())
	}
	return nil
}

// Attach subscribes the store to run-finalized events so every completed
// turn is archived without the aggregator knowing about persistence.
// Returns the unsubscribe function.
func (s *Store) Attach(bus domain.EventBus) func() {
	return bus.Subscribe(domain.EventRunFinalized, func(ctx context.Context, ev domain.Event) {
		var turn domain.ConversationTurn
		if err := json.Unmarshal(ev.Payload, &turn); err != nil {
			s.logger.Warn("dropping undecodable finalized turn", "error", err)
			return
		}
		if err := s.Append(ctx, turn); err != nil {
			s.logger.Warn("failed to archive turn", "error", err)
		}
	})
}
