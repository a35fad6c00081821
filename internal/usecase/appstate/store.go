// Package appstate holds the client's session state: who is logged in,
// which agent is selected, and the set of known agents. The state survives
// restarts via an encrypted YAML file under the storage directory.
package appstate

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"agentdesk/internal/domain"
)

const stateFile = "state.yaml"

// persisted is the on-disk shape. The token is stored encrypted; see
// crypto.go for the format.
type persisted struct {
	LoggedIn       bool              `yaml:"logged_in"`
	UserID         string            `yaml:"user_id"`
	AgentID        string            `yaml:"agent_id"`
	KnownAgents    []domain.AgentRef `yaml:"known_agents,omitempty"`
	EncryptedToken string            `yaml:"encrypted_token,omitempty"`
}

// Store is the mutable session state. All methods are safe for concurrent
// use; every mutation persists to disk and publishes appstate.changed.
type Store struct {
	mu    sync.RWMutex
	state persisted
	token string // decrypted, never written in the clear

	dir    string
	key    string
	bus    domain.EventBus
	logger *slog.Logger
}

// New creates a store bound to dir, loading any persisted state. key is the
// passphrase for the token-at-rest encryption. A corrupt or undecryptable
// state file degrades to the logged-out state rather than failing startup.
func New(dir, key string, bus domain.EventBus, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, domain.WrapOp("appstate.New", err)
	}
	s := &Store{dir: dir, key: key, bus: bus, logger: logger}
	if err := s.load(); err != nil {
		logger.Warn("discarding unreadable app state", "error", err)
		s.state = persisted{}
		s.token = ""
	}
	return s, nil
}

func (s *Store) path() string { return filepath.Join(s.dir, stateFile) }

func (s *Store) load() error {
	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return domain.WrapOp("appstate.load", err)
	}
	var p persisted
	if err := yaml.Unmarshal(data, &p); err != nil {
		return domain.WrapOp("appstate.load", err)
	}
	var token string
	if p.EncryptedToken != "" {
		token, err = decryptToken(p.EncryptedToken, s.key)
		if err != nil {
			return domain.WrapOp("appstate.load", domain.ErrStateDecrypt)
		}
	}
	s.state = p
	s.token = token
	return nil
}

// saveLocked writes the current state. Called with mu held.
func (s *Store) saveLocked() error {
	p := s.state
	if s.token != "" {
		enc, err := encryptToken(s.token, s.key)
		if err != nil {
			return domain.WrapOp("appstate.save", err)
		}
		p.EncryptedToken = enc
	} else {
		p.EncryptedToken = ""
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return domain.WrapOp("appstate.save", err)
	}
	if err := os.WriteFile(s.path(), data, 0o600); err != nil {
		return domain.WrapOp("appstate.save", err)
	}
	return nil
}

func (s *Store) changed() {
	if s.bus != nil {
		s.bus.Publish(context.Background(), domain.NewEvent(domain.EventAppStateChanged, nil))
	}
}

// Login records the authenticated session and persists it.
func (s *Store) Login(userID, token string) error {
	s.mu.Lock()
	s.state.LoggedIn = true
	s.state.UserID = userID
	s.token = token
	err := s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.changed()
	return nil
}

// Logout clears the session and the stored token.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.state.LoggedIn = false
	s.state.UserID = ""
	s.token = ""
	err := s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.changed()
	return nil
}

// SelectAgent switches the active agent.
func (s *Store) SelectAgent(agentID string) error {
	s.mu.Lock()
	s.state.AgentID = agentID
	err := s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.changed()
	return nil
}

// SetKnownAgents replaces the agent list shown in the selector.
func (s *Store) SetKnownAgents(agents []domain.AgentRef) error {
	s.mu.Lock()
	s.state.KnownAgents = append([]domain.AgentRef(nil), agents...)
	err := s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.changed()
	return nil
}

// LoggedIn reports whether a session is active.
func (s *Store) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LoggedIn
}

// UserID returns the logged-in user id, empty when logged out.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.UserID
}

// AgentID returns the selected agent id.
func (s *Store) AgentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AgentID
}

// Token returns the decrypted bearer token.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// KnownAgents returns a copy of the known agent list.
func (s *Store) KnownAgents() []domain.AgentRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AgentRef(nil), s.state.KnownAgents...)
}
