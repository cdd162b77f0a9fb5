package session

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/labelgrid/pkg/engine"
	"github.com/matzehuels/labelgrid/pkg/errors"
	"github.com/matzehuels/labelgrid/pkg/label"
	"github.com/matzehuels/labelgrid/pkg/observability"
	"github.com/matzehuels/labelgrid/pkg/rtree"
)

// Default resource limits.
const (
	// DefaultTTL is how long an idle session survives.
	DefaultTTL = 30 * time.Minute

	// DefaultMaxSessions caps the session table; the least recently used
	// session is evicted when a new one would exceed it.
	DefaultMaxSessions = 256

	// DefaultJanitorInterval is how often idle sessions are swept.
	DefaultJanitorInterval = time.Minute
)

// Config controls the manager and the per-session engine.
type Config struct {
	TTL         time.Duration
	MaxSessions int
	Index       rtree.Config
	Generator   label.Config
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		TTL:         DefaultTTL,
		MaxSessions: DefaultMaxSessions,
		Index:       rtree.DefaultConfig(),
		Generator:   label.DefaultConfig(),
	}
}

func (c Config) normalize() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	return c
}

// Stats is a point-in-time snapshot of the session table.
type Stats struct {
	Sessions  int `json:"sessions"`
	Features  int `json:"features"`
	Committed int `json:"committed"`
}

// Manager owns the process-wide session table. It is passed explicitly to
// request handlers rather than accessed as a global, and it serializes
// operations per session via each session's mutex.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	engine   *engine.Engine
	logger   *log.Logger
	sessions map[string]*Session
}

// NewManager creates a manager with its own engine built from cfg.
func NewManager(cfg Config, logger *log.Logger) *Manager {
	cfg = cfg.normalize()
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Manager{
		cfg:      cfg,
		engine:   engine.New(label.NewGenerator(cfg.Generator), logger),
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Engine returns the manager's placement engine.
func (m *Manager) Engine() *engine.Engine { return m.engine }

// Create returns the session for id, creating it if needed. Creation is
// idempotent: an existing session is returned untouched. When the table is
// full the least recently used session is evicted first.
func (m *Manager) Create(ctx context.Context, id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s
	}
	m.evictOverCapLocked(ctx)

	s := newSession(id, m.cfg.Index)
	m.sessions[id] = s
	observability.Session().OnSessionCreate(ctx, id)
	m.logger.Debug("session created", "session", id)
	return s
}

// PlaceAll recomputes placements for a session's full feature set.
func (m *Manager) PlaceAll(ctx context.Context, id string, features []label.Feature, zoom float64) (map[string]label.Placement, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	out, err := s.placeAll(ctx, m.engine, features, zoom)
	if errors.Is(err, errors.ErrCodeIndexCorrupt) {
		m.drop(ctx, id)
	}
	return out, err
}

// ApplyEvents applies incremental updates to a session and returns only the
// placements that changed.
func (m *Manager) ApplyEvents(ctx context.Context, id string, events []Event) (Update, error) {
	s, err := m.get(id)
	if err != nil {
		return Update{}, err
	}
	up, err := s.applyEvents(ctx, m.engine, events)
	if errors.Is(err, errors.ErrCodeIndexCorrupt) {
		m.drop(ctx, id)
	}
	return up, err
}

// Close tears down a session and releases its index and placements.
// Closing an unknown session is a no-op.
func (m *Manager) Close(ctx context.Context, id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.release()
	observability.Session().OnSessionClose(ctx, id)
	m.logger.Debug("session closed", "session", id)
	return true
}

// Stats returns a snapshot across all sessions.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	st := Stats{Sessions: len(sessions)}
	for _, s := range sessions {
		f, c := s.counts()
		st.Features += f
		st.Committed += c
	}
	return st
}

// StartJanitor sweeps idle sessions until ctx is cancelled.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.EvictIdle(ctx); n > 0 {
					m.logger.Info("evicted idle sessions", "count", n)
				}
			}
		}
	}()
}

// EvictIdle tears down every session idle longer than the TTL and returns
// how many were evicted.
func (m *Manager) EvictIdle(ctx context.Context) int {
	now := time.Now()

	m.mu.Lock()
	var victims []*Session
	for id, s := range m.sessions {
		if s.idle(now) > m.cfg.TTL {
			victims = append(victims, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range victims {
		s.release()
		observability.Session().OnSessionEvict(ctx, s.ID())
	}
	return len(victims)
}

// get fetches a session or reports UNKNOWN_SESSION, which the caller can
// recover from by creating the session.
func (m *Manager) get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownSession, "no active session %q", id)
	}
	return s, nil
}

// drop removes a session that failed fatally (index corruption).
func (m *Manager) drop(ctx context.Context, id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.release()
		observability.Session().OnSessionEvict(ctx, id)
		m.logger.Error("session dropped after index corruption", "session", id)
	}
}

// evictOverCapLocked makes room for one more session by evicting the least
// recently used ones. Callers hold m.mu.
func (m *Manager) evictOverCapLocked(ctx context.Context) {
	for len(m.sessions) >= m.cfg.MaxSessions {
		var (
			oldestID string
			oldest   time.Time
		)
		for id, s := range m.sessions {
			s.mu.Lock()
			at := s.lastAccess
			s.mu.Unlock()
			if oldestID == "" || at.Before(oldest) {
				oldestID, oldest = id, at
			}
		}
		s := m.sessions[oldestID]
		delete(m.sessions, oldestID)
		s.release()
		observability.Session().OnSessionEvict(ctx, oldestID)
		m.logger.Info("evicted session over capacity", "session", oldestID)
	}
}

// IDs returns the active session IDs, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
