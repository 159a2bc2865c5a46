// Package storage provides the in-memory conversation history store.
package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/ottovoice/internal/domain"
	"github.com/hammamikhairi/ottovoice/internal/logger"
)

// Compile-time interface check.
var _ domain.HistoryStore = (*MemoryStore)(nil)

// Defaults for the history bounds.
const (
	DefaultMaxTurns    = 50
	DefaultTokenBudget = 3000
)

// Option configures the MemoryStore.
type Option func(*MemoryStore)

// WithMaxTurns caps how many turns a session retains. Older turns are
// dropped on append. n <= 0 keeps everything.
func WithMaxTurns(n int) Option {
	return func(s *MemoryStore) { s.maxTurns = n }
}

// WithTokenBudget caps the estimated token size of the history view
// returned by HistoryFor. n <= 0 disables the cap.
func WithTokenBudget(n int) Option {
	return func(s *MemoryStore) { s.tokenBudget = n }
}

// MemoryStore keeps every session's turns in memory for the lifetime of the
// process. It exclusively owns the sessions; callers get snapshots. Safe for
// concurrent access.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*domain.Session
	maxTurns    int
	tokenBudget int
	log         *logger.Logger
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore(log *logger.Logger, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions:    make(map[string]*domain.Session),
		maxTurns:    DefaultMaxTurns,
		tokenBudget: DefaultTokenBudget,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns a snapshot of the session, registering an empty one
// the first time an id is seen.
func (s *MemoryStore) GetOrCreate(ctx context.Context, id string) (*domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return snapshot(s.getOrCreateLocked(id)), nil
}

// AppendTurn records one exchange. Both halves must be non-blank, otherwise
// nothing is recorded.
func (s *MemoryStore) AppendTurn(ctx context.Context, id, human, assistant string) (domain.Turn, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Turn{}, domain.ErrInvalidSession
	}
	if strings.TrimSpace(human) == "" || strings.TrimSpace(assistant) == "" {
		return domain.Turn{}, fmt.Errorf("session %s: %w", id, domain.ErrPartialTurn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(id)
	turn := domain.Turn{
		ID:        uuid.NewString(),
		Human:     human,
		Assistant: assistant,
		At:        time.Now(),
	}
	sess.Turns = append(sess.Turns, turn)
	sess.UpdatedAt = turn.At

	if s.maxTurns > 0 && len(sess.Turns) > s.maxTurns {
		dropped := len(sess.Turns) - s.maxTurns
		// Fresh backing array: the dropped prefix must not stay reachable.
		sess.Turns = append([]domain.Turn(nil), sess.Turns[dropped:]...)
		s.log.Debug("session %s: dropped %d oldest turn(s), retaining %d", id, dropped, len(sess.Turns))
	}

	s.log.Debug("session %s: appended turn %s (turns=%d)", id, turn.ID, len(sess.Turns))
	return turn, nil
}

// HistoryFor returns the session's messages, oldest first, trimmed to the
// token budget by dropping the oldest whole turns. Unknown sessions have an
// empty history.
func (s *MemoryStore) HistoryFor(ctx context.Context, id string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return []domain.Message{}, nil
	}

	turns := windowTurns(sess.Turns, s.tokenBudget)
	if len(turns) < len(sess.Turns) {
		s.log.Debug("session %s: history window %d/%d turns (budget=%d tokens)", id, len(turns), len(sess.Turns), s.tokenBudget)
	}

	out := make([]domain.Message, 0, len(turns)*2)
	for _, t := range turns {
		for _, m := range t.Messages() {
			m.TokenCount = EstimateTokens(m.Content)
			out = append(out, m)
		}
	}
	return out, nil
}

// Len returns the number of retained turns in the session.
func (s *MemoryStore) Len(ctx context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return 0, nil
	}
	return len(sess.Turns), nil
}

// getOrCreateLocked must be called with s.mu held for writing.
func (s *MemoryStore) getOrCreateLocked(id string) *domain.Session {
	sess, ok := s.sessions[id]
	if !ok {
		now := time.Now()
		sess = &domain.Session{ID: id, CreatedAt: now, UpdatedAt: now}
		s.sessions[id] = sess
		s.log.Debug("created session %s", id)
	}
	return sess
}

func snapshot(sess *domain.Session) *domain.Session {
	cp := *sess
	cp.Turns = append([]domain.Turn(nil), sess.Turns...)
	return &cp
}
