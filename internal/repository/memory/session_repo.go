// Package memory holds process-local repository implementations.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoicesplit/internal/domain"
	"invoicesplit/internal/port"
)

type sessionRepo struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.Session

	ttl         time.Duration
	maxSessions int
	now         func() time.Time
}

// Option customizes the session repository.
type Option func(*sessionRepo)

// WithTTL expires sessions that have not been updated for d. Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(r *sessionRepo) { r.ttl = d }
}

// WithMaxSessions caps the number of stored sessions. When full, Create evicts
// the least recently updated session. Zero means no cap.
func WithMaxSessions(n int) Option {
	return func(r *sessionRepo) { r.maxSessions = n }
}

// WithClock replaces time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(r *sessionRepo) { r.now = now }
}

// NewSessionRepo creates an in-memory SessionRepository. Without options,
// sessions live until deleted or the process exits.
func NewSessionRepo(opts ...Option) port.SessionRepository {
	r := &sessionRepo{
		sessions: make(map[uuid.UUID]*domain.Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *sessionRepo) Create(_ context.Context, session *domain.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	now := r.now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweep(now)
	for r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		if !r.evictOldest() {
			break
		}
	}
	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *sessionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok || r.expired(s, r.now().UTC()) {
		return nil, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *sessionRepo) List(_ context.Context) ([]domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.now().UTC()
	out := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if r.expired(s, now) {
			continue
		}
		out = append(out, *s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *sessionRepo) Update(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	session.UpdatedAt = r.now().UTC()
	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *sessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// expired never applies to a session that is being processed, so an
// in-flight submit can always store its result.
func (r *sessionRepo) expired(s *domain.Session, now time.Time) bool {
	return r.ttl > 0 && s.State != domain.SessionStateProcessing && now.Sub(s.UpdatedAt) > r.ttl
}

// sweep drops expired sessions. Callers hold mu.
func (r *sessionRepo) sweep(now time.Time) {
	for id, s := range r.sessions {
		if r.expired(s, now) {
			delete(r.sessions, id)
			slog.Debug("session.expired", "session_id", id)
		}
	}
}

// evictOldest removes the least recently updated session that is not being
// processed. Callers hold mu.
func (r *sessionRepo) evictOldest() bool {
	var oldest *domain.Session
	for _, s := range r.sessions {
		if s.State == domain.SessionStateProcessing {
			continue
		}
		if oldest == nil || s.UpdatedAt.Before(oldest.UpdatedAt) {
			oldest = s
		}
	}
	if oldest == nil {
		return false
	}
	delete(r.sessions, oldest.ID)
	slog.Info("session.evicted", "session_id", oldest.ID, "max_sessions", r.maxSessions)
	return true
}
