package loginsession

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
)

var _ Repo = (*InMemoryLoginSessionRepo)(nil)

// InMemoryLoginSessionRepo is an in-memory implementation of Repo
type InMemoryLoginSessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session // sessionID -> Session
	nowTime  func() time.Time
}

type InMemoryOption func(*InMemoryLoginSessionRepo)

// WithNowTime sets the clock used for expiry (primarily for testing)
func WithNowTime(nowFunc func() time.Time) InMemoryOption {
	return func(r *InMemoryLoginSessionRepo) {
		r.nowTime = nowFunc
	}
}

// NewInMemoryLoginSessionRepo creates a new in-memory login session repository
func NewInMemoryLoginSessionRepo(opts ...InMemoryOption) *InMemoryLoginSessionRepo {
	r := &InMemoryLoginSessionRepo{
		sessions: make(map[string]Session),
		nowTime:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *InMemoryLoginSessionRepo) Create(_ context.Context, session Session) error {
	if session.ID == "" {
		return apperrors.ErrSessionIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[session.ID]; ok && !existing.Expired(r.nowTime()) {
		return apperrors.Wrapf(apperrors.ErrSessionExists, "session %s", session.ID)
	}
	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *InMemoryLoginSessionRepo) Get(_ context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, apperrors.ErrSessionNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok || session.Expired(r.nowTime()) {
		return Session{}, apperrors.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (r *InMemoryLoginSessionRepo) Update(_ context.Context, sessionID string, mutate func(*Session) error) (Session, error) {
	if sessionID == "" {
		return Session{}, apperrors.ErrSessionNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[sessionID]
	if !ok || current.Expired(r.nowTime()) {
		delete(r.sessions, sessionID)
		return Session{}, apperrors.ErrSessionNotFound
	}

	updated := current.Clone()
	if err := mutate(&updated); err != nil {
		return Session{}, err
	}
	updated.ID = sessionID
	r.sessions[sessionID] = updated.Clone()
	return updated, nil
}

// Delete removes a login session; removing a missing session is not an error.
func (r *InMemoryLoginSessionRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

// DeleteExpired drops sessions past their expiry and returns how many were removed.
func (r *InMemoryLoginSessionRepo) DeleteExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowTime()
	removed := 0
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
