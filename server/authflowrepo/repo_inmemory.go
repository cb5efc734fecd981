package authflowrepo

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface.
// Memory is bounded only by SweepExpired, which callers run on every new
// authorization; a flood of initiations within one TTL window still grows it.
type InMemoryRepo struct {
	mu      sync.Mutex
	pending map[string]PendingAuthorization
	opts    options
}

// NewInMemoryRepo creates a new in-memory pending authorization repository
func NewInMemoryRepo(opts ...Option) *InMemoryRepo {
	return &InMemoryRepo{
		pending: make(map[string]PendingAuthorization),
		opts:    applyOptions(opts),
	}
}

func (r *InMemoryRepo) Put(_ context.Context, state, codeVerifier string) error {
	if state == "" {
		return apperrors.ErrEmptyState
	}
	if codeVerifier == "" {
		return apperrors.ErrEmptyCodeVerifier
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[state] = PendingAuthorization{
		CodeVerifier: codeVerifier,
		CreatedAt:    r.opts.nowTime(),
	}
	return nil
}

func (r *InMemoryRepo) Consume(_ context.Context, state string) (string, error) {
	if state == "" {
		return "", apperrors.ErrEmptyState
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[state]
	if !ok {
		return "", apperrors.ErrPendingAuthorizationNotFound
	}
	delete(r.pending, state)

	if p.Expired(r.opts.nowTime(), r.opts.ttl) {
		return "", apperrors.ErrPendingAuthorizationExpired
	}
	return p.CodeVerifier, nil
}

func (r *InMemoryRepo) SweepExpired(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.nowTime()
	removed := 0
	for state, p := range r.pending {
		if p.Expired(now, r.opts.ttl) {
			delete(r.pending, state)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired ones included.
func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
