package loginsession

import (
	"context"
	"time"

	"github.com/jrsteele09/marketplace-auth-server/internal/utils"
	"github.com/jrsteele09/marketplace-auth-server/users"
)

// DefaultMaxAge matches the session cookie lifetime.
const DefaultMaxAge = 24 * time.Hour

// Tokens is the provider token set held for a signed-in user.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"` // Not every grant returns one
	ExpiryDate   time.Time `json:"expiry_date"`
}

type Session struct {
	ID     string     `json:"id"`
	User   users.User `json:"user"`
	Tokens Tokens     `json:"tokens"`

	// Session management
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clone returns a copy that shares no pointers with s.
func (s Session) Clone() Session {
	c := s
	if s.User.Role != nil {
		c.User.Role = utils.Ptr(*s.User.Role)
	}
	return c
}

// Repo persists sessions. Update is an atomic read-modify-write for a single
// session key; the mutator runs under that guarantee and must not do I/O.
type Repo interface {
	Create(ctx context.Context, session Session) error
	Get(ctx context.Context, sessionID string) (Session, error)
	Update(ctx context.Context, sessionID string, mutate func(*Session) error) (Session, error)
	Delete(ctx context.Context, sessionID string) error
}
