package authflowrepo

import (
	"context"
	"time"
)

// DefaultTTL bounds how long a user has to come back from the provider.
const DefaultTTL = 10 * time.Minute

// PendingAuthorization is the server-side half of an in-flight PKCE login,
// keyed by the opaque state sent to the provider.
type PendingAuthorization struct {
	CodeVerifier string    `json:"code_verifier"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the authorization is older than ttl at now.
func (p PendingAuthorization) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) > ttl
}

// Repo stores pending authorizations. Consume must be an atomic
// check-and-delete so a state can be redeemed at most once.
type Repo interface {
	// Put stores the verifier for state, silently replacing any previous entry.
	Put(ctx context.Context, state, codeVerifier string) error
	// Consume removes the entry for state and returns its verifier. Missing,
	// already consumed and expired entries all fail.
	Consume(ctx context.Context, state string) (string, error)
	// SweepExpired drops entries older than the TTL and returns how many went.
	SweepExpired(ctx context.Context) (int, error)
}

type options struct {
	ttl     time.Duration
	nowTime func() time.Time
}

// Option configures a Repo implementation.
type Option func(*options)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(o *options) {
		o.nowTime = nowFunc
	}
}

func applyOptions(opts []Option) options {
	o := options{ttl: DefaultTTL, nowTime: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
