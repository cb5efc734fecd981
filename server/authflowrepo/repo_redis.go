package authflowrepo

import (
	"context"
	"encoding/json"
	"errors"

	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeySegment = "pkce:"

var _ Repo = (*RedisRepo)(nil)

// RedisRepo keeps pending authorizations in Redis so several server
// processes can share them. Keys carry the TTL, so Redis does the sweeping.
type RedisRepo struct {
	client    redis.UniversalClient
	keyPrefix string
	opts      options
}

// NewRedisRepo wraps an existing client; tests pass one pointed at miniredis.
func NewRedisRepo(client redis.UniversalClient, keyPrefix string, opts ...Option) *RedisRepo {
	return &RedisRepo{
		client:    client,
		keyPrefix: keyPrefix,
		opts:      applyOptions(opts),
	}
}

func (r *RedisRepo) key(state string) string {
	return r.keyPrefix + redisKeySegment + state
}

func (r *RedisRepo) Put(ctx context.Context, state, codeVerifier string) error {
	if state == "" {
		return apperrors.ErrEmptyState
	}
	if codeVerifier == "" {
		return apperrors.ErrEmptyCodeVerifier
	}

	data, err := json.Marshal(PendingAuthorization{
		CodeVerifier: codeVerifier,
		CreatedAt:    r.opts.nowTime(),
	})
	if err != nil {
		return apperrors.Wrapf(err, "marshal pending authorization")
	}
	if err := r.client.Set(ctx, r.key(state), data, r.opts.ttl).Err(); err != nil {
		return apperrors.Wrapf(err, "store pending authorization")
	}
	return nil
}

// Consume uses GETDEL so two callbacks racing on one state cannot both win.
func (r *RedisRepo) Consume(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", apperrors.ErrEmptyState
	}

	data, err := r.client.GetDel(ctx, r.key(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.ErrPendingAuthorizationNotFound
	}
	if err != nil {
		return "", apperrors.Wrapf(err, "consume pending authorization")
	}

	var p PendingAuthorization
	if err := json.Unmarshal(data, &p); err != nil {
		return "", apperrors.Wrapf(err, "unmarshal pending authorization")
	}
	if p.Expired(r.opts.nowTime(), r.opts.ttl) {
		return "", apperrors.ErrPendingAuthorizationExpired
	}
	return p.CodeVerifier, nil
}

// SweepExpired is a no-op: every key is written with the TTL.
func (r *RedisRepo) SweepExpired(context.Context) (int, error) {
	return 0, nil
}
