package loginsession

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeySegment   = "session:"
	maxUpdateAttempts = 25
)

var _ Repo = (*RedisLoginSessionRepo)(nil)

// RedisLoginSessionRepo stores sessions as JSON values whose key TTL tracks
// Session.ExpiresAt. Updates use WATCH/MULTI so concurrent writers on one
// session never lose each other's changes.
type RedisLoginSessionRepo struct {
	client    redis.UniversalClient
	keyPrefix string
	nowTime   func() time.Time
}

func NewRedisLoginSessionRepo(client redis.UniversalClient, keyPrefix string) *RedisLoginSessionRepo {
	return &RedisLoginSessionRepo{
		client:    client,
		keyPrefix: keyPrefix,
		nowTime:   time.Now,
	}
}

// WithNowTime sets the clock used for expiry (primarily for testing)
func (r *RedisLoginSessionRepo) WithNowTime(nowFunc func() time.Time) *RedisLoginSessionRepo {
	r.nowTime = nowFunc
	return r
}

func (r *RedisLoginSessionRepo) key(sessionID string) string {
	return r.keyPrefix + redisKeySegment + sessionID
}

func (r *RedisLoginSessionRepo) ttl(s Session) (time.Duration, error) {
	if s.ExpiresAt.IsZero() {
		return DefaultMaxAge, nil
	}
	ttl := s.ExpiresAt.Sub(r.nowTime())
	if ttl <= 0 {
		return 0, apperrors.ErrSessionNotFound
	}
	return ttl, nil
}

func (r *RedisLoginSessionRepo) Create(ctx context.Context, session Session) error {
	if session.ID == "" {
		return apperrors.ErrSessionIDRequired
	}
	ttl, err := r.ttl(session)
	if err != nil {
		return err
	}
	data, err := json.Marshal(session)
	if err != nil {
		return apperrors.Wrapf(err, "marshal session")
	}

	created, err := r.client.SetNX(ctx, r.key(session.ID), data, ttl).Result()
	if err != nil {
		return apperrors.Wrapf(err, "store session")
	}
	if !created {
		return apperrors.Wrapf(apperrors.ErrSessionExists, "session %s", session.ID)
	}
	return nil
}

func (r *RedisLoginSessionRepo) Get(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, apperrors.ErrSessionNotFound
	}
	return r.decode(r.client.Get(ctx, r.key(sessionID)).Bytes())
}

func (r *RedisLoginSessionRepo) decode(data []byte, err error) (Session, error) {
	if errors.Is(err, redis.Nil) {
		return Session{}, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return Session{}, apperrors.Wrapf(err, "load session")
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, apperrors.Wrapf(err, "unmarshal session")
	}
	if s.Expired(r.nowTime()) {
		return Session{}, apperrors.ErrSessionNotFound
	}
	return s, nil
}

func (r *RedisLoginSessionRepo) Update(ctx context.Context, sessionID string, mutate func(*Session) error) (Session, error) {
	if sessionID == "" {
		return Session{}, apperrors.ErrSessionNotFound
	}
	key := r.key(sessionID)

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var updated Session
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := r.decode(tx.Get(ctx, key).Bytes())
			if err != nil {
				return err
			}
			if err := mutate(&current); err != nil {
				return err
			}
			current.ID = sessionID

			ttl, err := r.ttl(current)
			if err != nil {
				return err
			}
			data, err := json.Marshal(current)
			if err != nil {
				return apperrors.Wrapf(err, "marshal session")
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, ttl)
				return nil
			})
			updated = current
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Session{}, err
		}
		return updated, nil
	}
	return Session{}, apperrors.ErrSessionUpdateConflict
}

func (r *RedisLoginSessionRepo) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return apperrors.Wrapf(err, "delete session")
	}
	return nil
}
