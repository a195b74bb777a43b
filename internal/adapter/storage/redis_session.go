package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	sessionKeyPrefix  = "checkout:"
	userLockKeyPrefix = "lock:user:"
)

var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

func sessionKey(userID int64) string {
	return sessionKeyPrefix + strconv.FormatInt(userID, 10)
}

func userLockKey(userID int64) string {
	return userLockKeyPrefix + strconv.FormatInt(userID, 10)
}

func (r *RedisAdapter) CreateSession(ctx context.Context, session *domain.Session) (bool, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return false, fmt.Errorf("marshal session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, sessionKey(session.UserID), data, r.opts.SessionTTL).Result()
	if err != nil {
		return false, storeError("create session", err)
	}
	return ok, nil
}

func (r *RedisAdapter) GetSession(ctx context.Context, userID int64) (*domain.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("get session", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w: %w", domain.ErrInternalInconsistency, err)
	}
	if session.Fields == nil {
		session.Fields = make(map[string]string)
	}
	return &session, nil
}

func (r *RedisAdapter) SaveSession(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := r.client.SetXX(ctx, sessionKey(session.UserID), data, r.opts.SessionTTL).Result()
	if err != nil {
		return storeError("save session", err)
	}
	if !ok {
		return domain.ErrNoActiveCheckout
	}
	return nil
}

func (r *RedisAdapter) DeleteSession(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return storeError("delete session", err)
	}
	return nil
}

func (r *RedisAdapter) AcquireUserLock(ctx context.Context, userID int64, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()

	ok, err := r.client.SetNX(ctx, userLockKey(userID), token, ttl).Result()
	if err != nil {
		return "", false, storeError("acquire user lock", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *RedisAdapter) ReleaseUserLock(ctx context.Context, userID int64, token string) error {
	if err := releaseLockScript.Run(ctx, r.client, []string{userLockKey(userID)}, token).Err(); err != nil {
		return storeError("release user lock", err)
	}
	return nil
}
