package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	cartKeyPrefix     = "cart:"
	idempotencyKeyTTL = 24 * time.Hour
)

const (
	scriptCeilingExceeded = -1
	scriptItemNotInCart   = -2
)

// KEYS[1] cart hash; ARGV: field, delta, ceiling, ttl ms.
var addItemScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local delta = tonumber(ARGV[2])

if current == 0 and delta < 0 then
	return -2
end

local updated = current + delta
if updated > tonumber(ARGV[3]) then
	return -1
end

if updated <= 0 then
	redis.call('HDEL', KEYS[1], ARGV[1])
	updated = 0
else
	redis.call('HSET', KEYS[1], ARGV[1], updated)
end

if redis.call('EXISTS', KEYS[1]) == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[4])
end

return updated
`)

// KEYS[1] cart hash; ARGV: field, ttl ms.
var removeItemScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end

if redis.call('HDEL', KEYS[1], ARGV[1]) == 0 then
	return -2
end

if redis.call('EXISTS', KEYS[1]) == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end

return 1
`)

type RedisOptions struct {
	CartCeiling int
	CartTTL     time.Duration
	SessionTTL  time.Duration
	OutboxTTL   time.Duration
}

type RedisAdapter struct {
	client *redis.Client
	opts   RedisOptions
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.CartCeiling <= 0 {
		o.CartCeiling = 999
	}
	if o.CartTTL <= 0 {
		o.CartTTL = 24 * time.Hour
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 30 * time.Minute
	}
	if o.OutboxTTL <= 0 {
		o.OutboxTTL = 24 * time.Hour
	}
	return o
}

func NewRedisAdapter(client *redis.Client, opts RedisOptions) *RedisAdapter {
	return &RedisAdapter{client: client, opts: opts.withDefaults()}
}

func cartKey(userID int64) string {
	return cartKeyPrefix + strconv.FormatInt(userID, 10)
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// AddItem applies delta in one script call. A negative delta decreases and
// removes the line once it reaches zero.
func (r *RedisAdapter) AddItem(ctx context.Context, userID int64, key string, delta int) (int, error) {
	result, err := addItemScript.Run(ctx, r.client, []string{cartKey(userID)},
		key, delta, r.opts.CartCeiling, r.opts.CartTTL.Milliseconds()).Int()
	if err != nil {
		return 0, storeError("add item", err)
	}

	switch result {
	case scriptCeilingExceeded:
		return 0, domain.ErrQuantityCeilingExceeded
	case scriptItemNotInCart:
		return 0, domain.ErrItemNotInCart
	}
	return result, nil
}

func (r *RedisAdapter) SetQuantity(ctx context.Context, userID int64, key string, n int) error {
	if n <= 0 {
		return r.RemoveItem(ctx, userID, key)
	}
	if n > r.opts.CartCeiling {
		return domain.ErrQuantityCeilingExceeded
	}

	ck := cartKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, ck, key, n)
		pipe.PExpire(ctx, ck, r.opts.CartTTL)
		return nil
	})
	if err != nil {
		return storeError("set quantity", err)
	}
	return nil
}

func (r *RedisAdapter) RemoveItem(ctx context.Context, userID int64, key string) error {
	result, err := removeItemScript.Run(ctx, r.client, []string{cartKey(userID)},
		key, r.opts.CartTTL.Milliseconds()).Int()
	if err != nil {
		return storeError("remove item", err)
	}

	if result == scriptItemNotInCart {
		return domain.ErrItemNotInCart
	}
	return nil
}

func (r *RedisAdapter) GetCart(ctx context.Context, userID int64) (domain.Cart, error) {
	raw, err := r.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, storeError("get cart", err)
	}

	cart := make(domain.Cart, len(raw))
	for k, v := range raw {
		qty, err := strconv.Atoi(v)
		if err != nil || qty <= 0 {
			continue
		}
		cart[k] = qty
	}
	return cart, nil
}

func (r *RedisAdapter) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return storeError("clear cart", err)
	}
	return nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, storeError("set idempotency", err)
	}

	return ok, nil
}

func (r *RedisAdapter) ClearIdempotency(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return storeError("clear idempotency", err)
	}
	return nil
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
