package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/core/domain"
)

const outboxKeyPrefix = "outbox:"

func outboxKey(userID int64) string {
	return outboxKeyPrefix + strconv.FormatInt(userID, 10)
}

// Notify queues a message for the transport to pick up.
func (r *RedisAdapter) Notify(ctx context.Context, userID int64, msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := outboxKey(userID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, r.opts.OutboxTTL)
		return nil
	})
	if err != nil {
		return storeError("notify", err)
	}
	return nil
}

func (r *RedisAdapter) Drain(ctx context.Context, userID int64, max int) ([]domain.Message, error) {
	if max <= 0 {
		return []domain.Message{}, nil
	}

	key := outboxKey(userID)
	var rangeCmd *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.LRange(ctx, key, 0, int64(max-1))
		pipe.LTrim(ctx, key, int64(max), -1)
		return nil
	})
	if err != nil {
		return nil, storeError("drain outbox", err)
	}

	msgs := make([]domain.Message, 0, len(rangeCmd.Val()))
	for _, raw := range rangeCmd.Val() {
		var msg domain.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
