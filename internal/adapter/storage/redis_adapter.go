package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/pos-inventory/internal/core/domain"
)

const (
	stockChannelPrefix = "stock:"
	eventKeyPrefix     = "event:"
	lockKeyPrefix      = "lock:"
)

type RedisAdapter struct {
	client   *redis.Client
	locker   *redislock.Client
	dedupTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, dedupTTL time.Duration) *RedisAdapter {
	return &RedisAdapter{
		client:   client,
		locker:   redislock.New(client),
		dedupTTL: dedupTTL,
	}
}

func (r *RedisAdapter) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, eventKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisAdapter) Remember(ctx context.Context, eventID string) error {
	return r.client.SetNX(ctx, eventKeyPrefix+eventID, 1, r.dedupTTL).Err()
}

func (r *RedisAdapter) PublishStock(ctx context.Context, storeID string, levels []domain.StockLevel) error {
	payload, err := json.Marshal(levels)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, stockChannelPrefix+storeID, payload).Err()
}

func (r *RedisAdapter) SubscribeStock(ctx context.Context, storeID string) (<-chan []domain.StockLevel, error) {
	sub := r.client.Subscribe(ctx, stockChannelPrefix+storeID)
	// Wait for the subscription confirmation so no publish is missed after return.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan []domain.StockLevel, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var levels []domain.StockLevel
				if err := json.Unmarshal([]byte(msg.Payload), &levels); err != nil {
					continue
				}
				select {
				case out <- levels:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisAdapter) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	lock, err := r.locker.Obtain(ctx, lockKeyPrefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = lock.Release(ctx)
	}
	return release, true, nil
}
