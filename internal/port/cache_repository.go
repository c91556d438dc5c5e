package port

import (
	"context"
	"time"

	"github.com/rl1809/pos-inventory/internal/core/domain"
)

// DedupCache is a fast-path hint in front of the processed event table. It is
// only written after a commit, so a miss never means "not processed".
type DedupCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

// StockPublisher pushes committed stock levels to subscribed devices
type StockPublisher interface {
	PublishStock(ctx context.Context, storeID string, levels []domain.StockLevel) error
}

type StockSubscriber interface {
	// SubscribeStock streams levels for the store until ctx is done
	SubscribeStock(ctx context.Context, storeID string) (<-chan []domain.StockLevel, error)
}

// JobLocker guards work that should run on one server instance at a time.
// Obtain reports false when another instance holds the lock.
type JobLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}
