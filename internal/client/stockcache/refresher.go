package stockcache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/pos-inventory/internal/core/domain"
)

// Fetcher lists the store's current stock from the server
type Fetcher interface {
	ListStock(ctx context.Context, storeID string) ([]domain.StockLevel, error)
}

// PushSource streams incremental stock levels until ctx is done.
type PushSource interface {
	WatchStock(ctx context.Context, storeID string) (<-chan []domain.StockLevel, error)
}

// Refresher keeps a Cache in step with the server. Concurrent Refresh calls
// share one network round trip.
type Refresher struct {
	cache   *Cache
	fetcher Fetcher
	storeID string
	logger  *zap.Logger
	group   singleflight.Group
	timeout time.Duration
}

// defaultRefreshTimeout bounds one shared ListStock call.
const defaultRefreshTimeout = 30 * time.Second

func NewRefresher(cache *Cache, fetcher Fetcher, storeID string, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		cache:   cache,
		fetcher: fetcher,
		storeID: storeID,
		logger:  logger,
		timeout: defaultRefreshTimeout,
	}
}

// Refresh replaces the cache with a fresh listing and returns the new
// version. A caller arriving while a refresh is in flight waits for it. The
// shared fetch is detached from any one caller's ctx, so a caller giving up
// only stops its own wait.
func (r *Refresher) Refresh(ctx context.Context) (uint64, error) {
	ch := r.group.DoChan(r.storeID, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		levels, err := r.fetcher.ListStock(fetchCtx, r.storeID)
		if err != nil {
			return uint64(0), err
		}
		return r.cache.Replace(EntriesFromLevels(levels)), nil
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		if res.Shared {
			r.logger.Debug("joined in-flight stock refresh", zap.String("store_id", r.storeID))
		}
		return res.Val.(uint64), nil
	}
}

// Run refreshes immediately and then every interval until ctx is done.
// Failures keep the previous cache contents.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("stock refresh failed", zap.String("store_id", r.storeID), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Watch applies pushed levels as incremental updates. It returns when the
// stream ends or ctx is done.
func (r *Refresher) Watch(ctx context.Context, source PushSource) error {
	updates, err := source.WatchStock(ctx, r.storeID)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case levels, ok := <-updates:
			if !ok {
				return nil
			}
			r.cache.Upsert(EntriesFromLevels(levels))
		}
	}
}
