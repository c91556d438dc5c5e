package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/pos-inventory/internal/client/cart"
	"github.com/rl1809/pos-inventory/internal/client/checkout"
	"github.com/rl1809/pos-inventory/internal/client/outbox"
	"github.com/rl1809/pos-inventory/internal/client/stockcache"
	"github.com/rl1809/pos-inventory/internal/client/tillapi"
	"github.com/rl1809/pos-inventory/internal/client/transport"
	"github.com/rl1809/pos-inventory/internal/config"
	"github.com/rl1809/pos-inventory/pkg/logger"
)

// watchBackoff is the pause before re-opening a dropped stock stream.
const watchBackoff = 5 * time.Second

func main() {
	cfg := config.LoadAgent()
	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	if cfg.StoreID == "" {
		log.Fatal("STORE_ID is required")
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		log.Warn("DEVICE_ID not set, using a random id for this run", zap.String("device_id", cfg.DeviceID))
	}
	log = log.With(zap.String("store_id", cfg.StoreID), zap.String("device_id", cfg.DeviceID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := transport.Dial(cfg.ServerAddr)
	if err != nil {
		log.Fatal("failed to create grpc client", zap.Error(err))
	}
	defer conn.Close()
	client := transport.New(conn)

	db, err := outbox.Open(cfg.OutboxPath)
	if err != nil {
		log.Fatal("failed to open outbox", zap.String("path", cfg.OutboxPath), zap.Error(err))
	}
	box, err := outbox.New(db, client, cfg.StoreID, cfg.DeviceID, log)
	if err != nil {
		log.Fatal("failed to init outbox", zap.Error(err))
	}
	if n, err := box.Len(ctx); err == nil && n > 0 {
		log.Info("outbox has queued events from a previous run", zap.Int64("count", n))
	}

	cache := stockcache.New()
	refresher := stockcache.NewRefresher(cache, client, cfg.StoreID, log)

	// The till keeps one open cart; every stock change re-caps it.
	openCart := cart.New()
	unbind := openCart.BindToCache(cache, func(r cart.NormalizeReport) {
		log.Info("cart adjusted to stock", zap.Strings("removed", r.Removed), zap.Strings("capped", r.Capped))
	})
	defer unbind()
	checkoutSvc := checkout.New(openCart, client, box, cfg.StoreID, cfg.DeviceID, log)

	// Local API for the till front end
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	tillapi.New(openCart, cache, checkoutSvc, log).Register(router)
	localServer := &http.Server{
		Addr:    cfg.LocalAddr,
		Handler: router,
	}
	go func() {
		log.Info("till API listening", zap.String("addr", cfg.LocalAddr))
		if err := localServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("till API error", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		refresher.Run(ctx, cfg.RefreshInterval)
	}()
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			if err := refresher.Watch(ctx, client); err != nil && ctx.Err() == nil {
				log.Warn("stock stream dropped", zap.Error(err))
			}
			select {
			case <-ctx.Done():
			case <-time.After(watchBackoff):
			}
		}
	}()
	go func() {
		defer wg.Done()
		box.Run(ctx, cfg.FlushInterval)
	}()
	log.Info("pos agent started", zap.String("server", cfg.ServerAddr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := localServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("till API shutdown", zap.Error(err))
	}
	cancel()
	wg.Wait()

	// Last attempt so a clean shutdown does not strand sales.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	report, err := box.Flush(flushCtx)
	if err != nil {
		log.Warn("final outbox flush failed", zap.Error(err))
	}
	log.Info("agent stopped", zap.Int("delivered", report.Delivered), zap.Int("pending", report.Pending))
}
