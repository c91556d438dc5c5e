package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/pos-inventory/internal/adapter/handler"
	"github.com/rl1809/pos-inventory/internal/adapter/handler/pb"
	"github.com/rl1809/pos-inventory/internal/adapter/messaging"
	"github.com/rl1809/pos-inventory/internal/adapter/storage"
	"github.com/rl1809/pos-inventory/internal/config"
	"github.com/rl1809/pos-inventory/internal/core/service"
	"github.com/rl1809/pos-inventory/internal/metrics"
	"github.com/rl1809/pos-inventory/internal/port"
	"github.com/rl1809/pos-inventory/pkg/logger"
)

func main() {
	cfg := config.LoadServer()
	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ledger store
	var (
		store port.LedgerStore
		db    *sql.DB
	)
	switch cfg.StoreDriver {
	case "memory":
		store = storage.NewMemoryAdapter()
		log.Warn("using in-memory ledger store, data is lost on exit")
	default:
		var err error
		db, err = sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal("failed to open mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping mysql", zap.Error(err))
		}
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			log.Fatal("failed to ensure schema", zap.Error(err))
		}
		store = mysqlAdapter
		log.Info("connected to mysql")
	}

	// Redis is optional: without it dedup falls back to the processed table,
	// stock push is disabled and every instance runs the janitor.
	var (
		rdb        *redis.Client
		dedup      port.DedupCache
		publisher  port.StockPublisher
		subscriber port.StockSubscriber
		locker     port.JobLocker
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		redisAdapter := storage.NewRedisAdapter(rdb, cfg.DedupTTL)
		dedup, publisher, subscriber, locker = redisAdapter, redisAdapter, redisAdapter, redisAdapter
		log.Info("connected to redis")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Services
	ledgerOpts := []service.LedgerOption{
		service.WithMetrics(m),
		service.WithLockRetries(cfg.LockRetries),
	}
	if publisher != nil {
		ledgerOpts = append(ledgerOpts, service.WithPublisher(publisher))
	}
	ledger := service.NewLedgerService(store, log, ledgerOpts...)
	guard := service.NewAvailabilityGuard(store, m)
	events := service.NewEventService(ledger, guard, dedup, m, log)
	janitor := service.NewJanitor(ledger, locker, service.JanitorConfig{
		Stores:    cfg.Stores,
		Interval:  cfg.ReconcileInterval,
		Retention: cfg.EventRetention,
	}, m, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		janitor.Run(ctx)
	}()

	// Back-office events
	var consumer *messaging.Consumer
	if cfg.AMQPURL != "" {
		var err error
		consumer, err = messaging.NewConsumer(cfg.AMQPURL, cfg.ServiceName+".events", events, log)
		if err != nil {
			log.Fatal("failed to connect rabbitmq", zap.Error(err))
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				log.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}

	// gRPC server
	grpcServer := grpc.NewServer()
	pb.RegisterInventoryServiceServer(grpcServer, handler.NewGRPCHandler(ledger, guard, events, subscriber, log))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(pb.InventoryService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	// HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler.NewHTTPHandler(ledger, guard, events, log).Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	// Open WatchStock streams never finish on their own.
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
	log.Info("gRPC server stopped")

	cancel()
	wg.Wait()
	if consumer != nil {
		consumer.Close()
	}
	log.Info("background workers stopped")

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	log.Info("connections closed")
}
