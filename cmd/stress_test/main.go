package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/pos-inventory/internal/adapter/storage"
	"github.com/rl1809/pos-inventory/internal/core/domain"
	"github.com/rl1809/pos-inventory/internal/core/service"
	"github.com/rl1809/pos-inventory/internal/port"
)

const (
	storeID       = "stress-store"
	productID     = "stress-item"
	initialStock  = 20
	totalRequests = 50
)

func main() {
	dsn := flag.String("mysql", "", "MySQL DSN; empty runs against the in-memory store")
	flag.Parse()
	ctx := context.Background()

	var store port.LedgerStore
	if *dsn == "" {
		store = storage.NewMemoryAdapter()
	} else {
		db, err := sql.Open("mysql", *dsn)
		if err != nil {
			log.Fatalf("failed to open mysql: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(50)
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			log.Fatalf("failed to ensure schema: %v", err)
		}
		store = mysqlAdapter
	}

	ledger := service.NewLedgerService(store, nil, service.WithLockRetries(10))

	// Reset to a known level; ADJUST sets the count whatever came before.
	if _, err := ledger.ApplyMovement(ctx, domain.Movement{
		StoreID:       storeID,
		ProductID:     productID,
		Type:          domain.MovementAdjust,
		Quantity:      initialStock,
		ReferenceType: domain.ReferenceAdjustment,
		ReferenceID:   "stress-reset-" + uuid.NewString(),
	}); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	var successCount, rejectCount, errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(buyer int) {
			defer wg.Done()

			_, err := ledger.ApplyMovement(ctx, domain.Movement{
				StoreID:       storeID,
				ProductID:     productID,
				Type:          domain.MovementSell,
				Quantity:      1,
				ReferenceType: domain.ReferenceSale,
				ReferenceID:   fmt.Sprintf("sale-%d", buyer),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				rejectCount.Add(1)
			default:
				errorCount.Add(1)
				log.Printf("buyer %d: %v", buyer, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	rejected := rejectCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && rejected == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d sales succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, rejected)
	}

	finalStock, err := ledger.FetchLedgerStock(ctx, storeID, productID)
	if err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}
	fmt.Printf("Final Stock:      %d\n", finalStock)
	if finalStock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", finalStock)
	}

	drift, err := ledger.Reconcile(ctx, storeID)
	if err != nil {
		log.Fatalf("failed to reconcile: %v", err)
	}
	if len(drift) == 0 {
		fmt.Println("PASS: Snapshot matches ledger sum")
	} else {
		fmt.Printf("FAIL: %d drifted rows\n", len(drift))
	}
}
