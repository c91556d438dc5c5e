package handler

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/pos-inventory/internal/adapter/handler/pb"
	"github.com/rl1809/pos-inventory/internal/adapter/storage"
	"github.com/rl1809/pos-inventory/internal/client/transport"
	"github.com/rl1809/pos-inventory/internal/core/domain"
	"github.com/rl1809/pos-inventory/internal/core/service"
	"github.com/rl1809/pos-inventory/internal/port"
)

const bufSize = 1024 * 1024

// chanSubscriber hands out one prepared channel
type chanSubscriber struct {
	ch chan []domain.StockLevel
}

func (s *chanSubscriber) SubscribeStock(ctx context.Context, storeID string) (<-chan []domain.StockLevel, error) {
	return s.ch, nil
}

func setupGRPC(t *testing.T, sub *chanSubscriber) (pb.InventoryServiceClient, *transport.Client) {
	t.Helper()
	lis := bufconn.Listen(bufSize)

	store := storage.NewMemoryAdapter()
	ledger := service.NewLedgerService(store, nil)
	guard := service.NewAvailabilityGuard(store, nil)
	events := service.NewEventService(ledger, guard, nil, nil, nil)

	var stock port.StockSubscriber
	if sub != nil {
		stock = sub
	}
	srv := grpc.NewServer()
	pb.RegisterInventoryServiceServer(srv, NewGRPCHandler(ledger, guard, events, stock, nil))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := transport.Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return pb.NewInventoryServiceClient(conn), transport.New(conn)
}

func TestGRPC_ApplyMovementAndFetch(t *testing.T) {
	api, _ := setupGRPC(t, nil)
	ctx := context.Background()

	resp, err := api.ApplyMovement(ctx, &pb.ApplyMovementRequest{
		StoreId: "S", ProductId: "P", MovementType: "RECEIVE", Quantity: 5,
		ReferenceType: "purchase", ReferenceId: "po-1",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.EntryId)

	resp, err = api.ApplyMovement(ctx, &pb.ApplyMovementRequest{
		StoreId: "S", ProductId: "P", MovementType: "SELL", Quantity: 9,
		ReferenceType: "sale", ReferenceId: "s-1",
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, domain.CodeInsufficientStock, resp.Code)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, int64(5), resp.Details[0].Available)

	stock, err := api.FetchLedgerStock(ctx, &pb.FetchLedgerStockRequest{StoreId: "S", ProductId: "P"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), stock.Quantity)

	_, err = api.FetchLedgerStock(ctx, &pb.FetchLedgerStockRequest{StoreId: "S"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_EnsureAvailability(t *testing.T) {
	api, client := setupGRPC(t, nil)
	ctx := context.Background()
	api.ApplyMovement(ctx, &pb.ApplyMovementRequest{
		StoreId: "S", ProductId: "prod-3", MovementType: "RECEIVE", Quantity: 2,
		ReferenceType: "purchase", ReferenceId: "po-1",
	})

	err := client.EnsureAvailability(ctx, "S", []transport.AvailabilityItem{{SkuID: "prod-3", Quantity: 3}})

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, []domain.ShortageDetail{
		{SkuID: "prod-3", Available: 2, Message: "Stock changed. Available: 2"},
	}, domain.ShortageDetails(err))
	assert.NoError(t, client.EnsureAvailability(ctx, "S", []transport.AvailabilityItem{{SkuID: "prod-3", Quantity: 2}}))
}

func TestGRPC_SubmitEventThroughClient(t *testing.T) {
	_, client := setupGRPC(t, nil)
	ctx := context.Background()
	payload, _ := json.Marshal(domain.PurchaseReceived{
		PurchaseID: "po-7",
		Lines:      []domain.PurchaseLine{{ProductID: "P", Quantity: 3}},
	})
	ev := domain.InboundEvent{EventID: "evt-1", DeviceID: "till", StoreID: "S", EventType: domain.EventPurchaseReceived, Payload: payload}

	require.NoError(t, client.SubmitEvent(ctx, ev))
	require.NoError(t, client.SubmitEvent(ctx, ev))

	levels, err := client.ListStock(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, []domain.StockLevel{{ProductID: "P", Quantity: 3}}, levels)

	ev.EventID = "evt-2"
	ev.EventType = "refund.issued"
	err = client.SubmitEvent(ctx, ev)
	assert.ErrorIs(t, err, domain.ErrUnknownEventType)
	assert.True(t, domain.IsRejection(err))
}

func TestGRPC_WatchStock(t *testing.T) {
	sub := &chanSubscriber{ch: make(chan []domain.StockLevel, 1)}
	_, client := setupGRPC(t, sub)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates, err := client.WatchStock(ctx, "S")
	require.NoError(t, err)

	sub.ch <- []domain.StockLevel{{ProductID: "P", Quantity: 4}}
	select {
	case levels := <-updates:
		assert.Equal(t, []domain.StockLevel{{ProductID: "P", Quantity: 4}}, levels)
	case <-ctx.Done():
		t.Fatal("no stock update received")
	}
}

func TestGRPC_WatchStockUnconfigured(t *testing.T) {
	api, _ := setupGRPC(t, nil)

	stream, err := api.WatchStock(context.Background(), &pb.WatchStockRequest{StoreId: "S"}, pb.CallOption())
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
