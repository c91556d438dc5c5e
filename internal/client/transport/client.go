// Package transport is the device's gRPC client for the inventory service.
package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/pos-inventory/internal/adapter/handler/pb"
	"github.com/rl1809/pos-inventory/internal/core/domain"
)

type Client struct {
	api pb.InventoryServiceClient
}

// Dial opens a lazy connection to addr; no I/O happens until the first call.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(pb.CallOption()),
	}, opts...)
	return grpc.NewClient(addr, opts...)
}

func New(cc grpc.ClientConnInterface) *Client {
	return &Client{api: pb.NewInventoryServiceClient(cc)}
}

func (c *Client) ListStock(ctx context.Context, storeID string) ([]domain.StockLevel, error) {
	resp, err := c.api.ListStock(ctx, &pb.ListStockRequest{StoreId: storeID}, pb.CallOption())
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	return fromPBLevels(resp.Levels), nil
}

// SubmitEvent returns nil when the server applied the event now or before,
// a typed rejection when it refused it, and a transport error otherwise.
func (c *Client) SubmitEvent(ctx context.Context, ev domain.InboundEvent) error {
	resp, err := c.api.SubmitEvent(ctx, &pb.SubmitEventRequest{
		EventId:   ev.EventID,
		DeviceId:  ev.DeviceID,
		StoreId:   ev.StoreID,
		EventType: ev.EventType,
		Payload:   ev.Payload,
	}, pb.CallOption())
	if err != nil {
		return fmt.Errorf("submit event: %w", err)
	}
	if !resp.Success {
		return domain.ErrorFromCode(resp.Code, resp.Message, fromPBDetails(resp.Details))
	}
	return nil
}

type AvailabilityItem struct {
	SkuID    string
	Quantity int
	Name     string
}

func (c *Client) EnsureAvailability(ctx context.Context, storeID string, items []AvailabilityItem) error {
	req := &pb.EnsureAvailabilityRequest{StoreId: storeID}
	for _, it := range items {
		req.Items = append(req.Items, pb.AvailabilityItem{SkuId: it.SkuID, Quantity: int64(it.Quantity), Name: it.Name})
	}
	resp, err := c.api.EnsureAvailability(ctx, req, pb.CallOption())
	if err != nil {
		return fmt.Errorf("ensure availability: %w", err)
	}
	if !resp.Success {
		return domain.ErrorFromCode(resp.Code, resp.Message, fromPBDetails(resp.Details))
	}
	return nil
}

// WatchStock streams pushed stock levels. The channel closes when the
// stream ends or ctx is done.
func (c *Client) WatchStock(ctx context.Context, storeID string) (<-chan []domain.StockLevel, error) {
	stream, err := c.api.WatchStock(ctx, &pb.WatchStockRequest{StoreId: storeID}, pb.CallOption())
	if err != nil {
		return nil, fmt.Errorf("watch stock: %w", err)
	}

	out := make(chan []domain.StockLevel, 16)
	go func() {
		defer close(out)
		for {
			update, err := stream.Recv()
			if err != nil {
				// io.EOF is a clean server close; anything else drops the feed
				// and the caller falls back to periodic refresh.
				return
			}
			select {
			case out <- fromPBLevels(update.Levels):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func fromPBLevels(levels []pb.StockLevel) []domain.StockLevel {
	out := make([]domain.StockLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, domain.StockLevel{ProductID: l.ProductId, Barcode: l.Barcode, Quantity: int(l.Quantity)})
	}
	return out
}

func fromPBDetails(details []pb.ShortageDetail) []domain.ShortageDetail {
	out := make([]domain.ShortageDetail, 0, len(details))
	for _, d := range details {
		out = append(out, domain.ShortageDetail{SkuID: d.SkuId, Available: int(d.Available), Message: d.Message})
	}
	return out
}
