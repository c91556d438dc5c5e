package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/pos-inventory/internal/adapter/handler/pb"
	"github.com/rl1809/pos-inventory/internal/core/domain"
	"github.com/rl1809/pos-inventory/internal/core/service"
	"github.com/rl1809/pos-inventory/internal/port"
)

// GRPCHandler reports business rejections in the response body
// (success=false plus a code) and infrastructure failures as gRPC status
// errors, so clients can tell "do not retry" from "try again later".
type GRPCHandler struct {
	pb.UnimplementedInventoryServiceServer
	ledger *service.LedgerService
	guard  *service.AvailabilityGuard
	events *service.EventService
	stock  port.StockSubscriber
	logger *zap.Logger
}

// NewGRPCHandler wires the service. stock may be nil, in which case
// WatchStock is unavailable.
func NewGRPCHandler(ledger *service.LedgerService, guard *service.AvailabilityGuard, events *service.EventService, stock port.StockSubscriber, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{
		ledger: ledger,
		guard:  guard,
		events: events,
		stock:  stock,
		logger: logger,
	}
}

func (h *GRPCHandler) ApplyMovement(ctx context.Context, req *pb.ApplyMovementRequest) (*pb.ApplyMovementResponse, error) {
	entry, err := h.ledger.ApplyMovement(ctx, domain.Movement{
		StoreID:       req.StoreId,
		ProductID:     req.ProductId,
		Type:          domain.MovementType(req.MovementType),
		Quantity:      int(req.Quantity),
		UnitCostMinor: req.UnitCostMinor,
		UnitSellMinor: req.UnitSellMinor,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceId,
		Barcode:       req.Barcode,
	})
	if err != nil {
		code, msg, details, serr := h.rejection("apply movement", err)
		if serr != nil {
			return nil, serr
		}
		return &pb.ApplyMovementResponse{Code: code, Message: msg, Details: details}, nil
	}
	return &pb.ApplyMovementResponse{
		Success: true,
		Message: "movement applied",
		EntryId: entry.ID,
	}, nil
}

func (h *GRPCHandler) FetchLedgerStock(ctx context.Context, req *pb.FetchLedgerStockRequest) (*pb.FetchLedgerStockResponse, error) {
	if req.StoreId == "" || req.ProductId == "" {
		return nil, status.Error(codes.InvalidArgument, "store_id and product_id are required")
	}
	qty, err := h.ledger.FetchLedgerStock(ctx, req.StoreId, req.ProductId)
	if err != nil {
		h.logger.Error("fetch ledger stock failed", zap.String("store_id", req.StoreId), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &pb.FetchLedgerStockResponse{Quantity: int64(qty)}, nil
}

func (h *GRPCHandler) EnsureAvailability(ctx context.Context, req *pb.EnsureAvailabilityRequest) (*pb.EnsureAvailabilityResponse, error) {
	items := make([]service.AvailabilityItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.AvailabilityItem{SkuID: it.SkuId, Quantity: int(it.Quantity), Name: it.Name})
	}
	if err := h.guard.EnsureAvailability(ctx, req.StoreId, items); err != nil {
		code, msg, details, serr := h.rejection("ensure availability", err)
		if serr != nil {
			return nil, serr
		}
		return &pb.EnsureAvailabilityResponse{Code: code, Message: msg, Details: details}, nil
	}
	return &pb.EnsureAvailabilityResponse{Success: true, Message: "available"}, nil
}

func (h *GRPCHandler) ListStock(ctx context.Context, req *pb.ListStockRequest) (*pb.ListStockResponse, error) {
	if req.StoreId == "" {
		return nil, status.Error(codes.InvalidArgument, "store_id is required")
	}
	levels, err := h.ledger.ListStock(ctx, req.StoreId)
	if err != nil {
		h.logger.Error("list stock failed", zap.String("store_id", req.StoreId), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &pb.ListStockResponse{Levels: toPBLevels(levels)}, nil
}

func (h *GRPCHandler) SubmitEvent(ctx context.Context, req *pb.SubmitEventRequest) (*pb.SubmitEventResponse, error) {
	outcome, err := h.events.Process(ctx, domain.InboundEvent{
		EventID:   req.EventId,
		DeviceID:  req.DeviceId,
		StoreID:   req.StoreId,
		EventType: req.EventType,
		Payload:   req.Payload,
	})
	if err != nil {
		code, msg, details, serr := h.rejection("submit event", err)
		if serr != nil {
			return nil, serr
		}
		return &pb.SubmitEventResponse{Code: code, Message: msg, Details: details}, nil
	}
	if outcome == service.OutcomeDuplicate {
		return &pb.SubmitEventResponse{Success: true, Duplicate: true, Message: "already processed"}, nil
	}
	return &pb.SubmitEventResponse{Success: true, Message: "event applied"}, nil
}

func (h *GRPCHandler) WatchStock(req *pb.WatchStockRequest, stream grpc.ServerStreamingServer[pb.StockUpdate]) error {
	if h.stock == nil {
		return status.Error(codes.Unavailable, "stock push is not configured")
	}
	if req.GetStoreId() == "" {
		return status.Error(codes.InvalidArgument, "store_id is required")
	}

	ctx := stream.Context()
	updates, err := h.stock.SubscribeStock(ctx, req.StoreId)
	if err != nil {
		h.logger.Error("subscribe stock failed", zap.String("store_id", req.StoreId), zap.Error(err))
		return status.Error(codes.Unavailable, "stock feed unavailable")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case levels, ok := <-updates:
			if !ok {
				return status.Error(codes.Unavailable, "stock feed closed")
			}
			if err := stream.Send(&pb.StockUpdate{StoreId: req.StoreId, Levels: toPBLevels(levels)}); err != nil {
				return err
			}
		}
	}
}

// rejection turns a business rejection into a response body triple. Any
// other error comes back as a status error for the caller to return.
func (h *GRPCHandler) rejection(op string, err error) (code, message string, details []pb.ShortageDetail, statusErr error) {
	code = domain.ErrorCode(err)
	if code == "" {
		h.logger.Error(op+" failed", zap.Error(err))
		if errors.Is(err, port.ErrLockTimeout) {
			return "", "", nil, status.Error(codes.Unavailable, "stock is busy, retry")
		}
		return "", "", nil, status.Error(codes.Internal, "internal error")
	}
	return code, err.Error(), toPBDetails(domain.ShortageDetails(err)), nil
}

func toPBLevels(levels []domain.StockLevel) []pb.StockLevel {
	out := make([]pb.StockLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, pb.StockLevel{ProductId: l.ProductID, Barcode: l.Barcode, Quantity: int64(l.Quantity)})
	}
	return out
}

func toPBDetails(details []domain.ShortageDetail) []pb.ShortageDetail {
	if len(details) == 0 {
		return nil
	}
	out := make([]pb.ShortageDetail, 0, len(details))
	for _, d := range details {
		out = append(out, pb.ShortageDetail{SkuId: d.SkuID, Available: int64(d.Available), Message: d.Message})
	}
	return out
}
