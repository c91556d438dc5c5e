package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	InventoryService_ApplyMovement_FullMethodName      = "/inventory.v1.InventoryService/ApplyMovement"
	InventoryService_FetchLedgerStock_FullMethodName   = "/inventory.v1.InventoryService/FetchLedgerStock"
	InventoryService_EnsureAvailability_FullMethodName = "/inventory.v1.InventoryService/EnsureAvailability"
	InventoryService_ListStock_FullMethodName          = "/inventory.v1.InventoryService/ListStock"
	InventoryService_SubmitEvent_FullMethodName        = "/inventory.v1.InventoryService/SubmitEvent"
	InventoryService_WatchStock_FullMethodName         = "/inventory.v1.InventoryService/WatchStock"
)

type InventoryServiceClient interface {
	ApplyMovement(ctx context.Context, in *ApplyMovementRequest, opts ...grpc.CallOption) (*ApplyMovementResponse, error)
	FetchLedgerStock(ctx context.Context, in *FetchLedgerStockRequest, opts ...grpc.CallOption) (*FetchLedgerStockResponse, error)
	EnsureAvailability(ctx context.Context, in *EnsureAvailabilityRequest, opts ...grpc.CallOption) (*EnsureAvailabilityResponse, error)
	ListStock(ctx context.Context, in *ListStockRequest, opts ...grpc.CallOption) (*ListStockResponse, error)
	SubmitEvent(ctx context.Context, in *SubmitEventRequest, opts ...grpc.CallOption) (*SubmitEventResponse, error)
	WatchStock(ctx context.Context, in *WatchStockRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[StockUpdate], error)
}

type inventoryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryServiceClient(cc grpc.ClientConnInterface) InventoryServiceClient {
	return &inventoryServiceClient{cc}
}

func (c *inventoryServiceClient) ApplyMovement(ctx context.Context, in *ApplyMovementRequest, opts ...grpc.CallOption) (*ApplyMovementResponse, error) {
	out := new(ApplyMovementResponse)
	if err := c.cc.Invoke(ctx, InventoryService_ApplyMovement_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryServiceClient) FetchLedgerStock(ctx context.Context, in *FetchLedgerStockRequest, opts ...grpc.CallOption) (*FetchLedgerStockResponse, error) {
	out := new(FetchLedgerStockResponse)
	if err := c.cc.Invoke(ctx, InventoryService_FetchLedgerStock_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryServiceClient) EnsureAvailability(ctx context.Context, in *EnsureAvailabilityRequest, opts ...grpc.CallOption) (*EnsureAvailabilityResponse, error) {
	out := new(EnsureAvailabilityResponse)
	if err := c.cc.Invoke(ctx, InventoryService_EnsureAvailability_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryServiceClient) ListStock(ctx context.Context, in *ListStockRequest, opts ...grpc.CallOption) (*ListStockResponse, error) {
	out := new(ListStockResponse)
	if err := c.cc.Invoke(ctx, InventoryService_ListStock_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryServiceClient) SubmitEvent(ctx context.Context, in *SubmitEventRequest, opts ...grpc.CallOption) (*SubmitEventResponse, error) {
	out := new(SubmitEventResponse)
	if err := c.cc.Invoke(ctx, InventoryService_SubmitEvent_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryServiceClient) WatchStock(ctx context.Context, in *WatchStockRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[StockUpdate], error) {
	stream, err := c.cc.NewStream(ctx, &InventoryService_ServiceDesc.Streams[0], InventoryService_WatchStock_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchStockRequest, StockUpdate]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// InventoryServiceServer is the server API for InventoryService.
// Implementations must embed UnimplementedInventoryServiceServer.
type InventoryServiceServer interface {
	ApplyMovement(context.Context, *ApplyMovementRequest) (*ApplyMovementResponse, error)
	FetchLedgerStock(context.Context, *FetchLedgerStockRequest) (*FetchLedgerStockResponse, error)
	EnsureAvailability(context.Context, *EnsureAvailabilityRequest) (*EnsureAvailabilityResponse, error)
	ListStock(context.Context, *ListStockRequest) (*ListStockResponse, error)
	SubmitEvent(context.Context, *SubmitEventRequest) (*SubmitEventResponse, error)
	WatchStock(*WatchStockRequest, grpc.ServerStreamingServer[StockUpdate]) error
	mustEmbedUnimplementedInventoryServiceServer()
}

type UnimplementedInventoryServiceServer struct{}

func (UnimplementedInventoryServiceServer) ApplyMovement(context.Context, *ApplyMovementRequest) (*ApplyMovementResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ApplyMovement not implemented")
}
func (UnimplementedInventoryServiceServer) FetchLedgerStock(context.Context, *FetchLedgerStockRequest) (*FetchLedgerStockResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method FetchLedgerStock not implemented")
}
func (UnimplementedInventoryServiceServer) EnsureAvailability(context.Context, *EnsureAvailabilityRequest) (*EnsureAvailabilityResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method EnsureAvailability not implemented")
}
func (UnimplementedInventoryServiceServer) ListStock(context.Context, *ListStockRequest) (*ListStockResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListStock not implemented")
}
func (UnimplementedInventoryServiceServer) SubmitEvent(context.Context, *SubmitEventRequest) (*SubmitEventResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SubmitEvent not implemented")
}
func (UnimplementedInventoryServiceServer) WatchStock(*WatchStockRequest, grpc.ServerStreamingServer[StockUpdate]) error {
	return status.Errorf(codes.Unimplemented, "method WatchStock not implemented")
}
func (UnimplementedInventoryServiceServer) mustEmbedUnimplementedInventoryServiceServer() {}

func RegisterInventoryServiceServer(s grpc.ServiceRegistrar, srv InventoryServiceServer) {
	s.RegisterService(&InventoryService_ServiceDesc, srv)
}

func _InventoryService_ApplyMovement_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ApplyMovementRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).ApplyMovement(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryService_ApplyMovement_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InventoryServiceServer).ApplyMovement(ctx, req.(*ApplyMovementRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _InventoryService_FetchLedgerStock_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(FetchLedgerStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).FetchLedgerStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryService_FetchLedgerStock_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InventoryServiceServer).FetchLedgerStock(ctx, req.(*FetchLedgerStockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _InventoryService_EnsureAvailability_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(EnsureAvailabilityRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).EnsureAvailability(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryService_EnsureAvailability_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InventoryServiceServer).EnsureAvailability(ctx, req.(*EnsureAvailabilityRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _InventoryService_ListStock_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).ListStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryService_ListStock_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InventoryServiceServer).ListStock(ctx, req.(*ListStockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _InventoryService_SubmitEvent_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SubmitEventRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).SubmitEvent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryService_SubmitEvent_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InventoryServiceServer).SubmitEvent(ctx, req.(*SubmitEventRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _InventoryService_WatchStock_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(WatchStockRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(InventoryServiceServer).WatchStock(m, &grpc.GenericServerStream[WatchStockRequest, StockUpdate]{ServerStream: stream})
}

var InventoryService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "inventory.v1.InventoryService",
	HandlerType: (*InventoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ApplyMovement", Handler: _InventoryService_ApplyMovement_Handler},
		{MethodName: "FetchLedgerStock", Handler: _InventoryService_FetchLedgerStock_Handler},
		{MethodName: "EnsureAvailability", Handler: _InventoryService_EnsureAvailability_Handler},
		{MethodName: "ListStock", Handler: _InventoryService_ListStock_Handler},
		{MethodName: "SubmitEvent", Handler: _InventoryService_SubmitEvent_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchStock",
			Handler:       _InventoryService_WatchStock_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "inventory/v1/inventory.proto",
}
