package operator

import (
	"context"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "trackguard.v1.OperatorService"

// Full method names.
const (
	GetStateMethod      = "/" + ServiceName + "/GetState"
	ListHistoryMethod   = "/" + ServiceName + "/ListHistory"
	ShowOnMapMethod     = "/" + ServiceName + "/ShowOnMap"
	SelectHistoryMethod = "/" + ServiceName + "/SelectHistory"
	ClearHistoryMethod  = "/" + ServiceName + "/ClearHistory"
	DismissMethod       = "/" + ServiceName + "/Dismiss"
	GetOverlaysMethod   = "/" + ServiceName + "/GetOverlays"
)

// OperatorServer is the server side of the operator API. State responses
// are Structs with "alert", "selectedHistoryId" and "position" fields;
// ListHistory answers with an "entries" list and GetOverlays with a GeoJSON
// feature collection.
type OperatorServer interface {
	GetState(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	ListHistory(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error)
	ShowOnMap(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	SelectHistory(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	ClearHistory(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	Dismiss(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	GetOverlays(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes the operator API for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Service descriptors are package level by convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OperatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetState", Handler: unaryHandler(GetStateMethod, OperatorServer.GetState)},
		{MethodName: "ListHistory", Handler: unaryHandler(ListHistoryMethod, OperatorServer.ListHistory)},
		{MethodName: "ShowOnMap", Handler: unaryHandler(ShowOnMapMethod, OperatorServer.ShowOnMap)},
		{MethodName: "SelectHistory", Handler: unaryHandler(SelectHistoryMethod, OperatorServer.SelectHistory)},
		{MethodName: "ClearHistory", Handler: unaryHandler(ClearHistoryMethod, OperatorServer.ClearHistory)},
		{MethodName: "Dismiss", Handler: unaryHandler(DismissMethod, OperatorServer.Dismiss)},
		{MethodName: "GetOverlays", Handler: unaryHandler(GetOverlaysMethod, OperatorServer.GetOverlays)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trackguard/v1/operator",
}

// RegisterOperatorServer registers srv on s.
func RegisterOperatorServer(s grpc.ServiceRegistrar, srv OperatorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unaryHandler adapts a typed method to grpc.MethodHandler.
func unaryHandler[Req, Resp any](
	fullMethod string,
	call func(OperatorServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(OperatorServer)

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed, _ := req.(*Req)

			return call(server, ctx, typed)
		}

		return interceptor(ctx, in, info, handler)
	}
}

// OperatorClient is the client side of the operator API. It decodes the
// response structs into typed views.
type OperatorClient struct {
	cc grpc.ClientConnInterface
}

// NewOperatorClient creates a client on cc.
func NewOperatorClient(cc grpc.ClientConnInterface) *OperatorClient {
	return &OperatorClient{cc: cc}
}

// GetState calls OperatorService.GetState.
func (c *OperatorClient) GetState(ctx context.Context, opts ...grpc.CallOption) (*StateResponse, error) {
	return c.state(ctx, GetStateMethod, new(emptypb.Empty), opts)
}

// ListHistory calls OperatorService.ListHistory. A limit of zero lists every entry.
func (c *OperatorClient) ListHistory(ctx context.Context, limit int, opts ...grpc.CallOption) (*ListHistoryResponse, error) {
	limit = min(limit, math.MaxInt32)

	out, err := invoke(ctx, c.cc, ListHistoryMethod, wrapperspb.Int32(int32(limit)), opts) //nolint:gosec // Clamped above.
	if err != nil {
		return nil, err
	}

	return fromProtoHistory(out)
}

// ShowOnMap calls OperatorService.ShowOnMap.
func (c *OperatorClient) ShowOnMap(ctx context.Context, opts ...grpc.CallOption) (*StateResponse, error) {
	return c.state(ctx, ShowOnMapMethod, new(emptypb.Empty), opts)
}

// SelectHistory calls OperatorService.SelectHistory.
func (c *OperatorClient) SelectHistory(ctx context.Context, id string, opts ...grpc.CallOption) (*StateResponse, error) {
	return c.state(ctx, SelectHistoryMethod, wrapperspb.String(id), opts)
}

// ClearHistory calls OperatorService.ClearHistory.
func (c *OperatorClient) ClearHistory(ctx context.Context, opts ...grpc.CallOption) (*StateResponse, error) {
	return c.state(ctx, ClearHistoryMethod, new(emptypb.Empty), opts)
}

// Dismiss calls OperatorService.Dismiss.
func (c *OperatorClient) Dismiss(ctx context.Context, opts ...grpc.CallOption) (*StateResponse, error) {
	return c.state(ctx, DismissMethod, new(emptypb.Empty), opts)
}

// GetOverlays calls OperatorService.GetOverlays.
func (c *OperatorClient) GetOverlays(ctx context.Context, opts ...grpc.CallOption) (*OverlaysResponse, error) {
	out, err := invoke(ctx, c.cc, GetOverlaysMethod, new(emptypb.Empty), opts)
	if err != nil {
		return nil, err
	}

	return fromProtoOverlays(out)
}

func (c *OperatorClient) state(ctx context.Context, method string, req any, opts []grpc.CallOption) (*StateResponse, error) {
	out, err := invoke(ctx, c.cc, method, req, opts)
	if err != nil {
		return nil, err
	}

	return fromProtoState(out)
}

func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
