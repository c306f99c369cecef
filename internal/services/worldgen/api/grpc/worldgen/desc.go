package worldgen

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "worldgen.v1.WorldService"

const (
	generateMethod = "/" + ServiceName + "/Generate"
	getChunkMethod = "/" + ServiceName + "/GetChunk"
)

// WorldServiceServer is the server API for the world service. Requests and
// responses are well-known protobuf types so no generated code is needed.
type WorldServiceServer interface {
	Generate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetChunk(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
}

// RegisterWorldServiceServer registers srv on s.
func RegisterWorldServiceServer(s grpc.ServiceRegistrar, srv WorldServiceServer) {
	s.RegisterService(&WorldServiceDesc, srv)
}

// WorldServiceDesc describes the world service for grpc.ServiceRegistrar.
var WorldServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WorldServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: generateHandler},
		{MethodName: "GetChunk", Handler: getChunkHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "worldgen/v1/world.proto",
}

func generateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorldServiceServer).Generate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: generateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WorldServiceServer).Generate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getChunkHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorldServiceServer).GetChunk(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getChunkMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WorldServiceServer).GetChunk(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the world service over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a world service client.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Generate calls WorldService.Generate.
func (c *Client) Generate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, generateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetChunk calls WorldService.GetChunk.
func (c *Client) GetChunk(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, getChunkMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
