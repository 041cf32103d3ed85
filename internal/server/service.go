// gRPC service descriptor and client for metastore.MetadataService.
// Requests and responses are google.protobuf.Struct messages.

package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// MetadataServiceName is the fully qualified gRPC service name
const MetadataServiceName = "metastore.MetadataService"

// Method names of MetadataService
const (
	MethodSetProperties  = "SetProperties"
	MethodGetMetadata    = "GetMetadata"
	MethodRemoveMetadata = "RemoveMetadata"
	MethodAddTags        = "AddTags"
	MethodRemoveTags     = "RemoveTags"
	MethodSearch         = "Search"
	MethodHealth         = "Health"
)

// FullMethod returns the gRPC path of a MetadataService method
func FullMethod(method string) string {
	return "/" + MetadataServiceName + "/" + method
}

// MetadataServiceServer is the server API for MetadataService
type MetadataServiceServer interface {
	SetProperties(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMetadata(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveMetadata(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddTags(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveTags(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Search(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(MetadataServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MetadataServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(MetadataServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// MetadataServiceDesc is the grpc.ServiceDesc for MetadataService
var MetadataServiceDesc = grpc.ServiceDesc{
	ServiceName: MetadataServiceName,
	HandlerType: (*MetadataServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodSetProperties, Handler: unaryHandler(MethodSetProperties, MetadataServiceServer.SetProperties)},
		{MethodName: MethodGetMetadata, Handler: unaryHandler(MethodGetMetadata, MetadataServiceServer.GetMetadata)},
		{MethodName: MethodRemoveMetadata, Handler: unaryHandler(MethodRemoveMetadata, MetadataServiceServer.RemoveMetadata)},
		{MethodName: MethodAddTags, Handler: unaryHandler(MethodAddTags, MetadataServiceServer.AddTags)},
		{MethodName: MethodRemoveTags, Handler: unaryHandler(MethodRemoveTags, MetadataServiceServer.RemoveTags)},
		{MethodName: MethodSearch, Handler: unaryHandler(MethodSearch, MetadataServiceServer.Search)},
		{MethodName: MethodHealth, Handler: unaryHandler(MethodHealth, MetadataServiceServer.Health)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "metastore/metadata.proto",
}

// RegisterMetadataServiceServer registers srv on s
func RegisterMetadataServiceServer(s grpc.ServiceRegistrar, srv MetadataServiceServer) {
	s.RegisterService(&MetadataServiceDesc, srv)
}

// MetadataServiceClient is the client API for MetadataService
type MetadataServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMetadataServiceClient creates a client on an existing connection
func NewMetadataServiceClient(cc grpc.ClientConnInterface) *MetadataServiceClient {
	return &MetadataServiceClient{cc: cc}
}

func (c *MetadataServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MetadataServiceClient) SetProperties(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSetProperties, in, opts...)
}

func (c *MetadataServiceClient) GetMetadata(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetMetadata, in, opts...)
}

func (c *MetadataServiceClient) RemoveMetadata(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRemoveMetadata, in, opts...)
}

func (c *MetadataServiceClient) AddTags(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodAddTags, in, opts...)
}

func (c *MetadataServiceClient) RemoveTags(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRemoveTags, in, opts...)
}

func (c *MetadataServiceClient) Search(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSearch, in, opts...)
}

func (c *MetadataServiceClient) Health(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodHealth, in, opts...)
}
