package grpcauth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	auth "github.com/goliatone/go-storeauth"
)

const (
	// IdentityServiceName is the fully qualified identity service name
	IdentityServiceName = "storeauth.v1.Identity"
	// WhoAmIFullMethodName returns the identity attached to the call
	WhoAmIFullMethodName = "/storeauth.v1.Identity/WhoAmI"
)

// IdentityServer reports the caller resolved by the interceptor
type IdentityServer interface {
	WhoAmI(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

type identityServer struct{}

// NewIdentityServer returns the default IdentityServer. It must run
// behind the Interceptor; a call without an identity is Unauthenticated.
func NewIdentityServer() IdentityServer {
	return identityServer{}
}

func (identityServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, StatusFromError(auth.ErrUnauthenticated)
	}
	return structpb.NewStruct(map[string]any{
		"id":    identity.ID,
		"name":  identity.Name,
		"email": identity.Email,
		"role":  string(identity.Role),
	})
}

// IdentityServiceDesc describes the identity service for grpc.Server
var IdentityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "WhoAmI",
			Handler:    whoAmIHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterIdentityServer registers srv on s
func RegisterIdentityServer(s grpc.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&IdentityServiceDesc, srv)
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: WhoAmIFullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// WhoAmI calls the identity service over cc
func WhoAmI(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, WhoAmIFullMethodName, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
