// Package grpcauth authenticates gRPC calls with the same Authenticator
// used by the HTTP middleware. The token travels in the "authorization"
// metadata entry as "<scheme> <token>".
package grpcauth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	auth "github.com/goliatone/go-storeauth"
)

// MetadataKey is the metadata entry carrying the credential
const MetadataKey = "authorization"

// Interceptor builds unary and stream interceptors around an Authenticator
type Interceptor struct {
	authenticator *auth.Authenticator
	public        map[string]struct{}
	roles         map[string]*auth.RoleGuard
}

// Option configures an Interceptor
type Option func(*Interceptor)

// WithPublicMethods lists full method names that skip authentication
func WithPublicMethods(methods ...string) Option {
	return func(i *Interceptor) {
		for _, m := range methods {
			i.public[m] = struct{}{}
		}
	}
}

// WithMethodRoles restricts a full method name to the given roles
func WithMethodRoles(method string, roles ...auth.Role) Option {
	return func(i *Interceptor) {
		i.roles[method] = auth.NewRoleGuard(roles...)
	}
}

// New returns an Interceptor for authenticator
func New(authenticator *auth.Authenticator, opts ...Option) *Interceptor {
	if authenticator == nil {
		panic("AUTH: grpc interceptor configuration: Authenticator is required.")
	}
	i := &Interceptor{
		authenticator: authenticator,
		public:        map[string]struct{}{},
		roles:         map[string]*auth.RoleGuard{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// Unary returns the unary server interceptor
func (i *Interceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := i.authorize(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// Stream returns the stream server interceptor
func (i *Interceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := i.authorize(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

func (i *Interceptor) authorize(ctx context.Context, method string) (context.Context, error) {
	if _, ok := i.public[method]; ok {
		return ctx, nil
	}

	result := i.authenticator.Authenticate(ctx, authorizationFromMetadata(ctx))
	if !result.Authenticated() {
		return ctx, StatusFromError(result.Err)
	}

	if guard, ok := i.roles[method]; ok {
		if err := guard.Authorize(result.Identity); err != nil {
			return ctx, StatusFromError(err)
		}
	}

	return result.Context(ctx), nil
}

func authorizationFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(MetadataKey)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// StatusFromError maps a typed auth error to a gRPC status
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	richErr := auth.AsError(err)

	var code codes.Code
	switch richErr.Category {
	case auth.CategoryAuth:
		code = codes.Unauthenticated
	case auth.CategoryAuthz:
		code = codes.PermissionDenied
	case auth.CategoryValidation:
		code = codes.InvalidArgument
	case auth.CategoryNotFound:
		code = codes.NotFound
	case auth.CategoryDependency:
		code = codes.Unavailable
	default:
		return status.Error(codes.Internal, auth.ErrInternal.Message)
	}
	return status.Error(code, richErr.Message)
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
