package auth

import (
	"context"
	"errors"
	"strings"
)

// DefaultAuthScheme is the Authorization header scheme
const DefaultAuthScheme = "Bearer"

// FailureKind names the step at which request authentication stopped
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureMissingToken FailureKind = "missing_token"
	FailureInvalidToken FailureKind = "invalid_token"
	FailureDependency   FailureKind = "dependency"
)

// AuthResult is the outcome of evaluating one request. It is Authenticated
// when Failure is FailureNone; otherwise Err holds the typed rejection with
// the underlying cause in its chain.
type AuthResult struct {
	Identity *Identity
	Claims   *Claims
	Failure  FailureKind
	Err      error
}

// Authenticated reports whether the request carried an acceptable token
func (r AuthResult) Authenticated() bool {
	return r.Failure == FailureNone && r.Identity != nil
}

// Operation is downstream work run with an authenticated context
type Operation func(ctx context.Context) error

// Authenticator runs the per-request extract, verify, resolve sequence.
// It holds no per-request state and is safe for concurrent use.
type Authenticator struct {
	validator    TokenValidator
	resolver     *IdentityResolver
	scheme       string
	logger       Logger
	activitySink ActivitySink
}

// AuthenticatorOption configures an Authenticator
type AuthenticatorOption func(*Authenticator)

// WithIdentityResolver re-resolves the subject on every request instead of
// trusting the claims.
func WithIdentityResolver(resolver *IdentityResolver) AuthenticatorOption {
	return func(a *Authenticator) {
		a.resolver = resolver
	}
}

// WithAuthScheme overrides DefaultAuthScheme
func WithAuthScheme(scheme string) AuthenticatorOption {
	return func(a *Authenticator) {
		if s := strings.TrimSpace(scheme); s != "" {
			a.scheme = s
		}
	}
}

// WithAuthenticatorLogger sets the logger
func WithAuthenticatorLogger(logger Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		a.logger = normalizeLogger(logger)
	}
}

// WithAuthenticatorActivitySink records rejected requests
func WithAuthenticatorActivitySink(sink ActivitySink) AuthenticatorOption {
	return func(a *Authenticator) {
		a.activitySink = normalizeActivitySink(sink)
	}
}

// NewAuthenticator returns an Authenticator using validator for tokens
func NewAuthenticator(validator TokenValidator, opts ...AuthenticatorOption) *Authenticator {
	if validator == nil {
		panic("AUTH: authenticator configuration: TokenValidator is required.")
	}

	a := &Authenticator{
		validator:    validator,
		scheme:       DefaultAuthScheme,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Scheme returns the configured auth scheme
func (a *Authenticator) Scheme() string {
	return a.scheme
}

// ResolvesIdentity reports whether identities are re-read from the store
func (a *Authenticator) ResolvesIdentity() bool {
	return a.resolver != nil
}

// ExtractToken returns the token from an "<scheme> <token>" header value
func ExtractToken(header, scheme string) (string, bool) {
	header = strings.TrimSpace(header)
	l := len(scheme)
	if l == 0 || len(header) <= l+1 {
		return "", false
	}
	if !strings.EqualFold(header[:l], scheme) || header[l] != ' ' {
		return "", false
	}
	token := strings.TrimSpace(header[l+1:])
	if token == "" {
		return "", false
	}
	return token, true
}

// Authenticate evaluates the Authorization header value of a request
func (a *Authenticator) Authenticate(ctx context.Context, authorization string) AuthResult {
	token, ok := ExtractToken(authorization, a.scheme)
	if !ok {
		return a.reject(ctx, FailureMissingToken, ErrMissingToken)
	}
	return a.AuthenticateToken(ctx, token)
}

// AuthenticateToken evaluates an already extracted raw token
func (a *Authenticator) AuthenticateToken(ctx context.Context, token string) AuthResult {
	if token == "" {
		return a.reject(ctx, FailureMissingToken, ErrMissingToken)
	}

	claims, err := a.validator.Validate(token)
	if err != nil {
		return a.reject(ctx, FailureInvalidToken, ErrInvalidToken.Wrap(err))
	}

	identity := claims.Identity()
	if a.resolver != nil {
		identity, err = a.resolver.Resolve(ctx, claims)
		if err != nil {
			if errors.Is(err, ErrDependency) {
				a.logger.Error("identity lookup failed", "subject", claims.UserID(), "error", err)
				return AuthResult{Claims: claims, Failure: FailureDependency, Err: err}
			}
			return a.reject(ctx, FailureInvalidToken, ErrInvalidToken.Wrap(err))
		}
	}

	return AuthResult{Identity: identity, Claims: claims}
}

// Protect returns an operation that authenticates the request, applies
// guard when non nil, and then runs next with the identity in context.
// The result of next is returned untouched.
func (a *Authenticator) Protect(guard *RoleGuard, next Operation) func(ctx context.Context, authorization string) error {
	return func(ctx context.Context, authorization string) error {
		result := a.Authenticate(ctx, authorization)
		if !result.Authenticated() {
			return result.Err
		}

		if guard != nil {
			if err := guard.Authorize(result.Identity); err != nil {
				a.logger.Info("authorization rejected",
					"subject", result.Identity.ID,
					"role", string(result.Identity.Role),
					"allowed", guard.Roles(),
				)
				return err
			}
		}

		return next(result.Context(ctx))
	}
}

// Context returns ctx carrying the result identity and claims
func (r AuthResult) Context(ctx context.Context) context.Context {
	if r.Identity != nil {
		ctx = WithIdentity(ctx, r.Identity)
	}
	if r.Claims != nil {
		ctx = WithClaimsContext(ctx, r.Claims)
	}
	return ctx
}

func (a *Authenticator) reject(ctx context.Context, kind FailureKind, err *Error) AuthResult {
	reason := err.TextCode
	var cause *Error
	if errors.As(err.Source, &cause) {
		reason = cause.TextCode
	}

	a.logger.Info("authentication rejected", "failure", string(kind), "reason", reason)
	emit(ctx, a.activitySink, a.logger, ActivityEvent{
		EventType: ActivityEventAuthRejected,
		Metadata: map[string]any{
			"failure": string(kind),
			"reason":  reason,
		},
	})

	return AuthResult{Failure: kind, Err: err}
}
