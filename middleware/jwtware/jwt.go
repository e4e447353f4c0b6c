package jwtware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	auth "github.com/goliatone/go-storeauth"
)

var defaultTokenLookup = "header:" + fiber.HeaderAuthorization

// Config configures the fiber authentication middleware
type Config struct {
	// Authenticator runs token verification and identity resolution. Required.
	Authenticator *auth.Authenticator
	// Filter skips the middleware when it returns true
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	// ContextKey is the Locals key for the identity. Defaults to "user".
	ContextKey string
	// ClaimsKey is the Locals key for the verified claims. Defaults to "claims".
	ClaimsKey string
	// TokenLookup is a comma separated list of "<source>:<name>" pairs,
	// e.g. "header:Authorization,cookie:jwt". Sources are header, cookie
	// and query.
	TokenLookup string
	// AllowedRoles, when set, rejects identities outside the set with 403
	AllowedRoles []auth.Role
}

// New returns a handler that authenticates the request and stores the
// identity in Locals and in the request user context.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	var guard *auth.RoleGuard
	if len(cfg.AllowedRoles) > 0 {
		guard = auth.NewRoleGuard(cfg.AllowedRoles...)
	}

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		ctx := c.UserContext()
		result := cfg.Authenticator.AuthenticateToken(ctx, ExtractRawToken(c, extractors))
		if !result.Authenticated() {
			return cfg.ErrorHandler(c, result.Err)
		}

		if guard != nil {
			if err := guard.Authorize(result.Identity); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		c.Locals(cfg.ContextKey, result.Identity)
		c.Locals(cfg.ClaimsKey, result.Claims)
		c.SetUserContext(result.Context(ctx))

		return cfg.SuccessHandler(c)
	}
}

// RequireRoles rejects requests whose authenticated identity is not in
// roles. It must be mounted after New.
func RequireRoles(roles ...auth.Role) fiber.Handler {
	return RequireRolesWithHandler(DefaultErrorHandler, roles...)
}

// RequireRolesWithHandler is RequireRoles with a custom error handler
func RequireRolesWithHandler(handler fiber.ErrorHandler, roles ...auth.Role) fiber.Handler {
	if handler == nil {
		handler = DefaultErrorHandler
	}
	guard := auth.NewRoleGuard(roles...)
	return func(c *fiber.Ctx) error {
		identity, _ := IdentityFromCtx(c)
		if err := guard.Authorize(identity); err != nil {
			return handler(c, err)
		}
		return c.Next()
	}
}

// IdentityFromCtx returns the identity stored by New
func IdentityFromCtx(c *fiber.Ctx) (*auth.Identity, bool) {
	return auth.IdentityFromContext(c.UserContext())
}

// ClaimsFromCtx returns the claims stored by New
func ClaimsFromCtx(c *fiber.Ctx) (*auth.Claims, bool) {
	return auth.GetClaims(c.UserContext())
}

// ErrorResponse is the JSON body written for rejected requests
type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// NewErrorResponse builds the response body for err. Internal failures
// never expose their cause.
func NewErrorResponse(err error) (int, ErrorResponse) {
	richErr := auth.AsError(err)
	status := auth.HTTPStatus(richErr)
	message := richErr.Message
	if status >= fiber.StatusInternalServerError && richErr.Category == auth.CategoryInternal {
		message = auth.ErrInternal.Message
	}
	return status, ErrorResponse{
		Success: false,
		Message: message,
		Code:    richErr.TextCode,
		Fields:  richErr.Fields,
	}
}

// DefaultErrorHandler writes err as an ErrorResponse
func DefaultErrorHandler(c *fiber.Ctx, err error) error {
	status, body := NewErrorResponse(err)
	if status == fiber.StatusUnauthorized {
		c.Set(fiber.HeaderWWWAuthenticate, auth.DefaultAuthScheme)
	}
	return c.Status(status).JSON(body)
}

// GetDefaultConfig fills unset fields of config
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Authenticator == nil {
		panic("AUTH: JWT middleware configuration: Authenticator is required.")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.ClaimsKey == "" {
		cfg.ClaimsKey = "claims"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.Authenticator.Scheme())
}

// JWTExtractor pulls a raw token from the request, or "" when absent
type JWTExtractor func(c *fiber.Ctx) string

// ExtractRawToken returns the first token found by extractors
func ExtractRawToken(c *fiber.Ctx, extractors []JWTExtractor) string {
	for _, extractor := range extractors {
		if raw := extractor(c); raw != "" {
			return raw
		}
	}
	return ""
}

// GetExtractors parses a TokenLookup definition
func GetExtractors(tokenLookup string, authScheme string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	// header:Authorization,cookie:jwt,query:auth_token
	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if name == "" {
			continue
		}

		switch source {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

func jwtFromHeader(header, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) string {
		token, _ := auth.ExtractToken(c.Get(header), authScheme)
		return token
	}
}

func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) string {
		return strings.TrimSpace(c.Query(param))
	}
}

func jwtFromCookie(name string) JWTExtractor {
	return func(c *fiber.Ctx) string {
		return strings.TrimSpace(c.Cookies(name))
	}
}
