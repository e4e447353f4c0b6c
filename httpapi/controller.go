// Package httpapi exposes account and profile endpoints over fiber.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	auth "github.com/goliatone/go-storeauth"
	"github.com/goliatone/go-storeauth/middleware/jwtware"
)

// Accounts is the account surface used by the controller
type Accounts interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error)
	Profile(ctx context.Context, id string) (*auth.Identity, error)
	UpdateProfile(ctx context.Context, id string, req auth.UpdateProfileRequest) (*auth.Identity, error)
}

// HealthChecker reports store health
type HealthChecker interface {
	Ping(ctx context.Context) error
	CountUsers(ctx context.Context) (int, error)
}

// Response is the success envelope
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Routes holds the route paths, relative to the api prefix
type Routes struct {
	Prefix   string
	Register string
	Login    string
	Profile  string
	User     string
	Health   string
	Metrics  string
}

// Controller serves the account endpoints
type Controller struct {
	accounts      Accounts
	authenticator *auth.Authenticator
	health        HealthChecker
	metrics       http.Handler
	logger        auth.Logger
	routes        Routes
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(logger auth.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHealthChecker enables the health endpoint checks
func WithHealthChecker(h HealthChecker) Option {
	return func(c *Controller) {
		c.health = h
	}
}

// WithMetricsHandler mounts h on Routes.Metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(c *Controller) {
		c.metrics = h
	}
}

// WithRoutes overrides DefaultRoutes
func WithRoutes(routes Routes) Option {
	return func(c *Controller) {
		c.routes = routes
	}
}

// DefaultRoutes returns the default route table
func DefaultRoutes() Routes {
	return Routes{
		Prefix:   "/api",
		Register: "/auth/register",
		Login:    "/auth/login",
		Profile:  "/users/profile",
		User:     "/users/:id",
		Health:   "/health",
		Metrics:  "/metrics",
	}
}

// NewController returns a Controller
func NewController(accounts Accounts, authenticator *auth.Authenticator, opts ...Option) *Controller {
	c := &Controller{
		accounts:      accounts,
		authenticator: authenticator,
		logger:        noopLogger{},
		routes:        DefaultRoutes(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// NewApp returns a fiber app with the controller routes and error handler
func NewApp(c *Controller) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "storeauth",
		ErrorHandler:          c.ErrorHandler,
		DisableStartupMessage: true,
	})
	c.Register(app)
	return app
}

// Register mounts the routes on r
func (c *Controller) Register(r fiber.Router) {
	protect := jwtware.New(jwtware.Config{
		Authenticator: c.authenticator,
		ErrorHandler:  passthrough,
	})

	api := r.Group(c.routes.Prefix)
	api.Post(c.routes.Register, c.RegisterUser).Name("auth.register")
	api.Post(c.routes.Login, c.LoginUser).Name("auth.login")
	api.Get(c.routes.Health, c.Health).Name("health")

	api.Get(c.routes.Profile, protect, c.GetProfile).Name("profile.get")
	api.Put(c.routes.Profile, protect, c.UpdateProfile).Name("profile.update")
	api.Get(c.routes.User, protect,
		jwtware.RequireRolesWithHandler(passthrough, auth.RoleAdmin),
		c.GetUser,
	).Name("users.get")

	if c.metrics != nil {
		r.Get(c.routes.Metrics, adaptor.HTTPHandler(c.metrics)).Name("metrics")
	}
}

// RegisterUser creates a buyer or seller account
func (c *Controller) RegisterUser(ctx *fiber.Ctx) error {
	var req auth.RegisterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errInvalidBody(err)
	}

	session, err := c.accounts.Register(ctx.UserContext(), req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Message: "User registered successfully",
		Data:    session,
	})
}

// LoginUser exchanges credentials for a session
func (c *Controller) LoginUser(ctx *fiber.Ctx) error {
	var req auth.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errInvalidBody(err)
	}

	session, err := c.accounts.Login(ctx.UserContext(), req)
	if err != nil {
		return err
	}

	return ctx.JSON(Response{
		Success: true,
		Message: "Login successful",
		Data:    session,
	})
}

// GetProfile returns the caller's live profile
func (c *Controller) GetProfile(ctx *fiber.Ctx) error {
	identity, ok := jwtware.IdentityFromCtx(ctx)
	if !ok {
		return auth.ErrUnauthenticated
	}

	profile, err := c.accounts.Profile(ctx.UserContext(), identity.ID)
	if err != nil {
		return err
	}

	return ctx.JSON(Response{Success: true, Data: profile})
}

// UpdateProfile changes the caller's profile
func (c *Controller) UpdateProfile(ctx *fiber.Ctx) error {
	identity, ok := jwtware.IdentityFromCtx(ctx)
	if !ok {
		return auth.ErrUnauthenticated
	}

	var req auth.UpdateProfileRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errInvalidBody(err)
	}

	profile, err := c.accounts.UpdateProfile(ctx.UserContext(), identity.ID, req)
	if err != nil {
		return err
	}

	return ctx.JSON(Response{
		Success: true,
		Message: "Profile updated successfully",
		Data:    profile,
	})
}

// GetUser returns any user by id, admin only
func (c *Controller) GetUser(ctx *fiber.Ctx) error {
	profile, err := c.accounts.Profile(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(Response{Success: true, Data: profile})
}

// Health reports store reachability and the user count
func (c *Controller) Health(ctx *fiber.Ctx) error {
	if c.health == nil {
		return ctx.JSON(Response{Success: true, Message: "ok"})
	}

	if err := c.health.Ping(ctx.UserContext()); err != nil {
		c.logger.Error("health check failed", "error", err)
		return auth.ErrDependency.Wrap(err)
	}

	count, err := c.health.CountUsers(ctx.UserContext())
	if err != nil {
		c.logger.Error("health check failed", "error", err)
		return auth.ErrDependency.Wrap(err)
	}

	return ctx.JSON(Response{
		Success: true,
		Message: "ok",
		Data:    fiber.Map{"database": "ok", "users": count},
	})
}

// ErrorHandler renders every error returned by a handler
func (c *Controller) ErrorHandler(ctx *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return ctx.Status(fe.Code).JSON(jwtware.ErrorResponse{
			Success: false,
			Message: fe.Message,
		})
	}

	if status := auth.HTTPStatus(err); status >= fiber.StatusInternalServerError {
		c.logger.Error("request failed",
			"method", ctx.Method(),
			"path", ctx.Path(),
			"error", err,
		)
	}

	return jwtware.DefaultErrorHandler(ctx, err)
}

func passthrough(_ *fiber.Ctx, err error) error {
	return err
}

func errInvalidBody(err error) error {
	return auth.ErrValidation.WithMessage("invalid request body").Wrap(err)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
