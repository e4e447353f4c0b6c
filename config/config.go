// Package config loads storeauth settings from defaults, an optional yaml
// file, the environment and command line flags, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	auth "github.com/goliatone/go-storeauth"
)

// Environment variables read by Load
const (
	EnvSigningKey       = "STOREAUTH_SIGNING_KEY"
	EnvLegacySigningKey = "JWT_SECRET"
	EnvDatabaseDSN      = "STOREAUTH_DATABASE_DSN"
	EnvHTTPAddr         = "STOREAUTH_HTTP_ADDR"
	EnvGRPCAddr         = "STOREAUTH_GRPC_ADDR"
)

// Config is the runtime configuration of the service
type Config struct {
	SigningKey      string        `koanf:"signing-key"`
	TokenLifetime   time.Duration `koanf:"token-lifetime"`
	Issuer          string        `koanf:"issuer"`
	Audience        []string      `koanf:"audience"`
	AuthScheme      string        `koanf:"auth-scheme"`
	HTTPAddr        string        `koanf:"http-addr"`
	GRPCAddr        string        `koanf:"grpc-addr"`
	DatabaseDSN     string        `koanf:"database-dsn"`
	ResolveIdentity bool          `koanf:"resolve-identity"`
	BcryptCost      int           `koanf:"bcrypt-cost"`
	PhoneRegion     string        `koanf:"phone-region"`
	LogFormat       string        `koanf:"log-format"`
	LogLevel        string        `koanf:"log-level"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		TokenLifetime:   auth.DefaultTokenLifetime,
		Issuer:          "storeauth",
		AuthScheme:      auth.DefaultAuthScheme,
		HTTPAddr:        ":5000",
		DatabaseDSN:     "file:storeauth.db?cache=shared",
		ResolveIdentity: true,
		BcryptCost:      auth.DefaultPasswordCost,
		PhoneRegion:     "ID",
		LogFormat:       "json",
		LogLevel:        "info",
	}
}

// BindFlags registers every setting on fs with Default values
func BindFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String("signing-key", def.SigningKey, "HMAC key used to sign access tokens")
	fs.Duration("token-lifetime", def.TokenLifetime, "access token lifetime")
	fs.String("issuer", def.Issuer, "token issuer claim (empty = not enforced)")
	fs.StringSlice("audience", def.Audience, "token audience claims (empty = not enforced)")
	fs.String("auth-scheme", def.AuthScheme, "Authorization header scheme")
	fs.String("http-addr", def.HTTPAddr, "HTTP listen address")
	fs.String("grpc-addr", def.GRPCAddr, "gRPC listen address (empty = disabled)")
	fs.String("database-dsn", def.DatabaseDSN, "sqlite data source name")
	fs.Bool("resolve-identity", def.ResolveIdentity, "re-read the user record on every authenticated request")
	fs.Int("bcrypt-cost", def.BcryptCost, "bcrypt work factor")
	fs.String("phone-region", def.PhoneRegion, "default region for phone numbers without country code")
	fs.String("log-format", def.LogFormat, "log format (json or text)")
	fs.String("log-level", def.LogLevel, "log level (debug, info, warn, error)")
}

// Load builds a Config. path and flags are optional.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	loadEnv(k)

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.SigningKey = strings.TrimSpace(cfg.SigningKey)
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	return cfg, nil
}

func loadEnv(k *koanf.Koanf) {
	if v := os.Getenv(EnvLegacySigningKey); v != "" {
		_ = k.Set("signing-key", v)
	}
	if v := os.Getenv(EnvSigningKey); v != "" {
		_ = k.Set("signing-key", v)
	}
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		_ = k.Set("database-dsn", v)
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		_ = k.Set("http-addr", v)
	}
	if v := os.Getenv(EnvGRPCAddr); v != "" {
		_ = k.Set("grpc-addr", v)
	}
}

// Validate checks that the configuration can start the service
func (c Config) Validate() error {
	if c.SigningKey == "" {
		return auth.ErrMissingSigningKey
	}
	if c.TokenLifetime <= 0 {
		return fmt.Errorf("token-lifetime must be positive, got %s", c.TokenLifetime)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http-addr is required")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database-dsn is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	return nil
}

// TokenOptions returns the auth.TokenService options for c
func (c Config) TokenOptions() []auth.TokenOption {
	opts := []auth.TokenOption{auth.WithTokenLifetime(c.TokenLifetime)}
	if c.Issuer != "" {
		opts = append(opts, auth.WithIssuer(c.Issuer))
	}
	if len(c.Audience) > 0 {
		opts = append(opts, auth.WithAudience(c.Audience...))
	}
	return opts
}
