package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storeauth"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvSigningKey, EnvLegacySigningKey, EnvDatabaseDSN, EnvHTTPAddr, EnvGRPCAddr} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storeauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.ErrorIs(t, cfg.Validate(), auth.ErrMissingSigningKey)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
signing-key: from-file
token-lifetime: 30m
audience:
  - storefront
http-addr: ":8080"
resolve-identity: false
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.SigningKey)
	assert.Equal(t, 30*time.Minute, cfg.TokenLifetime)
	assert.Equal(t, []string{"storefront"}, cfg.Audience)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.False(t, cfg.ResolveIdentity)
	assert.Equal(t, "ID", cfg.PhoneRegion)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "signing-key: from-file\n")

	t.Setenv(EnvSigningKey, "from-env")
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SigningKey)
}

func TestLoadLegacySecret(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLegacySigningKey, "legacy")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.SigningKey)

	t.Setenv(EnvSigningKey, "preferred")
	cfg, err = Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "preferred", cfg.SigningKey)
}

func TestLoadFlagsOverrideEverything(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "signing-key: from-file\nhttp-addr: \":8080\"\n")
	t.Setenv(EnvSigningKey, "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--signing-key=from-flag", "--token-lifetime=5m"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.SigningKey)
	assert.Equal(t, 5*time.Minute, cfg.TokenLifetime)
	// unchanged flags do not clobber the file
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.SigningKey = "secret"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"lifetime", func(c *Config) { c.TokenLifetime = 0 }},
		{"http addr", func(c *Config) { c.HTTPAddr = "" }},
		{"dsn", func(c *Config) { c.DatabaseDSN = "" }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestTokenOptions(t *testing.T) {
	cfg := Default()
	cfg.SigningKey = "secret"
	cfg.Audience = []string{"storefront"}

	tokens, err := auth.NewTokenService([]byte(cfg.SigningKey), cfg.TokenOptions()...)
	require.NoError(t, err)
	assert.Equal(t, cfg.TokenLifetime, tokens.Lifetime())
}
