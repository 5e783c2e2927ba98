package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ACCOUNTS_AUTH_JWT_SECRET", "0123456789abcdef")

	cfg, err := load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "data/accounts.db", cfg.Database.Path)
	assert.Equal(t, time.Duration(0), cfg.Auth.TokenTTL)
	assert.Equal(t, 8, cfg.Auth.MinPasswordLength)
	assert.Equal(t, "bcrypt", cfg.Auth.PasswordHasher)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TokenCacheTTL)
	assert.Empty(t, cfg.Storage.Bucket)
	assert.Equal(t, "accounts", cfg.Storage.KeyPrefix)
	assert.Equal(t, int64(2<<20), cfg.Storage.MaxAvatarBytes)
	assert.Equal(t, 15*time.Minute, cfg.Storage.URLTTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ACCOUNTS_AUTH_JWT_SECRET", "0123456789abcdef")
	t.Setenv("ACCOUNTS_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("ACCOUNTS_AUTH_TOKEN_TTL", "2h")
	t.Setenv("ACCOUNTS_AUTH_MIN_PASSWORD_LENGTH", "12")
	t.Setenv("ACCOUNTS_AUTH_PASSWORD_HASHER", "argon2id")
	t.Setenv("ACCOUNTS_REDIS_ADDR", "localhost:6379")
	t.Setenv("ACCOUNTS_REDIS_DB", "3")
	t.Setenv("ACCOUNTS_STORAGE_BUCKET", "avatars")

	cfg, err := load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 12, cfg.Auth.MinPasswordLength)
	assert.Equal(t, "argon2id", cfg.Auth.PasswordHasher)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "avatars", cfg.Storage.Bucket)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
database:
  path: /var/lib/accounts/db.sqlite
auth:
  jwt_secret: from-file-secret-value
  token_ttl: 30m
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, err := load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/accounts/db.sqlite", cfg.Database.Path)
	assert.Equal(t, "from-file-secret-value", cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("ACCOUNTS_AUTH_JWT_SECRET", "")

	_, err := load(t.TempDir())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.Auth.JWTSecret = "0123456789abcdef"
		c.Auth.PasswordHasher = "bcrypt"
		c.Auth.MinPasswordLength = 8
		c.Storage.MaxAvatarBytes = 1024
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown hasher", mutate: func(c *Config) { c.Auth.PasswordHasher = "sha1" }},
		{name: "zero min length", mutate: func(c *Config) { c.Auth.MinPasswordLength = 0 }},
		{name: "negative ttl", mutate: func(c *Config) { c.Auth.TokenTTL = -time.Second }},
		{name: "zero avatar size limit", mutate: func(c *Config) { c.Storage.MaxAvatarBytes = 0 }},
		{name: "blank secret", mutate: func(c *Config) { c.Auth.JWTSecret = "   " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nACCOUNTS_DOTENV_TEST_A=\"quoted\"\nACCOUNTS_DOTENV_TEST_B=kept\nnot a pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("ACCOUNTS_DOTENV_TEST_B", "from-env")
	t.Cleanup(func() { os.Unsetenv("ACCOUNTS_DOTENV_TEST_A") })

	loadDotEnv(path)

	assert.Equal(t, "quoted", os.Getenv("ACCOUNTS_DOTENV_TEST_A"))
	assert.Equal(t, "from-env", os.Getenv("ACCOUNTS_DOTENV_TEST_B"), "existing variables win")
}
