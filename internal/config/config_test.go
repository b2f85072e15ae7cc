package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every key Load reads; t.Setenv restores the previous values afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "LOG_LEVEL", "DATA_PATH", "SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
		"SERVER_IDLE_TIMEOUT", "CORS_ALLOWED_ORIGINS", "GRAPHQL_RATE_LIMIT", "STORE_DRIVER", "MONGODB_URI",
		"MONGODB_DATABASE", "EVENT_BUS", "REDIS_ADDR", "REDIS_PASSWORD", "RABBITMQ_URL", "SECRET", "TOKEN_DURATION",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		Storage: StorageConfig{Driver: StoreBadger, DataPath: "/var/lib/catalog"},
		Events:  EventsConfig{Driver: BusMemory},
		Auth:    AuthConfig{TokenDuration: time.Hour},
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)

	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Zero(t, cfg.Server.WriteTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 300, cfg.Server.RateLimit)
	assert.Equal(t, StoreBadger, cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(homeDir, "LibraryCatalog", "data"), cfg.Storage.DataPath)
	assert.Equal(t, "library", cfg.Storage.MongoDatabase)
	assert.Equal(t, BusMemory, cfg.Events.Driver)
	assert.Empty(t, cfg.Auth.Secret)
	assert.Equal(t, 168*time.Hour, cfg.Auth.TokenDuration)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "# catalog\nSTORE_DRIVER=sqlite\nSERVER_PORT=5000\nSECRET=\"from-dotenv\"\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("STORE_DRIVER")
		_ = os.Unsetenv("SECRET")
	})

	t.Setenv("SERVER_PORT", "6000")

	cfg, err := Load([]string{"-env-file", envFile, "-port", "7000", "-cors-origins", "http://a.test, http://b.test"})
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port, "flag wins over env and .env")
	assert.Equal(t, StoreSQLite, cfg.Storage.Driver, ".env fills unset keys")
	assert.Equal(t, "from-dotenv", cfg.Auth.Secret)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)

	_, err := Load([]string{"-env-file", "", "-token-duration", "forever"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_DURATION")
}

func TestLoad_UnknownFlag(t *testing.T) {
	clearEnv(t)

	_, err := Load([]string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "staging", mutate: func(c *Config) { c.App.Environment = "staging" }},
		{name: "empty environment", mutate: func(c *Config) { c.App.Environment = "" }, wantErr: "ENV is required"},
		{name: "environment is case sensitive", mutate: func(c *Config) { c.App.Environment = "PRODUCTION" }, wantErr: "invalid environment"},
		{name: "log level case insensitive", mutate: func(c *Config) { c.Logger.Level = "DEBUG" }},
		{name: "bad log level", mutate: func(c *Config) { c.Logger.Level = "trace" }, wantErr: "invalid log level"},
		{name: "memory store needs no path", mutate: func(c *Config) { c.Storage.Driver = StoreMemory; c.Storage.DataPath = "" }},
		{name: "sqlite needs path", mutate: func(c *Config) { c.Storage.Driver = StoreSQLite; c.Storage.DataPath = "" }, wantErr: "needs a data path"},
		{name: "mongo needs uri", mutate: func(c *Config) { c.Storage.Driver = StoreMongo }, wantErr: "MONGODB_URI"},
		{name: "unknown store", mutate: func(c *Config) { c.Storage.Driver = "postgres" }, wantErr: "invalid store driver"},
		{name: "unknown bus", mutate: func(c *Config) { c.Events.Driver = "kafka" }, wantErr: "invalid event bus"},
		{name: "redis bus", mutate: func(c *Config) { c.Events.Driver = BusRedis }},
		{name: "zero token duration", mutate: func(c *Config) { c.Auth.TokenDuration = 0 }, wantErr: "TOKEN_DURATION"},
		{name: "negative rate limit", mutate: func(c *Config) { c.Server.RateLimit = -1 }, wantErr: "GRAPHQL_RATE_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("~/catalog", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, "catalog"), got)

	got, err = expandPath("/srv/catalog/../data", "")
	require.NoError(t, err)
	assert.Equal(t, "/srv/data", got)

	got, err = expandPath("relative/data", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestGetIntConfigValue(t *testing.T) {
	t.Setenv("CATALOG_TEST_INT", "42")

	assert.Equal(t, 7, getIntConfigValue("7", "CATALOG_TEST_INT", 1))
	assert.Equal(t, 42, getIntConfigValue("", "CATALOG_TEST_INT", 1))
	assert.Equal(t, 1, getIntConfigValue("many", "CATALOG_TEST_INT", 1))
}
