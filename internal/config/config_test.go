package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable LoadFromEnv reads so tests start clean.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "META_DB_PATH", "DUCKDB_PATH", "WAREHOUSE_DIR",
		"ENCRYPTION_KEY", "LOG_LEVEL", "ENV",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"S3_KEY_ID", "S3_SECRET", "S3_ENDPOINT", "S3_REGION", "S3_BUCKET",
		"CORS_ALLOWED_ORIGINS",
		"JWT_SECRET", "OIDC_ISSUER_URL", "OIDC_CLIENT_ID", "TOKEN_TTL",
		"REMOTE_EXECUTOR_URL", "REMOTE_EXECUTOR_TOKEN",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "dataforge_meta.sqlite", cfg.MetaDBPath)
	assert.Empty(t, cfg.DuckDBPath, "default engine is in-memory")
	assert.Equal(t, "warehouse", cfg.WarehouseDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, float64(100), cfg.RateLimitRPS)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Auth.OIDCEnabled())
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.HasS3Config())

	// Insecure defaults are allowed in development but warned about.
	assert.Len(t, cfg.Warnings, 2)
}

func TestLoadFromEnv_ExplicitValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("JWT_SECRET", "real-secret")
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("RATE_LIMIT_RPS", "10.5")
	t.Setenv("RATE_LIMIT_BURST", "20")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("REMOTE_EXECUTOR_URL", "https://exec.example.com")
	t.Setenv("REMOTE_EXECUTOR_TOKEN", "tok")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10.5, cfg.RateLimitRPS)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "https://exec.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "tok", cfg.Remote.Token)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_S3(t *testing.T) {
	clearEnv(t)
	t.Setenv("S3_KEY_ID", "key")
	t.Setenv("S3_SECRET", "secret")
	t.Setenv("S3_ENDPOINT", "https://minio.local")
	t.Setenv("S3_REGION", "us-east-1")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.HasS3Config())

	clearEnv(t)
	t.Setenv("S3_KEY_ID", "key")
	cfg, err = LoadFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.HasS3Config(), "partial S3 config does not count")
}

func TestLoadFromEnv_OIDCRequiresClientID(t *testing.T) {
	clearEnv(t)
	t.Setenv("OIDC_ISSUER_URL", "https://auth.example.com")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OIDC_CLIENT_ID")

	t.Setenv("OIDC_CLIENT_ID", "dataforge")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Auth.OIDCEnabled())
}

func TestLoadFromEnv_ProductionRejectsInsecureDefaults(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T)
		wantErr string
	}{
		{
			name:    "default jwt secret",
			setup:   func(t *testing.T) {},
			wantErr: "JWT_SECRET",
		},
		{
			name: "default encryption key",
			setup: func(t *testing.T) {
				t.Setenv("JWT_SECRET", "real-secret")
			},
			wantErr: "ENCRYPTION_KEY",
		},
		{
			name: "cors wildcard",
			setup: func(t *testing.T) {
				t.Setenv("JWT_SECRET", "real-secret")
				t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
			},
			wantErr: "CORS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("ENV", "production")
			tt.setup(t)

			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("fully configured production passes", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ENV", "production")
		t.Setenv("JWT_SECRET", "real-secret")
		t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")

		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.in}
		assert.Equal(t, tt.want, cfg.SlogLevel(), "level %q", tt.in)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	content := `# comment
LISTEN_ADDR=:7070
QUOTED="with spaces"
SINGLE='single'
NOEQUALS
JWT_SECRET=from-dotenv
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// Pre-set variables win over the file.
	t.Setenv("JWT_SECRET", "from-env")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, ":7070", os.Getenv("LISTEN_ADDR"))
	assert.Equal(t, "with spaces", os.Getenv("QUOTED"))
	assert.Equal(t, "single", os.Getenv("SINGLE"))
	assert.Equal(t, "from-env", os.Getenv("JWT_SECRET"))

	t.Cleanup(func() {
		os.Unsetenv("QUOTED")
		os.Unsetenv("SINGLE")
	})

	t.Run("missing file is not an error", func(t *testing.T) {
		assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
	})
}
