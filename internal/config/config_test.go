package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 5000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "users.db", cfg.Database.Path)
	require.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	require.False(t, cfg.Redis.Enabled)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)

	secret, isDefault := cfg.Auth.SigningSecret()
	require.True(t, isDefault)
	require.Equal(t, DefaultJWTSecret, secret)
}

func TestLoad_CompatibilityEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "sqlite:///data/users.db")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "data/users.db", cfg.Database.Path)

	secret, isDefault := cfg.Auth.SigningSecret()
	require.False(t, isDefault)
	require.Equal(t, "from-env", secret)
}

func TestLoad_PrefixedEnvironmentWins(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "8080")
	t.Setenv("FERTILIZER_SERVER_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
auth:
  jwt_secret: file-secret
  token_ttl: 30m
rate_limit:
  requests: 5
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	require.Equal(t, 5, cfg.RateLimit.Requests)
	require.Equal(t, "file-secret", cfg.Auth.JWTSecret)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FERTILIZER_SERVER_ENV", "production")

	_, err := Load("")
	require.ErrorContains(t, err, "jwt_secret")

	t.Setenv("JWT_SECRET", "prod-secret")
	cfg, err := Load("")
	require.NoError(t, err)
	require.True(t, cfg.Server.IsProduction())
}

func TestDatabaseConfig_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		driver  string
		path    string
		dsn     string
		wantErr bool
	}{
		{name: "relative sqlite", url: "sqlite:///users.db", driver: "sqlite", path: "users.db"},
		{name: "absolute sqlite", url: "sqlite:////var/lib/users.db", driver: "sqlite", path: "/var/lib/users.db"},
		{name: "memory sqlite", url: "sqlite://:memory:", driver: "sqlite", path: ":memory:"},
		{name: "postgres", url: "postgres://app:pw@db:5432/fert?sslmode=disable", driver: "postgres", dsn: "postgres://app:pw@db:5432/fert?sslmode=disable"},
		{name: "postgresql scheme", url: "postgresql://app@db/fert", driver: "postgres", dsn: "postgresql://app@db/fert"},
		{name: "unsupported", url: "mysql://db/fert", wantErr: true},
		{name: "empty sqlite path", url: "sqlite://", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DatabaseConfig{URL: tc.url, Driver: "sqlite", Path: "default.db"}.Resolve()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.driver, got.Driver)
			if tc.path != "" {
				require.Equal(t, tc.path, got.Path)
			}
			if tc.dsn != "" {
				require.Equal(t, tc.dsn, got.DSN())
			}
		})
	}
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Auth.BcryptCost = 99
	require.Error(t, bad.Validate())

	bad = *cfg
	bad.Database.Driver = "mysql"
	require.Error(t, bad.Validate())

	bad = *cfg
	bad.Logging.Level = "loud"
	require.Error(t, bad.Validate())
}
