package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGuardYAML = `
environment: production
server:
  httpAddr: ":8443"
  grpcAddr: ":9443"
  watchInterval: 10s
upstream:
  url: https://sandbox.hyperswitch.io
  hyperswitchPrefix: /payments
cors:
  allowedOrigins:
    - https://dashboard.example.com
headers:
  requiredHeaders:
    /payments/*: [api-key]
ruleStore:
  driver: mysql
database:
  host: 127.0.0.1
  port: 3306
  username: guard
  password: secret
  database: guard
redis:
  host: 127.0.0.1
  port: 6379
  db: 2
log:
  level: debug
`

func TestParseGuardConfig(t *testing.T) {
	cfg, err := ParseGuardConfig([]byte(sampleGuardYAML))
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, ":8443", cfg.Server.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.Server.WatchInterval)
	assert.Equal(t, 5*time.Second, DefaultGuardConfig(EnvProduction).Server.WatchInterval)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout, "missing fields keep their defaults")
	assert.Equal(t, "https://sandbox.hyperswitch.io", cfg.Upstream.URL)

	// nested policies start from the production presets
	assert.Equal(t, []string{"https://dashboard.example.com"}, cfg.Cors.AllowedOrigins)
	assert.Equal(t, EnvProduction, cfg.Cors.Environment)
	assert.True(t, cfg.Cors.StrictMode)
	assert.Equal(t, 40, cfg.Headers.MaxHeaderCount)
	assert.Equal(t, []string{"api-key"}, cfg.Headers.RequiredHeaders["/payments/*"])

	assert.Equal(t, RuleStoreMySQL, cfg.RuleStore.Driver)
	assert.Equal(t, "guard:secret@tcp(127.0.0.1:3306)/guard?charset=utf8mb4&parseTime=True&loc=UTC", cfg.DatabaseConfig.GetDSN())
	assert.NotContains(t, cfg.DatabaseConfig.SafeDSN(), "secret")
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisConfig.Addr())
	assert.Equal(t, 2, cfg.RedisConfig.Database)
	assert.Equal(t, 50, LoadDbOptionConfig(cfg).MaxOpenConns)
}

func TestParseGuardConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "production without origins", yaml: "environment: production\n"},
		{name: "unknown environment", yaml: "environment: staging\n"},
		{name: "bad listen address", yaml: "server:\n  httpAddr: nowhere\n"},
		{name: "bad upstream", yaml: "upstream:\n  url: not a url\n"},
		{name: "unknown store driver", yaml: "ruleStore:\n  driver: postgres\n"},
		{name: "mysql without database", yaml: "ruleStore:\n  driver: mysql\n"},
		{name: "invalid cors", yaml: "cors:\n  maxAge: -1\n"},
		{name: "invalid headers", yaml: "headers:\n  maxHeaderCount: 1000\n"},
		{name: "bad log level", yaml: "log:\n  level: loud\n"},
		{name: "malformed", yaml: "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGuardConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseGuardConfig_EnvironmentFromEnv(t *testing.T) {
	t.Setenv(EnvGuardEnv, EnvTest)

	cfg, err := ParseGuardConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, EnvTest, cfg.Environment)
	assert.True(t, cfg.Cors.IsWildcardOnly())
	assert.Equal(t, RuleStoreMemory, cfg.RuleStore.Driver)
}

func TestLoadGuardConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  httpAddr: \":7000\"\n"), 0o600))

	t.Setenv(EnvConfigPath, path)
	got, explicit := ConfigPath()
	assert.Equal(t, path, got)
	assert.True(t, explicit)

	cfg, err := LoadGuardConfig()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.HTTPAddr)

	t.Setenv(EnvConfigPath, filepath.Join(dir, "missing.yaml"))
	_, err = LoadGuardConfig()
	assert.Error(t, err, "an explicit path must exist")
}

func TestLoadGuardConfig_DefaultPathMissing(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvGuardEnv, "nonexistent-env-for-test")

	path, explicit := ConfigPath()
	assert.Equal(t, "guard.nonexistent-env-for-test.yaml", path)
	assert.False(t, explicit)

	// the env name is not a valid environment, so the preset fallback fails validation
	_, err := LoadGuardConfig()
	assert.Error(t, err)

	t.Setenv(EnvGuardEnv, EnvDevelopment)
	cfg, err := LoadGuardConfig()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
}
