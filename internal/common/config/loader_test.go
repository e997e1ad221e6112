// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile_DefaultsApplied(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  api_keys:
    - "k1"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "mcp-gateway", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, int((24*time.Hour).Milliseconds()), cfg.Session.TTL)
	assert.Equal(t, 0.35, cfg.Intent.MinConfidence)
	assert.Equal(t, "fallback", cfg.Intent.FallbackLabel)
	assert.Equal(t, "fallback", cfg.Routing.CatchAll)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "mcp_gateway", cfg.Loki.AppLabel)
}

func TestLoadFromFile_RouteDefaults(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  api_keys: ["k1"]
routing:
  catch_all: "fallback"
  routes:
    menu:
      url: "http://menu:8080/flows/menu"
    fallback:
      reply: "help"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	menu := cfg.Routing.Routes["menu"]
	assert.Equal(t, "menu", menu.Route, "route name defaults to the label")
	assert.Equal(t, "menu", menu.Target, "target defaults to the route name")
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing api keys",
			content: `app: {name: "x"}`,
			wantErr: "api_keys",
		},
		{
			name: "bad backend",
			content: `
auth: {api_keys: ["k"]}
session: {backend: "dynamo"}
`,
			wantErr: "session.backend",
		},
		{
			name: "redis backend without address",
			content: `
auth: {api_keys: ["k"]}
session: {backend: "redis"}
`,
			wantErr: "redis.address",
		},
		{
			name: "min confidence out of range",
			content: `
auth: {api_keys: ["k"]}
intent: {min_confidence: 1.5}
`,
			wantErr: "min_confidence",
		},
		{
			name: "catch-all without route entry",
			content: `
auth: {api_keys: ["k"]}
routing:
  catch_all: "nowhere"
  routes:
    menu: {url: "http://menu"}
`,
			wantErr: "catch_all",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfigFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_APIKeysFromEnv(t *testing.T) {
	t.Setenv("API_KEYS", "alpha, beta,")

	cfg, err := LoadFromFile(writeConfigFile(t, `app: {name: "x"}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "beta"}, cfg.Auth.APIKeys)
}

func TestLoadFromFile_SecretEnvOverrides(t *testing.T) {
	t.Setenv("INTENT_API_KEY", "intent-secret")
	t.Setenv("GRAFANA_LOKI_API_TOKEN", "loki-secret")
	t.Setenv("REDIS_PASSWORD", "redis-secret")

	cfg, err := LoadFromFile(writeConfigFile(t, `
auth: {api_keys: ["k"]}
`))
	require.NoError(t, err)

	assert.Equal(t, "intent-secret", cfg.Intent.APIKey)
	assert.Equal(t, "loki-secret", cfg.Loki.Token)
	assert.Equal(t, "redis-secret", cfg.Database.Redis.Password)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, GetDuration(5000))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}
