// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like INTENT_BASE_URL
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, e.g. config.production.yaml
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig fills secrets from plain env vars when the yaml left
// them empty. API_KEYS mirrors the original adapter's comma-separated form.
func overrideEmptyConfig(cfg *Config) {
	if len(cfg.Auth.APIKeys) == 0 {
		raw := os.Getenv("API_KEYS")
		if raw == "" {
			raw = os.Getenv("API_KEY")
		}
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Auth.APIKeys = append(cfg.Auth.APIKeys, k)
			}
		}
	}

	if cfg.Intent.APIKey == "" {
		if val := os.Getenv("INTENT_API_KEY"); val != "" {
			cfg.Intent.APIKey = val
		}
	}
	if cfg.Loki.Token == "" {
		if val := os.Getenv("GRAFANA_LOKI_API_TOKEN"); val != "" {
			cfg.Loki.Token = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "mcp-gateway"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30000
	}

	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = int((24 * time.Hour).Milliseconds())
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = int((5 * time.Minute).Milliseconds())
	}

	if cfg.Intent.Timeout == 0 {
		cfg.Intent.Timeout = 5000
	}
	if cfg.Intent.MinConfidence == 0 {
		cfg.Intent.MinConfidence = 0.35
	}
	if cfg.Intent.FallbackLabel == "" {
		cfg.Intent.FallbackLabel = "fallback"
	}

	if cfg.Routing.Timeout == 0 {
		cfg.Routing.Timeout = 10000
	}
	if cfg.Routing.CatchAll == "" {
		cfg.Routing.CatchAll = "fallback"
	}
	for label, rc := range cfg.Routing.Routes {
		if rc.Route == "" {
			rc.Route = label
		}
		if rc.Target == "" {
			rc.Target = rc.Route
		}
		cfg.Routing.Routes[label] = rc
	}
	for tenant, overrides := range cfg.Routing.Tenants {
		for label, rc := range overrides {
			if rc.Route == "" {
				rc.Route = label
			}
			if rc.Target == "" {
				rc.Target = tenant + ":" + rc.Route
			}
			overrides[label] = rc
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Loki.AppLabel == "" {
		cfg.Loki.AppLabel = "mcp_gateway"
	}
	if cfg.Loki.Timeout == 0 {
		cfg.Loki.Timeout = 4000
	}
	if cfg.Loki.QueueLen == 0 {
		cfg.Loki.QueueLen = 256
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if len(cfg.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth.api_keys (or API_KEYS env) is required")
	}

	switch cfg.Session.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis session backend")
		}
	default:
		return fmt.Errorf("session.backend must be 'memory' or 'redis', got %q", cfg.Session.Backend)
	}

	if cfg.Intent.MinConfidence < 0 || cfg.Intent.MinConfidence > 1 {
		return fmt.Errorf("intent.min_confidence must be in [0,1]")
	}

	if _, ok := cfg.Routing.Routes[cfg.Routing.CatchAll]; !ok && len(cfg.Routing.Routes) > 0 {
		return fmt.Errorf("routing.catch_all %q has no route entry", cfg.Routing.CatchAll)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
