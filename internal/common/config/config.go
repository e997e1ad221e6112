// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig              `mapstructure:"app"`
	Server   ServerConfig           `mapstructure:"server"`
	Auth     AuthConfig             `mapstructure:"auth"`
	Session  SessionConfig          `mapstructure:"session"`
	Database DatabaseConfig         `mapstructure:"database"`
	Intent   IntentConfig           `mapstructure:"intent"`
	Routing  RoutingConfig          `mapstructure:"routing"`
	Logging  LoggingConfig          `mapstructure:"logging"`
	Loki     LokiConfig             `mapstructure:"loki"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	RequestTimeout  int    `mapstructure:"request_timeout"`  // milliseconds, per-request deadline
}

// AuthConfig holds the inbound API key allow-list. Keys may be provided as a
// comma-separated string (API_KEYS env) or a yaml list.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// SessionConfig selects and tunes the session store backend.
type SessionConfig struct {
	Backend       string `mapstructure:"backend"`        // memory | redis
	TTL           int    `mapstructure:"ttl"`            // milliseconds, 0 disables eviction
	SweepInterval int    `mapstructure:"sweep_interval"` // milliseconds, memory backend janitor
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IntentConfig tunes the classifier collaborator and fallback policy.
type IntentConfig struct {
	BaseURL       string  `mapstructure:"base_url"` // empty enables the keyword classifier
	APIKey        string  `mapstructure:"api_key"`
	Timeout       int     `mapstructure:"timeout"` // milliseconds
	MinConfidence float64 `mapstructure:"min_confidence"`
	FallbackLabel string  `mapstructure:"fallback_label"`
}

// RoutingConfig maps intent labels to downstream collaborators.
type RoutingConfig struct {
	Timeout  int                               `mapstructure:"timeout"` // milliseconds, downstream call deadline
	CatchAll string                            `mapstructure:"catch_all"`
	Routes   map[string]RouteConfig            `mapstructure:"routes"`
	Tenants  map[string]map[string]RouteConfig `mapstructure:"tenants"` // tenant -> label -> route override
}

type RouteConfig struct {
	Route  string `mapstructure:"route"`  // route name reported in responses
	URL    string `mapstructure:"url"`    // downstream POST endpoint; empty means static reply
	Reply  string `mapstructure:"reply"`  // canned reply for static routes
	Target string `mapstructure:"target"` // collaborator name; defaults to route name
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LokiConfig holds the fire-and-forget log shipping settings.
type LokiConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Token    string `mapstructure:"token"`
	AppLabel string `mapstructure:"app_label"`
	Timeout  int    `mapstructure:"timeout"`    // milliseconds
	QueueLen int    `mapstructure:"queue_len"`  // pending records before drops
}
