package config

import "time"

// Config holds the configuration of the application
// Use LoadConfig to create a new instance
type Config struct {
	Server  ServerConfig  `mapstructure:"server" json:"server"`
	Log     LogConfig     `mapstructure:"log" json:"log"`
	Engine  EngineConfig  `mapstructure:"engine" json:"engine"`
	Auth    AuthConfig    `mapstructure:"auth" json:"auth"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
	// MaxRequestSize caps request bodies, in bytes.
	MaxRequestSize int64 `mapstructure:"max_request_size" json:"max_request_size"`
	// CORSAllowedOrigins enables CORS for these origins. Empty disables CORS handling.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins" json:"cors_allowed_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	// Format is "text" or "json".
	Format string `mapstructure:"format" json:"format" jsonschema:"enum=text,enum=json"`
}

// EngineConfig selects and configures the analysis engine the server fronts.
type EngineConfig struct {
	// Type is either "local" or "remote".
	Type string `mapstructure:"type" json:"type" jsonschema:"enum=local,enum=remote"`
	// ServerURL is the base URL of a remote analyzer. Only used when Type is "remote".
	ServerURL string        `mapstructure:"server_url" json:"server_url"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
	RetryMax  int           `mapstructure:"retry_max" json:"retry_max"`
	// RegistryFile optionally replaces the local engine's built-in recognizers.
	RegistryFile string `mapstructure:"registry_file" json:"registry_file"`
}

type AuthConfig struct {
	Secret   string `mapstructure:"secret" json:"secret"`
	Required bool   `mapstructure:"required" json:"required"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}
