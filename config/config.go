package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/piiscan/analyzer/internal"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	EngineTypeLocal  = "local"
	EngineTypeRemote = "remote"
)

var log = internal.GetLogger()

// envAliases are environment variables honoured in addition to the ANALYZER_ prefixed ones.
// The first non-empty variable wins.
var envAliases = map[string][]string{
	"server.port":       {"ANALYZER_SERVER_PORT", "PORT"},
	"log.level":         {"ANALYZER_LOG_LEVEL", "LOG_LEVEL"},
	"engine.server_url": {"ANALYZER_ENGINE_SERVER_URL", "ANALYZER_BASE_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.max_request_size", 5<<20)
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", internal.LogFormatText)
	v.SetDefault("engine.type", EngineTypeLocal)
	v.SetDefault("engine.server_url", "http://localhost:5002")
	v.SetDefault("engine.timeout", 10*time.Second)
	v.SetDefault("engine.retry_max", 2)
	v.SetDefault("engine.registry_file", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.required", false)
	v.SetDefault("metrics.enabled", true)
}

// LoadConfig loads the config file and ENV variables into a Config struct.
// When configFile is empty a config.yaml in the working directory is used if present.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetConfigType("yaml")

	v.SetEnvPrefix("ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, err
		}
		log.Debug("config file not found, using defaults and environment")
	}

	// Environment variables take precedence over config file
	loadDotEnv()

	for key, envs := range envAliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Engine.Type {
	case EngineTypeLocal:
	case EngineTypeRemote:
		if strings.TrimSpace(cfg.Engine.ServerURL) == "" {
			return errors.New("engine.server_url must be set when engine.type is remote")
		}
	default:
		return errors.New("engine.type must be one of: local, remote")
	}
	if !internal.ValidLogFormat(cfg.Log.Format) {
		return fmt.Errorf("log.format must be one of: %s, %s", internal.LogFormatText, internal.LogFormatJSON)
	}
	if cfg.Auth.Required && cfg.Auth.Secret == "" {
		return errors.New("auth.secret must be set when auth.required is true")
	}
	return nil
}

// loadDotEnv loads environment variables from .env file
func loadDotEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Debug(".env file not found or unable to load")
	}
}

// ConfigureLogging applies the log section of cfg. An unknown level falls back to info.
func ConfigureLogging(cfg *Config) error {
	if err := internal.SetLogFormat(cfg.Log.Format); err != nil {
		return err
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	internal.SetLogLevel(level)
	log.Info("Log level set to: ", level)
	return nil
}
