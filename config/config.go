// Package config loads iiify configuration from file and environment.
//
// Configuration is resolved by viper: defaults first, then an optional
// iiify.yaml, then IIIFY_* environment variables (IIIFY_SERVER_PORT
// overrides server.port).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teranos/iiify/errors"
)

// Config is the full runtime configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db"`
	Import ImportConfig `mapstructure:"import"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// BaseURL is the public URL manifests are published under. Defaults
	// to http://{host}:{port} when empty.
	BaseURL string `mapstructure:"base_url"`
}

// DBConfig configures the SQLite database
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// ImportConfig configures the import worker pool and outbound traffic
type ImportConfig struct {
	Workers         int           `mapstructure:"workers"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ProbesPerSecond float64       `mapstructure:"probes_per_second"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
}

// LogConfig configures logging output
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

// Load resolves configuration from defaults, an optional config file and
// IIIFY_* environment variables.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.base_url", "")
	v.SetDefault("db.path", "iiify.db")
	v.SetDefault("import.workers", 2)
	v.SetDefault("import.poll_interval", time.Second)
	v.SetDefault("import.probes_per_second", 4.0)
	v.SetDefault("import.probe_timeout", 30*time.Second)
	v.SetDefault("import.fetch_timeout", 2*time.Minute)
	v.SetDefault("log.json", false)

	v.SetEnvPrefix("IIIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", configFile)
		}
	} else {
		v.SetConfigName("iiify")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/iiify")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config file")
			}
			// No config file is fine, defaults and env apply
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	return &cfg, nil
}

// Addr returns the listen address of the HTTP server
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
