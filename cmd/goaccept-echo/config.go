package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the echo server configuration, it can be loaded from a YAML file
// and overridden with flags.
type Config struct {
	Listen         string        `yaml:"listen"`
	MaxConnections int           `yaml:"max_connections"`
	MinDelay       time.Duration `yaml:"min_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	AcceptRate     float64       `yaml:"accept_rate"`
	MetricsListen  string        `yaml:"metrics_listen"`
	LogLevel       string        `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		Listen:         "127.0.0.1:7777",
		MaxConnections: 1024,
		MinDelay:       1 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		LogLevel:       "info",
	}
}

// loadConfigFile loads the YAML file over the defaults.
func loadConfigFile(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// registerFlags registers the flags with the defaults as values.
func registerFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.Listen, "listen", "l", cfg.Listen, "address to listen for echo connections")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "maximum number of connections handled at the same time")
	fs.DurationVar(&cfg.MinDelay, "min-delay", cfg.MinDelay, "wait before retrying the first transient accept error")
	fs.DurationVar(&cfg.MaxDelay, "max-delay", cfg.MaxDelay, "maximum wait between accept retries")
	fs.Float64Var(&cfg.AcceptRate, "accept-rate", cfg.AcceptRate, "maximum accepted connections per second (0 disables)")
	fs.StringVar(&cfg.MetricsListen, "metrics-listen", cfg.MetricsListen, "address to serve prometheus metrics (empty disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
}

// mergeFlags sets on cfg the flags that have been set explicitly.
func mergeFlags(fs *pflag.FlagSet, flagCfg Config, cfg *Config) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = flagCfg.Listen
		case "max-connections":
			cfg.MaxConnections = flagCfg.MaxConnections
		case "min-delay":
			cfg.MinDelay = flagCfg.MinDelay
		case "max-delay":
			cfg.MaxDelay = flagCfg.MaxDelay
		case "accept-rate":
			cfg.AcceptRate = flagCfg.AcceptRate
		case "metrics-listen":
			cfg.MetricsListen = flagCfg.MetricsListen
		case "log-level":
			cfg.LogLevel = flagCfg.LogLevel
		}
	})
}
