// Package config loads the process configuration: a TOML file with
// environment overrides on top.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const (
	DefaultListenAddr = ":5279"
	// DefaultRemoteAddr is the vendor's public endpoint.
	DefaultRemoteAddr  = "server.growatt.com:5279"
	DefaultSchemaDir   = "./inverters"
	DefaultMetricsAddr = ":9090"
)

type Config struct {
	ListenAddr string `toml:"listen_addr" env:"GROWATT_LISTEN_ADDR"`
	RemoteAddr string `toml:"remote_addr" env:"GROWATT_REMOTE_ADDR"`
	SchemaDir  string `toml:"schema_dir" env:"GROWATT_SCHEMA_DIR"`
	// Model selects which mapping files answer schema lookups; empty uses
	// the default layouts.
	Model    string   `toml:"inverter_model" env:"GROWATT_INVERTER_MODEL"`
	Database Database `toml:"database"`
	Logging  Logging  `toml:"logging"`
	Metrics  Metrics  `toml:"metrics"`
}

type Database struct {
	Host     string `toml:"host" env:"GROWATT_DB_HOST"`
	Port     int    `toml:"port" env:"GROWATT_DB_PORT"`
	Username string `toml:"username" env:"GROWATT_DB_USERNAME"`
	Password string `toml:"password" env:"GROWATT_DB_PASSWORD"`
	Database string `toml:"database" env:"GROWATT_DB_NAME"`
}

type Logging struct {
	Level string `toml:"level" env:"GROWATT_LOG_LEVEL"`
}

type Metrics struct {
	Addr string `toml:"addr" env:"GROWATT_METRICS_ADDR"`
}

// Load reads the TOML file at path (skipped when path is empty), applies
// environment overrides and defaults, then validates.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config env overrides failed: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.RemoteAddr == "" {
		cfg.RemoteAddr = DefaultRemoteAddr
	}
	if cfg.SchemaDir == "" {
		cfg.SchemaDir = DefaultSchemaDir
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("config missing listen_addr")
	}
	if strings.TrimSpace(cfg.RemoteAddr) == "" {
		return fmt.Errorf("config missing remote_addr")
	}
	if strings.TrimSpace(cfg.SchemaDir) == "" {
		return fmt.Errorf("config missing schema_dir")
	}
	if strings.TrimSpace(cfg.Database.Host) == "" {
		return fmt.Errorf("config missing database.host")
	}
	if strings.TrimSpace(cfg.Database.Database) == "" {
		return fmt.Errorf("config missing database.database")
	}
	return nil
}

// DSN builds the connection string for pgx.
func (d Database) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Database,
	}
	if d.Username != "" {
		u.User = url.UserPassword(d.Username, d.Password)
	}
	return u.String()
}
