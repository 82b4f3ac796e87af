// Package config loads the service configuration from config.toml, an
// optional config.<env>.toml overlay, and DOCUPREX_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/practicanteticPX/docuprex/pkg/auth"
	"github.com/practicanteticPX/docuprex/pkg/cache"
	"github.com/practicanteticPX/docuprex/pkg/database"
	"github.com/practicanteticPX/docuprex/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvDocuprexEnv             = "DOCUPREX_ENV"
	EnvDocuprexShutdownTimeout = "DOCUPREX_SHUTDOWN_TIMEOUT"
	EnvDocuprexVersion         = "DOCUPREX_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "DOCUPREX_DB_HOST",
	Port:            "DOCUPREX_DB_PORT",
	Name:            "DOCUPREX_DB_NAME",
	User:            "DOCUPREX_DB_USER",
	Password:        "DOCUPREX_DB_PASSWORD",
	SSLMode:         "DOCUPREX_DB_SSL_MODE",
	ApplicationName: "DOCUPREX_DB_APPLICATION_NAME",
	MaxOpenConns:    "DOCUPREX_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "DOCUPREX_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "DOCUPREX_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "DOCUPREX_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "DOCUPREX_STORAGE_CONTAINER_NAME",
	ConnectionString: "DOCUPREX_STORAGE_CONNECTION_STRING",
	ServiceURL:       "DOCUPREX_STORAGE_SERVICE_URL",
}

var cacheEnv = &cache.Env{
	Enabled:     "DOCUPREX_REDIS_ENABLED",
	Addr:        "DOCUPREX_REDIS_ADDR",
	Password:    "DOCUPREX_REDIS_PASSWORD",
	DB:          "DOCUPREX_REDIS_DB",
	KeyPrefix:   "DOCUPREX_REDIS_KEY_PREFIX",
	DialTimeout: "DOCUPREX_REDIS_DIAL_TIMEOUT",
}

var authEnv = &auth.Env{
	Issuer:   "DOCUPREX_AUTH_ISSUER",
	ClientID: "DOCUPREX_AUTH_CLIENT_ID",
	Secret:   "DOCUPREX_AUTH_SECRET",
}

// Config is the root configuration for the DocuPrex service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	Cache           cache.Config    `toml:"cache"`
	Auth            auth.Config     `toml:"auth"`
	Mail            MailConfig      `toml:"mail"`
	Notify          NotifyConfig    `toml:"notify"`
	API             APIConfig       `toml:"api"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the DOCUPREX_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvDocuprexEnv); env != "" {
		return env
	}
	return "local"
}

func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads config.toml when present, merges the environment overlay, and
// finalizes every section. Without a config file, defaults and environment
// variables supply everything.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sections.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Cache.Merge(&overlay.Cache)
	c.Auth.Merge(&overlay.Auth)
	c.Mail.Merge(&overlay.Mail)
	c.Notify.Merge(&overlay.Notify)
	c.API.Merge(&overlay.API)
}

// Finalize applies defaults, environment overrides and validation to every section.
func (c *Config) Finalize() error {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if v := os.Getenv(EnvDocuprexShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvDocuprexVersion); v != "" {
		c.Version = v
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"cache", func() error { return c.Cache.Finalize(cacheEnv) }},
		{"auth", func() error { return c.Auth.Finalize(authEnv) }},
		{"mail", c.Mail.Finalize},
		{"notify", c.Notify.Finalize},
		{"api", c.API.Finalize},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvDocuprexEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
