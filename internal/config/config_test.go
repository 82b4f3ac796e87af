package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/practicanteticPX/docuprex/internal/config"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080

[database]
host = "localhost"
port = 5432
name = "docuprex"
user = "docuprex"
password = "docuprex"

[storage]
container_name = "documents"
connection_string = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=a2V5;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

[cache]
enabled = false

[auth]
secret = "0123456789abcdef0123456789abcdef"

[mail]
from = "Firmas <firmas@example.com>"
app_url = "https://firmas.example.com"

[notify]
workers = 8
reminder_after = "24h"

[api]
base_path = "/api"

[api.pagination]
default_page_size = 25
max_page_size = 50
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[cache]
enabled = true
addr = "redis:6379"
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"server port", cfg.Server.Port, 8080},
		{"db host", cfg.Database.Host, "localhost"},
		{"storage container", cfg.Storage.ContainerName, "documents"},
		{"cache prefix default", cfg.Cache.KeyPrefix, "docuprex"},
		{"auth oidc", cfg.Auth.OIDC(), false},
		{"mail from", cfg.Mail.From, "Firmas <firmas@example.com>"},
		{"mail tls default", cfg.Mail.TLS, config.TLSMandatory},
		{"notify workers", cfg.Notify.Workers, 8},
		{"notify reminder", cfg.Notify.ReminderAfterDuration(), 24 * time.Hour},
		{"notify sweep default", cfg.Notify.SweepIntervalDuration(), 15 * time.Minute},
		{"pagination default", cfg.API.Pagination.DefaultPageSize, 25},
		{"pagination max", cfg.API.Pagination.MaxPageSize, 50},
		{"max upload default", cfg.API.MaxUploadSizeBytes(), int64(25 << 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	chdir(t, dir)

	t.Setenv(config.EnvDocuprexEnv, "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port: got %d, want 5432 (from base)", cfg.Database.Port)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Addr != "redis:6379" {
		t.Errorf("cache: got %+v", cfg.Cache)
	}
	if cfg.Notify.Workers != 8 {
		t.Errorf("notify workers: got %d, want 8 (from base)", cfg.Notify.Workers)
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	chdir(t, dir)

	t.Setenv("DOCUPREX_VERSION", "2.0.0")
	t.Setenv("DOCUPREX_SERVER_PORT", "3000")
	t.Setenv("DOCUPREX_NOTIFY_WORKERS", "2")
	t.Setenv("DOCUPREX_REDIS_ADDR", "cache:6379")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if cfg.Notify.Workers != 2 {
		t.Errorf("notify workers: got %d, want 2", cfg.Notify.Workers)
	}
	if cfg.Cache.Addr != "cache:6379" {
		t.Errorf("cache addr: got %s", cfg.Cache.Addr)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("DOCUPREX_DB_NAME", "testdb")
	t.Setenv("DOCUPREX_DB_USER", "testuser")
	t.Setenv("DOCUPREX_STORAGE_CONNECTION_STRING", "conn")
	t.Setenv("DOCUPREX_AUTH_SECRET", strings.Repeat("s", 32))

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load without config.toml failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("db name: got %s, want testdb", cfg.Database.Name)
	}
	if cfg.ShutdownTimeoutDuration() != 30*time.Second {
		t.Errorf("shutdown timeout: got %v", cfg.ShutdownTimeoutDuration())
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed toml", "[server\nport = ", "parse config"},
		{"missing auth secret", strings.Replace(baseConfig, `secret = "0123456789abcdef0123456789abcdef"`, "", 1), "auth:"},
		{"bad tls policy", strings.Replace(baseConfig, "[mail]", "[mail]\ntls = \"sometimes\"", 1), "invalid tls policy"},
		{"mail enabled without host", strings.Replace(baseConfig, "[mail]", "[mail]\nenabled = true", 1), "host required"},
		{"bad upload size", strings.Replace(baseConfig, `base_path = "/api"`, `base_path = "/api"`+"\nmax_upload_size = \"lots\"", 1), "max_upload_size"},
		{"zero sweep", strings.Replace(baseConfig, "workers = 8", "workers = 8\nsweep_interval = \"0s\"", 1), "sweep_interval must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, config.BaseConfigFile, tt.content)
			chdir(t, dir)

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEnv(t *testing.T) {
	cfg := &config.Config{}
	if got := cfg.Env(); got != "local" {
		t.Errorf("default env: got %s, want local", got)
	}

	t.Setenv(config.EnvDocuprexEnv, "production")
	if got := cfg.Env(); got != "production" {
		t.Errorf("env: got %s, want production", got)
	}
}

func TestServerConfig(t *testing.T) {
	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 8081}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if got := cfg.Addr(); got != "127.0.0.1:8081" {
		t.Errorf("addr: got %s", got)
	}
	if cfg.WriteTimeoutDuration() != 0 {
		t.Errorf("write timeout default should be 0 for streaming, got %v", cfg.WriteTimeoutDuration())
	}
	if cfg.ReadHeaderTimeoutDuration() != 10*time.Second {
		t.Errorf("read header timeout: got %v", cfg.ReadHeaderTimeoutDuration())
	}

	tests := []struct {
		name    string
		cfg     config.ServerConfig
		wantErr string
	}{
		{"port too high", config.ServerConfig{Port: 70000}, "invalid port"},
		{"bad read timeout", config.ServerConfig{ReadTimeout: "x"}, "invalid read_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestNotifyMerge(t *testing.T) {
	base := config.NotifyConfig{Workers: 4, DedupeWindow: "10m", ReminderAfter: "48h"}
	base.Merge(&config.NotifyConfig{Workers: 16, ReminderAfter: "12h"})

	if base.Workers != 16 || base.ReminderAfter != "12h" || base.DedupeWindow != "10m" {
		t.Errorf("merged = %+v", base)
	}
}
