package storage_test

import (
	"strings"
	"testing"

	"github.com/practicanteticPX/docuprex/pkg/storage"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := storage.Config{ConnectionString: "test-connection"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.ContainerName != "documents" {
		t.Errorf("container_name: got %s, want documents", cfg.ContainerName)
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_CONTAINER", "signed")
	t.Setenv("TEST_SERVICE_URL", "https://docuprex.blob.core.windows.net/")

	env := &storage.Env{
		ContainerName: "TEST_CONTAINER",
		ServiceURL:    "TEST_SERVICE_URL",
	}

	cfg := storage.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.ContainerName != "signed" {
		t.Errorf("container_name: got %s, want signed", cfg.ContainerName)
	}
	if cfg.ServiceURL != "https://docuprex.blob.core.windows.net/" {
		t.Errorf("service_url: got %s", cfg.ServiceURL)
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{
			name:    "missing credentials",
			cfg:     storage.Config{ContainerName: "docs"},
			wantErr: "connection_string or service_url required",
		},
		{
			name: "connection string only",
			cfg:  storage.Config{ConnectionString: "conn"},
		},
		{
			name: "service url only",
			cfg:  storage.Config{ServiceURL: "https://example.blob.core.windows.net/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := storage.Config{ContainerName: "documents", ConnectionString: "base"}
	base.Merge(&storage.Config{ServiceURL: "https://overlay"})

	if base.ContainerName != "documents" {
		t.Errorf("container_name: got %s, want documents", base.ContainerName)
	}
	if base.ConnectionString != "base" {
		t.Errorf("connection_string: got %s, want base", base.ConnectionString)
	}
	if base.ServiceURL != "https://overlay" {
		t.Errorf("service_url: got %s, want https://overlay", base.ServiceURL)
	}
}
