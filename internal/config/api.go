package config

import (
	"fmt"
	"os"

	"github.com/practicanteticPX/docuprex/pkg/formatting"
	"github.com/practicanteticPX/docuprex/pkg/middleware"
	"github.com/practicanteticPX/docuprex/pkg/openapi"
	"github.com/practicanteticPX/docuprex/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "DOCUPREX_CORS_ENABLED",
	Origins:          "DOCUPREX_CORS_ORIGINS",
	AllowedMethods:   "DOCUPREX_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "DOCUPREX_CORS_ALLOWED_HEADERS",
	AllowCredentials: "DOCUPREX_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "DOCUPREX_CORS_MAX_AGE",
}

var openAPIEnv = &openapi.ConfigEnv{
	Title:       "DOCUPREX_OPENAPI_TITLE",
	Description: "DOCUPREX_OPENAPI_DESCRIPTION",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "DOCUPREX_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "DOCUPREX_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, upload limits, CORS, pagination, and OpenAPI metadata.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	OpenAPI       openapi.Config        `toml:"openapi"`
}

// MaxUploadSizeBytes is only meaningful after Finalize has validated MaxUploadSize.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxUploadSize)
	return size
}

func (c *APIConfig) Finalize() error {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "25MB"
	}
	if v := os.Getenv("DOCUPREX_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("DOCUPREX_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}

	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("max_upload_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openAPIEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}
	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}
