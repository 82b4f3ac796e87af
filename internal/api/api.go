// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/practicanteticPX/docuprex/internal/config"
	"github.com/practicanteticPX/docuprex/internal/infrastructure"
	"github.com/practicanteticPX/docuprex/pkg/middleware"
	"github.com/practicanteticPX/docuprex/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware,
// and registers the background work of the domain on the lifecycle.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(cfg, runtime)

	if err := domain.Signing.Start(runtime.Lifecycle); err != nil {
		return nil, fmt.Errorf("signing start failed: %w", err)
	}
	if err := domain.Notifications.Start(runtime.Lifecycle); err != nil {
		return nil, fmt.Errorf("notifications start failed: %w", err)
	}

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg, runtime); err != nil {
		return nil, err
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(
		middleware.RequestID(),
		middleware.Logger(runtime.Logger),
		middleware.Recover(runtime.Logger),
		middleware.CORS(&cfg.API.CORS),
	)

	return m, nil
}
