package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/practicanteticPX/docuprex/internal/api"
	"github.com/practicanteticPX/docuprex/internal/config"
	"github.com/practicanteticPX/docuprex/internal/infrastructure"
	"github.com/practicanteticPX/docuprex/pkg/module"
)

const readinessTimeout = 2 * time.Second

type Modules struct {
	API *module.Module
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Modules{
		API: apiModule,
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respondStatus(w, http.StatusOK, "ok")
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			respondStatus(w, http.StatusServiceUnavailable, "not ready")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := infra.Database.Ping(ctx); err != nil {
			infra.Logger.Warn("readiness check failed", "dependency", "database", "error", err)
			respondStatus(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		if err := infra.Cache.Ping(ctx); err != nil {
			infra.Logger.Warn("readiness check degraded", "dependency", "cache", "error", err)
		}

		respondStatus(w, http.StatusOK, "ready")
	})

	return router
}

func respondStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
