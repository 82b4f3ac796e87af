package api

import (
	"net/http"
	"time"

	"github.com/practicanteticPX/docuprex/internal/config"
	"github.com/practicanteticPX/docuprex/internal/users"
	"github.com/practicanteticPX/docuprex/pkg/auth"
	"github.com/practicanteticPX/docuprex/pkg/routes"
)

// provisionInterval bounds how often a caller's directory row is refreshed.
const provisionInterval = 5 * time.Minute

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) error {
	spec, err := specRoutes(cfg)
	if err != nil {
		return err
	}

	routes.Register(mux, spec, routes.Group{
		Middleware: []func(http.Handler) http.Handler{
			auth.Middleware(runtime.Verifier, runtime.Logger),
			users.Provision(domain.Users, runtime.Cache, provisionInterval, runtime.Logger),
		},
		Children: []routes.Group{
			domain.Documents.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
			domain.Signing.Handler().Routes(),
			domain.Users.Handler().Routes(),
			domain.Notifications.Handler().Routes(),
			newEventsHandler(runtime.Broadcaster, runtime.Logger).routes(),
		},
	})
	return nil
}
