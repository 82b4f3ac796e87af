package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/practicanteticPX/docuprex/pkg/auth"
	"github.com/practicanteticPX/docuprex/pkg/cache"
	"github.com/practicanteticPX/docuprex/pkg/handlers"
)

// Provision syncs the authenticated caller into the directory at most once
// per interval and refuses deactivated users. It must run after
// auth.Middleware.
func Provision(sys System, c cache.System, interval time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("middleware", "provision")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := auth.FromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if err := provision(r.Context(), sys, c, interval, caller); err != nil {
				if errors.Is(err, ErrInactive) {
					handlers.RespondError(w, logger, http.StatusForbidden, err)
					return
				}
				logger.Warn("directory sync failed", "user_id", caller.ID, "error", err)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func provision(ctx context.Context, sys System, c cache.System, interval time.Duration, caller auth.Identity) error {
	key := "user-sync:" + caller.ID.String()
	claimed, err := c.Claim(ctx, key, interval)
	if err != nil || !claimed {
		return err
	}

	u, err := sys.Sync(ctx, caller)
	if err != nil {
		c.Release(ctx, key)
		return err
	}
	if !u.Active {
		c.Release(ctx, key)
		return ErrInactive
	}
	return nil
}
