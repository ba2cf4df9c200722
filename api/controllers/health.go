package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/packlist-backend/api/responses"
	"github.com/angelmondragon/packlist-backend/pkg/config"
	"github.com/angelmondragon/packlist-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/packlist-backend/pkg/errors"
	"github.com/angelmondragon/packlist-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck names a dependency checked by the ready endpoint. Optional
// checks are reported but never fail readiness.
type ReadinessCheck struct {
	Name     string
	Pinger   db.Pinger
	Optional bool
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setEnvHeader(w, cfg)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every configured dependency and answers 503 when a
// required one is unreachable.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setEnvHeader(w, cfg)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := map[string]string{"status": "ready"}
		var failed error
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				status[check.Name] = "down"
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "dependency", check.Name), "health.dependency_down")
				}
				if !check.Optional && failed == nil {
					failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unavailable")
				}
				continue
			}
			status[check.Name] = "up"
		}
		if failed != nil {
			responses.WriteError(r.Context(), logg, w, failed)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func setEnvHeader(w http.ResponseWriter, cfg *config.Config) {
	if cfg == nil {
		return
	}
	w.Header().Set("X-Packlist-Env", cfg.App.Env)
}
