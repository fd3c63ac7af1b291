package controllers

import (
	"context"
	"net/http"

	"github.com/aquaflowhq/aquaflow-backend/api/responses"
	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

// Pinger is anything that can confirm a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RemoteProber reports whether the authoritative remote store tier is
// reachable right now.
type RemoteProber interface {
	Available(ctx context.Context) bool
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AquaFlow-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready as long as the process can serve requests.
// Remote dependencies are reported per-component; a down remote store
// does not fail readiness because the API degrades to the local tier.
func HealthReady(cfg *config.Config, logg *logger.Logger, remote RemoteProber, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AquaFlow-Env", cfg.App.Env)

		components := map[string]string{}
		checkRemote(r.Context(), components, remote)
		checkComponent(r.Context(), components, "redis", cache)

		if components["redis"] != "up" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "redis unavailable").WithDetails(components))
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"status":     "ready",
			"components": components,
		})
	}
}

func checkRemote(ctx context.Context, components map[string]string, remote RemoteProber) {
	if remote == nil {
		components["database"] = "disabled"
		return
	}
	if remote.Available(ctx) {
		components["database"] = "up"
		return
	}
	components["database"] = "down"
}

func checkComponent(ctx context.Context, components map[string]string, name string, p Pinger) {
	if p == nil {
		components[name] = "disabled"
		return
	}
	if err := p.Ping(ctx); err != nil {
		components[name] = "down"
		return
	}
	components[name] = "up"
}
