package handlers

import (
	"log/slog"
	"net/http"

	"github.com/brc721/indexer/internal/config"
	"github.com/brc721/indexer/internal/models"
)

// HealthHandler serves GET /health.
func HealthHandler(cfg *config.Config, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)
		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: map[string]string{
				"status":  "ok",
				"version": version,
				"network": cfg.Network,
			},
		})
	}
}
