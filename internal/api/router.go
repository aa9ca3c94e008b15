// Package api wires the ReadAPI's chi router: middleware stack plus routes
// over store.Reader, per spec.md §6's HTTP surface.
package api

import (
	"log/slog"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/go-chi/chi/v5"

	"github.com/brc721/indexer/internal/api/handlers"
	"github.com/brc721/indexer/internal/api/middleware"
	"github.com/brc721/indexer/internal/config"
	"github.com/brc721/indexer/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRouter builds the chi router serving the read-only collection/token/
// asset projection over s.
func NewRouter(s store.Reader, cfg *config.Config, net *chaincfg.Params) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogging)
	r.Use(middleware.HostCheck)
	r.Use(middleware.CORS)

	slog.Info("router initialized", "middleware", []string{"requestLogging", "hostCheck", "cors"})

	r.Get("/health", handlers.HealthHandler(cfg, Version))
	r.Get("/state", handlers.StateHandler(s))

	r.Route("/collections", func(r chi.Router) {
		r.Get("/", handlers.ListCollectionsHandler(s))
		r.Get("/{key}", handlers.GetCollectionHandler(s))
		r.Get("/{key}/tokens/{id}", handlers.TokenOwnerHandler(s))
	})

	r.Get("/addresses/{addr}/assets", handlers.AddressAssetsHandler(s, net))
	r.Get("/utxos/{txid}/{vout}/assets", handlers.UtxoAssetsHandler(s))

	return r
}
