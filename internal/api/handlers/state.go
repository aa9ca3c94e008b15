package handlers

import (
	"net/http"

	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/store"
)

// StateHandler serves GET /state: the chain tip Store has folded in so far.
func StateHandler(s store.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tip, err := s.LoadTip(r.Context())
		if err != nil {
			writeStoreError(w, "LoadTip", err)
			return
		}
		writeJSON(w, http.StatusOK, models.APIResponse{Data: tip})
	}
}
