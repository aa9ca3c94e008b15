// Package handlers implements the ReadAPI's HTTP surface: thin adapters
// between chi routes and store.Reader, returning the teacher's
// APIResponse/APIError JSON envelope.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/brc721/indexer/internal/config"
	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.APIError{
		Error: models.APIErrorDetail{Code: code, Message: message},
	})
}

// writeStoreError maps a Reader error to the right HTTP status: ErrNotFound
// becomes 404, anything else is a 500 with the error logged server-side.
func writeStoreError(w http.ResponseWriter, op string, err error) {
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, config.ErrorNotFound, "not found")
		return
	}
	slog.Error("store operation failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "internal error")
}

// parseCollectionKey parses the "<height>:<index>" route form used by
// {key} path segments.
func parseCollectionKey(s string) (models.CollectionKey, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return models.CollectionKey{}, fmt.Errorf("collection key must be \"<height>:<index>\", got %q", s)
	}
	height, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return models.CollectionKey{}, fmt.Errorf("invalid block height in collection key: %w", err)
	}
	txIndex, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return models.CollectionKey{}, fmt.Errorf("invalid tx index in collection key: %w", err)
	}
	return models.CollectionKey{BlockHeight: height, TxIndex: uint32(txIndex)}, nil
}
