package handlers

import (
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/config"
	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/store"
)

// ListCollectionsHandler serves GET /collections.
func ListCollectionsHandler(s store.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collections, err := s.ListCollections(r.Context())
		if err != nil {
			writeStoreError(w, "ListCollections", err)
			return
		}
		writeJSON(w, http.StatusOK, models.APIResponse{Data: collections})
	}
}

// GetCollectionHandler serves GET /collections/{key}.
func GetCollectionHandler(s store.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := parseCollectionKey(chi.URLParam(r, "key"))
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidConfig, err.Error())
			return
		}

		collection, err := s.LoadCollection(r.Context(), key)
		if err != nil {
			writeStoreError(w, "LoadCollection", err)
			return
		}
		writeJSON(w, http.StatusOK, models.APIResponse{Data: collection})
	}
}

// TokenOwnerHandler serves GET /collections/{key}/tokens/{id}. {id} is the
// token's decimal u256 composite (96-bit slot << 160 | 160-bit initial
// owner) as produced by codec.Brc721Token.Decimal.
func TokenOwnerHandler(s store.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := parseCollectionKey(chi.URLParam(r, "key"))
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidConfig, err.Error())
			return
		}

		if _, err := s.LoadCollection(r.Context(), key); err != nil {
			writeStoreError(w, "LoadCollection", err)
			return
		}

		idParam := chi.URLParam(r, "id")
		u, ok := new(big.Int).SetString(idParam, 10)
		if !ok {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidConfig, "invalid token id: must be a decimal u256")
			return
		}
		token := codec.TokenFromU256(u)

		utxo, err := s.FindUnspentOwnershipUtxoForSlot(r.Context(), key, token.InitOwnerH160, token.Slot)
		if err == store.ErrNotFound {
			writeJSON(w, http.StatusOK, models.APIResponse{
				Data: models.TokenOwnerResult{
					IsInitialOwner: true,
					H160:           token.InitOwnerH160,
				},
			})
			return
		}
		if err != nil {
			slog.Error("find unspent ownership utxo for slot failed", "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: models.TokenOwnerResult{
				IsInitialOwner: false,
				H160:           utxo.OwnerH160,
				RegTxid:        utxo.RegTxid,
				RegVout:        utxo.RegVout,
				CreatedHeight:  utxo.CreatedHeight,
				CreatedTxIndex: utxo.CreatedTxIndex,
			},
		})
	}
}
