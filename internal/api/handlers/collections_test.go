package handlers

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/store"
	"github.com/brc721/indexer/internal/store/memstore"
)

func seedCollection(t *testing.T, s *memstore.Store, key models.CollectionKey, evmAddr [20]byte) {
	t.Helper()
	err := s.BeginTx(context.Background(), func(wtx store.WriteTx) error {
		return wtx.SaveCollection(context.Background(), key, evmAddr, false)
	})
	if err != nil {
		t.Fatalf("seedCollection: %v", err)
	}
}

func setupCollectionsRouter(s *memstore.Store) http.Handler {
	r := chi.NewRouter()
	r.Get("/collections", ListCollectionsHandler(s))
	r.Get("/collections/{key}", GetCollectionHandler(s))
	r.Get("/collections/{key}/tokens/{id}", TokenOwnerHandler(s))
	return r
}

func TestListCollectionsHandler(t *testing.T) {
	s := memstore.New()
	var evmAddr [20]byte
	seedCollection(t, s, models.CollectionKey{BlockHeight: 100, TxIndex: 0}, evmAddr)

	router := setupCollectionsRouter(s)
	req := httptest.NewRequest("GET", "/collections", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if resp.Data == nil {
		t.Fatal("data is nil")
	}
}

func TestGetCollectionHandler_NotFound(t *testing.T) {
	s := memstore.New()
	router := setupCollectionsRouter(s)

	req := httptest.NewRequest("GET", "/collections/100:0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	var resp models.APIError
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if resp.Error.Code != "ERROR_NOT_FOUND" {
		t.Errorf("code = %q, want ERROR_NOT_FOUND", resp.Error.Code)
	}
}

func TestGetCollectionHandler_BadKey(t *testing.T) {
	s := memstore.New()
	router := setupCollectionsRouter(s)

	req := httptest.NewRequest("GET", "/collections/not-a-key", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestTokenOwnerHandler_InitialOwner(t *testing.T) {
	s := memstore.New()
	var evmAddr [20]byte
	key := models.CollectionKey{BlockHeight: 100, TxIndex: 0}
	seedCollection(t, s, key, evmAddr)

	var initOwner codec.H160
	copy(initOwner[:], []byte("initial-owner-h1601!"))
	token, err := codec.NewBrc721Token(big.NewInt(7), initOwner)
	if err != nil {
		t.Fatalf("NewBrc721Token: %v", err)
	}

	router := setupCollectionsRouter(s)
	req := httptest.NewRequest("GET", "/collections/100:0/tokens/"+token.Decimal(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}

	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	data, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("remarshal data: %v", err)
	}
	var result models.TokenOwnerResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal TokenOwnerResult: %v", err)
	}
	if !result.IsInitialOwner {
		t.Error("isInitialOwner = false, want true")
	}
	if result.H160 != initOwner {
		t.Errorf("h160 = %x, want %x", result.H160, initOwner)
	}
}

func TestTokenOwnerHandler_BadTokenID(t *testing.T) {
	s := memstore.New()
	var evmAddr [20]byte
	seedCollection(t, s, models.CollectionKey{BlockHeight: 100, TxIndex: 0}, evmAddr)

	router := setupCollectionsRouter(s)
	req := httptest.NewRequest("GET", "/collections/100:0/tokens/not-a-number", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
