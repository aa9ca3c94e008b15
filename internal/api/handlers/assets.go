package handlers

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/go-chi/chi/v5"

	"github.com/brc721/indexer/internal/config"
	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/parser"
	"github.com/brc721/indexer/internal/store"
)

// AddressAssetsHandler serves GET /addresses/{addr}/assets: every unspent
// OwnershipUtxo owned by H160(address.script_pubkey), each with its
// coalesced slot ranges, sorted by (collection, reg_txid, reg_vout).
func AddressAssetsHandler(s store.Reader, net *chaincfg.Params) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addrParam := chi.URLParam(r, "addr")

		addr, err := btcutil.DecodeAddress(addrParam, net)
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidAddress, "invalid address: "+err.Error())
			return
		}
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidAddress, "address has no spendable script: "+err.Error())
			return
		}
		owner := parser.DeriveOutputH160(script)

		utxos, err := s.ListUnspentOwnershipUtxosByOwner(r.Context(), owner)
		if err != nil {
			writeStoreError(w, "ListUnspentOwnershipUtxosByOwner", err)
			return
		}

		groups, err := groupAssets(r, s, utxos)
		if err != nil {
			writeStoreError(w, "ListOwnershipRanges", err)
			return
		}

		sort.Slice(groups, func(i, j int) bool {
			return lessByCollectionThenOutpoint(groups[i].Utxo, groups[j].Utxo)
		})

		writeJSON(w, http.StatusOK, models.APIResponse{Data: groups})
	}
}

// UtxoAssetsHandler serves GET /utxos/{txid}/{vout}/assets: the grouped
// unspent assets attached to one outpoint, sorted by
// (collection, init_owner_h160).
func UtxoAssetsHandler(s store.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txid := chi.URLParam(r, "txid")
		vout, err := strconv.ParseUint(chi.URLParam(r, "vout"), 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidConfig, "invalid vout: "+err.Error())
			return
		}

		utxos, err := s.ListUnspentOwnershipUtxosByOutpoint(r.Context(), txid, uint32(vout))
		if err != nil {
			writeStoreError(w, "ListUnspentOwnershipUtxosByOutpoint", err)
			return
		}

		groups, err := groupAssets(r, s, utxos)
		if err != nil {
			writeStoreError(w, "ListOwnershipRanges", err)
			return
		}

		sort.Slice(groups, func(i, j int) bool {
			a, b := groups[i].Utxo, groups[j].Utxo
			if a.CollectionKey != b.CollectionKey {
				return lessCollectionKey(a.CollectionKey, b.CollectionKey)
			}
			return string(a.BaseH160[:]) < string(b.BaseH160[:])
		})

		writeJSON(w, http.StatusOK, models.APIResponse{Data: groups})
	}
}

func groupAssets(r *http.Request, s store.Reader, utxos []models.OwnershipUtxo) ([]models.AssetGroup, error) {
	groups := make([]models.AssetGroup, 0, len(utxos))
	for _, u := range utxos {
		ranges, err := s.ListOwnershipRanges(r.Context(), u.RegTxid, u.RegVout, u.CollectionKey, u.BaseH160)
		if err != nil {
			return nil, err
		}
		groups = append(groups, models.AssetGroup{Utxo: u, Ranges: ranges})
	}
	return groups, nil
}

func lessCollectionKey(a, b models.CollectionKey) bool {
	if a.BlockHeight != b.BlockHeight {
		return a.BlockHeight < b.BlockHeight
	}
	return a.TxIndex < b.TxIndex
}

func lessByCollectionThenOutpoint(a, b models.OwnershipUtxo) bool {
	if a.CollectionKey != b.CollectionKey {
		return lessCollectionKey(a.CollectionKey, b.CollectionKey)
	}
	if a.RegTxid != b.RegTxid {
		return a.RegTxid < b.RegTxid
	}
	return a.RegVout < b.RegVout
}
