package parser

import (
	"context"
	"log/slog"

	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/store"
)

// applyRegisterCollection saves a new collection keyed by its registering
// transaction's position. save_collection is idempotent at the key, so a
// replayed or duplicate registration is a silent no-op rather than an error.
func applyRegisterCollection(ctx context.Context, wtx store.WriteTx, msg codec.RegisterCollection, key models.CollectionKey) error {
	if err := wtx.SaveCollection(ctx, key, msg.EVMAddress, msg.Rebaseable); err != nil {
		return err
	}
	slog.Info("collection registered", "key", key, "evmAddress", codec.H160(msg.EVMAddress).String(), "rebaseable", msg.Rebaseable)
	return nil
}
