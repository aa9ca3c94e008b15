package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/store"
)

// BeginTx opens a database/sql transaction and runs fn against it; the
// transaction commits only if fn returns nil, giving a single indexed block
// all-or-nothing durability.
func (d *DB) BeginTx(ctx context.Context, fn func(store.WriteTx) error) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&writeTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type writeTx struct {
	tx *sql.Tx
}

func (w *writeTx) SaveTip(ctx context.Context, height uint64, hash string) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO chain_state (id, height, hash, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET height = excluded.height, hash = excluded.hash, updated_at = excluded.updated_at
	`, height, hash, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save tip: %w", err)
	}
	return nil
}

func (w *writeTx) SaveCollection(ctx context.Context, key models.CollectionKey, evmAddress [20]byte, rebaseable bool) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO collections (block_height, tx_index, evm_address, rebaseable, inserted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (block_height, tx_index) DO NOTHING
	`, key.BlockHeight, key.TxIndex, evmAddress[:], rebaseable, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save collection %s: %w", key, err)
	}
	return nil
}

func (w *writeTx) SaveOwnershipUtxo(ctx context.Context, u models.OwnershipUtxo) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO ownership_utxos (
			reg_txid, reg_vout, collection_height, collection_tx_index, base_h160, owner_h160,
			created_height, created_tx_index, spent_txid, spent_height, spent_tx_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL)
	`, u.RegTxid, u.RegVout, u.CollectionKey.BlockHeight, u.CollectionKey.TxIndex, u.BaseH160[:], u.OwnerH160[:],
		u.CreatedHeight, u.CreatedTxIndex)
	if err != nil {
		return fmt.Errorf("save ownership utxo %s:%d: %w", u.RegTxid, u.RegVout, err)
	}
	return nil
}

func (w *writeTx) SaveOwnershipRange(ctx context.Context, r models.OwnershipRange) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO ownership_ranges (
			reg_txid, reg_vout, collection_height, collection_tx_index, base_h160, slot_start, slot_end
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.RegTxid, r.RegVout, r.CollectionKey.BlockHeight, r.CollectionKey.TxIndex, r.BaseH160[:],
		r.SlotStart.String(), r.SlotEnd.String())
	if err != nil {
		return fmt.Errorf("save ownership range %s:%d: %w", r.RegTxid, r.RegVout, err)
	}
	return nil
}

func (w *writeTx) MarkOwnershipUtxoSpent(ctx context.Context, regTxid string, regVout uint32, collection models.CollectionKey, base codec.H160, spentTxid string, spentHeight uint64, spentTxIndex uint32) error {
	res, err := w.tx.ExecContext(ctx, `
		UPDATE ownership_utxos SET spent_txid = ?, spent_height = ?, spent_tx_index = ?
		WHERE reg_txid = ? AND reg_vout = ? AND collection_height = ? AND collection_tx_index = ? AND base_h160 = ?
	`, spentTxid, spentHeight, spentTxIndex, regTxid, regVout, collection.BlockHeight, collection.TxIndex, base[:])
	if err != nil {
		return fmt.Errorf("mark ownership utxo spent %s:%d: %w", regTxid, regVout, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Reader ---

func (d *DB) LoadTip(ctx context.Context) (*models.ChainTip, error) {
	var tip models.ChainTip
	err := d.conn.QueryRowContext(ctx, `SELECT height, hash, updated_at FROM chain_state WHERE id = 1`).
		Scan(&tip.Height, &tip.Hash, &tip.UpdatedUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load tip: %w", err)
	}
	return &tip, nil
}

func (d *DB) LoadCollection(ctx context.Context, key models.CollectionKey) (*models.Collection, error) {
	var c models.Collection
	var addr []byte
	c.Key = key
	err := d.conn.QueryRowContext(ctx, `
		SELECT evm_address, rebaseable, inserted_at FROM collections WHERE block_height = ? AND tx_index = ?
	`, key.BlockHeight, key.TxIndex).Scan(&addr, &c.Rebaseable, &c.InsertedAtUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", key, err)
	}
	copy(c.EVMAddress[:], addr)
	return &c, nil
}

func (d *DB) ListCollections(ctx context.Context) ([]models.Collection, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT block_height, tx_index, evm_address, rebaseable, inserted_at FROM collections
		ORDER BY block_height, tx_index
	`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var out []models.Collection
	for rows.Next() {
		var c models.Collection
		var addr []byte
		if err := rows.Scan(&c.Key.BlockHeight, &c.Key.TxIndex, &addr, &c.Rebaseable, &c.InsertedAtUnix); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		copy(c.EVMAddress[:], addr)
		out = append(out, c)
	}
	return out, rows.Err()
}

const ownershipUtxoColumns = `
	reg_txid, reg_vout, collection_height, collection_tx_index, base_h160, owner_h160,
	created_height, created_tx_index, spent_txid, spent_height, spent_tx_index
`

func scanOwnershipUtxo(scan func(...interface{}) error) (models.OwnershipUtxo, error) {
	var u models.OwnershipUtxo
	var base, owner []byte
	var spentTxid sql.NullString
	var spentHeight sql.NullInt64
	var spentTxIndex sql.NullInt64

	if err := scan(
		&u.RegTxid, &u.RegVout, &u.CollectionKey.BlockHeight, &u.CollectionKey.TxIndex, &base, &owner,
		&u.CreatedHeight, &u.CreatedTxIndex, &spentTxid, &spentHeight, &spentTxIndex,
	); err != nil {
		return models.OwnershipUtxo{}, err
	}
	copy(u.BaseH160[:], base)
	copy(u.OwnerH160[:], owner)
	if spentTxid.Valid {
		txid := spentTxid.String
		height := uint64(spentHeight.Int64)
		txIndex := uint32(spentTxIndex.Int64)
		u.SpentTxid = &txid
		u.SpentHeight = &height
		u.SpentTxIndex = &txIndex
	}
	return u, nil
}

func (d *DB) ListUnspentOwnershipUtxosByOwner(ctx context.Context, owner codec.H160) ([]models.OwnershipUtxo, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+ownershipUtxoColumns+` FROM ownership_utxos WHERE owner_h160 = ? AND spent_txid IS NULL
	`, owner[:])
	if err != nil {
		return nil, fmt.Errorf("list unspent ownership utxos by owner: %w", err)
	}
	defer rows.Close()
	return scanOwnershipUtxos(rows)
}

func (d *DB) ListUnspentOwnershipUtxosByOutpoint(ctx context.Context, txid string, vout uint32) ([]models.OwnershipUtxo, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+ownershipUtxoColumns+` FROM ownership_utxos WHERE reg_txid = ? AND reg_vout = ? AND spent_txid IS NULL
	`, txid, vout)
	if err != nil {
		return nil, fmt.Errorf("list unspent ownership utxos by outpoint: %w", err)
	}
	defer rows.Close()
	return scanOwnershipUtxos(rows)
}

func scanOwnershipUtxos(rows *sql.Rows) ([]models.OwnershipUtxo, error) {
	var out []models.OwnershipUtxo
	for rows.Next() {
		u, err := scanOwnershipUtxo(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan ownership utxo: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (d *DB) ListOwnershipRanges(ctx context.Context, regTxid string, regVout uint32, collection models.CollectionKey, base codec.H160) ([]models.OwnershipRange, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT reg_txid, reg_vout, collection_height, collection_tx_index, base_h160, slot_start, slot_end
		FROM ownership_ranges
		WHERE reg_txid = ? AND reg_vout = ? AND collection_height = ? AND collection_tx_index = ? AND base_h160 = ?
	`, regTxid, regVout, collection.BlockHeight, collection.TxIndex, base[:])
	if err != nil {
		return nil, fmt.Errorf("list ownership ranges: %w", err)
	}
	defer rows.Close()

	var out []models.OwnershipRange
	for rows.Next() {
		var r models.OwnershipRange
		var baseBytes []byte
		var start, end string
		if err := rows.Scan(&r.RegTxid, &r.RegVout, &r.CollectionKey.BlockHeight, &r.CollectionKey.TxIndex, &baseBytes, &start, &end); err != nil {
			return nil, fmt.Errorf("scan ownership range: %w", err)
		}
		copy(r.BaseH160[:], baseBytes)
		r.SlotStart, _ = new(big.Int).SetString(start, 10)
		r.SlotEnd, _ = new(big.Int).SetString(end, 10)
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindUnspentOwnershipUtxoForSlot scans the unspent ownership_utxos for the
// given collection/base and checks each one's ranges in Go: slot bounds are
// stored as decimal text (they exceed sqlite's 64-bit INTEGER range) so the
// containment check can't be pushed into SQL.
func (d *DB) FindUnspentOwnershipUtxoForSlot(ctx context.Context, collection models.CollectionKey, base codec.H160, slot *big.Int) (*models.OwnershipUtxo, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+ownershipUtxoColumns+`
		FROM ownership_utxos
		WHERE collection_height = ? AND collection_tx_index = ? AND base_h160 = ? AND spent_txid IS NULL
	`, collection.BlockHeight, collection.TxIndex, base[:])
	if err != nil {
		return nil, fmt.Errorf("find unspent ownership utxo for slot: %w", err)
	}
	defer rows.Close()

	candidates, err := scanOwnershipUtxos(rows)
	if err != nil {
		return nil, err
	}

	for _, u := range candidates {
		ranges, err := d.ListOwnershipRanges(ctx, u.RegTxid, u.RegVout, collection, base)
		if err != nil {
			return nil, err
		}
		for _, r := range ranges {
			if slot.Cmp(r.SlotStart) >= 0 && slot.Cmp(r.SlotEnd) <= 0 {
				found := u
				return &found, nil
			}
		}
	}
	return nil, store.ErrNotFound
}
