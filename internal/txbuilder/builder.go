// Package txbuilder constructs, funds, signs, and broadcasts protocol
// transactions: the node holds the descriptor wallet's UTXOs, this package
// decides the output list and supplies the signatures.
package txbuilder

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"

	"github.com/brc721/indexer/internal/chain"
	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/config"
	"github.com/brc721/indexer/internal/wallet"
)

// Payment is one non-envelope output: an address and a sat amount.
type Payment struct {
	Address    string
	AmountSats int64
}

// Outpoint pins an explicit input, forbidding the node's coin selection from
// touching or reusing it — the Mix path.
type Outpoint struct {
	Txid string
	Vout uint32
}

// OwnershipGroupParam is one RegisterOwnership group: the payment that
// carries it and the slot ranges it grants, correlated 1:1 with vout =
// (group ordinal) + 1.
type OwnershipGroupParam struct {
	Address    string
	AmountSats int64
	Items      []codec.SlotItem
}

// Builder owns only the PSBT currently under construction; it holds no
// other persisted state. The descriptor wallet and encrypted master key
// live behind the KeyStore and node RPC it is handed.
type Builder struct {
	rpc     chain.WalletRPC
	keys    wallet.KeyStore
	feeRate int64 // fallback sat/vB when an operation's fee_rate is 0 and the node cannot estimate
}

// NewBuilder creates a Builder against a wallet-loaded node RPC endpoint.
func NewBuilder(rpc chain.WalletRPC, keys wallet.KeyStore, defaultFeeRateSatVB int64) *Builder {
	return &Builder{rpc: rpc, keys: keys, feeRate: defaultFeeRateSatVB}
}

// RegisterCollection issues a RegisterCollection envelope with no payment outputs.
func (b *Builder) RegisterCollection(ctx context.Context, evmAddress [20]byte, rebaseable bool, feeRate int64) (string, error) {
	payload, err := codec.EncodePayload(codec.RegisterCollection{EVMAddress: evmAddress, Rebaseable: rebaseable})
	if err != nil {
		return "", fmt.Errorf("%w: encode register_collection: %v", ErrInvalidOperation, err)
	}
	return b.buildAndBroadcast(ctx, payload, nil, nil, feeRate)
}

// RegisterOwnership issues a RegisterOwnership envelope; groups[i]'s slot
// ranges are granted to the address paid at vout = i+1.
func (b *Builder) RegisterOwnership(ctx context.Context, collHeight uint64, collTxIndex uint32, groups []OwnershipGroupParam, feeRate int64) (string, error) {
	if len(groups) == 0 {
		return "", fmt.Errorf("%w: register_ownership requires at least one group", ErrInvalidOperation)
	}

	codecGroups := make([]codec.OwnershipGroup, len(groups))
	payments := make([]Payment, len(groups))
	for i, g := range groups {
		codecGroups[i] = codec.OwnershipGroup{Items: g.Items}
		payments[i] = Payment{Address: g.Address, AmountSats: g.AmountSats}
	}

	payload, err := codec.EncodePayload(codec.RegisterOwnership{
		CollectionHeight:  collHeight,
		CollectionTxIndex: collTxIndex,
		Groups:            codecGroups,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode register_ownership: %v", ErrInvalidOperation, err)
	}
	return b.buildAndBroadcast(ctx, payload, payments, nil, feeRate)
}

// SendPayment broadcasts a plain value transfer with no protocol envelope
// and no data output — ambient wallet functionality the protocol still needs
// to move its own change and fund its own fees.
func (b *Builder) SendPayment(ctx context.Context, address string, amountSats int64, feeRate int64) (string, error) {
	return b.buildAndBroadcast(ctx, nil, []Payment{{Address: address, AmountSats: amountSats}}, nil, feeRate)
}

// RawOpReturn broadcasts an arbitrary caller-supplied envelope payload with
// no payment outputs.
func (b *Builder) RawOpReturn(ctx context.Context, payload []byte, feeRate int64) (string, error) {
	return b.buildAndBroadcast(ctx, payload, nil, nil, feeRate)
}

// Mix broadcasts a caller-supplied Mix envelope payload against pinned
// input outpoints, rewrapping ownership into the listed payments.
func (b *Builder) Mix(ctx context.Context, inputs []Outpoint, payload []byte, payments []Payment, feeRate int64) (string, error) {
	if len(inputs) == 0 {
		return "", fmt.Errorf("%w: mix requires at least one pinned input", ErrInvalidOperation)
	}
	return b.buildAndBroadcast(ctx, payload, payments, inputs, feeRate)
}

// buildAndBroadcast runs the shared algorithm: build the output list
// (vout=0 is the envelope whenever payload is non-empty — SendPayment is the
// one caller that passes no payload, and gets a plain payment-only output
// list instead), fund via the node, lock/sign/unlock, then broadcast.
func (b *Builder) buildAndBroadcast(ctx context.Context, payload []byte, payments []Payment, explicitInputs []Outpoint, feeRate int64) (string, error) {
	feeRate = b.resolveFeeRate(ctx, feeRate, config.FeeEstimateConfTarget)

	locked := false
	if len(explicitInputs) > 0 {
		if err := b.rpc.LockUnspent(ctx, false, toOutpointRPC(explicitInputs)); err != nil {
			return "", fmt.Errorf("%w: lock explicit inputs: %v", ErrLockedOutpoint, err)
		}
		locked = true
	}
	defer func() {
		if !locked {
			return
		}
		if err := b.rpc.LockUnspent(ctx, true, toOutpointRPC(explicitInputs)); err != nil {
			slog.Warn("failed to unlock explicit inputs", "error", err)
		}
	}()

	outputs := buildOutputsTemplate(payload, payments)
	psbtB64, err := b.rpc.WalletCreateFundedPSBT(ctx, toOutpointRPC(explicitInputs), outputs, feeRate, len(explicitInputs) > 0)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFundingFailed, err)
	}

	rawHex, err := b.signAndFinalize(psbtB64, payload)
	if err != nil {
		return "", err
	}

	txid, err := b.rpc.SendRawTransaction(ctx, rawHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}

	slog.Info("protocol transaction broadcast", "txid", txid, "payloadLen", len(payload), "paymentCount", len(payments))
	return txid, nil
}

// buildOutputsTemplate returns the walletcreatefundedpsbt outputs array.
// When payload is non-empty, output 0 is a generic OP_RETURN data carrier
// sized to the payload; signAndFinalize overwrites its scriptPubKey with the
// exact protocol envelope before signing, since the node's RPC template has
// no way to express the envelope's leading opcode tag directly. With an
// empty payload there is no data output. The payments follow, one per
// output in order.
func buildOutputsTemplate(payload []byte, payments []Payment) []map[string]interface{} {
	outputs := make([]map[string]interface{}, 0, len(payments)+1)
	if len(payload) > 0 {
		outputs = append(outputs, map[string]interface{}{"data": hex.EncodeToString(payload)})
	}
	for _, p := range payments {
		outputs = append(outputs, map[string]interface{}{p.Address: btcutil.Amount(p.AmountSats).ToBTC()})
	}
	return outputs
}

// decodePSBT parses a base64-encoded PSBT as returned by walletcreatefundedpsbt.
func decodePSBT(psbtB64 string) (*psbt.Packet, error) {
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader([]byte(psbtB64)), true)
	if err != nil {
		return nil, fmt.Errorf("%w: decode psbt: %v", ErrFundingFailed, err)
	}
	return pkt, nil
}

func toOutpointRPC(outpoints []Outpoint) []chain.OutpointRPC {
	out := make([]chain.OutpointRPC, len(outpoints))
	for i, o := range outpoints {
		out[i] = chain.OutpointRPC{Txid: o.Txid, Vout: o.Vout}
	}
	return out
}
