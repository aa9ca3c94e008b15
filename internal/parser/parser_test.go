package parser

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/store"
	"github.com/brc721/indexer/internal/store/memstore"
)

func envelopeTxOut(t *testing.T, payload []byte) *wire.TxOut {
	t.Helper()
	out, err := codec.BuildEnvelopeTxOut(payload)
	if err != nil {
		t.Fatalf("BuildEnvelopeTxOut: %v", err)
	}
	return out
}

func witnessPubkeyTxIn(t *testing.T) (*wire.TxIn, []byte) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pub := priv.PubKey().SerializeCompressed()

	in := &wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: 0xffffffff},
		Witness:          wire.TxWitness{make([]byte, 64), pub},
	}
	return in, pub
}

func plainPaymentTxOut() *wire.TxOut {
	return wire.NewTxOut(1000, []byte{0x00, 0x14, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20})
}

// witnessV0PaymentTxOut builds a P2WPKH output whose 20-byte witness program
// is filled with a single repeated byte, so the expected owner_h160 is known
// up front without needing to derive it back out.
func witnessV0PaymentTxOut(amount int64, fill byte) (*wire.TxOut, codec.H160) {
	hash := make([]byte, 20)
	for i := range hash {
		hash[i] = fill
	}
	script := append([]byte{0x00, 0x14}, hash...)
	var h160 codec.H160
	copy(h160[:], hash)
	return wire.NewTxOut(amount, script), h160
}

func TestProcessBlockRegisterCollectionThenOwnership(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	p := New(s)

	var genesis wire.BlockHeader
	collectionTx := wire.NewMsgTx(2)
	rc := codec.RegisterCollection{EVMAddress: [20]byte{0xaa}, Rebaseable: false}
	rcPayload, err := codec.EncodePayload(rc)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	collectionTx.AddTxOut(envelopeTxOut(t, rcPayload))

	block1 := wire.NewMsgBlock(&genesis)
	block1.AddTransaction(collectionTx)
	block1Hash := block1.Header.BlockHash()

	if err := p.ProcessBlock(ctx, 100, block1Hash.String(), block1); err != nil {
		t.Fatalf("ProcessBlock(collection): %v", err)
	}

	collectionKey := models.CollectionKey{BlockHeight: 100, TxIndex: 0}
	got, err := s.LoadCollection(ctx, collectionKey)
	if err != nil {
		t.Fatalf("LoadCollection: %v", err)
	}
	if got.EVMAddress != rc.EVMAddress {
		t.Errorf("LoadCollection = %+v", got)
	}

	ownershipTx := wire.NewMsgTx(2)
	in, _ := witnessPubkeyTxIn(t)
	ownershipTx.AddTxIn(in)

	ro := codec.RegisterOwnership{
		CollectionHeight:  100,
		CollectionTxIndex: 0,
		Groups: []codec.OwnershipGroup{
			{Items: []codec.SlotItem{codec.RangeSlot(big.NewInt(0), big.NewInt(9))}},
		},
	}
	roPayload, err := codec.EncodePayload(ro)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	ownershipTx.AddTxOut(envelopeTxOut(t, roPayload))
	ownershipTx.AddTxOut(plainPaymentTxOut())

	header2 := wire.BlockHeader{PrevBlock: block1Hash}
	block2 := wire.NewMsgBlock(&header2)
	block2.AddTransaction(ownershipTx)
	block2Hash := block2.Header.BlockHash()

	if err := p.ProcessBlock(ctx, 101, block2Hash.String(), block2); err != nil {
		t.Fatalf("ProcessBlock(ownership): %v", err)
	}

	txid := ownershipTx.TxHash().String()
	ranges, err := s.ListOwnershipRanges(ctx, txid, 1, collectionKey, mustDeriveOwner(t, ownershipTx))
	if err != nil {
		t.Fatalf("ListOwnershipRanges: %v", err)
	}
	if len(ranges) != 1 || ranges[0].SlotStart.Cmp(big.NewInt(0)) != 0 || ranges[0].SlotEnd.Cmp(big.NewInt(9)) != 0 {
		t.Errorf("ranges = %+v", ranges)
	}
}

func mustDeriveOwner(t *testing.T, tx *wire.MsgTx) codec.H160 {
	t.Helper()
	owner, err := DeriveInputOwnerH160(tx)
	if err != nil {
		t.Fatalf("DeriveInputOwnerH160: %v", err)
	}
	return owner
}

func TestProcessBlockOrphanDetection(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	p := New(s)

	err := s.BeginTx(ctx, func(w store.WriteTx) error {
		return w.SaveTip(ctx, 100, "hash100")
	})
	if err != nil {
		t.Fatalf("seed tip: %v", err)
	}

	var header wire.BlockHeader // PrevBlock zero, won't match "hash100"
	block := wire.NewMsgBlock(&header)

	if err := p.ProcessBlock(ctx, 101, "hash101", block); !errors.Is(err, ErrOrphanDetected) {
		t.Errorf("ProcessBlock error = %v, want ErrOrphanDetected", err)
	}

	tip, err := s.LoadTip(ctx)
	if err != nil {
		t.Fatalf("LoadTip: %v", err)
	}
	if tip.Height != 100 {
		t.Errorf("tip should be unchanged after orphan rejection, got height=%d", tip.Height)
	}
}

// TestS6MixRewrapWithComplement indexes a RegisterCollection, a
// RegisterOwnership covering slots [0,9], then a Mix spending that single
// ownership UTXO into one explicit output (slots [0,1]) and one complement
// output (slots [2,9]) — mirroring spec.md §8 scenario S6 at the
// store/parser level, not just codec encode/decode.
func TestS6MixRewrapWithComplement(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	p := New(s)

	var genesis wire.BlockHeader
	collectionTx := wire.NewMsgTx(2)
	rc := codec.RegisterCollection{EVMAddress: [20]byte{0xaa}, Rebaseable: false}
	rcPayload, err := codec.EncodePayload(rc)
	if err != nil {
		t.Fatalf("EncodePayload(RegisterCollection): %v", err)
	}
	collectionTx.AddTxOut(envelopeTxOut(t, rcPayload))

	block1 := wire.NewMsgBlock(&genesis)
	block1.AddTransaction(collectionTx)
	block1Hash := block1.Header.BlockHash()
	if err := p.ProcessBlock(ctx, 100, block1Hash.String(), block1); err != nil {
		t.Fatalf("ProcessBlock(collection): %v", err)
	}
	collectionKey := models.CollectionKey{BlockHeight: 100, TxIndex: 0}

	ownershipTx := wire.NewMsgTx(2)
	regIn, _ := witnessPubkeyTxIn(t)
	ownershipTx.AddTxIn(regIn)
	ro := codec.RegisterOwnership{
		CollectionHeight:  100,
		CollectionTxIndex: 0,
		Groups: []codec.OwnershipGroup{
			{Items: []codec.SlotItem{codec.RangeSlot(big.NewInt(0), big.NewInt(9))}},
		},
	}
	roPayload, err := codec.EncodePayload(ro)
	if err != nil {
		t.Fatalf("EncodePayload(RegisterOwnership): %v", err)
	}
	ownershipTx.AddTxOut(envelopeTxOut(t, roPayload))
	ownershipTx.AddTxOut(plainPaymentTxOut())

	header2 := wire.BlockHeader{PrevBlock: block1Hash}
	block2 := wire.NewMsgBlock(&header2)
	block2.AddTransaction(ownershipTx)
	block2Hash := block2.Header.BlockHash()
	if err := p.ProcessBlock(ctx, 101, block2Hash.String(), block2); err != nil {
		t.Fatalf("ProcessBlock(ownership): %v", err)
	}

	baseOwner := mustDeriveOwner(t, ownershipTx)
	ownershipHash := ownershipTx.TxHash()
	ownershipTxid := ownershipHash.String()

	mixTx := wire.NewMsgTx(2)
	mixTx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&ownershipHash, 1), nil, nil))

	mix := codec.Mix{
		Outputs: []codec.MixOutput{
			{Ranges: []codec.MixRange{{Start: big.NewInt(0), End: big.NewInt(2)}}},
			{IsComplement: true},
		},
	}
	mixPayload, err := codec.EncodePayload(mix)
	if err != nil {
		t.Fatalf("EncodePayload(Mix): %v", err)
	}
	mixTx.AddTxOut(envelopeTxOut(t, mixPayload))

	explicitOut, explicitOwner := witnessV0PaymentTxOut(1000, 0xbb)
	complementOut, complementOwner := witnessV0PaymentTxOut(1000, 0xcc)
	mixTx.AddTxOut(explicitOut)
	mixTx.AddTxOut(complementOut)

	header3 := wire.BlockHeader{PrevBlock: block2Hash}
	block3 := wire.NewMsgBlock(&header3)
	block3.AddTransaction(mixTx)
	block3Hash := block3.Header.BlockHash()
	if err := p.ProcessBlock(ctx, 102, block3Hash.String(), block3); err != nil {
		t.Fatalf("ProcessBlock(mix): %v", err)
	}

	stillUnspent, err := s.ListUnspentOwnershipUtxosByOutpoint(ctx, ownershipTxid, 1)
	if err != nil {
		t.Fatalf("ListUnspentOwnershipUtxosByOutpoint(consumed): %v", err)
	}
	if len(stillUnspent) != 0 {
		t.Errorf("consumed ownership utxo %s:1 still listed unspent: %+v", ownershipTxid, stillUnspent)
	}

	mixTxid := mixTx.TxHash().String()

	explicitUtxos, err := s.ListUnspentOwnershipUtxosByOutpoint(ctx, mixTxid, 1)
	if err != nil {
		t.Fatalf("ListUnspentOwnershipUtxosByOutpoint(explicit): %v", err)
	}
	if len(explicitUtxos) != 1 || explicitUtxos[0].OwnerH160 != explicitOwner || explicitUtxos[0].BaseH160 != baseOwner {
		t.Fatalf("explicit output utxo = %+v", explicitUtxos)
	}
	explicitRanges, err := s.ListOwnershipRanges(ctx, mixTxid, 1, collectionKey, baseOwner)
	if err != nil {
		t.Fatalf("ListOwnershipRanges(explicit): %v", err)
	}
	if len(explicitRanges) != 1 || explicitRanges[0].SlotStart.Cmp(big.NewInt(0)) != 0 || explicitRanges[0].SlotEnd.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("explicit ranges = %+v, want [0,1]", explicitRanges)
	}

	complementUtxos, err := s.ListUnspentOwnershipUtxosByOutpoint(ctx, mixTxid, 2)
	if err != nil {
		t.Fatalf("ListUnspentOwnershipUtxosByOutpoint(complement): %v", err)
	}
	if len(complementUtxos) != 1 || complementUtxos[0].OwnerH160 != complementOwner || complementUtxos[0].BaseH160 != baseOwner {
		t.Fatalf("complement output utxo = %+v", complementUtxos)
	}
	complementRanges, err := s.ListOwnershipRanges(ctx, mixTxid, 2, collectionKey, baseOwner)
	if err != nil {
		t.Fatalf("ListOwnershipRanges(complement): %v", err)
	}
	if len(complementRanges) != 1 || complementRanges[0].SlotStart.Cmp(big.NewInt(2)) != 0 || complementRanges[0].SlotEnd.Cmp(big.NewInt(9)) != 0 {
		t.Errorf("complement ranges = %+v, want [2,9]", complementRanges)
	}
}
