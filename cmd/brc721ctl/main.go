// Command brc721ctl drives TxBuilder from the command line: wallet setup on
// the node plus the five protocol operations (register-collection,
// register-ownership, send, raw-opreturn, mix).
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/brc721/indexer/internal/chain"
	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/config"
	"github.com/brc721/indexer/internal/logging"
	"github.com/brc721/indexer/internal/txbuilder"
	"github.com/brc721/indexer/internal/wallet"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "wallet-init":
		err = runWalletInit(os.Args[2:])
	case "register-collection":
		err = runRegisterCollection(os.Args[2:])
	case "register-ownership":
		err = runRegisterOwnership(os.Args[2:])
	case "send":
		err = runSend(os.Args[2:])
	case "raw-opreturn":
		err = runRawOpReturn(os.Args[2:])
	case "mix":
		err = runMix(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		slog.Error("brc721ctl command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: brc721ctl <command> [flags]

Commands:
  wallet-init          Create the node's watch-only wallet and import BIP-86 descriptors
  register-collection  Broadcast a RegisterCollection transaction
  register-ownership   Broadcast a RegisterOwnership transaction
  send                 Broadcast a plain payment (no envelope)
  raw-opreturn         Broadcast an arbitrary OP_RETURN envelope payload
  mix                  Broadcast a Mix transaction over explicit token inputs
`)
}

func setupCtl() (*config.Config, *chain.Client, *wallet.MnemonicKeyStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if _, err := logging.Setup(cfg.LogLevel, cfg.LogDir); err != nil {
		return nil, nil, nil, fmt.Errorf("setup logging: %w", err)
	}
	if cfg.MnemonicFile == "" {
		return nil, nil, nil, fmt.Errorf("BRC721_MNEMONIC_FILE is required for brc721ctl")
	}

	rpcUser, rpcPass := cfg.RPCUser, cfg.RPCPass
	if cfg.RPCCookiePath != "" {
		rpcUser, rpcPass, err = chain.ReadCookieAuth(cfg.RPCCookiePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read rpc cookie: %w", err)
		}
	}

	node := chain.NewClient(chain.ClientConfig{
		URL:                     cfg.RPCURL,
		User:                    rpcUser,
		Pass:                    rpcPass,
		RequestsPerSecond:       config.RPCRateLimitPerSecond,
		CircuitBreakerThreshold: config.RPCCircuitFailThreshold,
		CircuitBreakerCooldown:  config.RPCCircuitCooldown,
		Timeout:                 config.RPCRequestTimeout,
	})

	net := wallet.NetworkParams(cfg.Network)
	keys := wallet.NewMnemonicKeyStore(cfg.MnemonicFile, net)

	return cfg, node, keys, nil
}

func runWalletInit(args []string) error {
	fs := flag.NewFlagSet("wallet-init", flag.ExitOnError)
	name := fs.String("name", "brc721", "node wallet name to create")
	rescan := fs.Bool("rescan", false, "rescan from genesis instead of import-from-now")
	lookahead := fs.Int("lookahead", wallet.AddressGapLimit, "descriptor range end (inclusive)")
	fs.Parse(args)

	cfg, node, _, err := setupCtl()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if err := node.CreateWallet(ctx, wallet.BuildCoreCreateWalletParams(*name)); err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}
	slog.Info("watch-only wallet created", "name", *name)

	mnemonic, err := wallet.ReadMnemonicFromFile(cfg.MnemonicFile)
	if err != nil {
		return err
	}
	seed, err := wallet.MnemonicToSeed(mnemonic)
	if err != nil {
		return err
	}
	net := wallet.NetworkParams(cfg.Network)
	master, err := wallet.DeriveMasterKey(seed, net)
	if err != nil {
		return err
	}
	accountXpub, err := wallet.DeriveAccountXpub(master, net)
	if err != nil {
		return err
	}

	extDesc := wallet.BuildTaprootDescriptor(accountXpub, false)
	intDesc := wallet.BuildTaprootDescriptor(accountXpub, true)

	extChecksummed, err := node.GetDescriptorInfo(ctx, extDesc)
	if err != nil {
		return fmt.Errorf("get external descriptor checksum: %w", err)
	}
	intChecksummed, err := node.GetDescriptorInfo(ctx, intDesc)
	if err != nil {
		return fmt.Errorf("get internal descriptor checksum: %w", err)
	}

	payload := wallet.BuildCoreImportDescriptorsPayload(extChecksummed, intChecksummed, *lookahead, *rescan)
	if err := node.ImportDescriptors(ctx, payload); err != nil {
		return fmt.Errorf("import descriptors: %w", err)
	}

	slog.Info("BIP-86 descriptors imported", "external", extChecksummed, "internal", intChecksummed, "rescan", *rescan)
	return nil
}

func runRegisterCollection(args []string) error {
	fs := flag.NewFlagSet("register-collection", flag.ExitOnError)
	evmAddr := fs.String("evm-address", "", "20-byte EVM collection address, hex-encoded")
	rebaseable := fs.Bool("rebaseable", false, "mark the collection rebaseable")
	feeRate := fs.Int64("fee-rate", 0, "fee rate in sat/vB (0 = estimate)")
	fs.Parse(args)

	addr, err := parseH160(*evmAddr)
	if err != nil {
		return err
	}

	_, node, keys, err := setupCtl()
	if err != nil {
		return err
	}
	b := txbuilder.NewBuilder(node, keys, config.DefaultFeeRateSatPerVByte)

	txid, err := b.RegisterCollection(context.Background(), addr, *rebaseable, *feeRate)
	if err != nil {
		return fmt.Errorf("register collection: %w", err)
	}
	fmt.Println(txid)
	return nil
}

// ownershipGroupJSON is the on-disk shape accepted by register-ownership's
// --groups-file flag: one entry per RegisterOwnership group.
type ownershipGroupJSON struct {
	Address    string `json:"address"`
	AmountSats int64  `json:"amountSats"`
	Ranges     []struct {
		Start string `json:"start"`
		End   string `json:"end,omitempty"`
	} `json:"ranges"`
}

func runRegisterOwnership(args []string) error {
	fs := flag.NewFlagSet("register-ownership", flag.ExitOnError)
	collHeight := fs.Uint64("collection-height", 0, "registering transaction's block height")
	collTxIndex := fs.Uint("collection-tx-index", 0, "registering transaction's index within its block")
	groupsFile := fs.String("groups-file", "", "path to a JSON array of {address, amountSats, ranges:[{start,end}]}")
	feeRate := fs.Int64("fee-rate", 0, "fee rate in sat/vB (0 = estimate)")
	fs.Parse(args)

	if *groupsFile == "" {
		return fmt.Errorf("--groups-file is required")
	}
	raw, err := os.ReadFile(*groupsFile)
	if err != nil {
		return fmt.Errorf("read groups file: %w", err)
	}
	var groupsJSON []ownershipGroupJSON
	if err := json.Unmarshal(raw, &groupsJSON); err != nil {
		return fmt.Errorf("parse groups file: %w", err)
	}

	groups := make([]txbuilder.OwnershipGroupParam, 0, len(groupsJSON))
	for i, g := range groupsJSON {
		items := make([]codec.SlotItem, 0, len(g.Ranges))
		for _, r := range g.Ranges {
			start, ok := new(big.Int).SetString(r.Start, 10)
			if !ok {
				return fmt.Errorf("group %d: invalid range start %q", i, r.Start)
			}
			if r.End == "" {
				items = append(items, codec.SingleSlot(start))
				continue
			}
			end, ok := new(big.Int).SetString(r.End, 10)
			if !ok {
				return fmt.Errorf("group %d: invalid range end %q", i, r.End)
			}
			items = append(items, codec.RangeSlot(start, end))
		}
		groups = append(groups, txbuilder.OwnershipGroupParam{
			Address:    g.Address,
			AmountSats: g.AmountSats,
			Items:      items,
		})
	}

	_, node, keys, err := setupCtl()
	if err != nil {
		return err
	}
	b := txbuilder.NewBuilder(node, keys, config.DefaultFeeRateSatPerVByte)

	txid, err := b.RegisterOwnership(context.Background(), *collHeight, uint32(*collTxIndex), groups, *feeRate)
	if err != nil {
		return fmt.Errorf("register ownership: %w", err)
	}
	fmt.Println(txid)
	return nil
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	address := fs.String("address", "", "destination address")
	amount := fs.Int64("amount-sats", 0, "amount in satoshis")
	feeRate := fs.Int64("fee-rate", 0, "fee rate in sat/vB (0 = estimate)")
	fs.Parse(args)

	_, node, keys, err := setupCtl()
	if err != nil {
		return err
	}
	b := txbuilder.NewBuilder(node, keys, config.DefaultFeeRateSatPerVByte)

	txid, err := b.SendPayment(context.Background(), *address, *amount, *feeRate)
	if err != nil {
		return fmt.Errorf("send payment: %w", err)
	}
	fmt.Println(txid)
	return nil
}

func runRawOpReturn(args []string) error {
	fs := flag.NewFlagSet("raw-opreturn", flag.ExitOnError)
	payloadHex := fs.String("payload-hex", "", "hex-encoded protocol payload (command byte onward)")
	feeRate := fs.Int64("fee-rate", 0, "fee rate in sat/vB (0 = estimate)")
	fs.Parse(args)

	payload, err := hex.DecodeString(*payloadHex)
	if err != nil {
		return fmt.Errorf("invalid --payload-hex: %w", err)
	}

	_, node, keys, err := setupCtl()
	if err != nil {
		return err
	}
	b := txbuilder.NewBuilder(node, keys, config.DefaultFeeRateSatPerVByte)

	txid, err := b.RawOpReturn(context.Background(), payload, *feeRate)
	if err != nil {
		return fmt.Errorf("raw opreturn: %w", err)
	}
	fmt.Println(txid)
	return nil
}

func runMix(args []string) error {
	fs := flag.NewFlagSet("mix", flag.ExitOnError)
	inputsFlag := fs.String("inputs", "", "comma-separated txid:vout list of explicit token inputs")
	payloadHex := fs.String("payload-hex", "", "hex-encoded Mix payload")
	paymentsFlag := fs.String("payments", "", "comma-separated address:amountSats list (optional)")
	feeRate := fs.Int64("fee-rate", 0, "fee rate in sat/vB (0 = estimate)")
	fs.Parse(args)

	inputs, err := parseOutpoints(*inputsFlag)
	if err != nil {
		return err
	}
	payload, err := hex.DecodeString(*payloadHex)
	if err != nil {
		return fmt.Errorf("invalid --payload-hex: %w", err)
	}
	payments, err := parsePayments(*paymentsFlag)
	if err != nil {
		return err
	}

	_, node, keys, err := setupCtl()
	if err != nil {
		return err
	}
	b := txbuilder.NewBuilder(node, keys, config.DefaultFeeRateSatPerVByte)

	txid, err := b.Mix(context.Background(), inputs, payload, payments, *feeRate)
	if err != nil {
		return fmt.Errorf("mix: %w", err)
	}
	fmt.Println(txid)
	return nil
}

func parseH160(s string) (addr [20]byte, err error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return addr, fmt.Errorf("invalid hex address %q: %w", s, err)
	}
	if len(b) != 20 {
		return addr, fmt.Errorf("address %q must be 20 bytes, got %d", s, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

func parseOutpoints(s string) ([]txbuilder.Outpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("--inputs is required")
	}
	var out []txbuilder.Outpoint
	for _, item := range strings.Split(s, ",") {
		parts := strings.SplitN(item, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid outpoint %q, want txid:vout", item)
		}
		vout, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vout in %q: %w", item, err)
		}
		out = append(out, txbuilder.Outpoint{Txid: parts[0], Vout: uint32(vout)})
	}
	return out, nil
}

func parsePayments(s string) ([]txbuilder.Payment, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []txbuilder.Payment
	for _, item := range strings.Split(s, ",") {
		parts := strings.SplitN(item, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid payment %q, want address:amountSats", item)
		}
		amount, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount in %q: %w", item, err)
		}
		out = append(out, txbuilder.Payment{Address: parts[0], AmountSats: amount})
	}
	return out, nil
}
