package wallet

import (
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/brc721/indexer/internal/config"
)

// KeychainKind distinguishes the external (receive) and internal (change)
// branches of a BIP-86 account, mirroring bdk_wallet's KeychainKind.
type KeychainKind int

const (
	KeychainExternal KeychainKind = iota
	KeychainInternal
)

// DeriveBTCTaprootKey walks the BIP-86 path m/86'/coin'/0'/{0,1}/N and
// returns the leaf private key. Path: m/86'/0'/0'/{0,1}/N (mainnet) or
// m/86'/1'/0'/{0,1}/N (testnet/signet/regtest).
func DeriveBTCTaprootKey(masterKey *hdkeychain.ExtendedKey, keychain KeychainKind, index uint32, net *chaincfg.Params) (*btcec.PrivateKey, error) {
	coinType := uint32(config.BTCCoinType)
	if net != &chaincfg.MainNetParams {
		coinType = uint32(config.BTCTestCoinType)
	}

	purpose, err := masterKey.Derive(hdkeychain.HardenedKeyStart + uint32(config.BIP86Purpose))
	if err != nil {
		return nil, fmt.Errorf("derive BIP-86 purpose key: %w", err)
	}

	coin, err := purpose.Derive(hdkeychain.HardenedKeyStart + coinType)
	if err != nil {
		return nil, fmt.Errorf("derive BIP-86 coin key: %w", err)
	}

	account, err := coin.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, fmt.Errorf("derive BIP-86 account key: %w", err)
	}

	chain, err := account.Derive(uint32(keychain))
	if err != nil {
		return nil, fmt.Errorf("derive BIP-86 chain key: %w", err)
	}

	child, err := chain.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("derive BIP-86 child key at index %d: %w", index, err)
	}

	return child.ECPrivKey()
}

// DeriveAccountXpub walks m/86'/coin'/0' and returns the neutered
// (public-only) extended key serialized as an xpub/tpub string, the level
// BuildTaprootDescriptor expects to extend with /{0,1}/*.
func DeriveAccountXpub(masterKey *hdkeychain.ExtendedKey, net *chaincfg.Params) (string, error) {
	coinType := uint32(config.BTCCoinType)
	if net != &chaincfg.MainNetParams {
		coinType = uint32(config.BTCTestCoinType)
	}

	purpose, err := masterKey.Derive(hdkeychain.HardenedKeyStart + uint32(config.BIP86Purpose))
	if err != nil {
		return "", fmt.Errorf("derive BIP-86 purpose key: %w", err)
	}
	coin, err := purpose.Derive(hdkeychain.HardenedKeyStart + coinType)
	if err != nil {
		return "", fmt.Errorf("derive BIP-86 coin key: %w", err)
	}
	account, err := coin.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return "", fmt.Errorf("derive BIP-86 account key: %w", err)
	}

	neutered, err := account.Neuter()
	if err != nil {
		return "", fmt.Errorf("neuter BIP-86 account key: %w", err)
	}
	return neutered.String(), nil
}

// TaprootAddressForKey computes the key-path-only (script-less) taproot
// address for a leaf private key, per BIP-86.
func TaprootAddressForKey(priv *btcec.PrivateKey, net *chaincfg.Params) (string, error) {
	tweaked := txscript.ComputeTaprootKeyNoScript(priv.PubKey())
	addr, err := btcutil.NewAddressTaproot(schnorrSerialize(tweaked), net)
	if err != nil {
		return "", fmt.Errorf("create taproot address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// DeriveBTCAddress derives the taproot address at keychain/index.
func DeriveBTCAddress(masterKey *hdkeychain.ExtendedKey, keychain KeychainKind, index uint32, net *chaincfg.Params) (string, error) {
	priv, err := DeriveBTCTaprootKey(masterKey, keychain, index, net)
	if err != nil {
		return "", err
	}
	defer priv.Zero()

	addr, err := TaprootAddressForKey(priv, net)
	if err != nil {
		return "", err
	}

	slog.Debug("derived BTC taproot address", "keychain", keychain, "index", index, "address", addr, "network", net.Name)
	return addr, nil
}

// schnorrSerialize returns the 32-byte x-only serialization of a pubkey.
func schnorrSerialize(pub *btcec.PublicKey) []byte {
	return pub.SerializeCompressed()[1:]
}

// NetworkParams returns the chaincfg.Params for the given network mode.
func NetworkParams(network string) *chaincfg.Params {
	switch network {
	case "testnet":
		return &chaincfg.TestNet3Params
	case "signet":
		return &chaincfg.SigNetParams
	case "regtest":
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
