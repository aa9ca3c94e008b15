package wallet

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// KeyStore derives signing keys for the BIP-86 descriptor wallet on demand.
// The passphrase-protected, encrypted-at-rest storage engine behind it is
// out of scope here (treated as a black box per the owning design note);
// this interface is the seam TxBuilder signs against.
type KeyStore interface {
	// Unlock loads the master key into memory for the duration of one
	// signing operation. Callers must call Lock when done.
	Unlock() error
	// Lock discards the in-memory master key.
	Lock()
	// DeriveKey returns the leaf private key at keychain/index. Unlock must
	// have succeeded first. The caller must Zero() the returned key.
	DeriveKey(keychain KeychainKind, index uint32) (*btcec.PrivateKey, error)
	// ResolveScript finds which (keychain, index) pair produced pkScript,
	// searching both branches up to AddressGapLimit. Unlock must have
	// succeeded first.
	ResolveScript(pkScript []byte) (KeychainKind, uint32, error)
}

// MnemonicKeyStore is a KeyStore backed by a plaintext mnemonic file. It
// exists to make the TxBuilder runnable end to end; a production deployment
// swaps it for an encrypted-at-rest store behind the same interface.
type MnemonicKeyStore struct {
	mnemonicFilePath string
	net              *chaincfg.Params

	mu     sync.Mutex
	master *hdkeychain.ExtendedKey
}

// NewMnemonicKeyStore creates a KeyStore reading its mnemonic from path.
func NewMnemonicKeyStore(mnemonicFilePath string, net *chaincfg.Params) *MnemonicKeyStore {
	return &MnemonicKeyStore{mnemonicFilePath: mnemonicFilePath, net: net}
}

func (ks *MnemonicKeyStore) Unlock() error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.master != nil {
		return nil
	}

	mnemonic, err := ReadMnemonicFromFile(ks.mnemonicFilePath)
	if err != nil {
		return fmt.Errorf("unlock keystore: %w", err)
	}
	seed, err := MnemonicToSeed(mnemonic)
	if err != nil {
		return fmt.Errorf("unlock keystore: %w", err)
	}
	master, err := DeriveMasterKey(seed, ks.net)
	if err != nil {
		return fmt.Errorf("unlock keystore: %w", err)
	}

	ks.master = master
	return nil
}

func (ks *MnemonicKeyStore) Lock() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.master = nil
}

func (ks *MnemonicKeyStore) DeriveKey(keychain KeychainKind, index uint32) (*btcec.PrivateKey, error) {
	ks.mu.Lock()
	master := ks.master
	ks.mu.Unlock()

	if master == nil {
		return nil, fmt.Errorf("%w: keystore is locked", ErrWalletLocked)
	}

	return DeriveBTCTaprootKey(master, keychain, index, ks.net)
}

func (ks *MnemonicKeyStore) ResolveScript(pkScript []byte) (KeychainKind, uint32, error) {
	ks.mu.Lock()
	master := ks.master
	ks.mu.Unlock()

	if master == nil {
		return 0, 0, fmt.Errorf("%w: keystore is locked", ErrWalletLocked)
	}

	return ResolveScriptKeychainIndex(master, pkScript, ks.net)
}
