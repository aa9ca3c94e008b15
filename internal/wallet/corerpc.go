package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// BuildTaprootDescriptor formats the ranged BIP-86 output descriptor for one
// account branch, ready to have the node append a checksum
// (getdescriptorinfo) before importdescriptors accepts it.
func BuildTaprootDescriptor(accountXpub string, internal bool) string {
	branch := 0
	if internal {
		branch = 1
	}
	return fmt.Sprintf("tr(%s/%d/*)", accountXpub, branch)
}

// BuildCoreCreateWalletParams builds the positional parameter list for the
// node's createwallet RPC: a descriptor, blank, watch-only wallet with
// private keys disabled.
//
//	[wallet_name, disable_private_keys, blank, passphrase, avoid_reuse, descriptors]
func BuildCoreCreateWalletParams(name string) []interface{} {
	return []interface{}{name, true, true, "", false, true}
}

// descriptorImport is one importdescriptors request entry; Range is
// serialized as a [0, end] pair.
type descriptorImport struct {
	Desc      string `json:"desc"`
	Active    bool   `json:"active"`
	Range     [2]int `json:"range"`
	Timestamp any    `json:"timestamp"`
	Internal  bool   `json:"internal"`
	Label     string `json:"label"`
}

// BuildCoreImportDescriptorsPayload builds the importdescriptors request body
// for the watch-only external/internal BIP-86 descriptors. rescan controls
// whether the node is asked to scan from genesis (timestamp 0) or skip
// history (timestamp "now").
func BuildCoreImportDescriptorsPayload(extDescWithChecksum, intDescWithChecksum string, end int, rescan bool) []descriptorImport {
	var ts any = "now"
	if rescan {
		ts = 0
	}
	return []descriptorImport{
		{Desc: extDescWithChecksum, Active: true, Range: [2]int{0, end}, Timestamp: ts, Internal: false, Label: "brc721-external"},
		{Desc: intDescWithChecksum, Active: true, Range: [2]int{0, end}, Timestamp: ts, Internal: true, Label: "brc721-internal"},
	}
}

// AddressGapLimit bounds ResolveScriptKeychainIndex's brute-force search,
// mirroring the descriptor wallet's own lookahead window.
const AddressGapLimit = 1000

// ResolveScriptKeychainIndex finds the (keychain, index) pair whose BIP-86
// taproot address matches pkScript, searching both branches up to
// AddressGapLimit. The descriptor wallet model gives us no other way to map
// an arbitrary scriptPubKey back to a derivation path without persisting an
// address index cache, which original_source keeps in its own wallet
// database; this module does the equivalent lookup on demand.
func ResolveScriptKeychainIndex(master *hdkeychain.ExtendedKey, pkScript []byte, net *chaincfg.Params) (KeychainKind, uint32, error) {
	for _, kc := range []KeychainKind{KeychainExternal, KeychainInternal} {
		for idx := uint32(0); idx < AddressGapLimit; idx++ {
			priv, err := DeriveBTCTaprootKey(master, kc, idx, net)
			if err != nil {
				continue
			}
			tweaked := txscript.ComputeTaprootKeyNoScript(priv.PubKey())
			script, err := txscript.PayToTaprootScript(tweaked)
			priv.Zero()
			if err != nil {
				continue
			}
			if string(script) == string(pkScript) {
				return kc, idx, nil
			}
		}
	}
	return 0, 0, fmt.Errorf("%w: script %x", ErrAddressNotOurs, pkScript)
}
