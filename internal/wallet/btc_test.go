package wallet

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
)

func TestDeriveBTCAddressTaprootMainnet(t *testing.T) {
	seed, err := MnemonicToSeed(testMnemonic24)
	if err != nil {
		t.Fatal(err)
	}

	masterKey, err := DeriveMasterKey(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}

	addresses := make(map[string]bool)
	for i := uint32(0); i < 5; i++ {
		got, err := DeriveBTCAddress(masterKey, KeychainExternal, i, &chaincfg.MainNetParams)
		if err != nil {
			t.Fatalf("DeriveBTCAddress() error = %v", err)
		}
		if !strings.HasPrefix(got, "bc1p") {
			t.Errorf("DeriveBTCAddress() = %v, want prefix bc1p (taproot)", got)
		}
		if addresses[got] {
			t.Errorf("DeriveBTCAddress() duplicate address: %v", got)
		}
		addresses[got] = true
	}
}

func TestDeriveBTCAddressExternalInternalDiffer(t *testing.T) {
	seed, err := MnemonicToSeed(testMnemonic24)
	if err != nil {
		t.Fatal(err)
	}
	masterKey, err := DeriveMasterKey(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}

	ext, err := DeriveBTCAddress(masterKey, KeychainExternal, 0, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}
	intl, err := DeriveBTCAddress(masterKey, KeychainInternal, 0, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}
	if ext == intl {
		t.Error("external and internal keychain addresses at the same index should differ")
	}
}

func TestDeriveBTCAddressTestnet(t *testing.T) {
	seed, err := MnemonicToSeed(testMnemonic24)
	if err != nil {
		t.Fatal(err)
	}

	testnetKey, err := DeriveMasterKey(seed, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}

	addr, err := DeriveBTCAddress(testnetKey, KeychainExternal, 0, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("DeriveBTCAddress(testnet) error = %v", err)
	}
	if !strings.HasPrefix(addr, "tb1p") {
		t.Errorf("DeriveBTCAddress(testnet) = %v, want prefix tb1p", addr)
	}

	mainnetKey, err := DeriveMasterKey(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}
	mainnetAddr, err := DeriveBTCAddress(mainnetKey, KeychainExternal, 0, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}
	if addr == mainnetAddr {
		t.Error("testnet and mainnet addresses should differ")
	}
}

func TestDeriveBTCAddressDeterministic(t *testing.T) {
	seed, err := MnemonicToSeed(testMnemonic24)
	if err != nil {
		t.Fatal(err)
	}

	masterKey, err := DeriveMasterKey(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}

	addr1, err := DeriveBTCAddress(masterKey, KeychainExternal, 42, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}

	masterKey2, err := DeriveMasterKey(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}

	addr2, err := DeriveBTCAddress(masterKey2, KeychainExternal, 42, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}

	if addr1 != addr2 {
		t.Errorf("DeriveBTCAddress() not deterministic: %v != %v", addr1, addr2)
	}
}
