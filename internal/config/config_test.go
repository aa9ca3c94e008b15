package config

import "testing"

func validConfig() *Config {
	return &Config{
		RPCURL:    "http://127.0.0.1:8332",
		RPCUser:   "bitcoinrpc",
		RPCPass:   "secret",
		Network:   "mainnet",
		BatchSize: 1,
	}
}

func TestValidateValidMainnet(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidateValidSignetViaCookie(t *testing.T) {
	cfg := validConfig()
	cfg.Network = "signet"
	cfg.RPCUser = ""
	cfg.RPCPass = ""
	cfg.RPCCookiePath = "/data/.cookie"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidateInvalidNetwork(t *testing.T) {
	tests := []string{"", "foobar", "Mainnet", "devnet"}
	for _, network := range tests {
		t.Run(network, func(t *testing.T) {
			cfg := validConfig()
			cfg.Network = network
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() expected error for network=%q, got nil", network)
			}
		})
	}
}

func TestValidateMissingRPCURL(t *testing.T) {
	cfg := validConfig()
	cfg.RPCURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for missing rpc_url, got nil")
	}
}

func TestValidateMissingRPCAuth(t *testing.T) {
	cfg := validConfig()
	cfg.RPCUser = ""
	cfg.RPCPass = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for missing rpc auth, got nil")
	}
}

func TestValidateInvalidBatchSize(t *testing.T) {
	cfg := validConfig()
	cfg.BatchSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for batch_size=0, got nil")
	}
}
