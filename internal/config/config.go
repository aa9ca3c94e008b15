package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	RPCURL  string `envconfig:"BRC721_RPC_URL" required:"true"`
	RPCUser string `envconfig:"BRC721_RPC_USER"`
	RPCPass string `envconfig:"BRC721_RPC_PASS"`
	RPCCookiePath string `envconfig:"BRC721_RPC_COOKIE_PATH"`

	Network string `envconfig:"BRC721_NETWORK" default:"mainnet"`

	StartHeight   uint64 `envconfig:"BRC721_START_HEIGHT" default:"0"`
	Confirmations uint64 `envconfig:"BRC721_CONFIRMATIONS" default:"3"`
	BatchSize     int    `envconfig:"BRC721_BATCH_SIZE" default:"1"`

	DataDir   string `envconfig:"BRC721_DATA_DIR" default:"./data"`
	APIListen string `envconfig:"BRC721_API_LISTEN" default:":8080"`

	LogLevel string `envconfig:"BRC721_LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"BRC721_LOG_DIR" default:"./logs"`

	Reset bool `envconfig:"BRC721_RESET" default:"false"`

	MnemonicFile string `envconfig:"BRC721_MNEMONIC_FILE"`
}

// Load reads configuration from a .env file (if present) then from environment
// variables. Environment variables override .env values.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("failed to load .env file", "error", err)
		} else {
			slog.Info("loaded .env file")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	switch c.Network {
	case "mainnet", "testnet", "signet", "regtest":
	default:
		return fmt.Errorf("%w: network must be one of mainnet|testnet|signet|regtest, got %q", ErrInvalidConfig, c.Network)
	}

	if c.RPCURL == "" {
		return fmt.Errorf("%w: rpc_url is required", ErrInvalidConfig)
	}

	haveUserPass := c.RPCUser != "" && c.RPCPass != ""
	haveCookie := c.RPCCookiePath != ""
	if !haveUserPass && !haveCookie {
		return fmt.Errorf("%w: rpc auth requires either user/pass or a cookie path", ErrInvalidConfig)
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be >= 1, got %d", ErrInvalidConfig, c.BatchSize)
	}

	return nil
}
