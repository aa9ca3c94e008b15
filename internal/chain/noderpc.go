package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// rpcRequest is a Bitcoin Core-style JSON-RPC 1.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

// NodeRPC is the Scanner's view of a Bitcoin full node: the handful of calls
// needed to walk the chain in order and wait on new tip activity.
type NodeRPC interface {
	GetBlockCount(ctx context.Context) (uint64, error)
	GetBlockHash(ctx context.Context, height uint64) (string, error)
	GetBlock(ctx context.Context, hash string) (*wire.MsgBlock, error)
	WaitForNewBlock(ctx context.Context, timeout time.Duration) error
}

// Client is the resilient NodeRPC implementation: a single configured node,
// fronted by a rate limiter and circuit breaker so a flaky node degrades
// gracefully instead of spinning the scanner loop.
type Client struct {
	httpClient *http.Client
	url        string
	user, pass string
	rl         *RateLimiter
	cb         *CircuitBreaker
}

// ClientConfig configures NewClient.
type ClientConfig struct {
	URL                     string
	User, Pass              string
	RequestsPerSecond       int
	CircuitBreakerThreshold int
	CircuitBreakerCooldown  time.Duration
	Timeout                 time.Duration
}

// NewClient builds a resilient JSON-RPC client for one Bitcoin node.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	slog.Info("node rpc client created", "url", cfg.URL, "rps", cfg.RequestsPerSecond)
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
		user:       cfg.User,
		pass:       cfg.Pass,
		rl:         NewRateLimiter(cfg.RequestsPerSecond),
		cb:         NewCircuitBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown),
	}
}

// GetBlockCount returns the node's current tip height.
func (c *Client) GetBlockCount(ctx context.Context) (uint64, error) {
	var height uint64
	if err := c.call(ctx, "getblockcount", nil, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// GetBlockHash returns the block hash at height.
func (c *Client) GetBlockHash(ctx context.Context, height uint64) (string, error) {
	var hash string
	if err := c.call(ctx, "getblockhash", []interface{}{height}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// GetBlock fetches a full block by hash, verbosity 0 (raw hex), and decodes
// it into a wire.MsgBlock.
func (c *Client) GetBlock(ctx context.Context, hash string) (*wire.MsgBlock, error) {
	var hexBlock string
	if err := c.call(ctx, "getblock", []interface{}{hash, 0}, &hexBlock); err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(hexBlock)
	if err != nil {
		return nil, fmt.Errorf("%w: decode block %s: %v", ErrRPCPermanent, hash, err)
	}

	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: deserialize block %s: %v", ErrRPCPermanent, hash, err)
	}

	gotHash := block.BlockHash()
	wantHash, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: parse requested hash %s: %v", ErrRPCPermanent, hash, err)
	}
	if !gotHash.IsEqual(wantHash) {
		return nil, fmt.Errorf("%w: requested %s, decoded to %s", ErrHashMismatch, wantHash, gotHash)
	}

	return block, nil
}

// WaitForNewBlock blocks (via the node's waitfornewblock call) until a new
// block arrives or timeout elapses.
func (c *Client) WaitForNewBlock(ctx context.Context, timeout time.Duration) error {
	var result struct {
		Hash   string `json:"hash"`
		Height int64  `json:"height"`
	}
	return c.call(ctx, "waitfornewblock", []interface{}{timeout.Milliseconds()}, &result)
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if !c.cb.Allow() {
		return ErrCircuitOpen
	}
	if err := c.rl.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	body, err := json.Marshal(rpcRequest{JSONRPC: "1.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", ErrRPCPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrRPCPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.cb.RecordFailure()
		return fmt.Errorf("%w: %s: %v", ErrRPCTransient, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.cb.RecordFailure()
		retryAfter := parseRetryAfter(resp.Header)
		slog.Warn("node rpc rate limited", "method", method, "retryAfter", retryAfter)
		return fmt.Errorf("%w: %s: rate limited", ErrRPCTransient, method)
	}
	if resp.StatusCode >= 500 {
		c.cb.RecordFailure()
		return fmt.Errorf("%w: %s: HTTP %d", ErrRPCTransient, method, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		c.cb.RecordFailure()
		return fmt.Errorf("%w: %s: HTTP %d", ErrRPCPermanent, method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		c.cb.RecordFailure()
		return fmt.Errorf("%w: %s: decode response: %v", ErrRPCTransient, method, err)
	}
	if rpcResp.Error != nil {
		c.cb.RecordFailure()
		if isWarmupError(rpcResp.Error.Code) {
			return fmt.Errorf("%w: %s: %s", ErrRPCTransient, method, rpcResp.Error.Message)
		}
		return fmt.Errorf("%w: %s: %s", ErrRPCPermanent, method, rpcResp.Error.Message)
	}

	c.cb.RecordSuccess()
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("%w: %s: unmarshal result: %v", ErrRPCPermanent, method, err)
		}
	}
	return nil
}

// isWarmupError reports whether a Bitcoin Core JSON-RPC error code indicates
// the node is still starting up (RPC_IN_WARMUP = -28), a transient state.
func isWarmupError(code int) bool {
	return code == -28
}

// IsTransient reports whether err (or a wrapped cause) indicates the caller
// should retry after backoff rather than treat the failure as fatal.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRPCTransient) || errors.Is(err, ErrCircuitOpen)
}
