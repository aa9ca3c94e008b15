package chain

import (
	"context"
	"fmt"
)

// WalletRPC is the TxBuilder's view of the node: wallet-scoped calls used to
// fund, sign, and broadcast protocol transactions. Kept separate from
// NodeRPC because it is exercised by a different caller (TxBuilder, not
// Scanner) against a different RPC namespace (wallet-loaded endpoint).
type WalletRPC interface {
	ListWallets(ctx context.Context) ([]string, error)
	CreateWallet(ctx context.Context, params []interface{}) error
	ImportDescriptors(ctx context.Context, payload interface{}) error
	GetBalances(ctx context.Context) (*WalletBalances, error)
	GetNewAddress(ctx context.Context) (string, error)
	GetDescriptorInfo(ctx context.Context, descriptor string) (string, error)
	LockUnspent(ctx context.Context, unlock bool, outpoints []OutpointRPC) error
	WalletCreateFundedPSBT(ctx context.Context, inputs []OutpointRPC, outputs []map[string]interface{}, feeRateSatVB int64, explicitInputsOnly bool) (string, error)
	SendRawTransaction(ctx context.Context, hexTx string) (string, error)
	EstimateSmartFee(ctx context.Context, confTarget int) (float64, error)
	RescanBlockChain(ctx context.Context, startHeight int64) error
}

// WalletBalances is the subset of getbalances's "mine" object this indexer
// cares about, in BTC as Core reports it.
type WalletBalances struct {
	Trusted   float64 `json:"trusted"`
	Untrusted float64 `json:"untrusted_pending"`
	Immature  float64 `json:"immature"`
}

// OutpointRPC is the {txid, vout} shape Bitcoin Core's wallet RPCs expect.
type OutpointRPC struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

func (c *Client) ListWallets(ctx context.Context) ([]string, error) {
	var wallets []string
	if err := c.call(ctx, "listwallets", nil, &wallets); err != nil {
		return nil, err
	}
	return wallets, nil
}

func (c *Client) CreateWallet(ctx context.Context, params []interface{}) error {
	return c.call(ctx, "createwallet", params, nil)
}

func (c *Client) GetBalances(ctx context.Context) (*WalletBalances, error) {
	var result struct {
		Mine WalletBalances `json:"mine"`
	}
	if err := c.call(ctx, "getbalances", nil, &result); err != nil {
		return nil, err
	}
	return &result.Mine, nil
}

func (c *Client) RescanBlockChain(ctx context.Context, startHeight int64) error {
	var result struct {
		StartHeight int64 `json:"start_height"`
		StopHeight  int64 `json:"stop_height"`
	}
	return c.call(ctx, "rescanblockchain", []interface{}{startHeight}, &result)
}

func (c *Client) ImportDescriptors(ctx context.Context, payload interface{}) error {
	var results []struct {
		Success bool   `json:"success"`
		Error   *struct{ Message string `json:"message"` } `json:"error,omitempty"`
	}
	if err := c.call(ctx, "importdescriptors", []interface{}{payload}, &results); err != nil {
		return err
	}
	for _, r := range results {
		if !r.Success {
			msg := "unknown error"
			if r.Error != nil {
				msg = r.Error.Message
			}
			return fmt.Errorf("%w: importdescriptors: %s", ErrRPCPermanent, msg)
		}
	}
	return nil
}

func (c *Client) GetNewAddress(ctx context.Context) (string, error) {
	var addr string
	if err := c.call(ctx, "getnewaddress", nil, &addr); err != nil {
		return "", err
	}
	return addr, nil
}

func (c *Client) GetDescriptorInfo(ctx context.Context, descriptor string) (string, error) {
	var result struct {
		Descriptor string `json:"descriptor"`
	}
	if err := c.call(ctx, "getdescriptorinfo", []interface{}{descriptor}, &result); err != nil {
		return "", err
	}
	return result.Descriptor, nil
}

func (c *Client) LockUnspent(ctx context.Context, unlock bool, outpoints []OutpointRPC) error {
	var ok bool
	if err := c.call(ctx, "lockunspent", []interface{}{unlock, outpoints}, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: lockunspent(unlock=%v) returned false", ErrRPCPermanent, unlock)
	}
	return nil
}

func (c *Client) WalletCreateFundedPSBT(ctx context.Context, inputs []OutpointRPC, outputs []map[string]interface{}, feeRateSatVB int64, explicitInputsOnly bool) (string, error) {
	options := map[string]interface{}{
		"add_inputs": !explicitInputsOnly,
	}
	if feeRateSatVB > 0 {
		options["fee_rate"] = feeRateSatVB
	}

	var result struct {
		Psbt string `json:"psbt"`
		Fee  float64 `json:"fee"`
	}
	params := []interface{}{inputs, outputs, 0, options}
	if err := c.call(ctx, "walletcreatefundedpsbt", params, &result); err != nil {
		return "", err
	}
	return result.Psbt, nil
}

func (c *Client) SendRawTransaction(ctx context.Context, hexTx string) (string, error) {
	var txid string
	if err := c.call(ctx, "sendrawtransaction", []interface{}{hexTx}, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

func (c *Client) EstimateSmartFee(ctx context.Context, confTarget int) (float64, error) {
	var result struct {
		FeeRate float64  `json:"feerate"`
		Errors  []string `json:"errors"`
	}
	if err := c.call(ctx, "estimatesmartfee", []interface{}{confTarget}, &result); err != nil {
		return 0, err
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("%w: estimatesmartfee: %v", ErrRPCTransient, result.Errors)
	}
	return result.FeeRate, nil
}

var _ WalletRPC = (*Client)(nil)
