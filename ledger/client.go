// Package ledger talks to the ledger's JSON-RPC endpoint and loads the
// signing key
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/config"
)

// Anchor is the recency anchor every transaction must reference
type Anchor struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	Slot                 uint64
}

// SimulationResult is the ledger's verdict on a transaction
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
}

// Failed reports whether the ledger returned an execution error
func (r *SimulationResult) Failed() bool {
	return r.Err != nil
}

// RPC is the subset of the ledger API the bot uses
type RPC interface {
	LatestAnchor(ctx context.Context) (Anchor, error)
	SimulateTransaction(ctx context.Context, base64Tx string) (*SimulationResult, error)
}

// Client is a JSON-RPC ledger client
type Client struct {
	rpc        *rpc.Client
	timeout    time.Duration
	maxRetries uint64
	commitment string
	logger     *zap.Logger
}

// Dial connects to the configured endpoint
func Dial(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) (*Client, error) {
	c, err := rpc.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger rpc: %w", err)
	}
	return &Client{
		rpc:        c,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		commitment: cfg.Commitment,
		logger:     logger,
	}, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type blockhashResult struct {
	Context rpcContext `json:"context"`
	Value   struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// LatestAnchor fetches getLatestBlockhash, retrying transport failures
func (c *Client) LatestAnchor(ctx context.Context) (Anchor, error) {
	var res blockhashResult
	err := c.call(ctx, &res, "getLatestBlockhash", map[string]string{"commitment": c.commitment})
	if err != nil {
		return Anchor{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	hash, err := solana.HashFromBase58(res.Value.Blockhash)
	if err != nil {
		return Anchor{}, fmt.Errorf("invalid blockhash %q: %w", res.Value.Blockhash, err)
	}
	return Anchor{
		Blockhash:            hash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
		Slot:                 res.Context.Slot,
	}, nil
}

type simulateResult struct {
	Context rpcContext `json:"context"`
	Value   struct {
		Err           interface{} `json:"err"`
		Logs          []string    `json:"logs"`
		UnitsConsumed uint64      `json:"unitsConsumed"`
	} `json:"value"`
}

// SimulateTransaction runs simulateTransaction on a base64 transaction
func (c *Client) SimulateTransaction(ctx context.Context, base64Tx string) (*SimulationResult, error) {
	var res simulateResult
	err := c.call(ctx, &res, "simulateTransaction", base64Tx, map[string]interface{}{
		"encoding":   "base64",
		"commitment": c.commitment,
		"sigVerify":  false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to simulate transaction: %w", err)
	}
	return &SimulationResult{
		Err:           res.Value.Err,
		Logs:          res.Value.Logs,
		UnitsConsumed: res.Value.UnitsConsumed,
	}, nil
}

type balanceResult struct {
	Context rpcContext `json:"context"`
	Value   uint64     `json:"value"`
}

// Balance returns the lamport balance of an account
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var res balanceResult
	if err := c.call(ctx, &res, "getBalance", account.String(), map[string]string{"commitment": c.commitment}); err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return res.Value, nil
}

// call retries transport errors with exponential backoff. JSON-RPC errors
// from the node are returned as is.
func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 100 * time.Millisecond
	exp.MaxInterval = time.Second
	back := backoff.WithMaxRetries(backoff.WithContext(exp, ctx), c.maxRetries)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		err := c.rpc.CallContext(callCtx, result, method, args...)
		if err == nil {
			return nil
		}
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return backoff.Permanent(err)
		}
		c.logger.Debug("Ledger call failed",
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}, back)
}
