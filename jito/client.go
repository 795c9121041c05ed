// Package jito is a block-engine relay client
package jito

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ybbus/jsonrpc/v3"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/registry"
	"github.com/michaelpento.lv/arbbot/types"
)

const (
	methodSendBundle        = "sendBundle"
	methodGetBundleStatuses = "getBundleStatuses"
	methodGetInflight       = "getInflightBundleStatuses"
	bundlesPath             = "/bundles"
)

// BundleStatus is one entry of a getBundleStatuses reply
type BundleStatus struct {
	BundleID           string          `json:"bundle_id"`
	Transactions       []string        `json:"transactions"`
	Slot               uint64          `json:"slot"`
	ConfirmationStatus string          `json:"confirmation_status"`
	Err                json.RawMessage `json:"err"`
}

// ExecutionFailed reports whether the relay attached a real execution error.
// {"Ok": null} is the success marker.
func (s *BundleStatus) ExecutionFailed() bool {
	raw := bytes.TrimSpace(s.Err)
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	var marker map[string]json.RawMessage
	if err := json.Unmarshal(raw, &marker); err == nil {
		if ok, found := marker["Ok"]; found && len(marker) == 1 && string(bytes.TrimSpace(ok)) == "null" {
			return false
		}
	}
	return true
}

type inflightStatus struct {
	BundleID   string  `json:"bundle_id"`
	Status     string  `json:"status"`
	LandedSlot *uint64 `json:"landed_slot"`
}

type inflightResult struct {
	Value []*inflightStatus `json:"value"`
}

type statusesResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value []*BundleStatus `json:"value"`
}

// Client speaks JSON-RPC to POST {base}/bundles
type Client struct {
	name   string
	url    string
	rpc    jsonrpc.RPCClient
	logger *zap.Logger
}

func NewClient(relay registry.RelayEndpoint, timeout time.Duration, logger *zap.Logger) *Client {
	url := strings.TrimRight(relay.BaseURL, "/") + bundlesPath
	return &Client{
		name: relay.Name,
		url:  url,
		rpc: jsonrpc.NewClientWithOpts(url, &jsonrpc.RPCClientOpts{
			HTTPClient: &http.Client{Timeout: timeout},
		}),
		logger: logger,
	}
}

func (c *Client) String() string {
	return c.name
}

// SendBundle submits base64 transactions and returns the relay bundle id.
// Transport failures wrap types.ErrSubmitFailed, relay errors wrap
// types.ErrRelayRejected.
func (c *Client) SendBundle(ctx context.Context, txs []string) (string, error) {
	res, err := c.rpc.Call(ctx, methodSendBundle, txs, map[string]string{"encoding": "base64"})
	if res != nil && res.Error != nil {
		return "", fmt.Errorf("%w: %s", types.ErrRelayRejected, res.Error.Error())
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", types.ErrSubmitFailed, c.name, err)
	}
	if res == nil {
		return "", fmt.Errorf("%w: %s: empty response", types.ErrSubmitFailed, c.name)
	}

	id, err := res.GetString()
	if err != nil || id == "" {
		return "", fmt.Errorf("%w: %s: missing bundle id", types.ErrSubmitFailed, c.name)
	}

	c.logger.Debug("Bundle submitted", zap.String("relay", c.name), zap.String("bundle_id", id))
	return id, nil
}

// BundleStatus returns the relay's view of a bundle, or nil when the relay
// does not know it yet. Settled bundles come from getBundleStatuses; bundles
// still in flight (or rejected by the auction) from getInflightBundleStatuses.
func (c *Client) BundleStatus(ctx context.Context, bundleID string) (*BundleStatus, error) {
	var settled statusesResult
	found, err := c.statusCall(ctx, methodGetBundleStatuses, bundleID, &settled)
	if err != nil {
		return nil, err
	}
	if found {
		for _, s := range settled.Value {
			if s != nil && (s.BundleID == "" || s.BundleID == bundleID) {
				return s, nil
			}
		}
	}

	var inflight inflightResult
	found, err = c.statusCall(ctx, methodGetInflight, bundleID, &inflight)
	if err != nil || !found {
		return nil, err
	}
	for _, s := range inflight.Value {
		if s == nil || (s.BundleID != "" && s.BundleID != bundleID) {
			continue
		}
		out := &BundleStatus{
			BundleID:           bundleID,
			ConfirmationStatus: strings.ToLower(s.Status),
		}
		if s.LandedSlot != nil {
			out.Slot = *s.LandedSlot
		}
		return out, nil
	}
	return nil, nil
}

func (c *Client) statusCall(ctx context.Context, method, bundleID string, out interface{}) (bool, error) {
	res, err := c.rpc.Call(ctx, method, []interface{}{[]string{bundleID}})
	if res != nil && res.Error != nil {
		return false, fmt.Errorf("%w: %s", types.ErrRelayRejected, res.Error.Error())
	}
	if err != nil {
		return false, fmt.Errorf("failed to get bundle status: %w", err)
	}
	if res == nil || res.Result == nil {
		return false, nil
	}
	if err := res.GetObject(out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", method, err)
	}
	return true, nil
}
