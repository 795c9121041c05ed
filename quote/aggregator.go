// Package quote chains per-leg aggregator quotes into whole-route cost
// estimates
package quote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/types"
)

// LegRequest asks for a single conversion quote
type LegRequest struct {
	Input          types.Asset
	Output         types.Asset
	Amount         uint64
	MaxSlippageBps uint16
	OnlyDirect     bool
	Timeout        time.Duration
}

// Aggregator returns a quote for one leg
type Aggregator interface {
	Quote(ctx context.Context, req LegRequest) (types.LegQuote, error)
}

// Client is the HTTP aggregator client
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewClient(cfg config.AggregatorConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.BurstSize),
		logger:     logger,
	}
}

// Quote fetches GET {base}/quote for one leg
func (c *Client) Quote(ctx context.Context, req LegRequest) (types.LegQuote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return types.LegQuote{}, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("inputAsset", string(req.Input))
	q.Set("outputAsset", string(req.Output))
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("maxSlippageBps", strconv.FormatUint(uint64(req.MaxSlippageBps), 10))
	q.Set("onlyDirect", strconv.FormatBool(req.OnlyDirect))
	if req.Timeout > 0 {
		q.Set("timeout", strconv.FormatInt(req.Timeout.Milliseconds(), 10))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return types.LegQuote{}, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return types.LegQuote{}, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.LegQuote{}, fmt.Errorf("error reading response: %w", err)
	}

	parsed, err := parseLegResponse(body)
	if err != nil {
		return types.LegQuote{}, fmt.Errorf("quote %s>%s (status %d): %w", req.Input, req.Output, resp.StatusCode, err)
	}

	switch parsed.kind {
	case responseQuote:
		if resp.StatusCode != http.StatusOK {
			return types.LegQuote{}, fmt.Errorf("quote %s>%s: unexpected status %d", req.Input, req.Output, resp.StatusCode)
		}
		return types.LegQuote{
			InputAsset:  req.Input,
			OutputAsset: req.Output,
			InAmount:    req.Amount,
			OutAmount:   parsed.outAmount,
			FeeAmount:   parsed.feeAmount,
			Venue:       parsed.venue,
			PriceImpact: parsed.priceImpact,
		}, nil
	case responseError:
		return types.LegQuote{}, fmt.Errorf("quote %s>%s rejected: %s", req.Input, req.Output, parsed.message)
	default:
		return types.LegQuote{}, fmt.Errorf("quote %s>%s (status %d): %w", req.Input, req.Output, resp.StatusCode, errMalformedResponse)
	}
}
