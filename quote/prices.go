package quote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/types"
)

const (
	defaultDecimals        = 9
	defaultCleanupInterval = time.Minute
)

// PriceSource returns unit prices for a set of assets
type PriceSource interface {
	Prices(ctx context.Context, ids []types.Asset) (map[types.Asset]float64, error)
}

// PriceClient reads GET {url}?ids=a,b -> {data: {id: {price}}}
type PriceClient struct {
	url        string
	httpClient *http.Client
}

func NewPriceClient(priceURL string, timeout time.Duration) *PriceClient {
	return &PriceClient{
		url:        priceURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type priceResponse struct {
	Data map[string]struct {
		Price wireFloat `json:"price"`
	} `json:"data"`
}

func (c *PriceClient) Prices(ctx context.Context, ids []types.Asset) (map[types.Asset]float64, error) {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}

	u := c.url + "?" + url.Values{"ids": {strings.Join(names, ",")}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed priceResponse
	if err := sonnet.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("error parsing price response: %w", err)
	}

	out := make(map[types.Asset]float64, len(parsed.Data))
	for id, p := range parsed.Data {
		if p.Price > 0 {
			out[types.Asset(id)] = float64(p.Price)
		}
	}
	return out, nil
}

// PriceBook keeps short-lived price snapshots
type PriceBook struct {
	source   PriceSource
	cache    *gocache.Cache
	ttl      time.Duration
	decimals map[types.Asset]uint8
	logger   *zap.Logger
}

// NewPriceBook creates a book whose entries expire after ttl. Assets missing
// from decimals are assumed to have 9.
func NewPriceBook(source PriceSource, ttl time.Duration, decimals map[string]uint8, logger *zap.Logger) *PriceBook {
	d := make(map[types.Asset]uint8, len(decimals))
	for k, v := range decimals {
		d[types.Asset(k)] = v
	}
	return &PriceBook{
		source:   source,
		cache:    gocache.New(ttl, defaultCleanupInterval),
		ttl:      ttl,
		decimals: d,
		logger:   logger,
	}
}

// Refresh fetches fresh prices for ids. Stale entries stay until they expire.
func (b *PriceBook) Refresh(ctx context.Context, ids []types.Asset) error {
	prices, err := b.source.Prices(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to refresh prices: %w", err)
	}
	for id, p := range prices {
		b.cache.Set(string(id), p, b.ttl)
	}
	b.logger.Debug("Refreshed prices", zap.Int("requested", len(ids)), zap.Int("received", len(prices)))
	return nil
}

// Price returns the last unit price of asset
func (b *PriceBook) Price(asset types.Asset) (float64, bool) {
	v, ok := b.cache.Get(string(asset))
	if !ok {
		return 0, false
	}
	//nolint:forcetypeassert
	return v.(float64), true
}

// Has reports whether every asset has a live price
func (b *PriceBook) Has(assets ...types.Asset) bool {
	for _, a := range assets {
		if _, ok := b.Price(a); !ok {
			return false
		}
	}
	return true
}

// Rate returns how many base units of to one base unit of from is worth
func (b *PriceBook) Rate(from, to types.Asset) (float64, bool) {
	pf, ok := b.Price(from)
	if !ok {
		return 0, false
	}
	pt, ok := b.Price(to)
	if !ok || pt == 0 {
		return 0, false
	}
	r := pf / pt
	df, dt := b.decimalsOf(from), b.decimalsOf(to)
	for ; df > dt; df-- {
		r /= 10
	}
	for ; dt > df; dt-- {
		r *= 10
	}
	return r, true
}

func (b *PriceBook) decimalsOf(a types.Asset) uint8 {
	if d, ok := b.decimals[a]; ok {
		return d
	}
	return defaultDecimals
}
