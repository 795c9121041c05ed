package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbbot/types"
)

func TestPriceClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SOL,USDC", r.URL.Query().Get("ids"))
		_, _ = w.Write([]byte(`{"data":{"SOL":{"price":150.25},"USDC":{"price":"1.0001"},"DEAD":{"price":0}}}`))
	}))
	defer srv.Close()

	c := NewPriceClient(srv.URL, time.Second)
	prices, err := c.Prices(context.Background(), []types.Asset{"SOL", "USDC"})
	require.NoError(t, err)

	assert.Equal(t, 150.25, prices["SOL"])
	assert.Equal(t, 1.0001, prices["USDC"])
	_, ok := prices["DEAD"]
	assert.False(t, ok)
}

func TestPriceClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewPriceClient(srv.URL, time.Second).Prices(context.Background(), []types.Asset{"SOL"})
	assert.Error(t, err)
}

type staticPrices map[types.Asset]float64

func (s staticPrices) Prices(context.Context, []types.Asset) (map[types.Asset]float64, error) {
	return s, nil
}

func TestPriceBook(t *testing.T) {
	book := NewPriceBook(staticPrices{"SOL": 150, "USDC": 1}, time.Minute,
		map[string]uint8{"SOL": 9, "USDC": 6}, zaptest.NewLogger(t))

	assert.False(t, book.Has("SOL"))
	require.NoError(t, book.Refresh(context.Background(), []types.Asset{"SOL", "USDC"}))
	assert.True(t, book.Has("SOL", "USDC"))
	assert.False(t, book.Has("SOL", "BONK"))

	// 1 lamport = 150e-9 USD = 0.15 micro-USDC
	r, ok := book.Rate("SOL", "USDC")
	require.True(t, ok)
	assert.InDelta(t, 0.15, r, 1e-12)

	r, ok = book.Rate("USDC", "SOL")
	require.True(t, ok)
	assert.InDelta(t, 1/0.15, r, 1e-9)

	_, ok = book.Rate("SOL", "BONK")
	assert.False(t, ok)
}

func TestPriceBookExpiry(t *testing.T) {
	book := NewPriceBook(staticPrices{"SOL": 150}, 20*time.Millisecond, nil, zaptest.NewLogger(t))
	require.NoError(t, book.Refresh(context.Background(), []types.Asset{"SOL"}))
	assert.True(t, book.Has("SOL"))

	time.Sleep(40 * time.Millisecond)
	assert.False(t, book.Has("SOL"))
}

func TestFallbackWithRates(t *testing.T) {
	book := NewPriceBook(staticPrices{"SOL": 100, "USDC": 1}, time.Minute, map[string]uint8{"SOL": 9, "USDC": 6}, zaptest.NewLogger(t))
	require.NoError(t, book.Refresh(context.Background(), []types.Asset{"SOL", "USDC"}))

	q := NewFallback(DefaultFallbackFee, book).Estimate(types.Route{"SOL", "USDC", "SOL"}, 1_000_000_000)
	require.Len(t, q.Legs, 2)
	// 1 SOL -> 100 USDC less 0.3%
	assert.Equal(t, uint64(99_700_000), q.Legs[0].OutAmount)
	assert.Equal(t, types.SourceFallback, q.Source)
	// a closed loop at snapshot rates can only lose the fees
	assert.Less(t, q.OutAmount, q.InAmount)
}
