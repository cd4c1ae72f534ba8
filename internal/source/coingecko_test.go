package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentientsats/cryptointel/internal/cache"
	"github.com/sentientsats/cryptointel/internal/fetch"
	"github.com/sentientsats/cryptointel/internal/ratelimit"
)

func newTestSource(t *testing.T, handler http.Handler, retries int) (*CoinGecko, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := cache.NewTwoTier(cache.NewMemoryTier(100), nil, zerolog.Nop())
	limiter := ratelimit.NewLimiter(ratelimit.Budget{Capacity: 1000, RefillRate: 1000}, nil)
	client := fetch.NewClient(store, limiter, fetch.Options{
		Resource:    "coingecko",
		MaxRetries:  retries,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	}, zerolog.Nop())

	gecko := NewCoinGecko(client, Options{BaseURL: server.URL}, zerolog.Nop())
	return gecko, server
}

const quotePayload = `{"bitcoin":{"usd":42000.5,"usd_market_cap":820000000000,"usd_24h_vol":25000000000,"usd_24h_change":2.5}}`

func TestQuote(t *testing.T) {
	var hits atomic.Int64
	gecko, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Contains(t, r.URL.Query().Get("ids"), "bitcoin")
		w.Write([]byte(quotePayload))
	}), 0)

	quote, err := gecko.Quote(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", quote.TokenID)
	assert.Equal(t, 42000.5, quote.PriceUSD)
	assert.Equal(t, 2.5, quote.PriceChange24hPct)

	// Second call is served from the cache
	_, err = gecko.Quote(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestQuoteUnknownToken(t *testing.T) {
	gecko, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}), 0)

	_, err := gecko.Quote(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, fetch.Permanent(err))
}

func TestQuoteServerErrorRetriedThenSucceeds(t *testing.T) {
	var hits atomic.Int64
	gecko, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(quotePayload))
	}), 3)

	quote, err := gecko.Quote(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 42000.5, quote.PriceUSD)
	assert.Equal(t, int64(3), hits.Load())
}

func TestQuoteClientErrorPermanent(t *testing.T) {
	gecko, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), 0)

	_, err := gecko.Quote(context.Background(), "bitcoin")
	require.Error(t, err)
	assert.True(t, fetch.Permanent(err))
}

func TestTrending(t *testing.T) {
	gecko, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"coins":[
			{"item":{"id":"bitcoin","symbol":"btc"}},
			{"item":{"id":"solana","symbol":"sol"}}
		]}`))
	}), 0)

	tokens, err := gecko.Trending(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "bitcoin", tokens[0].TokenID)
	assert.Equal(t, 1, tokens[0].Rank)
	assert.Equal(t, "solana", tokens[1].TokenID)
	assert.Equal(t, 2, tokens[1].Rank)
}

func TestMarketDataMapping(t *testing.T) {
	gecko, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(quotePayload))
	}), 0)

	data, err := gecko.MarketData(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", data.TokenID)
	assert.Equal(t, 820000000000.0, data.MarketCap)
	assert.Equal(t, 25000000000.0, data.Volume24h)
	assert.Equal(t, 2.5, data.PriceChange24hPct)
}
