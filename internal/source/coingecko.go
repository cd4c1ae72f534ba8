// Package source implements market-data sources consumed through the
// fetch client. CoinGecko is the default source for prices, market
// records and trending lists.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentientsats/cryptointel/internal/fetch"
	"github.com/sentientsats/cryptointel/internal/risk"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Quote is the current price snapshot for a token
type Quote struct {
	TokenID           string  `json:"token_id"`
	PriceUSD          float64 `json:"price_usd"`
	MarketCap         float64 `json:"market_cap"`
	Volume24h         float64 `json:"volume_24h"`
	PriceChange24hPct float64 `json:"price_change_24h_pct"`
}

// TrendingToken is one entry of the trending list
type TrendingToken struct {
	TokenID string `json:"token_id"`
	Symbol  string `json:"symbol"`
	Rank    int    `json:"rank"`
}

// CoinGecko fetches market data through the caching fetch client
type CoinGecko struct {
	baseURL    string
	httpClient *http.Client
	client     *fetch.Client
	quoteTTL   time.Duration
	trendTTL   time.Duration
	log        zerolog.Logger
}

// Options configures a CoinGecko source
type Options struct {
	// BaseURL overrides the public API endpoint, mainly for tests
	BaseURL string
	// QuoteTTL and TrendingTTL control cache freshness per data kind
	QuoteTTL    time.Duration
	TrendingTTL time.Duration
}

// NewCoinGecko creates the source over a fetch client
func NewCoinGecko(client *fetch.Client, opts Options, logger zerolog.Logger) *CoinGecko {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.QuoteTTL <= 0 {
		opts.QuoteTTL = 2 * time.Minute
	}
	if opts.TrendingTTL <= 0 {
		opts.TrendingTTL = 5 * time.Minute
	}
	return &CoinGecko{
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		client:     client,
		quoteTTL:   opts.QuoteTTL,
		trendTTL:   opts.TrendingTTL,
		log:        logger,
	}
}

// Quote returns the cached or freshly fetched price snapshot for tokenID
func (g *CoinGecko) Quote(ctx context.Context, tokenID string) (*Quote, error) {
	endpoint := fmt.Sprintf(
		"%s/simple/price?ids=%s&vs_currencies=usd&include_market_cap=true&include_24hr_vol=true&include_24hr_change=true",
		g.baseURL, url.QueryEscape(tokenID))

	raw, err := g.client.FetchWithCache(ctx, "quote:"+tokenID, g.quoteTTL, func(ctx context.Context) ([]byte, error) {
		return g.get(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}

	var payload map[string]struct {
		USD          float64 `json:"usd"`
		USDMarketCap float64 `json:"usd_market_cap"`
		USD24hVol    float64 `json:"usd_24h_vol"`
		USD24hChange float64 `json:"usd_24h_change"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fetch.Permanentf("decoding quote for %s: %v", tokenID, err)
	}

	entry, ok := payload[tokenID]
	if !ok {
		return nil, fetch.Permanentf("unknown token %q", tokenID)
	}

	return &Quote{
		TokenID:           tokenID,
		PriceUSD:          entry.USD,
		MarketCap:         entry.USDMarketCap,
		Volume24h:         entry.USD24hVol,
		PriceChange24hPct: entry.USD24hChange,
	}, nil
}

// MarketData returns the quote mapped onto the risk assessor's input schema
func (g *CoinGecko) MarketData(ctx context.Context, tokenID string) (risk.MarketData, error) {
	quote, err := g.Quote(ctx, tokenID)
	if err != nil {
		return risk.MarketData{}, err
	}
	return risk.MarketData{
		TokenID:           quote.TokenID,
		MarketCap:         quote.MarketCap,
		Volume24h:         quote.Volume24h,
		PriceChange24hPct: quote.PriceChange24hPct,
	}, nil
}

// Trending returns the current trending token list
func (g *CoinGecko) Trending(ctx context.Context) ([]TrendingToken, error) {
	endpoint := g.baseURL + "/search/trending"

	raw, err := g.client.FetchWithCache(ctx, "trending", g.trendTTL, func(ctx context.Context) ([]byte, error) {
		return g.get(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Coins []struct {
			Item struct {
				ID     string `json:"id"`
				Symbol string `json:"symbol"`
			} `json:"item"`
		} `json:"coins"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fetch.Permanentf("decoding trending list: %v", err)
	}

	tokens := make([]TrendingToken, 0, len(payload.Coins))
	for i, coin := range payload.Coins {
		tokens = append(tokens, TrendingToken{
			TokenID: coin.Item.ID,
			Symbol:  coin.Item.Symbol,
			Rank:    i + 1,
		})
	}
	return tokens, nil
}

// get performs one HTTP request, mapping status codes onto the error
// taxonomy: 5xx and 429 are transient, other failures permanent
func (g *CoinGecko) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fetch.Permanentf("building request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fetch.Transientf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fetch.Transientf("reading response: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fetch.Transientf("upstream returned %d", resp.StatusCode)
	default:
		return nil, fetch.Permanentf("upstream returned %d", resp.StatusCode)
	}
}
