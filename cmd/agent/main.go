package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sentientsats/cryptointel/internal/cache"
	"github.com/sentientsats/cryptointel/internal/config"
	"github.com/sentientsats/cryptointel/internal/convo"
	"github.com/sentientsats/cryptointel/internal/fetch"
	"github.com/sentientsats/cryptointel/internal/ratelimit"
	"github.com/sentientsats/cryptointel/internal/reasoning"
	"github.com/sentientsats/cryptointel/internal/risk"
	"github.com/sentientsats/cryptointel/internal/sentiment"
	"github.com/sentientsats/cryptointel/internal/source"
)

// report is the one-shot analysis printed as JSON
type report struct {
	Token     string             `json:"token"`
	Quote     *source.Quote      `json:"quote"`
	Risk      *risk.Profile      `json:"risk"`
	Sentiment *sentiment.Result  `json:"sentiment,omitempty"`
	Analysis  reasoning.Analysis `json:"analysis"`
	Cache     cache.Stats        `json:"cache_stats"`
	Generated time.Time          `json:"generated_at"`
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file")
		tokenID    = flag.String("token", "bitcoin", "Token ID to analyze")
		headline   = flag.String("headline", "", "Optional headline text to score for sentiment")
		userID     = flag.String("user", "cli", "User ID for conversation context")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Msg("Starting CryptoIntel agent")

	ctx := context.Background()

	// Two-tier cache: memory always, then Redis or disk as the
	// persistent tier
	memory := cache.NewMemoryTier(cfg.Cache.MemoryMaxEntries)
	var persistent cache.Tier
	switch {
	case cfg.Redis.Enabled:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		tier := cache.NewRedisTier(client)
		if err := tier.Health(ctx); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable, continuing memory-only")
		} else {
			persistent = tier
		}
	case cfg.Cache.DiskEnabled:
		tier, err := cache.NewDiskTier(cfg.Cache.DiskDir, cfg.Cache.DiskMaxEntries)
		if err != nil {
			log.Warn().Err(err).Msg("Disk cache unavailable, continuing memory-only")
		} else {
			persistent = tier
		}
	}
	store := cache.NewTwoTier(memory, persistent, config.NewLogger("cache"))

	limiter := ratelimit.NewLimiter(
		ratelimit.Budget{
			Capacity:   cfg.RateLimit.Default.Capacity,
			RefillRate: cfg.RateLimit.Default.RefillRate,
		},
		budgets(cfg.RateLimit.Resources),
	)

	client := fetch.NewClient(store, limiter, fetch.Options{
		Resource:       "coingecko",
		MaxRetries:     cfg.Fetch.MaxRetries,
		BackoffBase:    time.Duration(cfg.Fetch.BackoffBase * float64(time.Second)),
		BackoffMax:     time.Duration(cfg.Fetch.BackoffMax * float64(time.Second)),
		BreakerEnabled: cfg.Fetch.BreakerEnabled,
	}, config.NewLogger("fetch"))

	gecko := source.NewCoinGecko(client, source.Options{
		QuoteTTL:    time.Duration(cfg.Cache.PriceTTL) * time.Second,
		TrendingTTL: time.Duration(cfg.Cache.TrendingTTL) * time.Second,
	}, config.NewLogger("source"))

	scorer := sentiment.NewScorer(sentiment.Config{
		BullishThreshold: cfg.Sentiment.BullishThreshold,
		BearishThreshold: cfg.Sentiment.BearishThreshold,
		EngineWeights:    cfg.Sentiment.EngineWeights,
		CryptoAdjustment: cfg.Sentiment.CryptoAdjustment,
	}, config.NewLogger("sentiment"))

	assessor := risk.NewAssessor(risk.Config{
		LargeCapThreshold:    cfg.Risk.LargeCapThreshold,
		MidCapThreshold:      cfg.Risk.MidCapThreshold,
		SmallCapThreshold:    cfg.Risk.SmallCapThreshold,
		VolatilitySaturation: cfg.Risk.VolatilitySaturation,
		LiquiditySaturation:  cfg.Risk.LiquiditySaturation,
		TierWeight:           cfg.Risk.TierWeight,
		VolatilityWeight:     cfg.Risk.VolatilityWeight,
		LiquidityWeight:      cfg.Risk.LiquidityWeight,
		MediumBand:           cfg.Risk.MediumBand,
		HighBand:             cfg.Risk.HighBand,
		ExtremeBand:          cfg.Risk.ExtremeBand,
	}, config.NewLogger("risk"))

	engine := reasoning.NewEngine(reasoning.Config{
		StrongTrendPct: cfg.Reasoning.StrongTrendPct,
		MildTrendPct:   cfg.Reasoning.MildTrendPct,
	}, config.NewLogger("reasoning"))

	conversations := convo.NewStore(convo.Config{
		MaxMessages:  cfg.Context.MaxMessages,
		IdleTTL:      cfg.Context.IdleTTLDuration(),
		SnapshotPath: cfg.Context.SnapshotPath,
	}, config.NewLogger("convo"))

	if err := run(ctx, gecko, scorer, assessor, engine, conversations, store, *tokenID, *headline, *userID); err != nil {
		log.Error().Err(err).Msg("Analysis failed")
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	gecko *source.CoinGecko,
	scorer *sentiment.Scorer,
	assessor *risk.Assessor,
	engine *reasoning.Engine,
	conversations *convo.Store,
	store *cache.TwoTier,
	tokenID, headline, userID string,
) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conversations.Record(userID, "analyze "+tokenID)

	quote, err := gecko.Quote(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("fetching quote: %w", err)
	}

	profile, err := assessor.Assess(risk.MarketData{
		TokenID:           quote.TokenID,
		MarketCap:         quote.MarketCap,
		Volume24h:         quote.Volume24h,
		PriceChange24hPct: quote.PriceChange24hPct,
	})
	if err != nil {
		return fmt.Errorf("assessing risk: %w", err)
	}

	var sentimentResult *sentiment.Result
	if headline != "" {
		r := scorer.Score(headline)
		sentimentResult = &r
	}

	signals := reasoning.Signals{
		TokenID:        tokenID,
		PriceChangePct: &quote.PriceChange24hPct,
		Risk:           profile,
		Sentiment:      sentimentResult,
	}
	if userCtx, ok := conversations.Context(userID); ok {
		signals.UserRiskPref = userCtx.RiskPreference
	}
	if trending, err := gecko.Trending(ctx); err == nil {
		for _, t := range trending {
			if t.TokenID == tokenID {
				rank := t.Rank
				signals.TrendingRank = &rank
				break
			}
		}
	} else {
		log.Warn().Err(err).Msg("Trending list unavailable")
	}

	analysis := engine.Analyze(signals)

	if err := conversations.Snapshot(); err != nil {
		log.Warn().Err(err).Msg("Failed to snapshot conversations")
	}

	out := report{
		Token:     tokenID,
		Quote:     quote,
		Risk:      profile,
		Sentiment: sentimentResult,
		Analysis:  analysis,
		Cache:     store.Stats(),
		Generated: time.Now().UTC(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func budgets(resources map[string]config.BucketConfig) map[string]ratelimit.Budget {
	out := make(map[string]ratelimit.Budget, len(resources))
	for name, b := range resources {
		out[name] = ratelimit.Budget{Capacity: b.Capacity, RefillRate: b.RefillRate}
	}
	return out
}
