// Package risk computes 0-100 composite risk scores for tokens from
// market-cap tier, volatility and liquidity.
package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// Tier buckets a token by market capitalization
type Tier string

const (
	TierLarge   Tier = "large"
	TierMid     Tier = "mid"
	TierSmall   Tier = "small"
	TierMicro   Tier = "micro"
	TierUnknown Tier = "unknown"
)

// Level is the banded classification of the composite score
type Level string

const (
	LevelLow     Level = "low"
	LevelMedium  Level = "medium"
	LevelHigh    Level = "high"
	LevelExtreme Level = "extreme"
)

// MarketData is the fixed-schema numeric record consumed by the assessor
type MarketData struct {
	TokenID           string  `json:"token_id"`
	MarketCap         float64 `json:"market_cap"`
	Volume24h         float64 `json:"volume_24h"`
	PriceChange24hPct float64 `json:"price_change_24h_pct"`
	CirculatingSupply float64 `json:"circulating_supply"`
}

// Profile is the full risk assessment for one token
type Profile struct {
	TokenID         string   `json:"token_id"`
	Tier            Tier     `json:"tier"`
	VolatilityScore float64  `json:"volatility_score"` // [0, 100]
	LiquidityScore  float64  `json:"liquidity_score"`  // [0, 100], -1 when undefined
	CompositeScore  int      `json:"composite_score"`  // [0, 100]
	Level           Level    `json:"level"`
	Factors         []string `json:"factors"`
}

// LiquidityDefined reports whether the liquidity sub-score participated
// in the composite (false when market cap was zero or missing)
func (p *Profile) LiquidityDefined() bool {
	return p.LiquidityScore >= 0
}

// ValidationError describes a malformed market-data record. No partial
// profile is returned alongside it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid market data: %s: %s", e.Field, e.Reason)
}

// Config holds the tier breakpoints, scaling saturations, composite
// weights and level bands. All illustrative numbers live here, not in
// the assessor.
type Config struct {
	LargeCapThreshold float64
	MidCapThreshold   float64
	SmallCapThreshold float64

	// VolatilitySaturation is the absolute 24h change (%) mapping to a
	// volatility score of 100
	VolatilitySaturation float64
	// LiquiditySaturation is the volume/mcap ratio mapping to a
	// liquidity score of 100
	LiquiditySaturation float64

	TierWeight       float64
	VolatilityWeight float64
	LiquidityWeight  float64

	// Level bands: composite <= MediumBand is low, <= HighBand medium,
	// <= ExtremeBand high, else extreme
	MediumBand  int
	HighBand    int
	ExtremeBand int
}

// DefaultConfig returns the documented default thresholds and weights
func DefaultConfig() Config {
	return Config{
		LargeCapThreshold:    10_000_000_000,
		MidCapThreshold:      1_000_000_000,
		SmallCapThreshold:    100_000_000,
		VolatilitySaturation: 30.0,
		LiquiditySaturation:  0.5,
		TierWeight:           0.4,
		VolatilityWeight:     0.35,
		LiquidityWeight:      0.25,
		MediumBand:           25,
		HighBand:             50,
		ExtremeBand:          75,
	}
}

// Assessor computes risk profiles. It is deterministic: identical input
// records always yield identical profiles.
type Assessor struct {
	cfg Config
	log zerolog.Logger
}

// NewAssessor creates an assessor with the given configuration
func NewAssessor(cfg Config, logger zerolog.Logger) *Assessor {
	return &Assessor{cfg: cfg, log: logger}
}

// Assess validates data and computes the full risk profile
func (a *Assessor) Assess(data MarketData) (*Profile, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	tier := a.classifyTier(data.MarketCap)
	volatility := a.volatilityScore(data.PriceChange24hPct)

	liquidity := -1.0
	if data.MarketCap > 0 {
		liquidity = a.liquidityScore(data.Volume24h, data.MarketCap)
	}

	composite := a.composite(tier, volatility, liquidity)
	level := a.classifyLevel(composite)

	profile := &Profile{
		TokenID:         data.TokenID,
		Tier:            tier,
		VolatilityScore: volatility,
		LiquidityScore:  liquidity,
		CompositeScore:  composite,
		Level:           level,
		Factors:         a.factors(data, tier, volatility, liquidity),
	}

	a.log.Debug().
		Str("token", data.TokenID).
		Str("tier", string(tier)).
		Int("composite", composite).
		Str("level", string(level)).
		Msg("Risk assessed")

	return profile, nil
}

func validate(data MarketData) error {
	check := func(field string, v float64) *ValidationError {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: field, Reason: "must be a finite number"}
		}
		return nil
	}

	if err := check("market_cap", data.MarketCap); err != nil {
		return err
	}
	if err := check("volume_24h", data.Volume24h); err != nil {
		return err
	}
	if err := check("price_change_24h_pct", data.PriceChange24hPct); err != nil {
		return err
	}
	if err := check("circulating_supply", data.CirculatingSupply); err != nil {
		return err
	}

	if data.MarketCap < 0 {
		return &ValidationError{Field: "market_cap", Reason: "must not be negative"}
	}
	if data.Volume24h < 0 {
		return &ValidationError{Field: "volume_24h", Reason: "must not be negative"}
	}
	if data.CirculatingSupply < 0 {
		return &ValidationError{Field: "circulating_supply", Reason: "must not be negative"}
	}
	return nil
}

func (a *Assessor) classifyTier(marketCap float64) Tier {
	switch {
	case marketCap <= 0:
		return TierUnknown
	case marketCap >= a.cfg.LargeCapThreshold:
		return TierLarge
	case marketCap >= a.cfg.MidCapThreshold:
		return TierMid
	case marketCap >= a.cfg.SmallCapThreshold:
		return TierSmall
	default:
		return TierMicro
	}
}

// tierScore maps the tier to an inherent-risk sub-score in [0, 100]
func tierScore(tier Tier) float64 {
	switch tier {
	case TierLarge:
		return 0
	case TierMid:
		return 33
	case TierSmall:
		return 66
	case TierMicro:
		return 100
	default:
		return 66 // unknown treated like small cap
	}
}

// volatilityScore scales the absolute 24h change linearly into [0, 100],
// saturating at the configured change percentage
func (a *Assessor) volatilityScore(change24hPct float64) float64 {
	abs := math.Abs(change24hPct)
	if abs >= a.cfg.VolatilitySaturation {
		return 100
	}
	return abs / a.cfg.VolatilitySaturation * 100
}

// liquidityScore scales the volume/mcap ratio into [0, 100] with
// diminishing returns: the square root of the saturated ratio, so gains
// flatten as the ratio approaches the saturation point
func (a *Assessor) liquidityScore(volume24h, marketCap float64) float64 {
	ratio := volume24h / marketCap
	if ratio >= a.cfg.LiquiditySaturation {
		return 100
	}
	return math.Sqrt(ratio/a.cfg.LiquiditySaturation) * 100
}

// composite is the weighted mean of tier risk, volatility and illiquidity,
// so any positive weight configuration maps onto the 0-100 scale. When
// liquidity is undefined its weight simply drops out of the mean.
func (a *Assessor) composite(tier Tier, volatility, liquidity float64) int {
	wTier := a.cfg.TierWeight
	wVol := a.cfg.VolatilityWeight
	wLiq := a.cfg.LiquidityWeight

	var score, totalWeight float64
	score = wTier*tierScore(tier) + wVol*volatility
	totalWeight = wTier + wVol

	if liquidity >= 0 {
		score += wLiq * (100 - liquidity)
		totalWeight += wLiq
	}

	if totalWeight == 0 {
		return 0
	}

	composite := int(math.Round(score / totalWeight))
	if composite > 100 {
		composite = 100
	}
	if composite < 0 {
		composite = 0
	}
	return composite
}

func (a *Assessor) classifyLevel(composite int) Level {
	switch {
	case composite <= a.cfg.MediumBand:
		return LevelLow
	case composite <= a.cfg.HighBand:
		return LevelMedium
	case composite <= a.cfg.ExtremeBand:
		return LevelHigh
	default:
		return LevelExtreme
	}
}

// factors produces the human-readable observations carried on the profile
func (a *Assessor) factors(data MarketData, tier Tier, volatility, liquidity float64) []string {
	var factors []string

	switch tier {
	case TierLarge:
		factors = append(factors, "Large market cap - established project")
	case TierMid:
		factors = append(factors, "Mid cap - moderate growth potential")
	case TierSmall:
		factors = append(factors, "Small cap - higher risk, higher potential")
	case TierMicro:
		factors = append(factors, "Micro cap - very high risk")
	default:
		factors = append(factors, "Unknown market cap - liquidity unassessed")
	}

	if volatility > 80 {
		factors = append(factors, "Extreme volatility")
	} else if volatility > 50 {
		factors = append(factors, "High volatility - significant price swings")
	} else if volatility < 20 {
		factors = append(factors, "Low volatility - stable price action")
	}

	if liquidity >= 0 {
		if liquidity > 80 {
			factors = append(factors, "High liquidity - easy to enter and exit")
		} else if liquidity < 40 {
			factors = append(factors, "Low liquidity - potential slippage")
		}
	}

	if data.PriceChange24hPct > 20 {
		factors = append(factors, "Strong upward momentum")
	} else if data.PriceChange24hPct < -20 {
		factors = append(factors, "Sharp decline")
	}

	return factors
}

// StrategyRisk returns the inherent risk level of a named strategy kind
func StrategyRisk(kind string) Level {
	switch kind {
	case "staking", "lending":
		return LevelLow
	case "defi", "liquidity":
		return LevelMedium
	case "yield_farming", "trading":
		return LevelHigh
	case "leverage":
		return LevelExtreme
	default:
		return LevelMedium
	}
}
