// Package reasoning derives a recommendation from heterogeneous token
// signals by folding them through an ordered chain of analysis layers.
// Each layer reads the immutable signal bundle, leans in a direction and
// appends a trace entry, so every conclusion is explainable after the
// fact.
package reasoning

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/sentientsats/cryptointel/internal/risk"
	"github.com/sentientsats/cryptointel/internal/sentiment"
)

// Recommendation is the final label of an analysis
type Recommendation string

const (
	RecStrongPositive Recommendation = "strong-positive"
	RecPositive       Recommendation = "positive"
	RecNeutral        Recommendation = "neutral"
	RecCaution        Recommendation = "caution"
	RecAvoid          Recommendation = "avoid"
)

// Lean is a layer's directional vote
type Lean int

const (
	LeanNegative Lean = -1
	LeanNeutral  Lean = 0
	LeanPositive Lean = 1
)

// Signals is the immutable input bundle. Nil pointer fields mean the
// signal is unavailable; layers must degrade to a neutral lean rather
// than fail.
type Signals struct {
	TokenID        string
	PriceChangePct *float64
	Risk           *risk.Profile
	Sentiment      *sentiment.Result
	UserRiskPref   string // "low", "medium", "high"; empty means unknown
	TrendingRank   *int   // 1-based rank on the trending list
}

// TraceEntry records one layer's contribution. Weight is the layer's
// vote weight; all standard layers vote equally.
type TraceEntry struct {
	Layer      string   `json:"layer"`
	Inputs     []string `json:"inputs"`
	Conclusion string   `json:"conclusion"`
	Lean       Lean     `json:"lean"`
	Weight     float64  `json:"weight"`
}

// Analysis is the folded result of all layers
type Analysis struct {
	TokenID        string         `json:"token_id"`
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"` // [0, 1]
	Trace          []TraceEntry   `json:"trace"`
}

// Layer is a single reasoning step. Evaluate must be a pure function of
// the signal bundle.
type Layer interface {
	Name() string
	Evaluate(sig Signals) TraceEntry
}

// Config holds the layer thresholds
type Config struct {
	// StrongTrendPct is the 24h change magnitude treated as a strong move
	StrongTrendPct float64
	// MildTrendPct is the magnitude treated as a mild move
	MildTrendPct float64
}

// DefaultConfig returns the standard layer thresholds
func DefaultConfig() Config {
	return Config{
		StrongTrendPct: 10.0,
		MildTrendPct:   3.0,
	}
}

// Engine folds signals through its layer chain in a fixed order
type Engine struct {
	layers []Layer
	log    zerolog.Logger
}

// NewEngine creates the engine with the standard five-layer chain.
// Custom layers replace the chain entirely when provided.
func NewEngine(cfg Config, logger zerolog.Logger, layers ...Layer) *Engine {
	if len(layers) == 0 {
		layers = []Layer{
			&priceActionLayer{cfg: cfg},
			&riskFactorLayer{},
			&marketContextLayer{},
			&userProfileLayer{},
			&patternLayer{cfg: cfg},
		}
	}
	return &Engine{layers: layers, log: logger}
}

// Analyze runs every layer over the signal bundle and combines their
// leans into a recommendation. Confidence is the fraction of layers
// agreeing with the winning direction.
func (e *Engine) Analyze(sig Signals) Analysis {
	trace := make([]TraceEntry, 0, len(e.layers))
	var sum int
	for _, layer := range e.layers {
		entry := layer.Evaluate(sig)
		if entry.Weight == 0 {
			entry.Weight = 1
		}
		trace = append(trace, entry)
		sum += int(entry.Lean)
	}

	rec := recommend(sum, len(e.layers))
	confidence := agreement(trace, sum)

	e.log.Debug().
		Str("token", sig.TokenID).
		Str("recommendation", string(rec)).
		Float64("confidence", confidence).
		Msg("Analysis complete")

	return Analysis{
		TokenID:        sig.TokenID,
		Recommendation: rec,
		Confidence:     confidence,
		Trace:          trace,
	}
}

// recommend maps the summed lean onto the five-label scale
func recommend(sum, layers int) Recommendation {
	if layers == 0 {
		return RecNeutral
	}
	switch {
	case sum >= 4:
		return RecStrongPositive
	case sum >= 2:
		return RecPositive
	case sum <= -4:
		return RecAvoid
	case sum <= -2:
		return RecCaution
	default:
		return RecNeutral
	}
}

// agreement is the fraction of layers leaning with the winning direction.
// A neutral outcome expresses uncertainty rather than consensus, so its
// confidence is halved and never exceeds 0.5.
func agreement(trace []TraceEntry, sum int) float64 {
	if len(trace) == 0 {
		return 0
	}

	want := LeanNeutral
	if sum > 0 {
		want = LeanPositive
	} else if sum < 0 {
		want = LeanNegative
	}

	agree := 0
	for _, entry := range trace {
		if entry.Lean == want {
			agree++
		}
	}

	confidence := float64(agree) / float64(len(trace))
	if want == LeanNeutral {
		confidence /= 2
	}
	return confidence
}

// priceActionLayer reads the 24h trend
type priceActionLayer struct {
	cfg Config
}

func (l *priceActionLayer) Name() string { return "price-action" }

func (l *priceActionLayer) Evaluate(sig Signals) TraceEntry {
	entry := TraceEntry{Layer: l.Name()}

	if sig.PriceChangePct == nil {
		entry.Conclusion = "no price data, staying neutral"
		return entry
	}

	change := *sig.PriceChangePct
	entry.Inputs = append(entry.Inputs, fmt.Sprintf("24h change %.2f%%", change))

	switch {
	case change >= l.cfg.StrongTrendPct:
		entry.Lean = LeanPositive
		entry.Conclusion = "strong upward trend"
	case change >= l.cfg.MildTrendPct:
		entry.Lean = LeanPositive
		entry.Conclusion = "mild upward trend"
	case change <= -l.cfg.StrongTrendPct:
		entry.Lean = LeanNegative
		entry.Conclusion = "strong downward trend"
	case change <= -l.cfg.MildTrendPct:
		entry.Lean = LeanNegative
		entry.Conclusion = "mild downward trend"
	default:
		entry.Conclusion = "sideways price action"
	}
	return entry
}

// riskFactorLayer reads the composite risk profile
type riskFactorLayer struct{}

func (l *riskFactorLayer) Name() string { return "risk-factor" }

func (l *riskFactorLayer) Evaluate(sig Signals) TraceEntry {
	entry := TraceEntry{Layer: l.Name()}

	if sig.Risk == nil {
		entry.Conclusion = "no risk profile, staying neutral"
		return entry
	}

	entry.Inputs = append(entry.Inputs,
		fmt.Sprintf("composite risk %d (%s)", sig.Risk.CompositeScore, sig.Risk.Level))

	switch sig.Risk.Level {
	case risk.LevelLow:
		entry.Lean = LeanPositive
		entry.Conclusion = "low risk supports a position"
	case risk.LevelHigh:
		entry.Lean = LeanNegative
		entry.Conclusion = "elevated risk"
	case risk.LevelExtreme:
		entry.Lean = LeanNegative
		entry.Conclusion = "extreme risk"
	default:
		entry.Conclusion = "moderate risk"
	}
	return entry
}

// marketContextLayer reads aggregate sentiment
type marketContextLayer struct{}

func (l *marketContextLayer) Name() string { return "market-context" }

func (l *marketContextLayer) Evaluate(sig Signals) TraceEntry {
	entry := TraceEntry{Layer: l.Name()}

	if sig.Sentiment == nil {
		entry.Conclusion = "no sentiment data, staying neutral"
		return entry
	}

	entry.Inputs = append(entry.Inputs,
		fmt.Sprintf("sentiment %.2f (%s)", sig.Sentiment.Score, sig.Sentiment.Label))

	switch sig.Sentiment.Label {
	case sentiment.LabelBullish:
		entry.Lean = LeanPositive
		entry.Conclusion = "bullish market sentiment"
	case sentiment.LabelBearish:
		entry.Lean = LeanNegative
		entry.Conclusion = "bearish market sentiment"
	default:
		entry.Conclusion = "neutral market sentiment"
	}
	return entry
}

// userProfileLayer matches the token's risk against the user's stated
// preference, defaulting to a medium-risk appetite when unknown
type userProfileLayer struct{}

func (l *userProfileLayer) Name() string { return "user-profile" }

func (l *userProfileLayer) Evaluate(sig Signals) TraceEntry {
	entry := TraceEntry{Layer: l.Name()}

	pref := sig.UserRiskPref
	if pref == "" {
		pref = "medium"
		entry.Conclusion = "no stated preference, assuming medium risk appetite"
	}
	entry.Inputs = append(entry.Inputs, "risk preference "+pref)

	if sig.Risk == nil {
		if entry.Conclusion == "" {
			entry.Conclusion = "no risk profile to match against preference"
		}
		return entry
	}

	tolerance := map[string]risk.Level{
		"low":    risk.LevelLow,
		"medium": risk.LevelMedium,
		"high":   risk.LevelHigh,
	}[pref]

	if exceeds(sig.Risk.Level, tolerance) {
		entry.Lean = LeanNegative
		entry.Conclusion = fmt.Sprintf("token risk %s exceeds %s preference", sig.Risk.Level, pref)
	} else {
		entry.Lean = LeanPositive
		entry.Conclusion = fmt.Sprintf("token risk %s fits %s preference", sig.Risk.Level, pref)
	}
	return entry
}

func levelRank(l risk.Level) int {
	switch l {
	case risk.LevelLow:
		return 0
	case risk.LevelMedium:
		return 1
	case risk.LevelHigh:
		return 2
	default:
		return 3
	}
}

func exceeds(actual, tolerated risk.Level) bool {
	return levelRank(actual) > levelRank(tolerated)
}

// patternLayer looks for momentum and attention patterns: trending rank
// combined with the direction of the move
type patternLayer struct {
	cfg Config
}

func (l *patternLayer) Name() string { return "pattern-recognition" }

func (l *patternLayer) Evaluate(sig Signals) TraceEntry {
	entry := TraceEntry{Layer: l.Name()}

	if sig.TrendingRank == nil && sig.PriceChangePct == nil {
		entry.Conclusion = "no pattern inputs, staying neutral"
		return entry
	}

	trending := sig.TrendingRank != nil && *sig.TrendingRank <= 10
	if sig.TrendingRank != nil {
		entry.Inputs = append(entry.Inputs, fmt.Sprintf("trending rank %d", *sig.TrendingRank))
	}

	var change float64
	if sig.PriceChangePct != nil {
		change = *sig.PriceChangePct
		entry.Inputs = append(entry.Inputs, fmt.Sprintf("24h change %.2f%%", change))
	}

	switch {
	case trending && change >= l.cfg.MildTrendPct:
		entry.Lean = LeanPositive
		entry.Conclusion = "trending with upward momentum"
	case trending && change <= -l.cfg.MildTrendPct:
		entry.Lean = LeanNegative
		entry.Conclusion = "trending on a downward move, likely panic attention"
	case math.Abs(change) >= l.cfg.StrongTrendPct && !trending:
		entry.Lean = LeanNegative
		entry.Conclusion = "outsized move without broad attention"
	default:
		entry.Conclusion = "no notable pattern"
	}
	return entry
}
