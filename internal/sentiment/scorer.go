package sentiment

import (
	"strings"

	"github.com/rs/zerolog"
)

// crypto-specific indicator terms that adjust the combined score beyond
// what the general lexicons capture
var cryptoPositive = []string{
	"moon", "bullish", "pump", "rally", "surge", "breakout",
	"ath", "adoption", "institutional", "upgrade", "partnership",
}

var cryptoNegative = []string{
	"dump", "crash", "bearish", "scam", "hack", "exploit",
	"rug pull", "fud", "ban", "regulation", "lawsuit",
}

// Config holds the tunable thresholds and weights for the scorer
type Config struct {
	BullishThreshold float64
	BearishThreshold float64
	// EngineWeights maps engine name to weight; unnamed engines get 1.0
	EngineWeights map[string]float64
	// CryptoAdjustment is the per-term score bump for crypto indicators
	CryptoAdjustment float64
}

// DefaultConfig returns the standard thresholds with equal engine weights
func DefaultConfig() Config {
	return Config{
		BullishThreshold: 0.1,
		BearishThreshold: -0.1,
		CryptoAdjustment: 0.1,
	}
}

// Scorer combines independent engines via weighted average into one
// normalized score and label. The combiner is polymorphic over Engine,
// so engines can be swapped or added without touching it.
type Scorer struct {
	engines []Engine
	cfg     Config
	log     zerolog.Logger
}

// NewScorer creates a scorer over the given engines. With no engines it
// defaults to the valence and polarity pair.
func NewScorer(cfg Config, logger zerolog.Logger, engines ...Engine) *Scorer {
	if len(engines) == 0 {
		engines = []Engine{NewValenceEngine(), NewPolarityEngine()}
	}
	return &Scorer{
		engines: engines,
		cfg:     cfg,
		log:     logger,
	}
}

// Score analyzes a single text. Empty or whitespace-only input yields a
// neutral, zero-confidence result rather than an error.
func (s *Scorer) Score(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{
			Label:        LabelNeutral,
			SourceScores: map[string]float64{},
		}
	}

	sourceScores := make(map[string]float64, len(s.engines))
	var weighted, totalWeight float64
	for _, eng := range s.engines {
		raw := clamp(eng.Score(text), -1, 1)
		sourceScores[eng.Name()] = raw

		weight := 1.0
		if w, ok := s.cfg.EngineWeights[eng.Name()]; ok && w > 0 {
			weight = w
		}
		weighted += raw * weight
		totalWeight += weight
	}

	score := 0.0
	if totalWeight > 0 {
		score = weighted / totalWeight
	}

	score = clamp(score+s.cryptoAdjustment(text), -1, 1)

	result := Result{
		Score:        score,
		Label:        s.classify(score),
		Confidence:   clamp(abs(score), 0, 1),
		SourceScores: sourceScores,
	}

	s.log.Debug().
		Float64("score", result.Score).
		Str("label", string(result.Label)).
		Msg("Sentiment scored")

	return result
}

// ScoreBatch scores each text and aggregates the mean score across the
// batch together with a label distribution
func (s *Scorer) ScoreBatch(texts []string) BatchResult {
	batch := BatchResult{
		Items: make([]Result, 0, len(texts)),
		Distribution: map[Label]int{
			LabelBullish: 0,
			LabelNeutral: 0,
			LabelBearish: 0,
		},
	}

	var sum float64
	for _, text := range texts {
		r := s.Score(text)
		batch.Items = append(batch.Items, r)
		batch.Distribution[r.Label]++
		sum += r.Score
	}

	if len(batch.Items) > 0 {
		batch.AggregateScore = sum / float64(len(batch.Items))
	}
	batch.AggregateLabel = s.classify(batch.AggregateScore)

	s.log.Debug().
		Int("items", len(batch.Items)).
		Float64("aggregate", batch.AggregateScore).
		Str("label", string(batch.AggregateLabel)).
		Msg("Batch sentiment scored")

	return batch
}

// cryptoAdjustment shifts the score by CryptoAdjustment per matched
// crypto-specific indicator term
func (s *Scorer) cryptoAdjustment(text string) float64 {
	if s.cfg.CryptoAdjustment == 0 {
		return 0
	}

	lower := strings.ToLower(text)
	count := 0
	for _, term := range cryptoPositive {
		if strings.Contains(lower, term) {
			count++
		}
	}
	for _, term := range cryptoNegative {
		if strings.Contains(lower, term) {
			count--
		}
	}
	return float64(count) * s.cfg.CryptoAdjustment
}

func (s *Scorer) classify(score float64) Label {
	switch {
	case score > s.cfg.BullishThreshold:
		return LabelBullish
	case score < s.cfg.BearishThreshold:
		return LabelBearish
	default:
		return LabelNeutral
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
