// Package sentiment scores short market texts (headlines, chat messages)
// by combining independent lexical engines into one normalized score and
// a directional label.
package sentiment

import (
	"strings"
	"unicode"
)

// Label is the directional classification of a score
type Label string

const (
	LabelBullish Label = "bullish"
	LabelBearish Label = "bearish"
	LabelNeutral Label = "neutral"
)

// Result is the scored sentiment for one text. SourceScores carries each
// engine's raw contribution for explainability.
type Result struct {
	Score        float64            `json:"score"` // [-1, 1]
	Label        Label              `json:"label"`
	Confidence   float64            `json:"confidence"` // [0, 1]
	SourceScores map[string]float64 `json:"source_scores"`
}

// BatchResult is the per-item and aggregate sentiment for a set of texts
type BatchResult struct {
	Items          []Result      `json:"items"`
	AggregateScore float64       `json:"aggregate_score"`
	AggregateLabel Label         `json:"aggregate_label"`
	Distribution   map[Label]int `json:"distribution"`
}

// Engine is a single text-to-score strategy producing values in [-1, 1].
// Engines are interchangeable; the Scorer combines any number of them.
type Engine interface {
	Name() string
	Score(text string) float64
}

// tokenize lowercases and splits text on non-letter runes
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
