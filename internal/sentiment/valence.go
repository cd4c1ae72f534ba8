package sentiment

import "math"

// valence lexicon: term intensity on a [-4, 4] scale, tuned for market
// and social-media language
var valences = map[string]float64{
	// positive
	"gain": 1.8, "gains": 1.8, "rally": 2.2, "surge": 2.4, "soar": 2.6,
	"soaring": 2.6, "bullish": 2.8, "moon": 2.0, "profit": 1.9,
	"profits": 1.9, "adoption": 1.6, "breakout": 2.0, "upgrade": 1.5,
	"partnership": 1.4, "growth": 1.7, "strong": 1.6, "positive": 1.8,
	"buy": 1.2, "support": 1.0, "recovery": 1.7, "rebound": 1.8,
	"record": 1.3, "amazing": 2.7, "great": 2.2, "good": 1.9,
	"success": 2.1, "successful": 2.1, "win": 2.0, "winning": 2.0,
	"high": 1.2, "up": 0.9, "rise": 1.4, "rising": 1.4, "climbs": 1.4,
	"optimistic": 2.0, "boom": 2.2, "milestone": 1.5,

	// negative
	"crash": -3.0, "dump": -2.4, "plunge": -2.7, "plunges": -2.7,
	"bearish": -2.8, "loss": -2.0, "losses": -2.0, "scam": -3.2,
	"hack": -2.9, "hacked": -2.9, "exploit": -2.6, "fraud": -3.1,
	"ban": -2.2, "banned": -2.2, "lawsuit": -2.0, "fear": -2.1,
	"selloff": -2.3, "decline": -1.8, "declines": -1.8, "weak": -1.5,
	"drop": -1.6, "drops": -1.6, "fall": -1.5, "falls": -1.5,
	"falling": -1.5, "negative": -1.8, "collapse": -3.0,
	"liquidation": -2.2, "fud": -1.9, "rug": -2.8, "bad": -1.9,
	"terrible": -2.8, "panic": -2.5, "down": -0.9, "concern": -1.3,
	"concerns": -1.3, "warning": -1.6, "risk": -1.1, "risky": -1.4,
	"bubble": -1.7, "crackdown": -2.1,
}

// booster words scale the following sentiment-bearing term
var boosters = map[string]float64{
	"very": 0.3, "extremely": 0.4, "hugely": 0.35, "incredibly": 0.35,
	"really": 0.25, "massively": 0.4, "slightly": -0.3, "somewhat": -0.25,
	"barely": -0.4, "marginally": -0.3,
}

// negators flip and dampen the following sentiment-bearing term
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "neither": true,
	"nobody": true, "none": true, "isnt": true, "dont": true,
	"doesnt": true, "wont": true, "cant": true, "without": true,
}

const (
	negationDampen       = -0.74
	valenceNormalization = 15.0
)

// ValenceEngine scores text against the intensity lexicon with booster
// and negation handling, normalizing the summed valence into [-1, 1].
type ValenceEngine struct{}

// NewValenceEngine creates the intensity-lexicon engine
func NewValenceEngine() *ValenceEngine { return &ValenceEngine{} }

// Name implements Engine
func (e *ValenceEngine) Name() string { return "valence" }

// Score implements Engine
func (e *ValenceEngine) Score(text string) float64 {
	words := tokenize(text)

	var sum float64
	for i, w := range words {
		v, ok := valences[w]
		if !ok {
			continue
		}

		// Look back up to two words for boosters and negators
		for back := 1; back <= 2 && i-back >= 0; back++ {
			prev := words[i-back]
			if boost, ok := boosters[prev]; ok {
				if v > 0 {
					v += boost
				} else {
					v -= boost
				}
			}
			if negators[prev] {
				v *= negationDampen
			}
		}

		sum += v
	}

	if sum == 0 {
		return 0
	}
	// Normalize so that the score asymptotically approaches ±1
	return sum / math.Sqrt(sum*sum+valenceNormalization)
}
