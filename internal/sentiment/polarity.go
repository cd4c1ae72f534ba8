package sentiment

// polarity lexicon: per-word polarity in [-1, 1], averaged over matches
var polarities = map[string]float64{
	"gain": 0.5, "gains": 0.5, "rally": 0.6, "surge": 0.65, "soar": 0.7,
	"soaring": 0.7, "bullish": 0.75, "moon": 0.55, "profit": 0.5,
	"profits": 0.5, "adoption": 0.45, "breakout": 0.55, "upgrade": 0.4,
	"partnership": 0.4, "growth": 0.5, "strong": 0.45, "positive": 0.5,
	"buy": 0.35, "recovery": 0.5, "rebound": 0.5, "amazing": 0.8,
	"great": 0.7, "good": 0.6, "success": 0.6, "successful": 0.6,
	"win": 0.6, "winning": 0.6, "rise": 0.4, "rising": 0.4,
	"optimistic": 0.6, "boom": 0.6, "stable": 0.15, "high": 0.3,

	"crash": -0.8, "dump": -0.65, "plunge": -0.7, "plunges": -0.7,
	"bearish": -0.75, "loss": -0.55, "losses": -0.55, "scam": -0.85,
	"hack": -0.75, "hacked": -0.75, "exploit": -0.7, "fraud": -0.8,
	"ban": -0.6, "banned": -0.6, "lawsuit": -0.55, "fear": -0.6,
	"selloff": -0.6, "decline": -0.5, "declines": -0.5, "weak": -0.4,
	"drop": -0.45, "drops": -0.45, "fall": -0.4, "falls": -0.4,
	"falling": -0.4, "negative": -0.5, "collapse": -0.8,
	"liquidation": -0.6, "fud": -0.5, "bad": -0.55, "terrible": -0.8,
	"panic": -0.65, "concern": -0.35, "concerns": -0.35,
	"warning": -0.4, "risky": -0.4, "bubble": -0.45, "crackdown": -0.55,
}

// intensifiers multiply the polarity of the following word
var intensifiers = map[string]float64{
	"very": 1.3, "extremely": 1.5, "hugely": 1.4, "incredibly": 1.4,
	"really": 1.25, "slightly": 0.6, "somewhat": 0.7, "barely": 0.5,
}

// PolarityEngine averages the polarity of matched words, with simple
// intensifier handling. Texts with no matched words score zero.
type PolarityEngine struct{}

// NewPolarityEngine creates the averaged-polarity engine
func NewPolarityEngine() *PolarityEngine { return &PolarityEngine{} }

// Name implements Engine
func (e *PolarityEngine) Name() string { return "polarity" }

// Score implements Engine
func (e *PolarityEngine) Score(text string) float64 {
	words := tokenize(text)

	var sum float64
	matched := 0
	for i, w := range words {
		p, ok := polarities[w]
		if !ok {
			continue
		}

		if i > 0 {
			if mult, ok := intensifiers[words[i-1]]; ok {
				p *= mult
			}
		}

		sum += clamp(p, -1, 1)
		matched++
	}

	if matched == 0 {
		return 0
	}
	return sum / float64(matched)
}
