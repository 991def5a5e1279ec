package strategy

// Band is a closed sub-range of the optimization score
type Band int

const (
	Unclassified Band = iota
	Performance
	Balanced
	CostEfficient
)

func (b Band) String() string {
	switch b {
	case Performance:
		return "performance"
	case Balanced:
		return "balanced"
	case CostEfficient:
		return "cost-efficient"
	default:
		return "unclassified"
	}
}

// MarshalText lets bands key JSON and YAML maps by name
func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

type bandRange struct {
	band Band
	low  float64
	high float64
}

// Bands are closed on both ends. Scores between two ranges are Unclassified.
var bandTable = []bandRange{
	{band: Performance, low: 1.0, high: 1.6},
	{band: Balanced, low: 1.7, high: 2.3},
	{band: CostEfficient, low: 2.4, high: 3.0},
}

// Classify maps a score to its band
func Classify(score float64) Band {
	for _, r := range bandTable {
		if score >= r.low && score <= r.high {
			return r.band
		}
	}
	return Unclassified
}

// ScoreRange returns the closed score range covered by a band
func ScoreRange(b Band) (low, high float64, ok bool) {
	for _, r := range bandTable {
		if r.band == b {
			return r.low, r.high, true
		}
	}
	return 0, 0, false
}

// Bands lists every band a strategy can be registered for
func Bands() []Band {
	out := make([]Band, 0, len(bandTable))
	for _, r := range bandTable {
		out = append(out, r.band)
	}
	return out
}
