package budget

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Progress compares the actual sum for a period with the goal in effect.
type Progress struct {
	Period     Period
	Goal       decimal.Decimal
	Configured bool
	Actual     decimal.Decimal
	Delta      decimal.Decimal
	// Percentage is actual/goal*100, or +Inf when the goal is zero and actual is not.
	Percentage float64
}

// Unbounded reports whether the percentage is the infinity sentinel.
func (p Progress) Unbounded() bool {
	return math.IsInf(p.Percentage, 1)
}

// ComputeProgress combines a resolved goal with the actual sum for its period.
func ComputeProgress(res Resolution, actual decimal.Decimal) Progress {
	p := Progress{
		Period:     res.Period,
		Goal:       res.Goal,
		Configured: res.Configured,
		Actual:     actual,
		Delta:      actual.Sub(res.Goal),
	}
	switch {
	case res.Goal.IsZero() && actual.IsZero():
		p.Percentage = 0
	case res.Goal.IsZero():
		p.Percentage = math.Inf(1)
	default:
		p.Percentage = actual.Div(res.Goal).Mul(hundred).Round(2).InexactFloat64()
	}
	return p
}

type progressJSON struct {
	Period     Period          `json:"period"`
	Goal       decimal.Decimal `json:"goal"`
	Configured bool            `json:"configured"`
	Actual     decimal.Decimal `json:"actual"`
	Delta      decimal.Decimal `json:"delta"`
	Percentage *float64        `json:"percentage"`
	Unbounded  bool            `json:"unbounded"`
}

// MarshalJSON encodes the infinity sentinel as a null percentage with unbounded set.
func (p Progress) MarshalJSON() ([]byte, error) {
	out := progressJSON{
		Period:     p.Period,
		Goal:       p.Goal,
		Configured: p.Configured,
		Actual:     p.Actual,
		Delta:      p.Delta,
		Unbounded:  p.Unbounded(),
	}
	if !out.Unbounded {
		pct := p.Percentage
		out.Percentage = &pct
	}
	return json.Marshal(out)
}
