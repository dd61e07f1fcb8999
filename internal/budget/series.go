package budget

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// Entry is one explicitly recorded goal in a series.
type Entry struct {
	Period Period          `json:"period"`
	Goal   decimal.Decimal `json:"goal"`
}

func entryLess(a, b Entry) bool {
	return a.Period.Before(b.Period)
}

// Resolution is the outcome of resolving a series at a period. When no goal was
// recorded at or before the queried period, Configured is false and Goal is zero.
type Resolution struct {
	Period     Period          `json:"period"`
	Goal       decimal.Decimal `json:"goal"`
	Configured bool            `json:"configured"`
	// EffectiveFrom is the period of the record the goal was inherited from.
	EffectiveFrom *Period `json:"effective_period,omitempty"`
}

// Series is a sparse, period-ordered goal time series. A goal holds from the
// period it was recorded until the next recorded period. Series is not safe
// for concurrent mutation.
type Series struct {
	tree *btree.BTreeG[Entry]
}

// NewSeries builds a series from entries in any order. Later duplicates of a
// period replace earlier ones.
func NewSeries(entries ...Entry) *Series {
	s := &Series{tree: btree.NewG(8, entryLess)}
	for _, e := range entries {
		s.Set(e.Period, e.Goal)
	}
	return s
}

// Set records goal at p, replacing any existing goal for the same period.
// It reports whether an existing entry was replaced.
func (s *Series) Set(p Period, goal decimal.Decimal) bool {
	_, replaced := s.tree.ReplaceOrInsert(Entry{Period: p, Goal: goal})
	return replaced
}

// Len returns the number of recorded periods.
func (s *Series) Len() int {
	return s.tree.Len()
}

// Entry returns the goal recorded exactly at p.
func (s *Series) Entry(p Period) (Entry, bool) {
	return s.tree.Get(Entry{Period: p})
}

// Resolve returns the goal in effect at p: the entry with the greatest period
// not after p.
func (s *Series) Resolve(p Period) Resolution {
	res := Resolution{Period: p, Goal: decimal.Zero}
	s.tree.DescendLessOrEqual(Entry{Period: p}, func(e Entry) bool {
		from := e.Period
		res.Goal = e.Goal
		res.Configured = true
		res.EffectiveFrom = &from
		return false
	})
	return res
}

// ResolveRange resolves every month from from to to inclusive. It returns nil
// when to is before from.
func (s *Series) ResolveRange(from, to Period) []Resolution {
	if to.Before(from) {
		return nil
	}
	out := make([]Resolution, 0, from.MonthsUntil(to)+1)
	for p := from; !p.After(to); p = p.Next() {
		out = append(out, s.Resolve(p))
	}
	return out
}

// History returns all entries in ascending period order.
func (s *Series) History() []Entry {
	out := make([]Entry, 0, s.tree.Len())
	s.tree.Ascend(func(e Entry) bool {
		out = append(out, e)
		return true
	})
	return out
}
