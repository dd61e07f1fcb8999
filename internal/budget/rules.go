package budget

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Category name violations.
var (
	ErrNameEmpty    = errors.New("name is required")
	ErrNameTooLong  = errors.New("name is too long")
	ErrNameReserved = errors.New("name is reserved")
)

// Goal amount violations.
var (
	ErrGoalNegative  = errors.New("goal must not be negative")
	ErrGoalTooLarge  = errors.New("goal exceeds the maximum amount")
	ErrGoalPrecision = errors.New("goal must have at most 2 decimal places")
)

// MaxGoal is the largest goal amount accepted.
var MaxGoal = decimal.RequireFromString("999999999999999.99")

// GoalScale is the number of decimal places a goal is stored with.
const GoalScale = 2

func init() {
	// Amounts are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

// NamingRules configures category name validation.
type NamingRules struct {
	MaxLength int
	Reserved  []string
}

// DefaultNamingRules returns the rules used when nothing is configured.
func DefaultNamingRules() NamingRules {
	return NamingRules{
		MaxLength: 30,
		Reserved:  []string{"income", "expenses", "null"},
	}
}

// NameKey returns the case-insensitive comparison key for a category name.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Check trims name and validates it. It returns the trimmed display name and
// its comparison key.
func (r NamingRules) Check(name string) (trimmed, key string, err error) {
	trimmed = strings.TrimSpace(name)
	n := utf8.RuneCountInString(trimmed)
	if n == 0 {
		return "", "", ErrNameEmpty
	}
	if r.MaxLength > 0 && n > r.MaxLength {
		return "", "", ErrNameTooLong
	}
	key = NameKey(trimmed)
	for _, reserved := range r.Reserved {
		if key == NameKey(reserved) {
			return "", "", ErrNameReserved
		}
	}
	return trimmed, key, nil
}

// CheckGoal validates a goal amount and returns it at storage scale.
func CheckGoal(goal decimal.Decimal) (decimal.Decimal, error) {
	if goal.IsNegative() {
		return decimal.Zero, ErrGoalNegative
	}
	if goal.GreaterThan(MaxGoal) {
		return decimal.Zero, ErrGoalTooLarge
	}
	if !goal.Equal(goal.Truncate(GoalScale)) {
		return decimal.Zero, ErrGoalPrecision
	}
	return goal.Round(GoalScale), nil
}
