package models

import (
	"github.com/shopspring/decimal"
)

// GoalRecord is one explicitly set goal of a series. Category goals carry
// BudgetCategoryID; main-budget goals leave it nil and are keyed by type.
type GoalRecord struct {
	Base
	UserID           string          `gorm:"type:uuid;not null;index" json:"-"`
	SeriesKey        string          `gorm:"not null;uniqueIndex:idx_goal_series_period,priority:1" json:"-"`
	BudgetCategoryID *string         `gorm:"type:uuid;index" json:"budget_category_id"`
	Type             BudgetType      `gorm:"not null" json:"type"`
	Year             int             `gorm:"not null;uniqueIndex:idx_goal_series_period,priority:2" json:"year"`
	Month            int             `gorm:"not null;uniqueIndex:idx_goal_series_period,priority:3" json:"month"`
	Goal             decimal.Decimal `gorm:"type:numeric(17,2);not null" json:"goal"`

	BudgetCategory *BudgetCategory `gorm:"foreignKey:BudgetCategoryID;constraint:OnDelete:CASCADE" json:"-"`
}

// CategorySeriesKey identifies the goal series of one category.
func CategorySeriesKey(categoryID string) string {
	return "category:" + categoryID
}

// MainSeriesKey identifies the main-budget goal series of a user's budget type.
func MainSeriesKey(userID string, budgetType BudgetType) string {
	return "main:" + userID + ":" + string(budgetType)
}
