package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pennywise/internal/budget"
	apperrors "pennywise/internal/errors"
	"pennywise/internal/models"
)

// transactionSumService sums the read side of the transactions table.
type transactionSumService struct {
	db  *gorm.DB
	loc *time.Location
}

// NewTransactionSumService creates a TransactionSummer. Calendar months are
// delimited in loc.
func NewTransactionSumService(db *gorm.DB, loc *time.Location) TransactionSummer {
	if loc == nil {
		loc = time.UTC
	}
	return &transactionSumService{db: db, loc: loc}
}

type categoryTotal struct {
	BudgetCategoryID string
	Total            decimal.Decimal
}

// SumForCategory returns the signed sum of a category's transactions in period.
func (s *transactionSumService) SumForCategory(userID, categoryID string, period budget.Period) (decimal.Decimal, error) {
	start, end := s.bounds(period)

	var row struct {
		Total decimal.Decimal
	}
	err := s.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ? AND budget_category_id = ? AND date >= ? AND date < ?",
			userID, categoryID, start, end).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return row.Total.Round(budget.GoalScale), nil
}

// SumByCategory returns the period sum of every category of a type that has
// transactions; categories without any are absent from the map.
func (s *transactionSumService) SumByCategory(userID string, budgetType models.BudgetType, period budget.Period) (map[string]decimal.Decimal, error) {
	start, end := s.bounds(period)

	var rows []categoryTotal
	err := s.db.Model(&models.Transaction{}).
		Select("transactions.budget_category_id AS budget_category_id, COALESCE(SUM(transactions.amount), 0) AS total").
		Joins("JOIN budget_categories ON budget_categories.id = transactions.budget_category_id").
		Where("transactions.user_id = ? AND budget_categories.type = ? AND transactions.date >= ? AND transactions.date < ?",
			userID, budgetType, start, end).
		Group("transactions.budget_category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	out := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[r.BudgetCategoryID] = r.Total.Round(budget.GoalScale)
	}
	return out, nil
}

// bounds returns the month window in UTC so stored UTC timestamps compare
// consistently on every driver.
func (s *transactionSumService) bounds(period budget.Period) (time.Time, time.Time) {
	start, end := period.Bounds(s.loc)
	return start.UTC(), end.UTC()
}
