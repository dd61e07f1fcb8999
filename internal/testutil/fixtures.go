package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"pennywise/internal/budget"
	"pennywise/internal/models"
	"pennywise/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewTestUserID returns a fresh owner id. Users live in the auth service, so
// the ledger only ever sees their ids.
func NewTestUserID() string {
	return uuid.New()
}

// CreateTestBudgetCategory creates a category of the given type at the next order.
func CreateTestBudgetCategory(t *testing.T, db *gorm.DB, userID string, budgetType models.BudgetType) *models.BudgetCategory {
	t.Helper()
	return CreateTestBudgetCategoryNamed(t, db, userID, budgetType, fmt.Sprintf("Test Category %d", nextID()))
}

// CreateTestBudgetCategoryNamed creates a category with the given name at the next order.
func CreateTestBudgetCategoryNamed(t *testing.T, db *gorm.DB, userID string, budgetType models.BudgetType, name string) *models.BudgetCategory {
	t.Helper()

	var count int64
	if err := db.Model(&models.BudgetCategory{}).
		Where("user_id = ? AND type = ?", userID, budgetType).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count categories: %v", err)
	}

	category := &models.BudgetCategory{
		UserID:  userID,
		Type:    budgetType,
		Name:    name,
		NameKey: budget.NameKey(name),
		Order:   int(count),
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestGoal records a category goal directly, bypassing the clock.
func CreateTestGoal(t *testing.T, db *gorm.DB, category *models.BudgetCategory, period budget.Period, goal string) *models.GoalRecord {
	t.Helper()

	categoryID := category.ID
	record := &models.GoalRecord{
		UserID:           category.UserID,
		SeriesKey:        models.CategorySeriesKey(category.ID),
		BudgetCategoryID: &categoryID,
		Type:             category.Type,
		Year:             period.Year,
		Month:            period.Month,
		Goal:             decimal.RequireFromString(goal),
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return record
}

// CreateTestTransaction creates a transaction for a category on the given UTC date.
func CreateTestTransaction(t *testing.T, db *gorm.DB, category *models.BudgetCategory, amount string, date time.Time) *models.Transaction {
	t.Helper()

	categoryID := category.ID
	tx := &models.Transaction{
		UserID:           category.UserID,
		BudgetCategoryID: &categoryID,
		Type:             category.Type,
		Amount:           decimal.RequireFromString(amount),
		Description:      fmt.Sprintf("Test Transaction %d", nextID()),
		Date:             date.UTC(),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}
