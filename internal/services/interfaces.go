package services

import (
	"github.com/shopspring/decimal"

	"pennywise/internal/budget"
	"pennywise/internal/models"
	"pennywise/internal/pagination"
)

// BudgetCategoryServicer defines the contract for the category store and its ordering.
type BudgetCategoryServicer interface {
	CreateCategory(userID string, budgetType models.BudgetType, name string) (*models.BudgetCategory, error)
	GetCategory(userID, categoryID string) (*models.BudgetCategory, error)
	ListCategories(userID string, budgetType *models.BudgetType, page pagination.PageRequest) (*pagination.PageResponse[models.BudgetCategory], error)
	CategoriesByType(userID string, budgetType models.BudgetType) ([]models.BudgetCategory, error)
	RenameCategory(userID, categoryID, name string) (*models.BudgetCategory, error)
	DeleteCategory(userID, categoryID string) error
	ReorderCategories(userID string, budgetType models.BudgetType, orderedIDs []string) ([]models.BudgetCategory, error)
}

// GoalKey selects a goal series: a category's series when CategoryID is set,
// otherwise the main-budget series of Type.
type GoalKey struct {
	CategoryID *string
	Type       models.BudgetType
}

// IsMain reports whether the key targets a main-budget series.
func (k GoalKey) IsMain() bool {
	return k.CategoryID == nil
}

// CategoryGoalKey returns the key of a category's goal series.
func CategoryGoalKey(categoryID string) GoalKey {
	return GoalKey{CategoryID: &categoryID}
}

// MainGoalKey returns the key of the main-budget series of budgetType.
func MainGoalKey(budgetType models.BudgetType) GoalKey {
	return GoalKey{Type: budgetType}
}

// GoalServicer defines the contract for the goal ledger and period resolver.
type GoalServicer interface {
	SetGoal(userID string, key GoalKey, period budget.Period, amount decimal.Decimal) (*models.GoalRecord, error)
	GetGoalHistory(userID string, key GoalKey) ([]models.GoalRecord, error)
	ResolveGoal(userID string, key GoalKey, period budget.Period) (*budget.Resolution, error)
	ResolveRange(userID string, key GoalKey, from, to budget.Period) ([]budget.Resolution, error)
	// LoadTypeSeries returns every series of a budget type keyed by series key
	// (models.CategorySeriesKey / models.MainSeriesKey).
	LoadTypeSeries(userID string, budgetType models.BudgetType) (map[string]*budget.Series, error)
}

// TransactionSummer supplies signed transaction sums per category and calendar month.
type TransactionSummer interface {
	SumForCategory(userID, categoryID string, period budget.Period) (decimal.Decimal, error)
	SumByCategory(userID string, budgetType models.BudgetType, period budget.Period) (map[string]decimal.Decimal, error)
}

// CategoryProgress pairs a category with its progress for one period.
type CategoryProgress struct {
	Category models.BudgetCategory `json:"category"`
	Progress budget.Progress       `json:"progress"`
}

// BudgetOverview is the progress of a whole budget type for one period.
type BudgetOverview struct {
	Type       models.BudgetType  `json:"type"`
	Period     budget.Period      `json:"period"`
	Main       budget.Progress    `json:"main"`
	Categories []CategoryProgress `json:"categories"`
	// Unallocated is the main goal minus the sum of the category goals.
	Unallocated decimal.Decimal `json:"unallocated"`
}

// ProgressServicer defines the contract for the aggregation engine.
type ProgressServicer interface {
	ComputeProgress(userID, categoryID string, period budget.Period, transactionSum decimal.Decimal) (*budget.Progress, error)
	GetCategoryProgress(userID, categoryID string, period budget.Period) (*CategoryProgress, error)
	GetMainProgress(userID string, budgetType models.BudgetType, period budget.Period) (*budget.Progress, error)
	GetOverview(userID string, budgetType models.BudgetType, period budget.Period) (*BudgetOverview, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
