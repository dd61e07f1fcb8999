package services

import (
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pennywise/internal/budget"
	"pennywise/internal/models"
)

// progressService combines resolved goals with transaction sums. It performs
// no storage access of its own.
type progressService struct {
	categories BudgetCategoryServicer
	goals      GoalServicer
	sums       TransactionSummer
}

// NewProgressService creates a new ProgressServicer.
func NewProgressService(categories BudgetCategoryServicer, goals GoalServicer, sums TransactionSummer) ProgressServicer {
	return &progressService{categories: categories, goals: goals, sums: sums}
}

// ComputeProgress resolves the category goal at period and compares it with a
// caller-supplied transaction sum.
func (s *progressService) ComputeProgress(userID, categoryID string, period budget.Period, transactionSum decimal.Decimal) (*budget.Progress, error) {
	res, err := s.goals.ResolveGoal(userID, CategoryGoalKey(categoryID), period)
	if err != nil {
		return nil, err
	}
	progress := budget.ComputeProgress(*res, transactionSum)
	return &progress, nil
}

// GetCategoryProgress computes a category's progress from its transaction sum.
func (s *progressService) GetCategoryProgress(userID, categoryID string, period budget.Period) (*CategoryProgress, error) {
	category, err := s.categories.GetCategory(userID, categoryID)
	if err != nil {
		return nil, err
	}
	sum, err := s.sums.SumForCategory(userID, categoryID, period)
	if err != nil {
		return nil, err
	}
	progress, err := s.ComputeProgress(userID, categoryID, period, sum)
	if err != nil {
		return nil, err
	}
	return &CategoryProgress{Category: *category, Progress: *progress}, nil
}

// GetMainProgress compares the main-budget goal with the sum over all
// categories of the type.
func (s *progressService) GetMainProgress(userID string, budgetType models.BudgetType, period budget.Period) (*budget.Progress, error) {
	res, err := s.goals.ResolveGoal(userID, MainGoalKey(budgetType), period)
	if err != nil {
		return nil, err
	}
	sums, err := s.sums.SumByCategory(userID, budgetType, period)
	if err != nil {
		return nil, err
	}
	progress := budget.ComputeProgress(*res, total(sums))
	return &progress, nil
}

// GetOverview computes progress for every category of a type, in display
// order, along with the main-budget progress.
func (s *progressService) GetOverview(userID string, budgetType models.BudgetType, period budget.Period) (*BudgetOverview, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	var (
		categories []models.BudgetCategory
		series     map[string]*budget.Series
		sums       map[string]decimal.Decimal
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		categories, err = s.categories.CategoriesByType(userID, budgetType)
		return err
	})
	g.Go(func() error {
		var err error
		series, err = s.goals.LoadTypeSeries(userID, budgetType)
		return err
	})
	g.Go(func() error {
		var err error
		sums, err = s.sums.SumByCategory(userID, budgetType, period)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	overview := &BudgetOverview{
		Type:       budgetType,
		Period:     period,
		Categories: make([]CategoryProgress, 0, len(categories)),
	}

	allocated := decimal.Zero
	actual := decimal.Zero
	for _, c := range categories {
		res := resolveIn(series, models.CategorySeriesKey(c.ID), period)
		sum := sums[c.ID]
		allocated = allocated.Add(res.Goal)
		actual = actual.Add(sum)
		overview.Categories = append(overview.Categories, CategoryProgress{
			Category: c,
			Progress: budget.ComputeProgress(res, sum),
		})
	}

	main := resolveIn(series, models.MainSeriesKey(userID, budgetType), period)
	overview.Main = budget.ComputeProgress(main, actual)
	overview.Unallocated = main.Goal.Sub(allocated)
	return overview, nil
}

func resolveIn(series map[string]*budget.Series, key string, period budget.Period) budget.Resolution {
	if s, ok := series[key]; ok {
		return s.Resolve(period)
	}
	return budget.NewSeries().Resolve(period)
}

func total(sums map[string]decimal.Decimal) decimal.Decimal {
	out := decimal.Zero
	for _, v := range sums {
		out = out.Add(v)
	}
	return out
}
