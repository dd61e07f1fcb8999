package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pennywise/internal/budget"
	apperrors "pennywise/internal/errors"
	"pennywise/internal/models"
)

// MaxResolveMonths bounds the number of periods ResolveRange samples.
const MaxResolveMonths = 120

// goalService owns the sparse goal series and resolves them.
type goalService struct {
	db     *gorm.DB
	clock  budget.Clock
	locker *KeyedLocker
}

// NewGoalService creates a new GoalServicer. clock decides which periods are
// in the future.
func NewGoalService(db *gorm.DB, clock budget.Clock, locker *KeyedLocker) GoalServicer {
	return &goalService{db: db, clock: clock, locker: locker}
}

// SetGoal upserts the goal of key at period. Setting the same goal twice
// leaves a single record.
func (s *goalService) SetGoal(userID string, key GoalKey, period budget.Period, amount decimal.Decimal) (*models.GoalRecord, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	if current := s.clock(); budget.IsFuture(period, current) {
		field := "month"
		if period.Year > current.Year {
			field = "year"
		}
		return nil, apperrors.Field(apperrors.ErrFuturePeriod, field,
			fmt.Sprintf("period %s is after the current period %s", period, current))
	}
	goal, err := budget.CheckGoal(amount)
	if err != nil {
		return nil, apperrors.Field(apperrors.ErrValidation, "goal", err.Error())
	}

	lockKey := bucketLockKey(userID, string(key.Type))
	if !key.IsMain() {
		lockKey = categoryLockKey(*key.CategoryID)
	}
	unlock := s.locker.Lock(lockKey)
	defer unlock()

	var stored models.GoalRecord
	err = s.db.Transaction(func(tx *gorm.DB) error {
		record, err := s.newRecord(tx, userID, key)
		if err != nil {
			return err
		}
		record.Year = period.Year
		record.Month = period.Month
		record.Goal = goal

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "series_key"}, {Name: "year"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"goal", "updated_at"}),
		}).Create(record).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return apperrors.ErrCategoryNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Where("series_key = ? AND year = ? AND month = ?", record.SeriesKey, period.Year, period.Month).
			First(&stored).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

// GetGoalHistory returns every record of a series in ascending period order.
func (s *goalService) GetGoalHistory(userID string, key GoalKey) ([]models.GoalRecord, error) {
	seriesKey, err := s.seriesKey(s.db, userID, key)
	if err != nil {
		return nil, err
	}

	var records []models.GoalRecord
	if err := s.db.Where("series_key = ? AND user_id = ?", seriesKey, userID).
		Order("year ASC").Order("month ASC").
		Find(&records).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if records == nil {
		records = []models.GoalRecord{}
	}
	return records, nil
}

// ResolveGoal returns the goal in effect for key at period. A series with no
// record at or before period resolves to an unconfigured zero goal.
func (s *goalService) ResolveGoal(userID string, key GoalKey, period budget.Period) (*budget.Resolution, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	series, err := s.loadSeries(userID, key)
	if err != nil {
		return nil, err
	}
	res := series.Resolve(period)
	return &res, nil
}

// ResolveRange resolves every month from from to to inclusive against one load of the series.
func (s *goalService) ResolveRange(userID string, key GoalKey, from, to budget.Period) ([]budget.Resolution, error) {
	if err := validatePeriod(from); err != nil {
		return nil, err
	}
	if err := validatePeriod(to); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, apperrors.Field(apperrors.ErrValidation, "to", "range end must not be before its start")
	}
	if from.MonthsUntil(to) >= MaxResolveMonths {
		return nil, apperrors.Field(apperrors.ErrValidation, "to",
			fmt.Sprintf("range must cover at most %d months", MaxResolveMonths))
	}

	series, err := s.loadSeries(userID, key)
	if err != nil {
		return nil, err
	}
	return series.ResolveRange(from, to), nil
}

// LoadTypeSeries loads all category and main-budget series of a type in one query.
func (s *goalService) LoadTypeSeries(userID string, budgetType models.BudgetType) (map[string]*budget.Series, error) {
	if !budgetType.Valid() {
		return nil, invalidTypeError()
	}

	var records []models.GoalRecord
	if err := s.db.Where("user_id = ? AND type = ?", userID, budgetType).
		Find(&records).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	out := make(map[string]*budget.Series)
	for _, r := range records {
		series, ok := out[r.SeriesKey]
		if !ok {
			series = budget.NewSeries()
			out[r.SeriesKey] = series
		}
		series.Set(budget.NewPeriod(r.Month, r.Year), r.Goal)
	}
	return out, nil
}

func (s *goalService) loadSeries(userID string, key GoalKey) (*budget.Series, error) {
	records, err := s.GetGoalHistory(userID, key)
	if err != nil {
		return nil, err
	}
	entries := make([]budget.Entry, len(records))
	for i, r := range records {
		entries[i] = budget.Entry{Period: budget.NewPeriod(r.Month, r.Year), Goal: r.Goal}
	}
	return budget.NewSeries(entries...), nil
}

// newRecord builds an unsaved record carrying the series identity of key.
func (s *goalService) newRecord(tx *gorm.DB, userID string, key GoalKey) (*models.GoalRecord, error) {
	if key.IsMain() {
		if !key.Type.Valid() {
			return nil, invalidTypeError()
		}
		return &models.GoalRecord{
			UserID:    userID,
			SeriesKey: models.MainSeriesKey(userID, key.Type),
			Type:      key.Type,
		}, nil
	}

	category, err := findCategory(tx, userID, *key.CategoryID)
	if err != nil {
		return nil, err
	}
	if key.Type != "" && key.Type != category.Type {
		return nil, apperrors.Field(apperrors.ErrValidation, "type",
			fmt.Sprintf("category is an %s category", category.Type))
	}
	categoryID := category.ID
	return &models.GoalRecord{
		UserID:           userID,
		SeriesKey:        models.CategorySeriesKey(categoryID),
		BudgetCategoryID: &categoryID,
		Type:             category.Type,
	}, nil
}

func (s *goalService) seriesKey(db *gorm.DB, userID string, key GoalKey) (string, error) {
	record, err := s.newRecord(db, userID, key)
	if err != nil {
		return "", err
	}
	return record.SeriesKey, nil
}

func validatePeriod(p budget.Period) error {
	if p.Month < 1 || p.Month > 12 {
		return apperrors.Field(apperrors.ErrValidation, "month", "month must be between 1 and 12")
	}
	if err := p.Validate(); err != nil {
		return apperrors.Field(apperrors.ErrValidation, "year", err.Error())
	}
	return nil
}
