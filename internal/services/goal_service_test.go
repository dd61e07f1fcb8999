package services

import (
	"sync"
	"testing"

	"pennywise/internal/budget"
	"pennywise/internal/models"
	"pennywise/internal/testutil"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var testCurrentPeriod = budget.NewPeriod(8, 2024)

func newGoalService(db *gorm.DB) GoalServicer {
	return NewGoalService(db, budget.FixedClock(testCurrentPeriod), NewKeyedLocker())
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSetGoal(t *testing.T) {
	t.Run("category_goal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)
		userID := testutil.NewTestUserID()
		cat := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)

		record, err := svc.SetGoal(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(3, 2024), amount("200"))
		testutil.AssertNoError(t, err)

		if record.BudgetCategoryID == nil || *record.BudgetCategoryID != cat.ID {
			t.Errorf("expected record for category %s", cat.ID)
		}
		if record.Type != models.BudgetTypeExpenses {
			t.Errorf("expected type inherited from category, got %s", record.Type)
		}
		if record.Year != 2024 || record.Month != 3 {
			t.Errorf("expected 2024-03, got %d-%d", record.Year, record.Month)
		}
		testutil.AssertDecimal(t, record.Goal, "200")
	})

	t.Run("idempotent_upsert", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)
		userID := testutil.NewTestUserID()
		cat := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)
		period := budget.NewPeriod(5, 2024)

		first, err := svc.SetGoal(userID, CategoryGoalKey(cat.ID), period, amount("100"))
		testutil.AssertNoError(t, err)
		_, err = svc.SetGoal(userID, CategoryGoalKey(cat.ID), period, amount("100"))
		testutil.AssertNoError(t, err)
		second, err := svc.SetGoal(userID, CategoryGoalKey(cat.ID), period, amount("120.5"))
		testutil.AssertNoError(t, err)

		if first.ID != second.ID {
			t.Errorf("expected the record to be updated in place, got %s and %s", first.ID, second.ID)
		}
		testutil.AssertDecimal(t, second.Goal, "120.5")

		history, err := svc.GetGoalHistory(userID, CategoryGoalKey(cat.ID))
		testutil.AssertNoError(t, err)
		if len(history) != 1 {
			t.Errorf("expected a single record, got %d", len(history))
		}
	})

	t.Run("main_budget_goal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)
		userID := testutil.NewTestUserID()

		record, err := svc.SetGoal(userID, MainGoalKey(models.BudgetTypeIncome), budget.NewPeriod(1, 2024), amount("5000"))
		testutil.AssertNoError(t, err)
		if record.BudgetCategoryID != nil {
			t.Errorf("expected main-budget record without category, got %s", *record.BudgetCategoryID)
		}

		_, err = svc.SetGoal(userID, MainGoalKey(models.BudgetTypeIncome), budget.NewPeriod(1, 2024), amount("5500"))
		testutil.AssertNoError(t, err)
		_, err = svc.SetGoal(userID, MainGoalKey(models.BudgetTypeExpenses), budget.NewPeriod(1, 2024), amount("3000"))
		testutil.AssertNoError(t, err)

		income, err := svc.GetGoalHistory(userID, MainGoalKey(models.BudgetTypeIncome))
		testutil.AssertNoError(t, err)
		if len(income) != 1 {
			t.Fatalf("expected one income main-budget record, got %d", len(income))
		}
		testutil.AssertDecimal(t, income[0].Goal, "5500")
	})

	t.Run("zero_goal_is_configured", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)
		userID := testutil.NewTestUserID()
		cat := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)

		_, err := svc.SetGoal(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(2, 2024), decimal.Zero)
		testutil.AssertNoError(t, err)

		res, err := svc.ResolveGoal(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(4, 2024))
		testutil.AssertNoError(t, err)
		if !res.Configured || !res.Goal.IsZero() {
			t.Errorf("expected a configured zero goal, got %+v", res)
		}
	})

	t.Run("future_period", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)
		userID := testutil.NewTestUserID()
		cat := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)

		_, err := svc.SetGoal(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(9, 2024), amount("10"))
		testutil.AssertErrorField(t, err, "FUTURE_PERIOD", "month")

		_, err = svc.SetGoal(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(1, 2025), amount("10"))
		testutil.AssertErrorField(t, err, "FUTURE_PERIOD", "year")

		_, err = svc.SetGoal(userID, CategoryGoalKey(cat.ID), testCurrentPeriod, amount("10"))
		testutil.AssertNoError(t, err)

		_, err = svc.SetGoal(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(12, 2023), amount("10"))
		testutil.AssertNoError(t, err)
	})

	t.Run("invalid_period", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)
		userID := testutil.NewTestUserID()
		cat := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)

		_, err := svc.SetGoal(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(13, 2024), amount("10"))
		testutil.AssertErrorField(t, err, "VALIDATION_ERROR", "month")

		_, err = svc.SetGoal(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(1, 1799), amount("10"))
		testutil.AssertErrorField(t, err, "VALIDATION_ERROR", "year")
	})

	t.Run("invalid_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)
		userID := testutil.NewTestUserID()
		cat := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)

		for _, bad := range []string{"-1", "10.999", "1000000000000000"} {
			_, err := svc.SetGoal(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(1, 2024), amount(bad))
			testutil.AssertErrorField(t, err, "VALIDATION_ERROR", "goal")
		}
	})

	t.Run("unknown_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)

		_, err := svc.SetGoal(testutil.NewTestUserID(), CategoryGoalKey(testutil.NewTestUserID()), budget.NewPeriod(1, 2024), amount("10"))
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("other_users_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)
		cat := testutil.CreateTestBudgetCategory(t, db, testutil.NewTestUserID(), models.BudgetTypeExpenses)

		_, err := svc.SetGoal(testutil.NewTestUserID(), CategoryGoalKey(cat.ID), budget.NewPeriod(1, 2024), amount("10"))
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("type_mismatch", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)
		userID := testutil.NewTestUserID()
		cat := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)

		key := CategoryGoalKey(cat.ID)
		key.Type = models.BudgetTypeIncome
		_, err := svc.SetGoal(userID, key, budget.NewPeriod(1, 2024), amount("10"))
		testutil.AssertErrorField(t, err, "VALIDATION_ERROR", "type")
	})

	t.Run("invalid_main_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)

		_, err := svc.SetGoal(testutil.NewTestUserID(), MainGoalKey(""), budget.NewPeriod(1, 2024), amount("10"))
		testutil.AssertErrorField(t, err, "VALIDATION_ERROR", "type")
	})

	t.Run("concurrent_same_period", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)
		userID := testutil.NewTestUserID()
		cat := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)

		var wg sync.WaitGroup
		for _, v := range []string{"10", "20", "30", "40"} {
			wg.Add(1)
			go func(v string) {
				defer wg.Done()
				if _, err := svc.SetGoal(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(1, 2024), amount(v)); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}(v)
		}
		wg.Wait()

		history, err := svc.GetGoalHistory(userID, CategoryGoalKey(cat.ID))
		testutil.AssertNoError(t, err)
		if len(history) != 1 {
			t.Errorf("expected one record after concurrent upserts, got %d", len(history))
		}
	})

	t.Run("concurrent_delete", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		locker := NewKeyedLocker()
		goals := NewGoalService(db, budget.FixedClock(testCurrentPeriod), locker)
		categories := NewBudgetCategoryService(db, budget.DefaultNamingRules(), locker)
		userID := testutil.NewTestUserID()
		cat := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			failed []error
		)
		for month := 1; month <= 8; month++ {
			wg.Add(1)
			go func(month int) {
				defer wg.Done()
				if _, err := goals.SetGoal(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(month, 2024), amount("100")); err != nil {
					mu.Lock()
					failed = append(failed, err)
					mu.Unlock()
				}
			}(month)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := categories.DeleteCategory(userID, cat.ID); err != nil {
				t.Errorf("unexpected delete error: %v", err)
			}
		}()
		wg.Wait()

		for _, err := range failed {
			testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
		}

		var remaining int64
		if err := db.Model(&models.GoalRecord{}).Where("budget_category_id = ?", cat.ID).Count(&remaining).Error; err != nil {
			t.Fatalf("failed to count goal records: %v", err)
		}
		if remaining != 0 {
			t.Errorf("expected no goal records after delete, got %d", remaining)
		}
	})
}

func TestGetGoalHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newGoalService(db)
	userID := testutil.NewTestUserID()
	cat := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)

	testutil.CreateTestGoal(t, db, cat, budget.NewPeriod(6, 2024), "250")
	testutil.CreateTestGoal(t, db, cat, budget.NewPeriod(11, 2023), "150")
	testutil.CreateTestGoal(t, db, cat, budget.NewPeriod(3, 2024), "200")

	history, err := svc.GetGoalHistory(userID, CategoryGoalKey(cat.ID))
	testutil.AssertNoError(t, err)

	want := []budget.Period{budget.NewPeriod(11, 2023), budget.NewPeriod(3, 2024), budget.NewPeriod(6, 2024)}
	if len(history) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(history))
	}
	for i, r := range history {
		if got := budget.NewPeriod(r.Month, r.Year); got != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got)
		}
	}

	t.Run("empty", func(t *testing.T) {
		other := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)
		history, err := svc.GetGoalHistory(userID, CategoryGoalKey(other.ID))
		testutil.AssertNoError(t, err)
		if history == nil || len(history) != 0 {
			t.Errorf("expected empty non-nil history, got %v", history)
		}
	})
}

func TestResolveGoal(t *testing.T) {
	t.Run("groceries_scenario", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)
		userID := testutil.NewTestUserID()
		cats := newCategoryService(db)

		groceries, err := cats.CreateCategory(userID, models.BudgetTypeExpenses, "Groceries")
		testutil.AssertNoError(t, err)
		key := CategoryGoalKey(groceries.ID)

		_, err = svc.SetGoal(userID, key, budget.NewPeriod(3, 2024), amount("200"))
		testutil.AssertNoError(t, err)
		_, err = svc.SetGoal(userID, key, budget.NewPeriod(6, 2024), amount("250"))
		testutil.AssertNoError(t, err)

		april, err := svc.ResolveGoal(userID, key, budget.NewPeriod(4, 2024))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, april.Goal, "200")
		if april.EffectiveFrom == nil || *april.EffectiveFrom != budget.NewPeriod(3, 2024) {
			t.Errorf("expected April to inherit from March, got %v", april.EffectiveFrom)
		}

		july, err := svc.ResolveGoal(userID, key, budget.NewPeriod(7, 2024))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, july.Goal, "250")

		january, err := svc.ResolveGoal(userID, key, budget.NewPeriod(1, 2024))
		testutil.AssertNoError(t, err)
		if january.Configured || !january.Goal.IsZero() {
			t.Errorf("expected no goal in January, got %+v", january)
		}

		// Resolution is a read: future periods inherit too.
		future, err := svc.ResolveGoal(userID, key, budget.NewPeriod(2, 2030))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, future.Goal, "250")

		testutil.AssertNoError(t, cats.DeleteCategory(userID, groceries.ID))
		_, err = svc.ResolveGoal(userID, key, budget.NewPeriod(4, 2024))
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("main_budget_unset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)

		res, err := svc.ResolveGoal(testutil.NewTestUserID(), MainGoalKey(models.BudgetTypeIncome), budget.NewPeriod(4, 2024))
		testutil.AssertNoError(t, err)
		if res.Configured {
			t.Errorf("expected unconfigured main budget, got %+v", res)
		}
	})

	t.Run("invalid_period", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newGoalService(db)

		_, err := svc.ResolveGoal(testutil.NewTestUserID(), MainGoalKey(models.BudgetTypeIncome), budget.NewPeriod(0, 2024))
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})
}

func TestResolveRange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newGoalService(db)
	userID := testutil.NewTestUserID()
	cat := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)
	testutil.CreateTestGoal(t, db, cat, budget.NewPeriod(12, 2023), "80")
	testutil.CreateTestGoal(t, db, cat, budget.NewPeriod(2, 2024), "90")

	t.Run("spans_year", func(t *testing.T) {
		res, err := svc.ResolveRange(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(11, 2023), budget.NewPeriod(3, 2024))
		testutil.AssertNoError(t, err)

		want := []string{"0", "80", "80", "90", "90"}
		if len(res) != len(want) {
			t.Fatalf("expected %d periods, got %d", len(want), len(res))
		}
		for i, r := range res {
			testutil.AssertDecimal(t, r.Goal, want[i])
		}
		if res[0].Configured {
			t.Error("expected November 2023 to be unconfigured")
		}
	})

	t.Run("inverted", func(t *testing.T) {
		_, err := svc.ResolveRange(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(3, 2024), budget.NewPeriod(2, 2024))
		testutil.AssertErrorField(t, err, "VALIDATION_ERROR", "to")
	})

	t.Run("too_long", func(t *testing.T) {
		_, err := svc.ResolveRange(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(1, 2000), budget.NewPeriod(1, 2010))
		testutil.AssertErrorField(t, err, "VALIDATION_ERROR", "to")

		res, err := svc.ResolveRange(userID, CategoryGoalKey(cat.ID), budget.NewPeriod(1, 2000), budget.NewPeriod(12, 2009))
		testutil.AssertNoError(t, err)
		if len(res) != MaxResolveMonths {
			t.Errorf("expected %d periods, got %d", MaxResolveMonths, len(res))
		}
	})
}

func TestLoadTypeSeries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newGoalService(db)
	userID := testutil.NewTestUserID()

	food := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeExpenses)
	salary := testutil.CreateTestBudgetCategory(t, db, userID, models.BudgetTypeIncome)
	testutil.CreateTestGoal(t, db, food, budget.NewPeriod(1, 2024), "100")
	testutil.CreateTestGoal(t, db, food, budget.NewPeriod(4, 2024), "120")
	testutil.CreateTestGoal(t, db, salary, budget.NewPeriod(1, 2024), "3000")
	_, err := svc.SetGoal(userID, MainGoalKey(models.BudgetTypeExpenses), budget.NewPeriod(1, 2024), amount("2000"))
	testutil.AssertNoError(t, err)

	series, err := svc.LoadTypeSeries(userID, models.BudgetTypeExpenses)
	testutil.AssertNoError(t, err)

	if len(series) != 2 {
		t.Fatalf("expected category and main series, got %d", len(series))
	}
	if s := series[models.CategorySeriesKey(food.ID)]; s == nil || s.Len() != 2 {
		t.Errorf("expected two food records, got %v", s)
	}
	if _, ok := series[models.CategorySeriesKey(salary.ID)]; ok {
		t.Error("expected income series to be excluded")
	}
	main := series[models.MainSeriesKey(userID, models.BudgetTypeExpenses)]
	if main == nil {
		t.Fatal("expected main-budget series")
	}
	testutil.AssertDecimal(t, main.Resolve(budget.NewPeriod(6, 2024)).Goal, "2000")

	_, err = svc.LoadTypeSeries(userID, "Savings")
	testutil.AssertAppError(t, err, "VALIDATION_ERROR")
}
