package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"pennywise/internal/budget"
	apperrors "pennywise/internal/errors"
	"pennywise/internal/models"
	"pennywise/internal/pagination"
)

// budgetCategoryService owns budget categories, their naming rules and display order.
type budgetCategoryService struct {
	db     *gorm.DB
	rules  budget.NamingRules
	locker *KeyedLocker
}

// NewBudgetCategoryService creates a new BudgetCategoryServicer. The naming
// rules are fixed for the lifetime of the service.
func NewBudgetCategoryService(db *gorm.DB, rules budget.NamingRules, locker *KeyedLocker) BudgetCategoryServicer {
	return &budgetCategoryService{db: db, rules: rules, locker: locker}
}

// CreateCategory creates a category at the end of its type's display order.
func (s *budgetCategoryService) CreateCategory(userID string, budgetType models.BudgetType, name string) (*models.BudgetCategory, error) {
	if !budgetType.Valid() {
		return nil, invalidTypeError()
	}
	trimmed, key, err := s.rules.Check(name)
	if err != nil {
		return nil, s.nameError(err)
	}

	unlock := s.locker.Lock(bucketLockKey(userID, string(budgetType)))
	defer unlock()

	category := &models.BudgetCategory{
		UserID:  userID,
		Type:    budgetType,
		Name:    trimmed,
		NameKey: key,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, userID, budgetType, key, ""); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.BudgetCategory{}).
			Where("user_id = ? AND type = ?", userID, budgetType).
			Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		category.Order = int(count)

		if err := tx.Create(category).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return duplicateNameError()
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return category, nil
}

// GetCategory retrieves a category by ID for a specific user.
func (s *budgetCategoryService) GetCategory(userID, categoryID string) (*models.BudgetCategory, error) {
	return findCategory(s.db, userID, categoryID)
}

// ListCategories returns a page of the user's categories in display order,
// optionally restricted to one type.
func (s *budgetCategoryService) ListCategories(userID string, budgetType *models.BudgetType, page pagination.PageRequest) (*pagination.PageResponse[models.BudgetCategory], error) {
	page.Defaults()

	base := s.db.Model(&models.BudgetCategory{}).Where("user_id = ?", userID)
	if budgetType != nil {
		if !budgetType.Valid() {
			return nil, invalidTypeError()
		}
		base = base.Where("type = ?", *budgetType)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.BudgetCategory
	if err := base.Order("type ASC").Scopes(displayOrder, pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// CategoriesByType returns every category of a type in display order.
func (s *budgetCategoryService) CategoriesByType(userID string, budgetType models.BudgetType) ([]models.BudgetCategory, error) {
	if !budgetType.Valid() {
		return nil, invalidTypeError()
	}
	return categoriesByType(s.db, userID, budgetType)
}

// RenameCategory applies the creation rules to a new name.
func (s *budgetCategoryService) RenameCategory(userID, categoryID, name string) (*models.BudgetCategory, error) {
	trimmed, key, err := s.rules.Check(name)
	if err != nil {
		return nil, s.nameError(err)
	}

	category, err := findCategory(s.db, userID, categoryID)
	if err != nil {
		return nil, err
	}

	unlock := s.locker.Lock(bucketLockKey(userID, string(category.Type)))
	defer unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, userID, category.Type, key, category.ID); err != nil {
			return err
		}
		result := tx.Model(category).Updates(map[string]interface{}{"name": trimmed, "name_key": key})
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return duplicateNameError()
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrCategoryNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	category.Name = trimmed
	category.NameKey = key
	return category, nil
}

// DeleteCategory removes a category together with its goal records. Surviving
// categories keep their order; gaps are left in place.
func (s *budgetCategoryService) DeleteCategory(userID, categoryID string) error {
	unlock := s.locker.Lock(categoryLockKey(categoryID))
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		category, err := findCategory(tx, userID, categoryID)
		if err != nil {
			return err
		}

		if err := tx.Where("budget_category_id = ?", category.ID).Delete(&models.GoalRecord{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(category).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// ReorderCategories assigns order = index to each listed category. Categories
// not listed keep their current order.
func (s *budgetCategoryService) ReorderCategories(userID string, budgetType models.BudgetType, orderedIDs []string) ([]models.BudgetCategory, error) {
	if !budgetType.Valid() {
		return nil, invalidTypeError()
	}

	seen := make(map[string]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, dup := seen[id]; dup {
			return nil, apperrors.Field(apperrors.ErrValidation, "budget_category_ids",
				fmt.Sprintf("category %s is listed more than once", id))
		}
		seen[id] = struct{}{}
	}

	unlock := s.locker.Lock(bucketLockKey(userID, string(budgetType)))
	defer unlock()

	var ordered []models.BudgetCategory
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if len(orderedIDs) > 0 {
			var found []models.BudgetCategory
			if err := tx.Where("user_id = ? AND id IN ?", userID, orderedIDs).Find(&found).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}

			byID := make(map[string]models.BudgetCategory, len(found))
			for _, c := range found {
				byID[c.ID] = c
			}
			for _, id := range orderedIDs {
				c, ok := byID[id]
				if !ok || c.Type != budgetType {
					return apperrors.Field(apperrors.ErrValidation, "budget_category_ids",
						fmt.Sprintf("category %s is not a %s category of this user", id, budgetType))
				}
			}

			for i, id := range orderedIDs {
				if byID[id].Order == i {
					continue
				}
				if err := tx.Model(&models.BudgetCategory{}).
					Where("id = ? AND user_id = ?", id, userID).
					Update("category_order", i).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrInternalServer, err)
				}
			}
		}

		var err error
		ordered, err = categoriesByType(tx, userID, budgetType)
		return err
	})
	if err != nil {
		return nil, err
	}

	return ordered, nil
}

func (s *budgetCategoryService) nameError(err error) error {
	switch {
	case errors.Is(err, budget.ErrNameReserved):
		return apperrors.Field(apperrors.ErrReservedCategoryName, "name", "name is reserved")
	case errors.Is(err, budget.ErrNameTooLong):
		return apperrors.Field(apperrors.ErrValidation, "name",
			fmt.Sprintf("name must be at most %d characters", s.rules.MaxLength))
	default:
		return apperrors.Field(apperrors.ErrValidation, "name", err.Error())
	}
}

// displayOrder sorts by category order, breaking ties by id.
func displayOrder(db *gorm.DB) *gorm.DB {
	return db.Order("category_order ASC").Order("id ASC")
}

func categoriesByType(db *gorm.DB, userID string, budgetType models.BudgetType) ([]models.BudgetCategory, error) {
	var categories []models.BudgetCategory
	if err := db.Where("user_id = ? AND type = ?", userID, budgetType).
		Scopes(displayOrder).
		Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if categories == nil {
		categories = []models.BudgetCategory{}
	}
	return categories, nil
}

func findCategory(db *gorm.DB, userID, categoryID string) (*models.BudgetCategory, error) {
	var category models.BudgetCategory
	if err := db.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// ensureNameFree fails when another category of the same (user, type) already
// uses the name key. exceptID excludes the category being renamed.
func ensureNameFree(tx *gorm.DB, userID string, budgetType models.BudgetType, key, exceptID string) error {
	q := tx.Model(&models.BudgetCategory{}).
		Where("user_id = ? AND type = ? AND name_key = ?", userID, budgetType, key)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return duplicateNameError()
	}
	return nil
}

func duplicateNameError() error {
	return apperrors.Field(apperrors.ErrDuplicateCategoryName, "name", "a category with this name already exists")
}

func invalidTypeError() error {
	return apperrors.Field(apperrors.ErrValidation, "type", "type must be Income or Expenses")
}
