package models

import (
	"time"

	"pennywise/internal/uuid"

	"gorm.io/gorm"
)

// BudgetType is the bucket a category belongs to.
type BudgetType string

const (
	BudgetTypeIncome   BudgetType = "Income"
	BudgetTypeExpenses BudgetType = "Expenses"
)

// Valid reports whether t is a known budget type.
func (t BudgetType) Valid() bool {
	return t == BudgetTypeIncome || t == BudgetTypeExpenses
}

// BudgetCategory is a user-owned Income or Expenses category. Type never
// changes after creation.
type BudgetCategory struct {
	ID     string     `gorm:"type:uuid;primaryKey" json:"budget_category_id"`
	UserID string     `gorm:"type:uuid;not null;uniqueIndex:idx_budget_category_name,priority:1;index:idx_budget_category_order,priority:1" json:"-"`
	Type   BudgetType `gorm:"not null;uniqueIndex:idx_budget_category_name,priority:2;index:idx_budget_category_order,priority:2" json:"type"`
	Name   string     `gorm:"size:30;not null" json:"name"`
	// NameKey is the case-folded name used for uniqueness within (user, type).
	NameKey   string    `gorm:"not null;uniqueIndex:idx_budget_category_name,priority:3" json:"-"`
	Order     int       `gorm:"column:category_order;not null;default:0;index:idx_budget_category_order,priority:3" json:"category_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new categories.
func (c *BudgetCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New()
	}
	return nil
}
