package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the read side of the transactions subsystem. The ledger only
// sums Amount per category and calendar month; it never writes these rows.
type Transaction struct {
	Base
	UserID           string          `gorm:"type:uuid;not null;index:idx_transaction_user_date,priority:1" json:"user_id"`
	BudgetCategoryID *string         `gorm:"type:uuid;index" json:"budget_category_id,omitempty"`
	Type             BudgetType      `gorm:"not null" json:"type"`
	Amount           decimal.Decimal `gorm:"type:numeric(17,2);not null" json:"amount"`
	Description      string          `json:"description"`
	Date             time.Time       `gorm:"not null;index:idx_transaction_user_date,priority:2" json:"date"`
}
