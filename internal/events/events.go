// Package events publishes ledger change notifications for downstream
// consumers such as report caches.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pennywise/internal/budget"
	"pennywise/internal/models"
)

// Event names double as routing keys.
const (
	GoalSet             = "goal.set"
	CategoryDeleted     = "category.deleted"
	CategoriesReordered = "categories.reordered"
)

// Event is a single ledger change.
type Event struct {
	Name             string            `json:"event"`
	UserID           string            `json:"user_id"`
	BudgetCategoryID *string           `json:"budget_category_id,omitempty"`
	BudgetType       models.BudgetType `json:"type,omitempty"`
	Period           *budget.Period    `json:"period,omitempty"`
	Goal             *decimal.Decimal  `json:"goal,omitempty"`
	CategoryIDs      []string          `json:"budget_category_ids,omitempty"`
	OccurredAt       time.Time         `json:"occurred_at"`
}

// JSON encodes the event as a message body.
func (e Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// NewGoalSet describes an upserted goal record.
func NewGoalSet(record *models.GoalRecord) Event {
	period := budget.NewPeriod(record.Month, record.Year)
	goal := record.Goal
	return Event{
		Name:             GoalSet,
		UserID:           record.UserID,
		BudgetCategoryID: record.BudgetCategoryID,
		BudgetType:       record.Type,
		Period:           &period,
		Goal:             &goal,
		OccurredAt:       time.Now().UTC(),
	}
}

// NewCategoryDeleted describes a removed category. Its goal records went with it.
func NewCategoryDeleted(userID string, category *models.BudgetCategory) Event {
	id := category.ID
	return Event{
		Name:             CategoryDeleted,
		UserID:           userID,
		BudgetCategoryID: &id,
		BudgetType:       category.Type,
		OccurredAt:       time.Now().UTC(),
	}
}

// NewCategoriesReordered lists a type's categories in their new display order.
func NewCategoriesReordered(userID string, budgetType models.BudgetType, ordered []models.BudgetCategory) Event {
	ids := make([]string, len(ordered))
	for i, c := range ordered {
		ids[i] = c.ID
	}
	return Event{
		Name:        CategoriesReordered,
		UserID:      userID,
		BudgetType:  budgetType,
		CategoryIDs: ids,
		OccurredAt:  time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                        { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned from Publish instead of recording.
	Err error
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
