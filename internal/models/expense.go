package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Category classifies an expense for summaries and filtering.
type Category string

const (
	CategoryAccommodation Category = "accommodation"
	CategoryTransport     Category = "transport"
	CategoryFood          Category = "food"
	CategoryActivities    Category = "activities"
	CategoryShopping      Category = "shopping"
	CategoryOther         Category = "other"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryAccommodation,
	CategoryTransport,
	CategoryFood,
	CategoryActivities,
	CategoryShopping,
	CategoryOther,
}

// ParseCategory validates a category name. An empty name maps to CategoryOther.
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryOther, nil
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// SplitMethod is the persisted tag of the rule used to divide an expense.
type SplitMethod string

const (
	SplitEqual      SplitMethod = "equal"
	SplitPercentage SplitMethod = "percentage"
	SplitCustom     SplitMethod = "custom"
)

// Status is the settlement state of an expense, always derived from its splits.
type Status string

const (
	StatusPending          Status = "pending"
	StatusPartiallySettled Status = "partially_settled"
	StatusSettled          Status = "settled"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusPartiallySettled, StatusSettled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// SplitEntry is one participant's share of an expense.
type SplitEntry struct {
	MemberID string          `json:"memberId"`
	Amount   decimal.Decimal `json:"amount"`

	// Percentage is nil for custom splits created without percentages.
	Percentage *decimal.Decimal `json:"percentage,omitempty"`

	Settled   bool       `json:"settled"`
	SettledAt *time.Time `json:"settledAt,omitempty"`
}

// Expense represents a shared expense within a group.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string `json:"id"`

	GroupID     string          `json:"groupId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category"`

	// PaidBy is the member who paid the full amount.
	PaidBy string `json:"paidBy"`

	SplitMethod SplitMethod  `json:"splitMethod"`
	Splits      []SplitEntry `json:"splits"`
	Status      Status       `json:"status"`

	Notes        string `json:"notes,omitempty"`
	ReceiptImage string `json:"receiptImage,omitempty"`

	// AddedBy is the member who recorded the expense.
	AddedBy   string    `json:"addedBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Revision is bumped by the store on every successful update and is
	// used for compare-and-swap writes.
	Revision int64 `json:"revision"`
}

// DeriveStatus computes the status implied by a split set.
func DeriveStatus(splits []SplitEntry) Status {
	settled := 0
	for _, s := range splits {
		if s.Settled {
			settled++
		}
	}
	switch {
	case settled == 0:
		return StatusPending
	case settled == len(splits):
		return StatusSettled
	default:
		return StatusPartiallySettled
	}
}

// AnySettled reports whether at least one participant has settled.
func (e *Expense) AnySettled() bool {
	for _, s := range e.Splits {
		if s.Settled {
			return true
		}
	}
	return false
}

// Split returns the index of memberID's split entry, or -1.
func (e *Expense) Split(memberID string) int {
	for i, s := range e.Splits {
		if s.MemberID == memberID {
			return i
		}
	}
	return -1
}

// ParticipantIDs returns split member IDs in split order.
func (e *Expense) ParticipantIDs() []string {
	ids := make([]string, len(e.Splits))
	for i, s := range e.Splits {
		ids[i] = s.MemberID
	}
	return ids
}

// Clone returns a deep copy so callers can mutate splits without touching
// the original.
func (e *Expense) Clone() *Expense {
	c := *e
	c.Splits = make([]SplitEntry, len(e.Splits))
	for i, s := range e.Splits {
		c.Splits[i] = s
		if s.Percentage != nil {
			p := *s.Percentage
			c.Splits[i].Percentage = &p
		}
		if s.SettledAt != nil {
			t := *s.SettledAt
			c.Splits[i].SettledAt = &t
		}
	}
	return &c
}

// SettlementEvent is emitted after a participant's settlement state changes.
type SettlementEvent struct {
	GroupID   string
	ExpenseID string

	// MemberID is empty for whole-expense transitions (bulk settle, override).
	MemberID string

	ActorID string
	Status  Status
	At      time.Time
}
