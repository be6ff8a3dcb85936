// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/mmynk/tripledger/internal/models"
)

var (
	// ErrNotFound is returned when a group, member or expense does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRevisionConflict is returned by UpdateExpense when the stored
	// revision no longer matches the one the caller read.
	ErrRevisionConflict = errors.New("revision conflict")

	// ErrAlreadyExists is returned when adding a member who is already in the group.
	ErrAlreadyExists = errors.New("already exists")
)

// ExpenseFilter narrows ListExpenses. Zero-valued fields match everything.
type ExpenseFilter struct {
	Category models.Category
	Status   models.Status

	// Search matches description or notes, case-insensitively.
	Search string

	// From and To bound CreatedAt, inclusive.
	From time.Time
	To   time.Time
}

// MatchesSearch reports whether e's description or notes contain Search.
// Case folding is Unicode-aware and happens in Go for every store, since
// SQLite's LOWER only folds ASCII.
func (f ExpenseFilter) MatchesSearch(e *models.Expense) bool {
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(e.Description), q) ||
		strings.Contains(strings.ToLower(e.Notes), q)
}

// GroupDirectory is the read/write surface of the group directory.
type GroupDirectory interface {
	// CreateGroup persists a new group. ID and CreatedAt are assigned if empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its roster in membership order.
	// Returns an error wrapping ErrNotFound if the group does not exist.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// AddGroupMember appends a member to the end of the roster.
	AddGroupMember(ctx context.Context, groupID string, member models.Member) error

	// RemoveGroupMember drops a member from the roster. Expenses that
	// reference the member are left untouched.
	RemoveGroupMember(ctx context.Context, groupID, memberID string) error

	// SetGroupBudget replaces the group budget; nil clears it.
	SetGroupBudget(ctx context.Context, groupID string, budget *models.Budget) error
}

// ExpenseStore persists expenses and their splits.
type ExpenseStore interface {
	// CreateExpense persists a new expense. ID, CreatedAt and UpdatedAt are
	// assigned if empty; Revision starts at 1.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense with its splits in split order.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// UpdateExpense replaces the stored expense if its revision still equals
	// expense.Revision, then bumps expense.Revision. Returns an error wrapping
	// ErrRevisionConflict otherwise.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense and its splits.
	DeleteExpense(ctx context.Context, expenseID string) error

	// ListExpenses yields a group's expenses matching filter, newest first.
	// Every range over the returned sequence runs a fresh query.
	ListExpenses(ctx context.Context, groupID string, filter ExpenseFilter) iter.Seq2[*models.Expense, error]
}

// Store defines the interface for all storage operations.
// This abstraction allows swapping storage backends (SQLite, in-memory, etc.)
// without changing the ledger.
type Store interface {
	GroupDirectory
	ExpenseStore

	// Close releases any resources held by the store.
	Close() error
}

// Collect drains a sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[*models.Expense, error]) ([]*models.Expense, error) {
	var out []*models.Expense
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
