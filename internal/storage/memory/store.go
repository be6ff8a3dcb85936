// Package memory provides an in-process implementation of storage.Store.
// It is used for tests and for running the server without a database file.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	groups   map[string]*models.Group
	expenses map[string]*models.Expense
}

func New() *Store {
	return &Store{
		groups:   make(map[string]*models.Group),
		expenses: make(map[string]*models.Expense),
	}
}

func (s *Store) Close() error { return nil }

// Group directory

func (s *Store) CreateGroup(_ context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.groups[group.ID]; exists {
		return fmt.Errorf("group %s: %w", group.ID, storage.ErrAlreadyExists)
	}
	stored := cloneGroup(group)
	for i := range stored.Members {
		if stored.Members[i].Role == "" {
			stored.Members[i].Role = models.RoleMember
		}
	}
	s.groups[group.ID] = stored
	return nil
}

func (s *Store) GetGroup(_ context.Context, groupID string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group not found: %s: %w", groupID, storage.ErrNotFound)
	}
	return cloneGroup(g), nil
}

func (s *Store) AddGroupMember(_ context.Context, groupID string, member models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group not found: %s: %w", groupID, storage.ErrNotFound)
	}
	if g.HasMember(member.ID) {
		return fmt.Errorf("member %s already in group %s: %w", member.ID, groupID, storage.ErrAlreadyExists)
	}
	if member.Role == "" {
		member.Role = models.RoleMember
	}
	g.Members = append(g.Members, member)
	return nil
}

func (s *Store) RemoveGroupMember(_ context.Context, groupID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group not found: %s: %w", groupID, storage.ErrNotFound)
	}
	i := slices.IndexFunc(g.Members, func(m models.Member) bool { return m.ID == memberID })
	if i < 0 {
		return fmt.Errorf("group member not found: %s: %w", memberID, storage.ErrNotFound)
	}
	g.Members = slices.Delete(g.Members, i, i+1)
	return nil
}

func (s *Store) SetGroupBudget(_ context.Context, groupID string, budget *models.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group not found: %s: %w", groupID, storage.ErrNotFound)
	}
	if budget == nil {
		g.Budget = nil
		return nil
	}
	b := *budget
	g.Budget = &b
	return nil
}

// Expense storage

func (s *Store) CreateExpense(_ context.Context, expense *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	if expense.UpdatedAt.IsZero() {
		expense.UpdatedAt = expense.CreatedAt
	}
	if _, exists := s.expenses[expense.ID]; exists {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrAlreadyExists)
	}
	expense.Revision = 1
	s.expenses[expense.ID] = expense.Clone()
	return nil
}

func (s *Store) GetExpense(_ context.Context, expenseID string) (*models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenses[expenseID]
	if !ok {
		return nil, fmt.Errorf("expense not found: %s: %w", expenseID, storage.ErrNotFound)
	}
	return e.Clone(), nil
}

func (s *Store) UpdateExpense(_ context.Context, expense *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.expenses[expense.ID]
	if !ok {
		return fmt.Errorf("expense not found: %s: %w", expense.ID, storage.ErrNotFound)
	}
	if current.Revision != expense.Revision {
		return fmt.Errorf("expense %s at revision %d: %w", expense.ID, expense.Revision, storage.ErrRevisionConflict)
	}

	expense.Revision++
	stored := expense.Clone()
	// Creation fields are immutable.
	stored.GroupID = current.GroupID
	stored.AddedBy = current.AddedBy
	stored.CreatedAt = current.CreatedAt
	s.expenses[expense.ID] = stored
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[expenseID]; !ok {
		return fmt.Errorf("expense not found: %s: %w", expenseID, storage.ErrNotFound)
	}
	delete(s.expenses, expenseID)
	return nil
}

// ListExpenses snapshots the matching expenses under the read lock and
// yields copies after releasing it.
func (s *Store) ListExpenses(_ context.Context, groupID string, filter storage.ExpenseFilter) iter.Seq2[*models.Expense, error] {
	return func(yield func(*models.Expense, error) bool) {
		s.mu.RLock()
		var matched []*models.Expense
		for _, e := range s.expenses {
			if e.GroupID == groupID && matches(e, filter) {
				matched = append(matched, e.Clone())
			}
		}
		s.mu.RUnlock()

		slices.SortFunc(matched, func(a, b *models.Expense) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(b.ID, a.ID)
		})

		for _, e := range matched {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func matches(e *models.Expense, f storage.ExpenseFilter) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.MatchesSearch(e) {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.CreatedAt.After(f.To) {
		return false
	}
	return true
}

func cloneGroup(g *models.Group) *models.Group {
	c := *g
	c.Members = slices.Clone(g.Members)
	if g.Budget != nil {
		b := *g.Budget
		c.Budget = &b
	}
	return &c
}
