package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testGroup() *models.Group {
	return &models.Group{
		Name: "Goa 2026",
		Members: []models.Member{
			{ID: "asha", DisplayName: "Asha", PaymentHandle: "asha@upi", Role: models.RoleAdmin},
			{ID: "ravi", DisplayName: "Ravi"},
			{ID: "meera", DisplayName: "Meera"},
		},
	}
}

func testExpense(groupID, description string, createdAt time.Time) *models.Expense {
	pct := d("50")
	return &models.Expense{
		GroupID:     groupID,
		Description: description,
		Amount:      d("120.50"),
		Category:    models.CategoryFood,
		PaidBy:      "asha",
		SplitMethod: models.SplitPercentage,
		Splits: []models.SplitEntry{
			{MemberID: "asha", Amount: d("60.25"), Percentage: &pct},
			{MemberID: "ravi", Amount: d("60.25"), Percentage: &pct},
		},
		Status:    models.StatusPending,
		AddedBy:   "asha",
		CreatedAt: createdAt,
	}
}

func TestSQLiteStore_Groups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := testGroup()
	require.NoError(t, store.CreateGroup(ctx, group))
	require.NotEmpty(t, group.ID)
	require.False(t, group.CreatedAt.IsZero())

	t.Run("GetGroup keeps roster order and roles", func(t *testing.T) {
		got, err := store.GetGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, "Goa 2026", got.Name)
		assert.Equal(t, []string{"asha", "ravi", "meera"}, got.MemberIDs())
		assert.Equal(t, models.RoleAdmin, got.Members[0].Role)
		assert.Equal(t, models.RoleMember, got.Members[1].Role, "role defaults to member")
		assert.Equal(t, "asha@upi", got.Members[0].PaymentHandle)
		assert.Nil(t, got.Budget)
	})

	t.Run("AddGroupMember appends", func(t *testing.T) {
		require.NoError(t, store.AddGroupMember(ctx, group.ID, models.Member{ID: "kabir", DisplayName: "Kabir"}))
		got, err := store.GetGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"asha", "ravi", "meera", "kabir"}, got.MemberIDs())

		err = store.AddGroupMember(ctx, group.ID, models.Member{ID: "kabir", DisplayName: "Kabir"})
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	})

	t.Run("RemoveGroupMember", func(t *testing.T) {
		require.NoError(t, store.RemoveGroupMember(ctx, group.ID, "meera"))
		got, err := store.GetGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"asha", "ravi", "kabir"}, got.MemberIDs())

		err = store.RemoveGroupMember(ctx, group.ID, "meera")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("SetGroupBudget sets and clears", func(t *testing.T) {
		require.NoError(t, store.SetGroupBudget(ctx, group.ID, &models.Budget{Max: d("25000")}))
		got, err := store.GetGroup(ctx, group.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Budget)
		assert.True(t, got.Budget.Max.Equal(d("25000")))

		require.NoError(t, store.SetGroupBudget(ctx, group.ID, nil))
		got, err = store.GetGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Budget)
	})

	t.Run("missing group", func(t *testing.T) {
		_, err := store.GetGroup(ctx, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, store.AddGroupMember(ctx, "nope", models.Member{ID: "x"}), storage.ErrNotFound)
		assert.ErrorIs(t, store.SetGroupBudget(ctx, "nope", nil), storage.ErrNotFound)
	})
}

func TestSQLiteStore_Expenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := testGroup()
	require.NoError(t, store.CreateGroup(ctx, group))

	expense := testExpense(group.ID, "Fish thali", time.Now().UTC())
	require.NoError(t, store.CreateExpense(ctx, expense))
	require.NotEmpty(t, expense.ID)
	assert.Equal(t, int64(1), expense.Revision)

	t.Run("GetExpense round trips splits", func(t *testing.T) {
		got, err := store.GetExpense(ctx, expense.ID)
		require.NoError(t, err)
		assert.Equal(t, "Fish thali", got.Description)
		assert.True(t, got.Amount.Equal(d("120.50")))
		assert.Equal(t, models.SplitPercentage, got.SplitMethod)
		assert.Equal(t, expense.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())
		require.Len(t, got.Splits, 2)
		assert.Equal(t, "asha", got.Splits[0].MemberID)
		assert.True(t, got.Splits[1].Amount.Equal(d("60.25")))
		require.NotNil(t, got.Splits[0].Percentage)
		assert.True(t, got.Splits[0].Percentage.Equal(d("50")))
		assert.False(t, got.Splits[0].Settled)
		assert.Nil(t, got.Splits[0].SettledAt)
	})

	t.Run("UpdateExpense bumps revision and rejects stale writes", func(t *testing.T) {
		first, err := store.GetExpense(ctx, expense.ID)
		require.NoError(t, err)
		stale, err := store.GetExpense(ctx, expense.ID)
		require.NoError(t, err)

		now := time.Now().UTC()
		first.Splits[0].Settled = true
		first.Splits[0].SettledAt = &now
		first.Status = models.StatusPartiallySettled
		first.UpdatedAt = now
		require.NoError(t, store.UpdateExpense(ctx, first))
		assert.Equal(t, int64(2), first.Revision)

		stale.Description = "lost update"
		err = store.UpdateExpense(ctx, stale)
		require.ErrorIs(t, err, storage.ErrRevisionConflict)

		got, err := store.GetExpense(ctx, expense.ID)
		require.NoError(t, err)
		assert.Equal(t, "Fish thali", got.Description)
		assert.Equal(t, models.StatusPartiallySettled, got.Status)
		assert.True(t, got.Splits[0].Settled)
		require.NotNil(t, got.Splits[0].SettledAt)
		assert.Equal(t, now.UnixNano(), got.Splits[0].SettledAt.UnixNano())
		assert.Equal(t, int64(2), got.Revision)
	})

	t.Run("UpdateExpense on a missing expense", func(t *testing.T) {
		missing := testExpense(group.ID, "ghost", time.Now())
		missing.ID = "missing"
		missing.Revision = 1
		assert.ErrorIs(t, store.UpdateExpense(ctx, missing), storage.ErrNotFound)
	})

	t.Run("DeleteExpense", func(t *testing.T) {
		doomed := testExpense(group.ID, "Scooter rental", time.Now().UTC())
		require.NoError(t, store.CreateExpense(ctx, doomed))
		require.NoError(t, store.DeleteExpense(ctx, doomed.ID))

		_, err := store.GetExpense(ctx, doomed.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, store.DeleteExpense(ctx, doomed.ID), storage.ErrNotFound)
	})
}

func TestSQLiteStore_ListExpenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := testGroup()
	require.NoError(t, store.CreateGroup(ctx, group))
	other := testGroup()
	require.NoError(t, store.CreateGroup(ctx, other))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// More than one page so paging is exercised.
	for i := 0; i < listPageSize+20; i++ {
		e := testExpense(group.ID, "Chai", base.Add(time.Duration(i)*time.Minute))
		if i%10 == 0 {
			e.Description = "Beach shack dinner"
			e.Category = models.CategoryActivities
		}
		if i%3 == 0 {
			e.Notes = "paid in 100% cash_only"
		}
		require.NoError(t, store.CreateExpense(ctx, e))
	}
	require.NoError(t, store.CreateExpense(ctx, testExpense(other.ID, "Elsewhere", base)))

	t.Run("all, newest first", func(t *testing.T) {
		all, err := storage.Collect(store.ListExpenses(ctx, group.ID, storage.ExpenseFilter{}))
		require.NoError(t, err)
		require.Len(t, all, listPageSize+20)
		for i := 1; i < len(all); i++ {
			assert.True(t, all[i-1].CreatedAt.After(all[i].CreatedAt))
		}
		assert.Len(t, all[0].Splits, 2)
	})

	t.Run("category filter", func(t *testing.T) {
		got, err := storage.Collect(store.ListExpenses(ctx, group.ID, storage.ExpenseFilter{Category: models.CategoryActivities}))
		require.NoError(t, err)
		assert.Len(t, got, 12)
	})

	t.Run("search is case-insensitive over description and notes", func(t *testing.T) {
		got, err := storage.Collect(store.ListExpenses(ctx, group.ID, storage.ExpenseFilter{Search: "BEACH"}))
		require.NoError(t, err)
		assert.Len(t, got, 12)

		got, err = storage.Collect(store.ListExpenses(ctx, group.ID, storage.ExpenseFilter{Search: "100% cash_"}))
		require.NoError(t, err)
		assert.Len(t, got, 40)
	})

	t.Run("date range is inclusive", func(t *testing.T) {
		got, err := storage.Collect(store.ListExpenses(ctx, group.ID, storage.ExpenseFilter{
			From: base.Add(10 * time.Minute),
			To:   base.Add(19 * time.Minute),
		}))
		require.NoError(t, err)
		assert.Len(t, got, 10)
	})

	t.Run("stopping early", func(t *testing.T) {
		n := 0
		for _, err := range store.ListExpenses(ctx, group.ID, storage.ExpenseFilter{}) {
			require.NoError(t, err)
			n++
			if n == 3 {
				break
			}
		}
		assert.Equal(t, 3, n)
	})

	t.Run("search folds non-ASCII case", func(t *testing.T) {
		cafe := testExpense(group.ID, "Café Mondegar", base.Add(-time.Hour))
		require.NoError(t, store.CreateExpense(ctx, cafe))

		got, err := storage.Collect(store.ListExpenses(ctx, group.ID, storage.ExpenseFilter{Search: "CAFÉ"}))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, cafe.ID, got[0].ID)
		assert.Len(t, got[0].Splits, 2)
	})
}
