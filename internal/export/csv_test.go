package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripledger/internal/models"
)

func TestWriteExpenses(t *testing.T) {
	members := []models.Member{
		{ID: "a", DisplayName: "Asha"},
		{ID: "r", DisplayName: "Ravi"},
		{ID: "m", DisplayName: "Meera"},
	}
	expenses := []*models.Expense{
		{
			ID:          "e1",
			Description: "Houseboat, Alleppey",
			Amount:      decimal.RequireFromString("100"),
			Category:    models.CategoryAccommodation,
			PaidBy:      "a",
			Status:      models.StatusPartiallySettled,
			CreatedAt:   time.Date(2026, 1, 15, 18, 30, 0, 0, time.UTC),
			Splits: []models.SplitEntry{
				{MemberID: "a", Amount: decimal.RequireFromString("33.34")},
				{MemberID: "r", Amount: decimal.RequireFromString("33.33"), Settled: true},
				{MemberID: "m", Amount: decimal.RequireFromString("33.33")},
			},
		},
		{
			ID:          "e2",
			Description: "Ferry",
			Amount:      decimal.RequireFromString("40"),
			Category:    models.CategoryTransport,
			PaidBy:      "gone",
			Status:      models.StatusPending,
			CreatedAt:   time.Date(2026, 1, 16, 9, 0, 0, 0, time.UTC),
			Splits: []models.SplitEntry{
				{MemberID: "r", Amount: decimal.RequireFromString("20")},
				{MemberID: "gone", Amount: decimal.RequireFromString("20")},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteExpenses(&buf, members, expenses))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"description", "amount", "category", "paid_by", "status", "date", "Asha", "Ravi", "Meera", "gone"}, records[0])
	assert.Equal(t, []string{"Houseboat, Alleppey", "100.00", "accommodation", "Asha", "partially_settled", "2026-01-15", "33.34", "33.33", "33.33", ""}, records[1])
	assert.Equal(t, []string{"Ferry", "40.00", "transport", "gone", "pending", "2026-01-16", "", "20.00", "", "20.00"}, records[2])
}

func TestWriteExpenses_FormerMemberKeepsShare(t *testing.T) {
	members := []models.Member{
		{ID: "a", DisplayName: "Asha"},
		{ID: "b", DisplayName: "Bilal"},
	}
	expenses := []*models.Expense{
		{
			ID:          "e1",
			Description: "Dinner",
			Amount:      decimal.RequireFromString("300"),
			Category:    models.CategoryFood,
			PaidBy:      "a",
			Status:      models.StatusPending,
			CreatedAt:   time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC),
			Splits: []models.SplitEntry{
				{MemberID: "a", Amount: decimal.RequireFromString("100")},
				{MemberID: "b", Amount: decimal.RequireFromString("100")},
				{MemberID: "c", Amount: decimal.RequireFromString("100")},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteExpenses(&buf, members, expenses))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"description", "amount", "category", "paid_by", "status", "date", "Asha", "Bilal", "c"}, records[0])
	assert.Equal(t, []string{"Dinner", "300.00", "food", "Asha", "pending", "2026-02-01", "100.00", "100.00", "100.00"}, records[1])
}

func TestWriteExpenses_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExpenses(&buf, nil, nil))
	assert.Equal(t, "description,amount,category,paid_by,status,date\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteExpenses_WriterError(t *testing.T) {
	err := WriteExpenses(failingWriter{}, []models.Member{{ID: "a", DisplayName: "A"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
