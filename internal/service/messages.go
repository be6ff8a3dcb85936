package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

// SplitInput is one participant entry of a percentage or custom split.
type SplitInput struct {
	MemberID   string           `json:"memberId"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
}

type CreateExpenseRequest struct {
	GroupID      string          `json:"groupId"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Category     string          `json:"category"`
	SplitMethod  string          `json:"splitMethod"`
	SplitBetween []string        `json:"splitBetween"`
	PaidBy       string          `json:"paidBy"`
	CustomSplits []SplitInput    `json:"customSplits,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	ReceiptImage string          `json:"receiptImage,omitempty"`
}

type UpdateExpenseRequest struct {
	ExpenseID    string           `json:"expenseId"`
	Description  *string          `json:"description,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Category     *string          `json:"category,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
	ReceiptImage *string          `json:"receiptImage,omitempty"`
}

type SplitExpenseRequest struct {
	ExpenseID    string       `json:"expenseId"`
	SplitMethod  string       `json:"splitMethod"`
	SplitBetween []string     `json:"splitBetween,omitempty"`
	Entries      []SplitInput `json:"entries,omitempty"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type DeleteExpenseResponse struct{}

type SettleParticipantRequest struct {
	ExpenseID string `json:"expenseId"`
	MemberID  string `json:"memberId"`
}

type SetExpenseStatusRequest struct {
	ExpenseID string `json:"expenseId"`
	Status    string `json:"status"`
	Force     bool   `json:"force,omitempty"`
}

// ListExpensesRequest filters a group's expenses. Dates are RFC 3339
// timestamps or plain YYYY-MM-DD days; a plain DateEnd covers the whole day.
type ListExpensesRequest struct {
	GroupID   string `json:"groupId"`
	Category  string `json:"category,omitempty"`
	Status    string `json:"status,omitempty"`
	Search    string `json:"search,omitempty"`
	DateStart string `json:"dateStart,omitempty"`
	DateEnd   string `json:"dateEnd,omitempty"`
}

type ListExpensesResponse struct {
	Expenses []*models.Expense `json:"expenses"`
}

// GroupRequest names the group a read is about.
type GroupRequest struct {
	GroupID string `json:"groupId"`
}

type BalancesResponse struct {
	Balances []calculator.Balance `json:"balances"`
}

type SettlementsResponse struct {
	Settlements []calculator.Suggestion `json:"settlements"`
	Warning     string                  `json:"warning,omitempty"`
}

type CreateGroupRequest struct {
	Name    string           `json:"name"`
	Members []models.Member  `json:"members"`
	Budget  *decimal.Decimal `json:"budget,omitempty"`
}

type AddMembersRequest struct {
	GroupID string          `json:"groupId"`
	Members []models.Member `json:"members"`
}

type RemoveMemberRequest struct {
	GroupID  string `json:"groupId"`
	MemberID string `json:"memberId"`
}

// SetBudgetRequest sets a group's budget. A missing or zero Max clears it.
type SetBudgetRequest struct {
	GroupID string           `json:"groupId"`
	Max     *decimal.Decimal `json:"max,omitempty"`
}

// splitMethod builds a calculator.Method from the wire representation.
// Equal splits take participants from splitBetween, falling back to the
// member IDs of entries.
func splitMethod(method string, splitBetween []string, entries []SplitInput) (calculator.Method, error) {
	switch models.SplitMethod(method) {
	case models.SplitEqual, "":
		ids := splitBetween
		if len(ids) == 0 {
			for _, e := range entries {
				ids = append(ids, e.MemberID)
			}
		}
		return calculator.Equal(ids), nil

	case models.SplitPercentage:
		shares := make([]calculator.PercentageShare, len(entries))
		for i, e := range entries {
			if e.Percentage == nil {
				return nil, fmt.Errorf("percentage is required for %s", e.MemberID)
			}
			shares[i] = calculator.PercentageShare{MemberID: e.MemberID, Percentage: *e.Percentage}
		}
		return calculator.Percentage(shares), nil

	case models.SplitCustom:
		shares := make([]calculator.CustomShare, len(entries))
		for i, e := range entries {
			if e.Amount == nil {
				return nil, fmt.Errorf("amount is required for %s", e.MemberID)
			}
			shares[i] = calculator.CustomShare{MemberID: e.MemberID, Amount: *e.Amount, Percentage: e.Percentage}
		}
		return calculator.Custom(shares), nil
	}
	return nil, fmt.Errorf("unknown split method %q", method)
}

// expenseFilter converts a list request into a storage filter.
func expenseFilter(req *ListExpensesRequest) (storage.ExpenseFilter, error) {
	f := storage.ExpenseFilter{
		Category: models.Category(req.Category),
		Status:   models.Status(req.Status),
		Search:   req.Search,
	}
	var err error
	if req.DateStart != "" {
		if f.From, err = parseDate(req.DateStart, false); err != nil {
			return f, fmt.Errorf("dateStart: %w", err)
		}
	}
	if req.DateEnd != "" {
		if f.To, err = parseDate(req.DateEnd, true); err != nil {
			return f, fmt.Errorf("dateEnd: %w", err)
		}
	}
	return f, nil
}

func parseDate(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	day, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither an RFC 3339 time nor a YYYY-MM-DD date", s)
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}

// budgetFrom turns a wire budget into a model budget. Nil or zero clears it.
func budgetFrom(limit *decimal.Decimal) (*models.Budget, error) {
	if limit == nil || limit.IsZero() {
		return nil, nil
	}
	if limit.IsNegative() {
		return nil, fmt.Errorf("budget must not be negative, got %s", limit.String())
	}
	return &models.Budget{Max: models.RoundMoney(*limit)}, nil
}
