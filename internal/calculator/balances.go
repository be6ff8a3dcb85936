package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/models"
)

// Balance represents the balance information for one group member.
type Balance struct {
	MemberID    string          `json:"memberId"`
	DisplayName string          `json:"displayName"`
	Paid        decimal.Decimal `json:"paid"`      // Total of expenses this member paid for
	OwedShare   decimal.Decimal `json:"owedShare"` // Total of this member's split amounts
	Net         decimal.Decimal `json:"net"`       // Positive = owed money, Negative = owes money
}

// CategoryTotal is one row of a summary's category breakdown.
type CategoryTotal struct {
	Category   models.Category `json:"category"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Summary describes a group's spending.
type Summary struct {
	TotalExpenses     decimal.Decimal `json:"totalExpenses"`
	ExpenseCount      int             `json:"expenseCount"`
	SharePerPerson    decimal.Decimal `json:"sharePerPerson"`
	CategoryBreakdown []CategoryTotal `json:"categoryBreakdown"`

	// BudgetUsed is the percentage of the group budget spent, nil when the
	// group has no budget.
	BudgetUsed *decimal.Decimal `json:"budgetUsed"`
}

// ComputeBalances aggregates who paid what and who owes what across
// expenses. It returns one entry per member, in roster order. Payments and
// shares of people no longer in the roster are left out.
//
// Algorithm:
// - For each expense: payer contributed +amount, each participant owes their split
// - Aggregate: net = paid - owed share
func ComputeBalances(members []models.Member, expenses []*models.Expense) []Balance {
	balances := make([]Balance, len(members))
	index := make(map[string]int, len(members))
	for i, m := range members {
		balances[i] = Balance{MemberID: m.ID, DisplayName: m.DisplayName}
		index[m.ID] = i
	}

	for _, e := range expenses {
		if i, ok := index[e.PaidBy]; ok {
			balances[i].Paid = balances[i].Paid.Add(e.Amount)
		}
		for _, s := range e.Splits {
			if i, ok := index[s.MemberID]; ok {
				balances[i].OwedShare = balances[i].OwedShare.Add(s.Amount)
			}
		}
	}

	for i := range balances {
		balances[i].Net = balances[i].Paid.Sub(balances[i].OwedShare)
	}
	return balances
}

// ComputeSummary totals a group's expenses overall and per category.
func ComputeSummary(group *models.Group, expenses []*models.Expense) Summary {
	summary := Summary{ExpenseCount: len(expenses), CategoryBreakdown: []CategoryTotal{}}

	byCategory := make(map[models.Category]*CategoryTotal)
	for _, e := range expenses {
		summary.TotalExpenses = summary.TotalExpenses.Add(e.Amount)
		ct, ok := byCategory[e.Category]
		if !ok {
			ct = &CategoryTotal{Category: e.Category}
			byCategory[e.Category] = ct
		}
		ct.Total = ct.Total.Add(e.Amount)
		ct.Count++
	}

	if n := len(group.Members); n > 0 {
		summary.SharePerPerson = summary.TotalExpenses.DivRound(decimal.NewFromInt(int64(n)), models.MoneyPlaces)
	}

	for _, ct := range byCategory {
		if summary.TotalExpenses.IsPositive() {
			ct.Percentage = ct.Total.Div(summary.TotalExpenses).Mul(models.Hundred).Round(2)
		}
		summary.CategoryBreakdown = append(summary.CategoryBreakdown, *ct)
	}
	sort.Slice(summary.CategoryBreakdown, func(i, j int) bool {
		a, b := summary.CategoryBreakdown[i], summary.CategoryBreakdown[j]
		if !a.Total.Equal(b.Total) {
			return a.Total.GreaterThan(b.Total)
		}
		return a.Category < b.Category
	})

	if group.Budget != nil && group.Budget.Max.IsPositive() {
		used := summary.TotalExpenses.Div(group.Budget.Max).Mul(models.Hundred).Round(2)
		summary.BudgetUsed = &used
	}
	return summary
}
