package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/export"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

// SettlementPlan is the list of payments that would square a group.
// Warning is set when the plan leaves a rounding residual behind.
type SettlementPlan struct {
	Suggestions []calculator.Suggestion
	Warning     string
}

// Balances returns every current member's net position, in roster order.
func (l *Ledger) Balances(ctx context.Context, actor, groupID string) ([]calculator.Balance, error) {
	group, expenses, err := l.groupExpenses(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}
	return calculator.ComputeBalances(group.Members, expenses), nil
}

// Summary returns group totals and the category breakdown.
func (l *Ledger) Summary(ctx context.Context, actor, groupID string) (calculator.Summary, error) {
	group, expenses, err := l.groupExpenses(ctx, actor, groupID)
	if err != nil {
		return calculator.Summary{}, err
	}
	return calculator.ComputeSummary(group, expenses), nil
}

// Settlements plans the payments that bring every balance to zero and
// attaches each creditor's payment handle.
func (l *Ledger) Settlements(ctx context.Context, actor, groupID string) (*SettlementPlan, error) {
	group, expenses, err := l.groupExpenses(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}

	balances := calculator.ComputeBalances(group.Members, expenses)
	suggestions, err := calculator.PlanSettlements(balances)
	plan := &SettlementPlan{Suggestions: suggestions}
	if err != nil {
		if !errors.Is(err, calculator.ErrRoundingResidual) {
			return nil, err
		}
		l.recorder.SettlementResidual()
		slog.Warn("settlement plan left a residual", "group_id", groupID, "error", err)
		plan.Warning = err.Error()
	}

	for i := range plan.Suggestions {
		if m, ok := group.Member(plan.Suggestions[i].To); ok {
			plan.Suggestions[i].ToPaymentHandle = m.PaymentHandle
		}
	}
	return plan, nil
}

// ExportCSV writes a group's expenses as CSV, newest first.
func (l *Ledger) ExportCSV(ctx context.Context, actor, groupID string, w io.Writer) error {
	group, expenses, err := l.groupExpenses(ctx, actor, groupID)
	if err != nil {
		return err
	}
	return export.WriteExpenses(w, group.Members, expenses)
}

func (l *Ledger) groupExpenses(ctx context.Context, actor, groupID string) (*models.Group, []*models.Expense, error) {
	group, err := l.memberGroup(ctx, actor, groupID)
	if err != nil {
		return nil, nil, err
	}
	expenses, err := storage.Collect(l.store.ListExpenses(ctx, groupID, storage.ExpenseFilter{}))
	if err != nil {
		return nil, nil, fromStore("list expenses", err)
	}
	return group, expenses, nil
}
