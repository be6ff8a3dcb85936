// Package ledger records shared expenses for a group and tracks who has
// settled their share. Reads that aggregate across expenses live in
// aggregate.go; the numeric work is done by the calculator package.
package ledger

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/notify"
	"github.com/mmynk/tripledger/internal/storage"
)

// DefaultMaxWriteRetries is how many times a mutation is attempted when it
// keeps losing compare-and-swap races.
const DefaultMaxWriteRetries = 5

// Recorder receives ledger metrics.
type Recorder interface {
	Mutation(op, outcome string)
	SettlementResidual()
}

type nopRecorder struct{}

func (nopRecorder) Mutation(string, string) {}
func (nopRecorder) SettlementResidual()     {}

// Ledger owns expense records.
type Ledger struct {
	store      storage.Store
	notifier   notify.Notifier
	recorder   Recorder
	maxRetries int
	now        func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithNotifier sets where settlement events are sent.
func WithNotifier(n notify.Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(l *Ledger) { l.recorder = r }
}

// WithMaxWriteRetries sets how many attempts a contended mutation gets.
// Values below 1 are ignored.
func WithMaxWriteRetries(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxRetries = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger backed by store.
func New(store storage.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:      store,
		notifier:   notify.Nop{},
		recorder:   nopRecorder{},
		maxRetries: DefaultMaxWriteRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateExpense is the input to Ledger.CreateExpense.
type CreateExpense struct {
	GroupID      string
	Description  string
	Amount       decimal.Decimal
	Category     models.Category
	PaidBy       string
	Method       calculator.Method
	Notes        string
	ReceiptImage string
}

// ExpensePatch lists the fields UpdateExpense may change. Nil fields are left alone.
type ExpensePatch struct {
	Description  *string
	Amount       *decimal.Decimal
	Category     *models.Category
	Notes        *string
	ReceiptImage *string
}

// CreateExpense validates input, computes splits and persists a new pending expense.
func (l *Ledger) CreateExpense(ctx context.Context, actor string, in CreateExpense) (expense *models.Expense, err error) {
	defer func() { l.recorder.Mutation("create", outcome(err)) }()

	group, err := l.memberGroup(ctx, actor, in.GroupID)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, invalid("description", "description is required")
	}
	category, err := models.ParseCategory(string(in.Category))
	if err != nil {
		return nil, invalid("category", "%v", err)
	}
	if !group.HasMember(in.PaidBy) {
		return nil, invalid("paidBy", "payer %q is not a member of this group", in.PaidBy)
	}
	if in.Method == nil {
		return nil, invalid("splitMethod", "a split method is required")
	}

	amount := models.RoundMoney(in.Amount)
	splits, err := calculator.Split(amount, in.Method)
	if err != nil {
		return nil, splitInvalid("splits", err)
	}
	if err := requireParticipants(group, splits); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	expense = &models.Expense{
		GroupID:      group.ID,
		Description:  description,
		Amount:       amount,
		Category:     category,
		PaidBy:       in.PaidBy,
		SplitMethod:  in.Method.Kind(),
		Splits:       splits,
		Status:       models.StatusPending,
		Notes:        in.Notes,
		ReceiptImage: in.ReceiptImage,
		AddedBy:      actor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := l.store.CreateExpense(ctx, expense); err != nil {
		return nil, fromStore("create expense", err)
	}

	slog.Info("expense created",
		"expense_id", expense.ID,
		"group_id", group.ID,
		"amount", expense.Amount.StringFixed(models.MoneyPlaces),
		"split_method", expense.SplitMethod,
		"participants", len(splits),
	)
	return expense, nil
}

// UpdateExpense applies patch. A new amount re-splits among the same
// participants with the same method, which is refused once anyone has settled.
func (l *Ledger) UpdateExpense(ctx context.Context, actor, expenseID string, patch ExpensePatch) (*models.Expense, error) {
	return l.mutate(ctx, "update", actor, expenseID, func(group *models.Group, e *models.Expense) (bool, error) {
		if err := canEdit(group, e, actor); err != nil {
			return false, err
		}

		changed := false
		if patch.Description != nil {
			description := strings.TrimSpace(*patch.Description)
			if description == "" {
				return false, invalid("description", "description is required")
			}
			changed = changed || description != e.Description
			e.Description = description
		}
		if patch.Category != nil {
			category, err := models.ParseCategory(string(*patch.Category))
			if err != nil {
				return false, invalid("category", "%v", err)
			}
			changed = changed || category != e.Category
			e.Category = category
		}
		if patch.Notes != nil {
			changed = changed || *patch.Notes != e.Notes
			e.Notes = *patch.Notes
		}
		if patch.ReceiptImage != nil {
			changed = changed || *patch.ReceiptImage != e.ReceiptImage
			e.ReceiptImage = *patch.ReceiptImage
		}
		if patch.Amount != nil {
			amount := models.RoundMoney(*patch.Amount)
			if !amount.Equal(e.Amount) {
				if e.AnySettled() {
					return false, conflict("expense %s has settled participants; its amount can no longer change", e.ID)
				}
				splits, err := calculator.Rescale(e.SplitMethod, e.Splits, e.Amount, amount)
				if err != nil {
					return false, splitInvalid("amount", err)
				}
				e.Amount = amount
				e.Splits = splits
				e.Status = models.DeriveStatus(splits)
				changed = true
			}
		}
		return changed, nil
	})
}

// RecreateSplit replaces every split of an expense using method.
func (l *Ledger) RecreateSplit(ctx context.Context, actor, expenseID string, method calculator.Method) (*models.Expense, error) {
	return l.mutate(ctx, "resplit", actor, expenseID, func(group *models.Group, e *models.Expense) (bool, error) {
		if err := canEdit(group, e, actor); err != nil {
			return false, err
		}
		if e.AnySettled() {
			return false, conflict("expense %s has settled participants; its splits can no longer change", e.ID)
		}
		if method == nil {
			return false, invalid("splitMethod", "a split method is required")
		}
		splits, err := calculator.Split(e.Amount, method)
		if err != nil {
			return false, splitInvalid("splits", err)
		}
		if err := requireParticipants(group, splits); err != nil {
			return false, err
		}
		e.SplitMethod = method.Kind()
		e.Splits = splits
		e.Status = models.DeriveStatus(splits)
		return true, nil
	})
}

// RecordSettlement marks memberID's share of an expense as settled.
// Settling an already settled share returns the expense unchanged.
func (l *Ledger) RecordSettlement(ctx context.Context, actor, expenseID, memberID string) (*models.Expense, error) {
	return l.mutate(ctx, "settle", actor, expenseID, func(_ *models.Group, e *models.Expense) (bool, error) {
		i := e.Split(memberID)
		if i < 0 {
			return false, notFound("member %s is not a participant of expense %s", memberID, e.ID)
		}
		if e.Splits[i].Settled {
			return false, nil
		}
		now := l.now().UTC()
		e.Splits[i].Settled = true
		e.Splits[i].SettledAt = &now
		e.Status = models.DeriveStatus(e.Splits)
		return true, nil
	}, l.settlementEvent(ctx, actor, memberID))
}

// BulkSettle marks every share of an expense as settled in one write.
func (l *Ledger) BulkSettle(ctx context.Context, actor, expenseID string) (*models.Expense, error) {
	return l.mutate(ctx, "bulk_settle", actor, expenseID, func(_ *models.Group, e *models.Expense) (bool, error) {
		return settleAll(e, l.now().UTC()), nil
	}, l.settlementEvent(ctx, actor, ""))
}

// ForceStatus lets a group admin move an expense to settled or back to
// pending regardless of its splits. partially_settled cannot be forced
// because it does not say which shares are settled.
func (l *Ledger) ForceStatus(ctx context.Context, actor, expenseID string, status models.Status) (*models.Expense, error) {
	return l.mutate(ctx, "force_status", actor, expenseID, func(group *models.Group, e *models.Expense) (bool, error) {
		if !group.IsAdmin(actor) {
			return false, denied("only a group admin can override expense status")
		}
		switch status {
		case models.StatusSettled:
			return settleAll(e, l.now().UTC()), nil
		case models.StatusPending:
			changed := false
			for i := range e.Splits {
				if e.Splits[i].Settled {
					e.Splits[i].Settled = false
					e.Splits[i].SettledAt = nil
					changed = true
				}
			}
			e.Status = models.StatusPending
			return changed, nil
		case models.StatusPartiallySettled:
			return false, invalid("status", "status %s cannot be forced; settle individual participants instead", status)
		default:
			return false, invalid("status", "unknown status %q", status)
		}
	}, l.settlementEvent(ctx, actor, ""))
}

// DeleteExpense removes an expense. Only its creator or a group admin may do so.
func (l *Ledger) DeleteExpense(ctx context.Context, actor, expenseID string) (err error) {
	defer func() { l.recorder.Mutation("delete", outcome(err)) }()

	expense, group, err := l.memberExpense(ctx, actor, expenseID)
	if err != nil {
		return err
	}
	if actor != expense.AddedBy && !group.IsAdmin(actor) {
		return denied("only the member who added expense %s or a group admin can delete it", expenseID)
	}
	if err := l.store.DeleteExpense(ctx, expenseID); err != nil {
		return fromStore("delete expense", err)
	}

	slog.Info("expense deleted", "expense_id", expenseID, "group_id", group.ID, "actor_id", actor)
	return nil
}

// ListExpenses returns a group's expenses matching filter, newest first.
// The sequence is lazy and may be ranged over more than once.
func (l *Ledger) ListExpenses(ctx context.Context, actor, groupID string, filter storage.ExpenseFilter) (iter.Seq2[*models.Expense, error], error) {
	if _, err := l.memberGroup(ctx, actor, groupID); err != nil {
		return nil, err
	}
	if filter.Category != "" {
		if _, err := models.ParseCategory(string(filter.Category)); err != nil {
			return nil, invalid("category", "%v", err)
		}
	}
	if filter.Status != "" {
		if _, err := models.ParseStatus(string(filter.Status)); err != nil {
			return nil, invalid("status", "%v", err)
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, invalid("dateStart", "date range starts after it ends")
	}
	return l.store.ListExpenses(ctx, groupID, filter), nil
}

// mutateFunc edits e in place and reports whether anything changed.
type mutateFunc func(group *models.Group, e *models.Expense) (bool, error)

// afterCommit runs once a mutation that changed something has been stored.
type afterCommit func(e *models.Expense)

// mutate runs a read-modify-write cycle against one expense, retrying when a
// concurrent writer got there first. fn is re-run on a fresh copy each attempt.
func (l *Ledger) mutate(ctx context.Context, op, actor, expenseID string, fn mutateFunc, after ...afterCommit) (expense *models.Expense, err error) {
	result := "noop"
	defer func() {
		if err != nil {
			result = outcome(err)
		}
		l.recorder.Mutation(op, result)
	}()

	for attempt := 1; ; attempt++ {
		e, group, err := l.memberExpense(ctx, actor, expenseID)
		if err != nil {
			return nil, err
		}

		changed, err := fn(group, e)
		if err != nil {
			return nil, err
		}
		if !changed {
			return e, nil
		}

		e.UpdatedAt = l.now().UTC()
		err = l.store.UpdateExpense(ctx, e)
		if err == nil {
			result = "ok"
			for _, f := range after {
				f(e)
			}
			return e, nil
		}
		if !errors.Is(err, storage.ErrRevisionConflict) {
			return nil, fromStore("update expense", err)
		}
		if attempt >= l.maxRetries {
			return nil, conflict("expense %s kept changing; gave up after %d attempts", expenseID, attempt)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slog.Debug("retrying expense write after concurrent update",
			"expense_id", expenseID,
			"op", op,
			"attempt", attempt,
		)
	}
}

func (l *Ledger) settlementEvent(ctx context.Context, actor, memberID string) afterCommit {
	return func(e *models.Expense) {
		l.notifier.SettlementChanged(ctx, models.SettlementEvent{
			GroupID:   e.GroupID,
			ExpenseID: e.ID,
			MemberID:  memberID,
			ActorID:   actor,
			Status:    e.Status,
			At:        e.UpdatedAt,
		})
	}
}

// memberGroup loads a group and checks that actor is on its roster.
func (l *Ledger) memberGroup(ctx context.Context, actor, groupID string) (*models.Group, error) {
	group, err := l.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fromStore("get group", err)
	}
	if actor == "" || !group.HasMember(actor) {
		return nil, denied("%q is not a member of group %s", actor, groupID)
	}
	return group, nil
}

// memberExpense loads an expense and the group that owns it. Actors outside
// that group get ErrNotFound, the same as for an ID that does not exist.
func (l *Ledger) memberExpense(ctx context.Context, actor, expenseID string) (*models.Expense, *models.Group, error) {
	e, err := l.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, nil, fromStore("get expense", err)
	}
	group, err := l.store.GetGroup(ctx, e.GroupID)
	if err != nil {
		return nil, nil, fromStore("get group", err)
	}
	if actor == "" || !group.HasMember(actor) {
		return nil, nil, notFound("expense %s not found", expenseID)
	}
	return e, group, nil
}

func canEdit(group *models.Group, e *models.Expense, actor string) error {
	if actor == e.AddedBy || actor == e.PaidBy || group.IsAdmin(actor) {
		return nil
	}
	return denied("only the member who added expense %s, its payer or a group admin can change it", e.ID)
}

func requireParticipants(group *models.Group, splits []models.SplitEntry) error {
	for _, s := range splits {
		if !group.HasMember(s.MemberID) {
			return invalid("splits", "participant %q is not a member of this group", s.MemberID)
		}
	}
	return nil
}

func settleAll(e *models.Expense, now time.Time) bool {
	changed := false
	for i := range e.Splits {
		if !e.Splits[i].Settled {
			e.Splits[i].Settled = true
			e.Splits[i].SettledAt = &now
			changed = true
		}
	}
	e.Status = models.StatusSettled
	return changed
}
