package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/models"
)

// ExpenseService implements the Connect ExpenseService on top of the ledger.
type ExpenseService struct {
	ledger *ledger.Ledger
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(l *ledger.Ledger) *ExpenseService {
	return &ExpenseService{ledger: l}
}

// CreateExpense records a new expense and its splits.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[models.Expense], error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateExpense request received",
		"group_id", req.Msg.GroupID,
		"amount", req.Msg.Amount.String(),
		"split_method", req.Msg.SplitMethod,
	)

	method, err := splitMethod(req.Msg.SplitMethod, req.Msg.SplitBetween, req.Msg.CustomSplits)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	expense, err := s.ledger.CreateExpense(ctx, memberID, ledger.CreateExpense{
		GroupID:      req.Msg.GroupID,
		Description:  req.Msg.Description,
		Amount:       req.Msg.Amount,
		Category:     models.Category(req.Msg.Category),
		PaidBy:       req.Msg.PaidBy,
		Method:       method,
		Notes:        req.Msg.Notes,
		ReceiptImage: req.Msg.ReceiptImage,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(expense), nil
}

// UpdateExpense edits an expense's details or amount.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[models.Expense], error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	patch := ledger.ExpensePatch{
		Description:  req.Msg.Description,
		Amount:       req.Msg.Amount,
		Notes:        req.Msg.Notes,
		ReceiptImage: req.Msg.ReceiptImage,
	}
	if req.Msg.Category != nil {
		c := models.Category(*req.Msg.Category)
		patch.Category = &c
	}

	expense, err := s.ledger.UpdateExpense(ctx, memberID, req.Msg.ExpenseID, patch)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(expense), nil
}

// SplitExpense replaces an expense's splits.
func (s *ExpenseService) SplitExpense(ctx context.Context, req *connect.Request[SplitExpenseRequest]) (*connect.Response[models.Expense], error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	method, err := splitMethod(req.Msg.SplitMethod, req.Msg.SplitBetween, req.Msg.Entries)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	expense, err := s.ledger.RecreateSplit(ctx, memberID, req.Msg.ExpenseID, method)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(expense), nil
}

// DeleteExpense removes an expense.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.DeleteExpense(ctx, memberID, req.Msg.ExpenseID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&DeleteExpenseResponse{}), nil
}

// SettleParticipant marks one participant's share as settled.
func (s *ExpenseService) SettleParticipant(ctx context.Context, req *connect.Request[SettleParticipantRequest]) (*connect.Response[models.Expense], error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	expense, err := s.ledger.RecordSettlement(ctx, memberID, req.Msg.ExpenseID, req.Msg.MemberID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(expense), nil
}

// SetExpenseStatus settles a whole expense, or with force lets an admin
// override its status.
func (s *ExpenseService) SetExpenseStatus(ctx context.Context, req *connect.Request[SetExpenseStatusRequest]) (*connect.Response[models.Expense], error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	status, err := models.ParseStatus(req.Msg.Status)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	var expense *models.Expense
	if status == models.StatusSettled && !req.Msg.Force {
		expense, err = s.ledger.BulkSettle(ctx, memberID, req.Msg.ExpenseID)
	} else {
		expense, err = s.ledger.ForceStatus(ctx, memberID, req.Msg.ExpenseID, status)
	}
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(expense), nil
}

// ListExpenses returns a group's expenses matching the request filters.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	filter, err := expenseFilter(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	seq, err := s.ledger.ListExpenses(ctx, memberID, req.Msg.GroupID, filter)
	if err != nil {
		return nil, toConnectError(err)
	}

	expenses := []*models.Expense{}
	for e, err := range seq {
		if err != nil {
			slog.Error("ListExpenses failed", "group_id", req.Msg.GroupID, "error", err)
			return nil, toConnectError(err)
		}
		expenses = append(expenses, e)
	}
	return connect.NewResponse(&ListExpensesResponse{Expenses: expenses}), nil
}

// GetSummary returns group spending totals.
func (s *ExpenseService) GetSummary(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[calculator.Summary], error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := s.ledger.Summary(ctx, memberID, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&summary), nil
}

// GetBalances returns each member's net balance.
func (s *ExpenseService) GetBalances(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[BalancesResponse], error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	balances, err := s.ledger.Balances(ctx, memberID, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&BalancesResponse{Balances: balances}), nil
}

// GetSettlements returns the payments that would square the group.
func (s *ExpenseService) GetSettlements(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[SettlementsResponse], error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := s.ledger.Settlements(ctx, memberID, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(err)
	}

	slog.Info("GetSettlements successful",
		"group_id", req.Msg.GroupID,
		"settlements_count", len(plan.Suggestions),
	)
	return connect.NewResponse(&SettlementsResponse{
		Settlements: plan.Suggestions,
		Warning:     plan.Warning,
	}), nil
}
