package service

import (
	"net/http"

	"connectrpc.com/connect"
)

const (
	// ExpenseServiceName is the fully-qualified name of the ExpenseService.
	ExpenseServiceName = "tripledger.v1.ExpenseService"
	// GroupServiceName is the fully-qualified name of the GroupService.
	GroupServiceName = "tripledger.v1.GroupService"
)

const (
	ExpenseServiceCreateExpenseProcedure     = "/" + ExpenseServiceName + "/CreateExpense"
	ExpenseServiceUpdateExpenseProcedure     = "/" + ExpenseServiceName + "/UpdateExpense"
	ExpenseServiceSplitExpenseProcedure      = "/" + ExpenseServiceName + "/SplitExpense"
	ExpenseServiceDeleteExpenseProcedure     = "/" + ExpenseServiceName + "/DeleteExpense"
	ExpenseServiceSettleParticipantProcedure = "/" + ExpenseServiceName + "/SettleParticipant"
	ExpenseServiceSetExpenseStatusProcedure  = "/" + ExpenseServiceName + "/SetExpenseStatus"
	ExpenseServiceListExpensesProcedure      = "/" + ExpenseServiceName + "/ListExpenses"
	ExpenseServiceGetSummaryProcedure        = "/" + ExpenseServiceName + "/GetSummary"
	ExpenseServiceGetBalancesProcedure       = "/" + ExpenseServiceName + "/GetBalances"
	ExpenseServiceGetSettlementsProcedure    = "/" + ExpenseServiceName + "/GetSettlements"

	GroupServiceCreateGroupProcedure  = "/" + GroupServiceName + "/CreateGroup"
	GroupServiceGetGroupProcedure     = "/" + GroupServiceName + "/GetGroup"
	GroupServiceAddMembersProcedure   = "/" + GroupServiceName + "/AddMembers"
	GroupServiceRemoveMemberProcedure = "/" + GroupServiceName + "/RemoveMember"
	GroupServiceSetBudgetProcedure    = "/" + GroupServiceName + "/SetBudget"
)

// handlerOptions puts the JSON codec in front of the caller's options.
func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
}

// NewExpenseServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewExpenseServiceHandler(svc *ExpenseService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(ExpenseServiceCreateExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceCreateExpenseProcedure, svc.CreateExpense, opts...))
	mux.Handle(ExpenseServiceUpdateExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceUpdateExpenseProcedure, svc.UpdateExpense, opts...))
	mux.Handle(ExpenseServiceSplitExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceSplitExpenseProcedure, svc.SplitExpense, opts...))
	mux.Handle(ExpenseServiceDeleteExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...))
	mux.Handle(ExpenseServiceSettleParticipantProcedure, connect.NewUnaryHandler(ExpenseServiceSettleParticipantProcedure, svc.SettleParticipant, opts...))
	mux.Handle(ExpenseServiceSetExpenseStatusProcedure, connect.NewUnaryHandler(ExpenseServiceSetExpenseStatusProcedure, svc.SetExpenseStatus, opts...))
	mux.Handle(ExpenseServiceListExpensesProcedure, connect.NewUnaryHandler(ExpenseServiceListExpensesProcedure, svc.ListExpenses, opts...))
	mux.Handle(ExpenseServiceGetSummaryProcedure, connect.NewUnaryHandler(ExpenseServiceGetSummaryProcedure, svc.GetSummary, opts...))
	mux.Handle(ExpenseServiceGetBalancesProcedure, connect.NewUnaryHandler(ExpenseServiceGetBalancesProcedure, svc.GetBalances, opts...))
	mux.Handle(ExpenseServiceGetSettlementsProcedure, connect.NewUnaryHandler(ExpenseServiceGetSettlementsProcedure, svc.GetSettlements, opts...))
	return "/" + ExpenseServiceName + "/", mux
}

// NewGroupServiceHandler builds an HTTP handler from the service
// implementation.
func NewGroupServiceHandler(svc *GroupService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(GroupServiceCreateGroupProcedure, connect.NewUnaryHandler(GroupServiceCreateGroupProcedure, svc.CreateGroup, opts...))
	mux.Handle(GroupServiceGetGroupProcedure, connect.NewUnaryHandler(GroupServiceGetGroupProcedure, svc.GetGroup, opts...))
	mux.Handle(GroupServiceAddMembersProcedure, connect.NewUnaryHandler(GroupServiceAddMembersProcedure, svc.AddMembers, opts...))
	mux.Handle(GroupServiceRemoveMemberProcedure, connect.NewUnaryHandler(GroupServiceRemoveMemberProcedure, svc.RemoveMember, opts...))
	mux.Handle(GroupServiceSetBudgetProcedure, connect.NewUnaryHandler(GroupServiceSetBudgetProcedure, svc.SetBudget, opts...))
	return "/" + GroupServiceName + "/", mux
}
