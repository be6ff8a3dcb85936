package service

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
)

// ExpenseServiceClient is a client for the tripledger.v1.ExpenseService.
type ExpenseServiceClient struct {
	createExpense     *connect.Client[CreateExpenseRequest, models.Expense]
	updateExpense     *connect.Client[UpdateExpenseRequest, models.Expense]
	splitExpense      *connect.Client[SplitExpenseRequest, models.Expense]
	deleteExpense     *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	settleParticipant *connect.Client[SettleParticipantRequest, models.Expense]
	setExpenseStatus  *connect.Client[SetExpenseStatusRequest, models.Expense]
	listExpenses      *connect.Client[ListExpensesRequest, ListExpensesResponse]
	getSummary        *connect.Client[GroupRequest, calculator.Summary]
	getBalances       *connect.Client[GroupRequest, BalancesResponse]
	getSettlements    *connect.Client[GroupRequest, SettlementsResponse]
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
}

// NewExpenseServiceClient constructs a client for the ExpenseService at baseURL.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExpenseServiceClient {
	opts = clientOptions(opts)
	return &ExpenseServiceClient{
		createExpense:     connect.NewClient[CreateExpenseRequest, models.Expense](httpClient, baseURL+ExpenseServiceCreateExpenseProcedure, opts...),
		updateExpense:     connect.NewClient[UpdateExpenseRequest, models.Expense](httpClient, baseURL+ExpenseServiceUpdateExpenseProcedure, opts...),
		splitExpense:      connect.NewClient[SplitExpenseRequest, models.Expense](httpClient, baseURL+ExpenseServiceSplitExpenseProcedure, opts...),
		deleteExpense:     connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+ExpenseServiceDeleteExpenseProcedure, opts...),
		settleParticipant: connect.NewClient[SettleParticipantRequest, models.Expense](httpClient, baseURL+ExpenseServiceSettleParticipantProcedure, opts...),
		setExpenseStatus:  connect.NewClient[SetExpenseStatusRequest, models.Expense](httpClient, baseURL+ExpenseServiceSetExpenseStatusProcedure, opts...),
		listExpenses:      connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+ExpenseServiceListExpensesProcedure, opts...),
		getSummary:        connect.NewClient[GroupRequest, calculator.Summary](httpClient, baseURL+ExpenseServiceGetSummaryProcedure, opts...),
		getBalances:       connect.NewClient[GroupRequest, BalancesResponse](httpClient, baseURL+ExpenseServiceGetBalancesProcedure, opts...),
		getSettlements:    connect.NewClient[GroupRequest, SettlementsResponse](httpClient, baseURL+ExpenseServiceGetSettlementsProcedure, opts...),
	}
}

func (c *ExpenseServiceClient) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[models.Expense], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[models.Expense], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) SplitExpense(ctx context.Context, req *connect.Request[SplitExpenseRequest]) (*connect.Response[models.Expense], error) {
	return c.splitExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) SettleParticipant(ctx context.Context, req *connect.Request[SettleParticipantRequest]) (*connect.Response[models.Expense], error) {
	return c.settleParticipant.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) SetExpenseStatus(ctx context.Context, req *connect.Request[SetExpenseStatusRequest]) (*connect.Response[models.Expense], error) {
	return c.setExpenseStatus.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetSummary(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[calculator.Summary], error) {
	return c.getSummary.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetBalances(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[BalancesResponse], error) {
	return c.getBalances.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetSettlements(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[SettlementsResponse], error) {
	return c.getSettlements.CallUnary(ctx, req)
}

// GroupServiceClient is a client for the tripledger.v1.GroupService.
type GroupServiceClient struct {
	createGroup  *connect.Client[CreateGroupRequest, models.Group]
	getGroup     *connect.Client[GroupRequest, models.Group]
	addMembers   *connect.Client[AddMembersRequest, models.Group]
	removeMember *connect.Client[RemoveMemberRequest, models.Group]
	setBudget    *connect.Client[SetBudgetRequest, models.Group]
}

// NewGroupServiceClient constructs a client for the GroupService at baseURL.
func NewGroupServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *GroupServiceClient {
	opts = clientOptions(opts)
	return &GroupServiceClient{
		createGroup:  connect.NewClient[CreateGroupRequest, models.Group](httpClient, baseURL+GroupServiceCreateGroupProcedure, opts...),
		getGroup:     connect.NewClient[GroupRequest, models.Group](httpClient, baseURL+GroupServiceGetGroupProcedure, opts...),
		addMembers:   connect.NewClient[AddMembersRequest, models.Group](httpClient, baseURL+GroupServiceAddMembersProcedure, opts...),
		removeMember: connect.NewClient[RemoveMemberRequest, models.Group](httpClient, baseURL+GroupServiceRemoveMemberProcedure, opts...),
		setBudget:    connect.NewClient[SetBudgetRequest, models.Group](httpClient, baseURL+GroupServiceSetBudgetProcedure, opts...),
	}
}

func (c *GroupServiceClient) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[models.Group], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) GetGroup(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[models.Group], error) {
	return c.getGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) AddMembers(ctx context.Context, req *connect.Request[AddMembersRequest]) (*connect.Response[models.Group], error) {
	return c.addMembers.CallUnary(ctx, req)
}

func (c *GroupServiceClient) RemoveMember(ctx context.Context, req *connect.Request[RemoveMemberRequest]) (*connect.Response[models.Group], error) {
	return c.removeMember.CallUnary(ctx, req)
}

func (c *GroupServiceClient) SetBudget(ctx context.Context, req *connect.Request[SetBudgetRequest]) (*connect.Response[models.Group], error) {
	return c.setBudget.CallUnary(ctx, req)
}
