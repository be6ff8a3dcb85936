package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripledger/internal/auth"
	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/middleware"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage/memory"
)

// memberHeader names the acting member in tests.
const memberHeader = "X-Test-Member"

// testAuthInterceptor returns a Connect interceptor that takes the acting
// member ID from memberHeader.
func testAuthInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if id := req.Header().Get(memberHeader); id != "" {
				ctx = middleware.WithMemberID(ctx, id)
			}
			return next(ctx, req)
		}
	}
}

func testAuthHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(memberHeader); id != "" {
			r = r.WithContext(middleware.WithMemberID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

type testEnv struct {
	server   *httptest.Server
	expenses *ExpenseServiceClient
	groups   *GroupServiceClient
}

// setupTestServer serves both services and the CSV export over an
// in-memory store.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	l := ledger.New(store)
	authInterceptor := connect.WithInterceptors(testAuthInterceptor())

	mux := http.NewServeMux()
	mux.Handle(NewExpenseServiceHandler(NewExpenseService(l), authInterceptor))
	mux.Handle(NewGroupServiceHandler(NewGroupService(store), authInterceptor))
	mux.Handle(ExportPattern, testAuthHTTP(NewExportHandler(l)))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{
		server:   server,
		expenses: NewExpenseServiceClient(http.DefaultClient, server.URL),
		groups:   NewGroupServiceClient(http.DefaultClient, server.URL),
	}
}

// as builds a request made by memberID.
func as[T any](memberID string, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set(memberHeader, memberID)
	return req
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

// createTestGroup creates {asha (admin), ravi, meera} and returns its ID.
func createTestGroup(t *testing.T, env *testEnv) string {
	t.Helper()
	resp, err := env.groups.CreateGroup(context.Background(), as("asha", &CreateGroupRequest{
		Name: "Goa 2026",
		Members: []models.Member{
			{ID: "asha", DisplayName: "Asha", PaymentHandle: "asha@upi"},
			{ID: "ravi", DisplayName: "Ravi"},
			{ID: "meera", DisplayName: "Meera"},
		},
	}))
	require.NoError(t, err)
	return resp.Msg.ID
}

func createDinner(t *testing.T, env *testEnv, groupID string) *models.Expense {
	t.Helper()
	resp, err := env.expenses.CreateExpense(context.Background(), as("asha", &CreateExpenseRequest{
		GroupID:      groupID,
		Description:  "Dinner",
		Amount:       d("300"),
		Category:     "food",
		SplitMethod:  "equal",
		SplitBetween: []string{"asha", "ravi", "meera"},
		PaidBy:       "asha",
	}))
	require.NoError(t, err)
	return resp.Msg
}

func TestExpenseService_SettlementFlow(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := createTestGroup(t, env)

	expense := createDinner(t, env, groupID)
	require.NotEmpty(t, expense.ID)
	assert.Equal(t, models.SplitEqual, expense.SplitMethod)
	assert.Equal(t, models.StatusPending, expense.Status)
	assert.Equal(t, "asha", expense.AddedBy)
	require.Len(t, expense.Splits, 3)
	for _, s := range expense.Splits {
		assert.True(t, s.Amount.Equal(d("100")), "split for %s", s.MemberID)
	}

	balances, err := env.expenses.GetBalances(ctx, as("ravi", &GroupRequest{GroupID: groupID}))
	require.NoError(t, err)
	require.Len(t, balances.Msg.Balances, 3)
	assert.Equal(t, "asha", balances.Msg.Balances[0].MemberID)
	assert.True(t, balances.Msg.Balances[0].Net.Equal(d("200")))
	assert.True(t, balances.Msg.Balances[1].Net.Equal(d("-100")))
	assert.True(t, balances.Msg.Balances[2].Net.Equal(d("-100")))

	plan, err := env.expenses.GetSettlements(ctx, as("meera", &GroupRequest{GroupID: groupID}))
	require.NoError(t, err)
	assert.Empty(t, plan.Msg.Warning)
	require.Len(t, plan.Msg.Settlements, 2)
	debtors := map[string]bool{}
	for _, s := range plan.Msg.Settlements {
		assert.Equal(t, "asha", s.To)
		assert.Equal(t, "asha@upi", s.ToPaymentHandle)
		assert.True(t, s.Amount.Equal(d("100")))
		debtors[s.From] = true
	}
	assert.Equal(t, map[string]bool{"ravi": true, "meera": true}, debtors)

	settled, err := env.expenses.SettleParticipant(ctx, as("ravi", &SettleParticipantRequest{
		ExpenseID: expense.ID,
		MemberID:  "ravi",
	}))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartiallySettled, settled.Msg.Status)

	t.Run("settling twice is a no-op", func(t *testing.T) {
		again, err := env.expenses.SettleParticipant(ctx, as("ravi", &SettleParticipantRequest{
			ExpenseID: expense.ID,
			MemberID:  "ravi",
		}))
		require.NoError(t, err)
		assert.Equal(t, settled.Msg.Revision, again.Msg.Revision)
	})

	t.Run("members can bulk settle", func(t *testing.T) {
		resp, err := env.expenses.SetExpenseStatus(ctx, as("meera", &SetExpenseStatusRequest{
			ExpenseID: expense.ID,
			Status:    "settled",
		}))
		require.NoError(t, err)
		assert.Equal(t, models.StatusSettled, resp.Msg.Status)
		for _, s := range resp.Msg.Splits {
			assert.True(t, s.Settled)
			assert.NotNil(t, s.SettledAt)
		}
	})

	t.Run("only admins can force status", func(t *testing.T) {
		_, err := env.expenses.SetExpenseStatus(ctx, as("ravi", &SetExpenseStatusRequest{
			ExpenseID: expense.ID,
			Status:    "pending",
			Force:     true,
		}))
		assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

		resp, err := env.expenses.SetExpenseStatus(ctx, as("asha", &SetExpenseStatusRequest{
			ExpenseID: expense.ID,
			Status:    "pending",
			Force:     true,
		}))
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, resp.Msg.Status)
	})

	t.Run("partially_settled cannot be forced", func(t *testing.T) {
		_, err := env.expenses.SetExpenseStatus(ctx, as("asha", &SetExpenseStatusRequest{
			ExpenseID: expense.ID,
			Status:    "partially_settled",
			Force:     true,
		}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})
}

func TestExpenseService_UpdateSplitAndDelete(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := createTestGroup(t, env)
	expense := createDinner(t, env, groupID)

	updated, err := env.expenses.UpdateExpense(ctx, as("asha", &UpdateExpenseRequest{
		ExpenseID:   expense.ID,
		Description: ptr("Seafood dinner"),
		Amount:      ptr(d("90")),
		Category:    ptr("food"),
	}))
	require.NoError(t, err)
	assert.Equal(t, "Seafood dinner", updated.Msg.Description)
	assert.True(t, updated.Msg.Amount.Equal(d("90")))
	for _, s := range updated.Msg.Splits {
		assert.True(t, s.Amount.Equal(d("30")))
	}

	resplit, err := env.expenses.SplitExpense(ctx, as("asha", &SplitExpenseRequest{
		ExpenseID:   expense.ID,
		SplitMethod: "custom",
		Entries: []SplitInput{
			{MemberID: "asha", Amount: ptr(d("50"))},
			{MemberID: "ravi", Amount: ptr(d("40"))},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, models.SplitCustom, resplit.Msg.SplitMethod)
	assert.Equal(t, []string{"asha", "ravi"}, resplit.Msg.ParticipantIDs())

	_, err = env.expenses.SettleParticipant(ctx, as("ravi", &SettleParticipantRequest{
		ExpenseID: expense.ID,
		MemberID:  "ravi",
	}))
	require.NoError(t, err)

	_, err = env.expenses.UpdateExpense(ctx, as("asha", &UpdateExpenseRequest{
		ExpenseID: expense.ID,
		Amount:    ptr(d("120")),
	}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err), "amount is locked once someone settled")

	_, err = env.expenses.DeleteExpense(ctx, as("ravi", &DeleteExpenseRequest{ExpenseID: expense.ID}))
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	_, err = env.expenses.DeleteExpense(ctx, as("asha", &DeleteExpenseRequest{ExpenseID: expense.ID}))
	require.NoError(t, err)

	list, err := env.expenses.ListExpenses(ctx, as("ravi", &ListExpensesRequest{GroupID: groupID}))
	require.NoError(t, err)
	assert.Empty(t, list.Msg.Expenses)
}

func TestExpenseService_ListAndSummary(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := createTestGroup(t, env)

	_, err := env.groups.SetBudget(ctx, as("asha", &SetBudgetRequest{GroupID: groupID, Max: ptr(d("600"))}))
	require.NoError(t, err)

	dinner := createDinner(t, env, groupID)
	_, err = env.expenses.CreateExpense(ctx, as("ravi", &CreateExpenseRequest{
		GroupID:     groupID,
		Description: "Scooter rental",
		Amount:      d("150"),
		Category:    "transport",
		SplitMethod: "percentage",
		PaidBy:      "ravi",
		CustomSplits: []SplitInput{
			{MemberID: "ravi", Percentage: ptr(d("50"))},
			{MemberID: "meera", Percentage: ptr(d("50"))},
		},
		Notes: "two scooters for the day",
	}))
	require.NoError(t, err)

	t.Run("newest first", func(t *testing.T) {
		resp, err := env.expenses.ListExpenses(ctx, as("meera", &ListExpensesRequest{GroupID: groupID}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Expenses, 2)
		assert.Equal(t, "Scooter rental", resp.Msg.Expenses[0].Description)
		assert.Equal(t, dinner.ID, resp.Msg.Expenses[1].ID)
	})

	t.Run("filters", func(t *testing.T) {
		resp, err := env.expenses.ListExpenses(ctx, as("meera", &ListExpensesRequest{
			GroupID: groupID,
			Search:  "SCOOTERS",
		}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Expenses, 1)

		resp, err = env.expenses.ListExpenses(ctx, as("meera", &ListExpensesRequest{
			GroupID:  groupID,
			Category: "food",
		}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Expenses, 1)
		assert.Equal(t, dinner.ID, resp.Msg.Expenses[0].ID)

		today := time.Now().UTC().Format(time.DateOnly)
		resp, err = env.expenses.ListExpenses(ctx, as("meera", &ListExpensesRequest{
			GroupID:   groupID,
			DateStart: today,
			DateEnd:   today,
		}))
		require.NoError(t, err)
		assert.Len(t, resp.Msg.Expenses, 2)
	})

	t.Run("summary", func(t *testing.T) {
		resp, err := env.expenses.GetSummary(ctx, as("ravi", &GroupRequest{GroupID: groupID}))
		require.NoError(t, err)
		assert.True(t, resp.Msg.TotalExpenses.Equal(d("450")))
		assert.Equal(t, 2, resp.Msg.ExpenseCount)
		assert.True(t, resp.Msg.SharePerPerson.Equal(d("150")))
		require.NotNil(t, resp.Msg.BudgetUsed)
		assert.True(t, resp.Msg.BudgetUsed.Equal(d("75")))
		require.Len(t, resp.Msg.CategoryBreakdown, 2)
		assert.Equal(t, models.CategoryFood, resp.Msg.CategoryBreakdown[0].Category)
	})
}

func TestExpenseService_Errors(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := createTestGroup(t, env)

	tests := []struct {
		name string
		call func() error
		want connect.Code
	}{
		{
			name: "no actor",
			call: func() error {
				_, err := env.expenses.GetBalances(ctx, connect.NewRequest(&GroupRequest{GroupID: groupID}))
				return err
			},
			want: connect.CodeUnauthenticated,
		},
		{
			name: "custom split does not add up",
			call: func() error {
				_, err := env.expenses.CreateExpense(ctx, as("asha", &CreateExpenseRequest{
					GroupID:     groupID,
					Description: "Hotel",
					Amount:      d("100"),
					SplitMethod: "custom",
					PaidBy:      "asha",
					CustomSplits: []SplitInput{
						{MemberID: "asha", Amount: ptr(d("40"))},
						{MemberID: "ravi", Amount: ptr(d("50"))},
					},
				}))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "unknown split method",
			call: func() error {
				_, err := env.expenses.CreateExpense(ctx, as("asha", &CreateExpenseRequest{
					GroupID:     groupID,
					Description: "Hotel",
					Amount:      d("100"),
					SplitMethod: "shares",
					PaidBy:      "asha",
				}))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "percentage entry without a percentage",
			call: func() error {
				_, err := env.expenses.CreateExpense(ctx, as("asha", &CreateExpenseRequest{
					GroupID:      groupID,
					Description:  "Hotel",
					Amount:       d("100"),
					SplitMethod:  "percentage",
					PaidBy:       "asha",
					CustomSplits: []SplitInput{{MemberID: "asha"}},
				}))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "unknown expense",
			call: func() error {
				_, err := env.expenses.SettleParticipant(ctx, as("asha", &SettleParticipantRequest{
					ExpenseID: "missing",
					MemberID:  "asha",
				}))
				return err
			},
			want: connect.CodeNotFound,
		},
		{
			name: "outsider",
			call: func() error {
				_, err := env.expenses.ListExpenses(ctx, as("zoe", &ListExpensesRequest{GroupID: groupID}))
				return err
			},
			want: connect.CodePermissionDenied,
		},
		{
			name: "bad date",
			call: func() error {
				_, err := env.expenses.ListExpenses(ctx, as("asha", &ListExpensesRequest{
					GroupID:   groupID,
					DateStart: "yesterday",
				}))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "unknown status",
			call: func() error {
				_, err := env.expenses.SetExpenseStatus(ctx, as("asha", &SetExpenseStatusRequest{
					ExpenseID: "missing",
					Status:    "closed",
				}))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.want, connect.CodeOf(err), err.Error())
		})
	}
}

func TestExpenseService_RequireAuth(t *testing.T) {
	store := memory.New()
	l := ledger.New(store)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	interceptors := connect.WithInterceptors(middleware.RequireAuth(jwtManager))

	mux := http.NewServeMux()
	mux.Handle(NewExpenseServiceHandler(NewExpenseService(l), interceptors))
	mux.Handle(NewGroupServiceHandler(NewGroupService(store), interceptors))
	server := httptest.NewServer(mux)
	defer server.Close()

	groups := NewGroupServiceClient(http.DefaultClient, server.URL)
	expenses := NewExpenseServiceClient(http.DefaultClient, server.URL)
	ctx := context.Background()

	token, err := jwtManager.Generate("asha", "Asha")
	require.NoError(t, err)

	req := connect.NewRequest(&CreateGroupRequest{Name: "Ladakh"})
	req.Header().Set("Authorization", "Bearer "+token)
	group, err := groups.CreateGroup(ctx, req)
	require.NoError(t, err)
	require.Len(t, group.Msg.Members, 1)
	assert.Equal(t, "asha", group.Msg.Members[0].ID)
	assert.Equal(t, models.RoleAdmin, group.Msg.Members[0].Role)

	_, err = expenses.GetBalances(ctx, connect.NewRequest(&GroupRequest{GroupID: group.Msg.ID}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	bad := connect.NewRequest(&GroupRequest{GroupID: group.Msg.ID})
	bad.Header().Set("Authorization", "Bearer not-a-token")
	_, err = expenses.GetBalances(ctx, bad)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	ok := connect.NewRequest(&GroupRequest{GroupID: group.Msg.ID})
	ok.Header().Set("Authorization", "Bearer "+token)
	balances, err := expenses.GetBalances(ctx, ok)
	require.NoError(t, err)
	require.Len(t, balances.Msg.Balances, 1)
	assert.True(t, balances.Msg.Balances[0].Net.IsZero())
}
