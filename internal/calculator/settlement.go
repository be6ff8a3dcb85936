package calculator

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/models"
)

// ErrRoundingResidual is returned alongside a plan when balances did not add
// up to zero. The plan is still usable.
var ErrRoundingResidual = errors.New("rounding residual")

// Suggestion is a proposed payment from a debtor to a creditor.
type Suggestion struct {
	From   string          `json:"from"` // Person who owes
	To     string          `json:"to"`   // Person who is owed
	Amount decimal.Decimal `json:"amount"`

	// ToPaymentHandle is filled in by callers that know the creditor's handle.
	ToPaymentHandle string `json:"toPaymentHandle,omitempty"`
}

type party struct {
	memberID  string
	remaining decimal.Decimal
}

// parties is a max-heap on remaining, ties broken by ascending member ID.
type parties []party

func (p parties) Len() int { return len(p) }

func (p parties) Less(i, j int) bool {
	if !p[i].remaining.Equal(p[j].remaining) {
		return p[i].remaining.GreaterThan(p[j].remaining)
	}
	return p[i].memberID < p[j].memberID
}

func (p parties) Swap(i, j int) { p[i], p[j] = p[j], p[i] }

func (p *parties) Push(x any) { *p = append(*p, x.(party)) }

func (p *parties) Pop() any {
	old := *p
	n := len(old)
	x := old[n-1]
	*p = old[:n-1]
	return x
}

// PlanSettlements turns balances into payments that bring every net balance
// to zero. It repeatedly matches the largest creditor with the largest
// debtor, so it needs at most k-1 payments for k members with a nonzero
// balance. The result is not always the minimum number of payments.
//
// Balances within one cent of zero are treated as settled. If more than a
// cent is left unmatched at the end, the payments are returned together with
// an error wrapping ErrRoundingResidual.
func PlanSettlements(balances []Balance) ([]Suggestion, error) {
	var creditors, debtors parties
	minusCent := models.Cent.Neg()
	for _, b := range balances {
		switch {
		case b.Net.GreaterThan(models.Cent):
			creditors = append(creditors, party{memberID: b.MemberID, remaining: b.Net})
		case b.Net.LessThan(minusCent):
			debtors = append(debtors, party{memberID: b.MemberID, remaining: b.Net.Neg()})
		}
	}
	heap.Init(&creditors)
	heap.Init(&debtors)

	suggestions := []Suggestion{}
	for creditors.Len() > 0 && debtors.Len() > 0 {
		c := heap.Pop(&creditors).(party)
		d := heap.Pop(&debtors).(party)

		amount := decimal.Min(c.remaining, d.remaining)
		suggestions = append(suggestions, Suggestion{From: d.memberID, To: c.memberID, Amount: amount})

		c.remaining = c.remaining.Sub(amount)
		d.remaining = d.remaining.Sub(amount)
		if c.remaining.GreaterThan(models.Cent) {
			heap.Push(&creditors, c)
		}
		if d.remaining.GreaterThan(models.Cent) {
			heap.Push(&debtors, d)
		}
	}

	residual := decimal.Zero
	for _, p := range creditors {
		residual = residual.Add(p.remaining)
	}
	for _, p := range debtors {
		residual = residual.Add(p.remaining)
	}
	if residual.GreaterThan(models.Cent) {
		return suggestions, fmt.Errorf("%w: %s left unmatched", ErrRoundingResidual, models.FormatMoney(residual))
	}
	return suggestions, nil
}
