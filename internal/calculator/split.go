package calculator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/models"
)

var (
	ErrInvalidParticipants = errors.New("invalid participants")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrSplitMismatch       = errors.New("split mismatch")
)

// maxPercentageDrift is how far a supplied custom percentage may be from
// the percentage implied by its amount before the split is rejected.
var maxPercentageDrift = decimal.RequireFromString("0.5")

// SplitError is returned by every split function. Message is meant for
// end users; Kind is one of the Err* sentinels above.
type SplitError struct {
	Kind    error
	Message string
}

func (e *SplitError) Error() string { return e.Message }

func (e *SplitError) Unwrap() error { return e.Kind }

func splitErr(kind error, format string, args ...any) error {
	return &SplitError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// PercentageShare is one participant of a percentage split.
type PercentageShare struct {
	MemberID   string          `json:"memberId"`
	Percentage decimal.Decimal `json:"percentage"`
}

// CustomShare is one participant of a custom split. Percentage is optional.
type CustomShare struct {
	MemberID   string           `json:"memberId"`
	Amount     decimal.Decimal  `json:"amount"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
}

// Method is a split rule. The only implementations are the ones returned by
// Equal, Percentage and Custom.
type Method interface {
	Kind() models.SplitMethod
	apply(amount decimal.Decimal) ([]models.SplitEntry, error)
}

type equalMethod struct{ participantIDs []string }

func (m equalMethod) Kind() models.SplitMethod { return models.SplitEqual }

func (m equalMethod) apply(amount decimal.Decimal) ([]models.SplitEntry, error) {
	return EqualSplit(amount, m.participantIDs)
}

type percentageMethod struct{ shares []PercentageShare }

func (m percentageMethod) Kind() models.SplitMethod { return models.SplitPercentage }

func (m percentageMethod) apply(amount decimal.Decimal) ([]models.SplitEntry, error) {
	return PercentageSplit(amount, m.shares)
}

type customMethod struct{ shares []CustomShare }

func (m customMethod) Kind() models.SplitMethod { return models.SplitCustom }

func (m customMethod) apply(amount decimal.Decimal) ([]models.SplitEntry, error) {
	return ValidateCustomSplit(amount, m.shares)
}

// Equal splits an amount evenly among participantIDs.
func Equal(participantIDs []string) Method { return equalMethod{participantIDs: participantIDs} }

// Percentage splits an amount by per-member percentages summing to 100.
func Percentage(shares []PercentageShare) Method { return percentageMethod{shares: shares} }

// Custom takes explicit per-member amounts summing to the expense amount.
func Custom(shares []CustomShare) Method { return customMethod{shares: shares} }

// Split computes split entries for amount using m.
func Split(amount decimal.Decimal, m Method) ([]models.SplitEntry, error) {
	if m == nil {
		return nil, splitErr(ErrInvalidParticipants, "a split method is required")
	}
	return m.apply(amount)
}

// EqualSplit divides amount evenly. The per-person share is rounded to cents
// and the leftover cents go one at a time to the first participants in list
// order, so the entries always add back up to amount exactly.
func EqualSplit(amount decimal.Decimal, participantIDs []string) ([]models.SplitEntry, error) {
	amount, err := checkAmount(amount)
	if err != nil {
		return nil, err
	}
	if err := checkParticipants(participantIDs); err != nil {
		return nil, err
	}

	n := decimal.NewFromInt(int64(len(participantIDs)))
	share := amount.DivRound(n, models.MoneyPlaces)
	residual := amount.Sub(share.Mul(n))

	step := models.Cent
	cents := residual.Div(models.Cent).IntPart()
	if cents < 0 {
		step = step.Neg()
		cents = -cents
	}

	splits := make([]models.SplitEntry, len(participantIDs))
	for i, id := range participantIDs {
		amt := share
		if int64(i) < cents {
			amt = amt.Add(step)
		}
		splits[i] = models.SplitEntry{
			MemberID:   id,
			Amount:     amt,
			Percentage: percentOf(amt, amount),
		}
	}
	return splits, nil
}

// PercentageSplit divides amount by percentages. Shares are allocated with
// the largest remainder method, so no share is ever negative and the total
// is exact.
func PercentageSplit(amount decimal.Decimal, shares []PercentageShare) ([]models.SplitEntry, error) {
	amount, err := checkAmount(amount)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(shares))
	for i, s := range shares {
		ids[i] = s.MemberID
	}
	if err := checkParticipants(ids); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, s := range shares {
		if s.Percentage.IsNegative() {
			return nil, splitErr(ErrSplitMismatch, "percentage for %s must not be negative, got %s%%",
				s.MemberID, s.Percentage.String())
		}
		total = total.Add(s.Percentage)
	}
	if !models.WithinCent(total, models.Hundred) {
		return nil, splitErr(ErrSplitMismatch, "percentages total %s%% must equal 100%%", total.StringFixed(2))
	}

	weights := make([]decimal.Decimal, len(shares))
	for i, s := range shares {
		weights[i] = s.Percentage
	}
	amounts := allocate(amount, weights)

	splits := make([]models.SplitEntry, len(shares))
	for i, s := range shares {
		pct := s.Percentage
		splits[i] = models.SplitEntry{MemberID: s.MemberID, Amount: amounts[i], Percentage: &pct}
	}
	return splits, nil
}

// ValidateCustomSplit checks explicit amounts against the expense amount.
// The rounded amounts must add up to the expense amount to the cent.
// Amounts are authoritative: a supplied percentage within half a point of the
// one implied by its amount is replaced by the implied value, and anything
// further off is rejected.
func ValidateCustomSplit(amount decimal.Decimal, shares []CustomShare) ([]models.SplitEntry, error) {
	amount, err := checkAmount(amount)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(shares))
	for i, s := range shares {
		ids[i] = s.MemberID
	}
	if err := checkParticipants(ids); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, s := range shares {
		if s.Amount.IsNegative() {
			return nil, splitErr(ErrSplitMismatch, "split amount for %s must not be negative, got %s",
				s.MemberID, models.FormatMoney(s.Amount))
		}
		total = total.Add(models.RoundMoney(s.Amount))
	}
	// Both sides are whole cents, so anything short of exact equality is at
	// least a cent off.
	if !total.Equal(amount) {
		return nil, splitErr(ErrSplitMismatch, "splits total %s must equal expense amount %s",
			models.FormatMoney(total), models.FormatMoney(amount))
	}

	splits := make([]models.SplitEntry, len(shares))
	for i, s := range shares {
		amt := models.RoundMoney(s.Amount)
		entry := models.SplitEntry{MemberID: s.MemberID, Amount: amt}
		if s.Percentage != nil {
			implied := percentOf(amt, amount)
			if s.Percentage.Sub(*implied).Abs().GreaterThan(maxPercentageDrift) {
				return nil, splitErr(ErrSplitMismatch, "percentage for %s is %s%% but %s is %s%% of %s",
					s.MemberID, s.Percentage.StringFixed(2), models.FormatMoney(amt),
					implied.StringFixed(2), models.FormatMoney(amount))
			}
			entry.Percentage = implied
		}
		splits[i] = entry
	}
	return splits, nil
}

// Rescale recomputes an existing split set for a new amount, keeping the
// method and the participants. Percentage splits keep their percentages;
// custom splits keep their proportions.
func Rescale(method models.SplitMethod, splits []models.SplitEntry, oldAmount, newAmount decimal.Decimal) ([]models.SplitEntry, error) {
	switch method {
	case models.SplitEqual:
		ids := make([]string, len(splits))
		for i, s := range splits {
			ids[i] = s.MemberID
		}
		return EqualSplit(newAmount, ids)

	case models.SplitPercentage:
		shares := make([]PercentageShare, len(splits))
		for i, s := range splits {
			shares[i] = PercentageShare{MemberID: s.MemberID}
			if s.Percentage != nil {
				shares[i].Percentage = *s.Percentage
			}
		}
		return PercentageSplit(newAmount, shares)

	case models.SplitCustom:
		if !oldAmount.IsPositive() {
			return nil, splitErr(ErrInvalidAmount, "cannot rescale a split from %s", models.FormatMoney(oldAmount))
		}
		newAmount, err := checkAmount(newAmount)
		if err != nil {
			return nil, err
		}
		weights := make([]decimal.Decimal, len(splits))
		for i, s := range splits {
			if s.Amount.IsNegative() {
				return nil, splitErr(ErrSplitMismatch, "split amount for %s must not be negative, got %s",
					s.MemberID, models.FormatMoney(s.Amount))
			}
			weights[i] = s.Amount
		}
		amounts := allocate(newAmount, weights)
		shares := make([]CustomShare, len(splits))
		for i, s := range splits {
			shares[i] = CustomShare{MemberID: s.MemberID, Amount: amounts[i]}
		}
		out, err := ValidateCustomSplit(newAmount, shares)
		if err != nil {
			return nil, err
		}
		for i, s := range splits {
			if s.Percentage != nil {
				out[i].Percentage = percentOf(out[i].Amount, newAmount)
			}
		}
		return out, nil
	}
	return nil, splitErr(ErrInvalidParticipants, "unknown split method %q", method)
}

// allocate divides amount in proportion to weights using the largest
// remainder method. Every share is first rounded down to cents, then the
// leftover cents go one each to the shares with the largest remainders,
// earlier entries first on ties. A zero weight always gets zero unless every
// weight is zero, in which case the amount is split evenly.
func allocate(amount decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w)
	}
	if !total.IsPositive() {
		weights = make([]decimal.Decimal, len(weights))
		for i := range weights {
			weights[i] = decimal.NewFromInt(1)
		}
		total = decimal.NewFromInt(int64(len(weights)))
	}

	out := make([]decimal.Decimal, len(weights))
	remainders := make([]decimal.Decimal, len(weights))
	allocated := decimal.Zero
	for i, w := range weights {
		raw := amount.Mul(w).Div(total)
		out[i] = raw.RoundFloor(models.MoneyPlaces)
		remainders[i] = raw.Sub(out[i])
		allocated = allocated.Add(out[i])
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return remainders[b].Cmp(remainders[a])
	})

	left := amount.Sub(allocated).Div(models.Cent).IntPart()
	for k := int64(0); k < left; k++ {
		i := order[k%int64(len(order))]
		out[i] = out[i].Add(models.Cent)
	}
	return out
}

func checkAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	amount = models.RoundMoney(amount)
	if !amount.IsPositive() {
		return amount, splitErr(ErrInvalidAmount, "expense amount must be greater than zero, got %s",
			models.FormatMoney(amount))
	}
	return amount, nil
}

func checkParticipants(ids []string) error {
	if len(ids) == 0 {
		return splitErr(ErrInvalidParticipants, "at least one participant is required")
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return splitErr(ErrInvalidParticipants, "participant id must not be empty")
		}
		if seen[id] {
			return splitErr(ErrInvalidParticipants, "participant %s appears more than once", id)
		}
		seen[id] = true
	}
	return nil
}

func percentOf(part, whole decimal.Decimal) *decimal.Decimal {
	p := part.Div(whole).Mul(models.Hundred).Round(2)
	return &p
}
