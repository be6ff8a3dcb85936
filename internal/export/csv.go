// Package export renders ledger data for spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/mmynk/tripledger/internal/models"
)

const dateLayout = "2006-01-02"

type column struct {
	memberID string
	label    string
}

// shareColumns lists one column per roster member, labelled by display name,
// followed by one column per split participant who has since left the
// group, labelled by member ID in the order they first appear.
func shareColumns(members []models.Member, expenses []*models.Expense) []column {
	cols := make([]column, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		cols = append(cols, column{memberID: m.ID, label: m.DisplayName})
		seen[m.ID] = true
	}
	for _, e := range expenses {
		for _, s := range e.Splits {
			if seen[s.MemberID] {
				continue
			}
			seen[s.MemberID] = true
			cols = append(cols, column{memberID: s.MemberID, label: s.MemberID})
		}
	}
	return cols
}

// Header returns the CSV header: the fixed expense columns followed by one
// column per member share. Former members who still hold shares in expenses
// get a trailing column named by their ID.
func Header(members []models.Member, expenses []*models.Expense) []string {
	header := []string{"description", "amount", "category", "paid_by", "status", "date"}
	for _, c := range shareColumns(members, expenses) {
		header = append(header, c.label)
	}
	return header
}

// WriteExpenses writes one row per expense. Share columns hold that
// member's share, blank when they are not a participant. Payers are written
// by display name when they are still on the roster and by ID otherwise.
func WriteExpenses(w io.Writer, members []models.Member, expenses []*models.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(members, expenses)); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName
	}
	cols := shareColumns(members, expenses)

	for _, e := range expenses {
		paidBy := e.PaidBy
		if name, ok := names[e.PaidBy]; ok {
			paidBy = name
		}
		row := []string{
			e.Description,
			e.Amount.StringFixed(models.MoneyPlaces),
			string(e.Category),
			paidBy,
			string(e.Status),
			e.CreatedAt.Format(dateLayout),
		}
		for _, c := range cols {
			cell := ""
			if i := e.Split(c.memberID); i >= 0 {
				cell = e.Splits[i].Amount.StringFixed(models.MoneyPlaces)
			}
			row = append(row, cell)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row for expense %s: %w", e.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
