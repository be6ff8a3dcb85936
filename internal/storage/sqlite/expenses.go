package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

// listPageSize is how many expenses ListExpenses loads per query.
const listPageSize = 100

const expenseColumns = `id, group_id, description, amount, category, paid_by, split_method,
	status, notes, receipt_image, added_by, created_at, updated_at, revision`

// CreateExpense persists a new expense and its splits.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = now
	}
	if expense.UpdatedAt.IsZero() {
		expense.UpdatedAt = expense.CreatedAt
	}
	expense.Revision = 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.Description, expense.Amount.String(),
		string(expense.Category), expense.PaidBy, string(expense.SplitMethod), string(expense.Status),
		expense.Notes, expense.ReceiptImage, expense.AddedBy,
		toNanos(expense.CreatedAt), toNanos(expense.UpdatedAt), expense.Revision,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertSplits(ctx, tx, expense); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense by ID, including its splits.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?",
		expenseID,
	)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense not found: %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := s.loadSplits(ctx, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

// UpdateExpense replaces an expense and its splits if the stored revision
// still matches expense.Revision.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE expenses SET description = ?, amount = ?, category = ?, paid_by = ?, split_method = ?,
		 status = ?, notes = ?, receipt_image = ?, updated_at = ?, revision = revision + 1
		 WHERE id = ? AND revision = ?`,
		expense.Description, expense.Amount.String(), string(expense.Category), expense.PaidBy,
		string(expense.SplitMethod), string(expense.Status), expense.Notes, expense.ReceiptImage,
		toNanos(expense.UpdatedAt), expense.ID, expense.Revision,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM expenses WHERE id = ?", expense.ID).Scan(&count); err != nil {
			return fmt.Errorf("failed to check expense: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("expense not found: %s: %w", expense.ID, storage.ErrNotFound)
		}
		return fmt.Errorf("expense %s at revision %d: %w", expense.ID, expense.Revision, storage.ErrRevisionConflict)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM expense_splits WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to delete expense splits: %w", err)
	}
	if err := insertSplits(ctx, tx, expense); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	expense.Revision++
	return nil
}

// DeleteExpense removes an expense. Splits are removed by cascade.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return requireAffected(result, "expense", expenseID)
}

// ListExpenses yields a group's expenses newest first. Rows are fetched a
// page at a time and no connection is held while the caller handles a value.
// The search text is matched in Go after each page is read.
func (s *SQLiteStore) ListExpenses(ctx context.Context, groupID string, filter storage.ExpenseFilter) iter.Seq2[*models.Expense, error] {
	return func(yield func(*models.Expense, error) bool) {
		var after *models.Expense
		for {
			page, err := s.listPage(ctx, groupID, filter, after)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, e := range page {
				if !filter.MatchesSearch(e) {
					continue
				}
				if err := s.loadSplits(ctx, e); err != nil {
					yield(nil, err)
					return
				}
				if !yield(e, nil) {
					return
				}
			}
			if len(page) < listPageSize {
				return
			}
			after = page[len(page)-1]
		}
	}
}

func (s *SQLiteStore) listPage(ctx context.Context, groupID string, filter storage.ExpenseFilter, after *models.Expense) ([]*models.Expense, error) {
	var where strings.Builder
	args := []any{groupID}
	where.WriteString("group_id = ?")

	if filter.Category != "" {
		where.WriteString(" AND category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Status != "" {
		where.WriteString(" AND status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.From.IsZero() {
		where.WriteString(" AND created_at >= ?")
		args = append(args, toNanos(filter.From))
	}
	if !filter.To.IsZero() {
		where.WriteString(" AND created_at <= ?")
		args = append(args, toNanos(filter.To))
	}
	if after != nil {
		where.WriteString(" AND (created_at < ? OR (created_at = ? AND id < ?))")
		ts := toNanos(after.CreatedAt)
		args = append(args, ts, ts, after.ID)
	}
	args = append(args, listPageSize)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE "+where.String()+
			" ORDER BY created_at DESC, id DESC LIMIT ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var page []*models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		page = append(page, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return page, nil
}

func (s *SQLiteStore) loadSplits(ctx context.Context, expense *models.Expense) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, amount, percentage, settled, settled_at
		 FROM expense_splits WHERE expense_id = ? ORDER BY position`,
		expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get expense splits: %w", err)
	}
	defer rows.Close()

	expense.Splits = nil
	for rows.Next() {
		var split models.SplitEntry
		var pct decimal.NullDecimal
		var settledAt sql.NullInt64
		if err := rows.Scan(&split.MemberID, &split.Amount, &pct, &split.Settled, &settledAt); err != nil {
			return fmt.Errorf("failed to scan expense split: %w", err)
		}
		if pct.Valid {
			p := pct.Decimal
			split.Percentage = &p
		}
		if settledAt.Valid {
			t := fromNanos(settledAt.Int64)
			split.SettledAt = &t
		}
		expense.Splits = append(expense.Splits, split)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate expense splits: %w", err)
	}
	return nil
}

func insertSplits(ctx context.Context, tx *sql.Tx, expense *models.Expense) error {
	for i, split := range expense.Splits {
		var pct, settledAt any
		if split.Percentage != nil {
			pct = split.Percentage.String()
		}
		if split.SettledAt != nil {
			settledAt = toNanos(*split.SettledAt)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_splits (expense_id, position, member_id, amount, percentage, settled, settled_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			expense.ID, i, split.MemberID, split.Amount.String(), pct, split.Settled, settledAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense split: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (*models.Expense, error) {
	e := &models.Expense{}
	var category, method, status string
	var createdAt, updatedAt int64
	err := row.Scan(&e.ID, &e.GroupID, &e.Description, &e.Amount, &category, &e.PaidBy, &method,
		&status, &e.Notes, &e.ReceiptImage, &e.AddedBy, &createdAt, &updatedAt, &e.Revision)
	if err != nil {
		return nil, err
	}
	e.Category = models.Category(category)
	e.SplitMethod = models.SplitMethod(method)
	e.Status = models.Status(status)
	e.CreatedAt = fromNanos(createdAt)
	e.UpdatedAt = fromNanos(updatedAt)
	return e, nil
}
