// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Foreign keys and the busy timeout are per connection, so they go in the DSN.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateGroup persists a new group and its roster.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO groups (id, name, budget_max, created_at) VALUES (?, ?, ?, ?)",
		group.ID, group.Name, budgetValue(group.Budget), toNanos(group.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	for i, m := range group.Members {
		if err := insertMember(ctx, tx, group.ID, m, i); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID, including its roster in membership order.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	var budget decimal.NullDecimal
	var createdAt int64

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, budget_max, created_at FROM groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &budget, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group not found: %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	group.CreatedAt = fromNanos(createdAt)
	if budget.Valid {
		group.Budget = &models.Budget{Max: budget.Decimal}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, display_name, payment_handle, role
		 FROM group_members WHERE group_id = ? ORDER BY position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Member
		var role string
		if err := rows.Scan(&m.ID, &m.DisplayName, &m.PaymentHandle, &role); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		m.Role = models.Role(role)
		group.Members = append(group.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}

	return group, nil
}

// AddGroupMember appends a member to the end of a group's roster.
func (s *SQLiteStore) AddGroupMember(ctx context.Context, groupID string, member models.Member) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := groupExists(ctx, tx, groupID); err != nil {
		return err
	}

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM group_members WHERE group_id = ? AND member_id = ?",
		groupID, member.ID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check group member: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("member %s already in group %s: %w", member.ID, groupID, storage.ErrAlreadyExists)
	}

	var next int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position), -1) + 1 FROM group_members WHERE group_id = ?",
		groupID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to get roster position: %w", err)
	}

	if err := insertMember(ctx, tx, groupID, member, next); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RemoveGroupMember removes a member from a group's roster.
func (s *SQLiteStore) RemoveGroupMember(ctx context.Context, groupID, memberID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM group_members WHERE group_id = ? AND member_id = ?",
		groupID, memberID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return requireAffected(result, "group member", memberID)
}

// SetGroupBudget replaces a group's budget. A nil budget clears it.
func (s *SQLiteStore) SetGroupBudget(ctx context.Context, groupID string, budget *models.Budget) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE groups SET budget_max = ? WHERE id = ?",
		budgetValue(budget), groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to set group budget: %w", err)
	}
	return requireAffected(result, "group", groupID)
}

func insertMember(ctx context.Context, tx *sql.Tx, groupID string, m models.Member, position int) error {
	role := m.Role
	if role == "" {
		role = models.RoleMember
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, member_id, display_name, payment_handle, role, position)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		groupID, m.ID, m.DisplayName, m.PaymentHandle, string(role), position,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group member: %w", err)
	}
	return nil
}

func groupExists(ctx context.Context, tx *sql.Tx, groupID string) error {
	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM groups WHERE id = ?", groupID).Scan(&n); err != nil {
		return fmt.Errorf("failed to check group: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group not found: %s: %w", groupID, storage.ErrNotFound)
	}
	return nil
}

func requireAffected(result sql.Result, what, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s not found: %s: %w", what, id, storage.ErrNotFound)
	}
	return nil
}

func budgetValue(b *models.Budget) any {
	if b == nil {
		return nil
	}
	return b.Max.String()
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
