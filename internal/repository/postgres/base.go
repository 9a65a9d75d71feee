package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/pkg/errors"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// notFound maps sql.ErrNoRows onto an AppError and wraps anything else.
func notFound(err error, resource, op string) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// expectOne turns a zero-row update or delete into a not found error.
func expectOne(res sql.Result, resource string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound(resource, nil)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// filter accumulates WHERE conditions written with ? placeholders.
type filter struct {
	conds []string
	args  []interface{}
}

func (f *filter) add(cond string, args ...interface{}) {
	f.conds = append(f.conds, cond)
	f.args = append(f.args, args...)
}

// search matches term case-insensitively against any of cols.
func (f *filter) search(term string, cols ...string) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}
	pattern := "%" + strings.ToLower(term) + "%"
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = "LOWER(" + col + ") LIKE ?"
		f.args = append(f.args, pattern)
	}
	f.conds = append(f.conds, "("+strings.Join(parts, " OR ")+")")
}

// records applies the status, priority, category and date filters shared by
// lab and x-ray lists.
func (f *filter) records(q model.ListQuery) {
	if q.Status != "" {
		f.add("status = ?", q.Status)
	}
	if q.Priority != "" {
		f.add("priority = ?", q.Priority)
	}
	if q.Category != "" {
		f.add("category = ?", q.Category)
	}
	if q.Date != "" {
		f.add("(performed_date = ? OR (performed_date = '' AND CAST(created_at AS TEXT) LIKE ?))", q.Date, q.Date+"%")
	}
}

func (f *filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// page runs a count and a page select over table with the accumulated
// conditions, newest first.
func page[T any](ctx context.Context, db *sqlx.DB, table string, f *filter, q model.ListQuery) ([]*T, int, error) {
	q = q.Normalize()

	var total int
	countQuery := db.Rebind("SELECT COUNT(*) FROM " + table + f.where())
	if err := db.GetContext(ctx, &total, countQuery, f.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", table, err)
	}

	p := model.NewPagination(q.Page, q.Limit, total)
	selectQuery := db.Rebind("SELECT * FROM " + table + f.where() +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")
	args := append(append([]interface{}{}, f.args...), p.Limit, p.Offset())

	items := []*T{}
	if err := db.SelectContext(ctx, &items, selectQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", table, err)
	}
	return items, total, nil
}
