package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// query accumulates WHERE conditions and positional arguments.
type query struct {
	base  string
	conds []string
	args  []any
	tail  string
}

func newQuery(base string) *query {
	return &query{base: base}
}

// where adds a condition; "?" is replaced by the next placeholder.
func (q *query) where(cond string, arg any) *query {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, strings.Replace(cond, "?", fmt.Sprintf("$%d", len(q.args)), 1))
	return q
}

func (q *query) orderBy(expr string) *query {
	q.tail += " ORDER BY " + expr
	return q
}

// page appends LIMIT and OFFSET when they are positive.
func (q *query) page(limit, offset int) *query {
	if limit > 0 {
		q.args = append(q.args, limit)
		q.tail += fmt.Sprintf(" LIMIT $%d", len(q.args))
	}
	if offset > 0 {
		q.args = append(q.args, offset)
		q.tail += fmt.Sprintf(" OFFSET $%d", len(q.args))
	}
	return q
}

// build returns the SQL text and its arguments.
func (q *query) build() (string, []any) {
	sqlText := q.base
	if len(q.conds) > 0 {
		sqlText += " WHERE " + strings.Join(q.conds, " AND ")
	}
	return sqlText + q.tail, q.args
}
