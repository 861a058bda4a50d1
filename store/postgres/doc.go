// Package postgres implements the store using pgx/v5 with raw SQL.
// Due wake-up jobs are claimed with FOR UPDATE SKIP LOCKED, sleeping runs
// are claimed with a conditional UPDATE, and the schema ships as embedded
// SQL migrations.
package postgres
