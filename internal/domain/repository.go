package domain

import (
	"context"
	"database/sql"
)

// DBExecutor is the subset of *sql.DB and *sql.Tx the repositories need
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
