package repository

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by the repositories. It is
// satisfied by both *sql.DB and *sql.Tx, which lets the ingestion path and
// the reconciler run the same repository code inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
