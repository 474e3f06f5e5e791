package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// txKey is the context key under which an in-flight *sql.Tx travels so
// nested repository calls made inside WithTx reuse the same transaction
// instead of opening a second one.
type txKey struct{}

// TxManager adapts a database/sql begin / commit-or-rollback lifecycle to
// writer.TxRunner, grounded in the teacher's
// database.WithTransaction panic-safe helper.
type TxManager struct {
	db *sql.DB
}

// NewTxManager builds a TxManager over db.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithTx runs fn inside one transaction, committing on nil error and
// rolling back (even on panic) otherwise. The transaction is opened with
// default options (a deferred SQLite transaction, which takes the write
// lock at its first write); same-fund commits are serialised by the
// fund-level advisory lock tradeservice holds for the span of the commit.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("repositories: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("repositories: panic in transaction: %v", p)
			return
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("repositories: transaction failed: %w (rollback also failed: %v)", err, rbErr)
			}
			return
		}
		err = tx.Commit()
	}()

	err = fn(context.WithValue(ctx, txKey{}, tx))
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting a repository
// method run either standalone or as part of an enclosing WithTx span.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txOrDB returns the transaction carried on ctx, or falls back to db for
// calls made outside a WithTx span.
func txOrDB(ctx context.Context, db *sql.DB) dbtx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}
