package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/safnadck/myapplication/core"
	"github.com/safnadck/myapplication/core/fee"
)

// getExec returns the transaction a service passed in, or db when there is none.
func getExec(db *sqlx.DB, svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 && svcExec[0] != nil {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return db
}

// trapNoRowsErr maps psql "no rows" err to fee.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return errors.Wrap(fee.ErrNotFound, msg)
	}
	return errors.Wrap(err, msg)
}

type transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

func NewTransactor(db *sqlx.DB) core.Transactor {
	return &transactor{db: db}
}

// InTx runs fn within a database transaction, committed only when fn succeeds.
func (t *transactor) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return &fee.AtomicityError{Op: "committing transaction", Err: err}
	}
	return nil
}
