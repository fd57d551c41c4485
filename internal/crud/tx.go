package crud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Tx is an open transaction. Stores join it through Store.Using.
type Tx struct {
	tx *sqlx.Tx
}

// WithTransaction runs fn inside a transaction on the store's database.
// The transaction commits when fn returns nil and rolls back when fn returns
// an error or panics; a panic is re-raised after the rollback.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	if s.inTx || s.db == nil {
		return ErrNestedTransaction
	}
	return RunInTx(ctx, s.db, fn)
}

// RunInTx is WithTransaction for callers holding the database handle directly.
func RunInTx(ctx context.Context, db *sqlx.DB, fn func(tx *Tx) error) (err error) {
	sqlTx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return &QueryError{Table: "-", Op: "begin", Err: err}
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		rbErr := sqlTx.Rollback()
		if rbErr != nil {
			slog.Warn("transaction rollback failed", "error", rbErr)
		}
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	err = fn(&Tx{tx: sqlTx})
	if err != nil {
		return err
	}

	err = sqlTx.Commit()
	if err != nil {
		return &QueryError{Table: "-", Op: "commit", Err: fmt.Errorf("commit: %w", err)}
	}
	committed = true
	return nil
}
