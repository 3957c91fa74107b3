package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrAlreadyInTransaction is returned by BeginTx when the context already
// carries a transaction.
var ErrAlreadyInTransaction = errors.New("already in a transaction")

type txKey struct{}

func txFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	return txFromContext(ctx) != nil
}

// BeginTx starts a transaction and returns a context carrying it. Every
// store call made with the returned context runs inside the transaction.
func (s *SQLiteStore) BeginTx(ctx context.Context) (context.Context, *sqlx.Tx, error) {
	if InTx(ctx) {
		return ctx, nil, ErrAlreadyInTransaction
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return ctx, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return context.WithValue(ctx, txKey{}, tx), tx, nil
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise. When ctx already carries a transaction, fn joins
// it: the outer owner decides commit or rollback.
func (s *SQLiteStore) WithTx(
	ctx context.Context,
	fn func(ctx context.Context) error,
) error {
	txCtx, tx, err := s.BeginTx(ctx)
	if errors.Is(err, ErrAlreadyInTransaction) {
		return fn(ctx)
	}
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
