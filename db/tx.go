package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/TheManchineel/titilda-music/logger"
)

// WithTx runs fn inside a transaction. The transaction is committed if fn
// returns nil and rolled back otherwise. fn's error is returned unwrapped
// so callers can match sentinels.
func WithTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	return WithTxOptions(ctx, conn, nil, fn)
}

// WithTxOptions is WithTx with explicit transaction options.
func WithTxOptions(ctx context.Context, conn *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			logger.Warn("[DB] rollback failed", logger.ErrorField(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
