package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// UnitOfWork runs a function inside a single transaction and fires the
// transaction's post-commit hooks once the commit succeeds.
type UnitOfWork struct {
	db     *DB
	logger *zap.Logger
}

// NewUnitOfWork creates a new unit of work bound to db
func NewUnitOfWork(db *DB, logger *zap.Logger) *UnitOfWork {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnitOfWork{db: db, logger: logger}
}

// DB returns the underlying connection for reads outside a transaction
func (u *UnitOfWork) DB() *DB {
	return u.db
}

// Do executes fn in a transaction. Any error or panic from fn rolls the
// transaction back; the error is returned unchanged so callers can match it.
func (u *UnitOfWork) Do(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			u.logger.Error("transaction rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	u.runHooks(ctx, tx.hooks)
	return nil
}

// runHooks executes each hook in isolation; a failing or panicking hook never
// affects the others or the already-committed result.
func (u *UnitOfWork) runHooks(ctx context.Context, hooks []Hook) {
	for i, hook := range hooks {
		func() {
			defer func() {
				if p := recover(); p != nil {
					u.logger.Error("post-commit hook panicked", zap.Int("hook", i), zap.Any("panic", p))
				}
			}()
			if err := hook(ctx); err != nil {
				u.logger.Warn("post-commit hook failed", zap.Int("hook", i), zap.Error(err))
			}
		}()
	}
}
