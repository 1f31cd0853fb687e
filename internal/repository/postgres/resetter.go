package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Resetter bulk-clears both the urls and visits tables in a single
// transaction, so a failure leaves both stores unchanged.
type Resetter struct {
	db *sqlx.DB
}

func NewResetter(db *sqlx.DB) *Resetter {
	return &Resetter{db: db}
}

func (r *Resetter) ResetAll(ctx context.Context) error {
	const op = "repository.postgres.Resetter.ResetAll"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM visits`); err != nil {
		return fmt.Errorf("%s: failed to delete from visits table: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM urls`); err != nil {
		return fmt.Errorf("%s: failed to delete from urls table: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}
