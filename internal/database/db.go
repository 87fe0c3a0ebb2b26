package database

import (
	"context"
	"errors"

	"github.com/fintrust/identity/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the repositories translate into domain errors.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgNotNullViolation     = "23502"
	pgSerializationFailure = "40001"
)

// MapPostgresError translates driver errors into the domain sentinels so
// services never branch on SQLSTATE codes.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure:
			return models.ErrConflict
		case pgForeignKeyViolation, pgNotNullViolation:
			return models.ErrBadRequest
		}
	}

	return err
}

// WithTransaction runs fn inside a read-committed transaction, committing on
// success and rolling back on error or panic.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	return db.runInTx(ctx, pgx.TxOptions{}, fn)
}

// WithSerializableTransaction runs fn under serializable isolation. A
// serialization failure at commit maps to ErrConflict, the same outcome the
// loser of a duplicate race would see from the unique index.
func (db *DB) WithSerializableTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	return MapPostgresError(db.runInTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn))
}

func (db *DB) runInTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Pool.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(tx)
	return err
}
