package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/repairdesk/repairdesk/internal/shared"
)

// PostgreSQL SQLSTATE codes the application reacts to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
)

// Classify maps driver errors onto shared sentinels while keeping the original in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %w", shared.ErrConcurrentModification, err)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %w", shared.ErrConflict, err)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %w", shared.ErrNotFound, err)
		case codeCheckViolation:
			return fmt.Errorf("%w: %w", shared.ErrValidation, err)
		}
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: %w", shared.ErrNotFound, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
