package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/repairdesk/repairdesk/internal/shared"
)

func TestClassifyMapsLockConflicts(t *testing.T) {
	for _, code := range []string{codeSerializationFailure, codeDeadlockDetected} {
		err := Classify(fmt.Errorf("update item: %w", &pgconn.PgError{Code: code, Message: "could not serialize access"}))
		require.ErrorIs(t, err, shared.ErrConcurrentModification, code)
		require.ErrorIs(t, err, shared.ErrConflict, code)

		var pgErr *pgconn.PgError
		require.True(t, errors.As(err, &pgErr))
		require.Equal(t, code, pgErr.Code)
	}
}

func TestClassifyConstraintViolations(t *testing.T) {
	require.ErrorIs(t, Classify(&pgconn.PgError{Code: codeUniqueViolation}), shared.ErrConflict)
	require.ErrorIs(t, Classify(&pgconn.PgError{Code: codeForeignKeyViolation}), shared.ErrNotFound)
	require.ErrorIs(t, Classify(&pgconn.PgError{Code: codeCheckViolation}), shared.ErrValidation)
	require.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: codeUniqueViolation})))
}

func TestClassifyNoRows(t *testing.T) {
	err := Classify(pgx.ErrNoRows)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestClassifyPassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	require.Same(t, plain, Classify(plain))
	require.NoError(t, Classify(nil))
}
