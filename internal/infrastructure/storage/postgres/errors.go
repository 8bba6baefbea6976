package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
)

// SQLSTATE codes the order core reacts to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
)

// MapError turns a PostgreSQL failure into an AppError.
//
//	23505                         -> duplicate (409)
//	23503                         -> not found of the referenced row
//	23514                         -> validation
//	40001 40P01 55P03 57014, 08*  -> transaction failure (503)
//
// Errors that are already AppErrors and errors that are not PostgreSQL
// errors are returned unchanged.
func MapError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return apperror.NewDuplicate(entity, constraintField(pgErr.ConstraintName), pgErr.Detail).WithCause(err)
		case pgErr.Code == pgForeignKeyViolation:
			return apperror.NewNotFound("referenced record", pgErr.ConstraintName).WithCause(err)
		case pgErr.Code == pgCheckViolation:
			return apperror.NewValidation("value violates constraint").
				WithDetail("constraint", pgErr.ConstraintName).WithCause(err)
		case IsTransientCode(pgErr.Code):
			return apperror.NewTransactionFailure(err)
		}
		return err
	}

	if isConnectionError(err) {
		return apperror.NewTransactionFailure(err)
	}
	return err
}

// IsTransientCode reports SQLSTATEs after which the whole transaction may be
// retried by the caller.
func IsTransientCode(code string) bool {
	switch code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgQueryCanceled:
		return true
	}
	// Class 08: connection exception.
	return strings.HasPrefix(code, "08")
}

func isConnectionError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// constraintField guesses the column from names like orders_order_number_key.
func constraintField(constraint string) string {
	switch {
	case strings.Contains(constraint, "order_number"):
		return "order_number"
	case strings.Contains(constraint, "phone"):
		return "phone"
	case strings.Contains(constraint, "code"):
		return "code"
	case constraint == "":
		return "key"
	}
	return constraint
}
