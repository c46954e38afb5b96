// Package dberr classifies postgres errors surfaced by the data layer so the
// pipeline can report meaningful failure reasons.
package dberr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind is a coarse classification of a database failure.
type Kind string

const (
	// KindNotFound maps pgx.ErrNoRows.
	KindNotFound Kind = "not_found"
	// KindConstraint covers integrity constraint violations (unique, FK,
	// check, not-null).
	KindConstraint Kind = "constraint"
	// KindUnavailable covers timeouts, cancellations, and connection loss.
	KindUnavailable Kind = "unavailable"
	// KindOther is everything else.
	KindOther Kind = "other"
)

// Classify maps a database error to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindUnavailable
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return KindNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
			return KindConstraint
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgerrcode.IsOperatorIntervention(pgErr.Code),
			pgerrcode.IsInsufficientResources(pgErr.Code):
			return KindUnavailable
		}
	}
	return KindOther
}

// Describe wraps err with a stable, operator-facing prefix derived from its
// classification. The original error remains unwrappable.
func Describe(op string, err error) error {
	if err == nil {
		return nil
	}
	switch Classify(err) {
	case KindConstraint:
		return fmt.Errorf("%s: constraint violation: %w", op, err)
	case KindUnavailable:
		return fmt.Errorf("%s: database unavailable: %w", op, err)
	case KindNotFound, KindOther:
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
