package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres error codes this package reacts to.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// ErrNotPending is returned when a ledger row was already moved to a terminal status.
var ErrNotPending = errors.New("delivery record is not pending")

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
