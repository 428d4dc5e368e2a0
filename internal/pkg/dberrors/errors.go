package dberrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the repositories care about. Unique violations do
// not appear here: every attendance write is an upsert targeting its slot
// index, so conflicting inserts converge instead of erroring.
const (
	foreignKeyViolation = "23503"
)

// IsForeignKeyViolation checks if the error is a PostgreSQL foreign key
// violation error, e.g. an entry referencing an unknown student or period.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
