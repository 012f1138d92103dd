// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as services
// and handlers to distinguish between different failure scenarios without
// depending on the storage driver. For example, ErrEmailExists reports a
// violated unique index on users.email, while ErrNotFound reports a missing
// row.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key finds no row.
var ErrNotFound = errors.New("record not found")

// ErrEmailExists is returned when saving a user would duplicate an email.
var ErrEmailExists = errors.New("email already exists")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when saving a refresh token record would reuse
// the hash of a different record. Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
