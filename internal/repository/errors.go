// Package repository defines the persistence contracts of the service and
// their MySQL implementations.  The sentinel errors below are shared by
// every implementation (including repository/memory) so that handlers can
// map store failures onto HTTP responses without knowing the backend.
package repository

import (
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

var (
	// ErrSchoolNotFound is returned when no school matches the given id.
	ErrSchoolNotFound = errors.New("school not found")
	// ErrSchoolNameExists is returned when a school name collides with an
	// existing one, compared case-insensitively.
	ErrSchoolNameExists = errors.New("school name already exists")

	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")

	ErrStudentNotFound = errors.New("student not found")
	// ErrStudentExists is returned when (school, rfid) is already taken.
	ErrStudentExists = errors.New("student rfid already exists in school")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a unique index violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// now returns the current time at the precision of DATETIME(3) columns.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
