// Package memory implements the repository stores on mutex-guarded maps.
// It backs the API tests and lets the server run without MySQL.
package memory

import (
	"sync"
	"time"

	"github.com/iliyamo/school-rfid-admin/internal/model"
)

type (
	// DB holds every table behind one lock so cross-table operations
	// (school delete) stay atomic.
	DB struct {
		mutex sync.RWMutex
		seq   int64

		schools    map[string]*schoolRecord
		users      map[string]*userRecord
		students   map[studentKey]*studentRecord
		attendance []model.Attendance
		messages   []model.Message
	}

	schoolRecord struct {
		seq int64
		model.School
	}

	userRecord struct {
		seq int64
		model.User
	}

	studentKey struct{ schoolID, rfid string }

	studentRecord struct {
		seq int64
		model.Student
	}
)

// Open returns an empty database.
func Open() *DB {
	return &DB{
		schools:  make(map[string]*schoolRecord),
		users:    make(map[string]*userRecord),
		students: make(map[studentKey]*studentRecord),
	}
}

// next returns a monotonically increasing insertion counter.  Callers hold
// the write lock.
func (db *DB) next() int64 {
	db.seq++
	return db.seq
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func strPtr(s string) *string { return &s }

// optional maps "" to nil the way the SQL store maps it to NULL.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
