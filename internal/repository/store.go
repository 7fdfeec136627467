package repository

import (
	"context"
	"time"

	"github.com/iliyamo/school-rfid-admin/internal/model"
)

// SchoolStore persists tenants.
type SchoolStore interface {
	Create(ctx context.Context, s *model.School) error
	GetByID(ctx context.Context, id string) (model.School, error)
	// NameTaken reports whether another school (other than excludeID)
	// already uses name, ignoring case.
	NameTaken(ctx context.Context, name, excludeID string) (bool, error)
	List(ctx context.Context) ([]model.School, error)
	Update(ctx context.Context, id string, p model.SchoolPatch) (model.School, error)
	// Delete removes the school together with its students, attendance
	// and messages.  User accounts referencing it are left alone.
	Delete(ctx context.Context, id string) error
}

// UserStore persists operator accounts.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	// ListAdmins returns the admin accounts bound to schoolID.
	ListAdmins(ctx context.Context, schoolID string) ([]model.User, error)
	Update(ctx context.Context, id string, p model.UserPatch) (model.User, error)
	Delete(ctx context.Context, id string) error
}

// StudentStore persists students keyed by (school, rfid).  An empty
// schoolID in List and Count means every school.
type StudentStore interface {
	Create(ctx context.Context, s *model.Student) error
	Get(ctx context.Context, schoolID, rfid string) (model.Student, error)
	List(ctx context.Context, schoolID string) ([]model.Student, error)
	Count(ctx context.Context, schoolID string) (int, error)
	Update(ctx context.Context, schoolID, rfid string, p model.StudentPatch) (model.Student, error)
	Delete(ctx context.Context, schoolID, rfid string) error
	// DeleteBySchool removes every student of the school and returns how
	// many were removed.
	DeleteBySchool(ctx context.Context, schoolID string) (int64, error)
	// Upsert inserts or updates the given students in one batch keyed on
	// (school, rfid).  A nil ParentPhone2 keeps the stored value.
	Upsert(ctx context.Context, students []model.Student) (int64, error)
	SetLastEvent(ctx context.Context, schoolID, rfid string, ev model.LastEvent) error
}

// AttendanceStore is the append-only attendance log.
type AttendanceStore interface {
	Append(ctx context.Context, a *model.Attendance) error
	Count(ctx context.Context, f EventFilter) (int, error)
	// List returns the newest matching rows first.
	List(ctx context.Context, f EventFilter, limit int) ([]model.Attendance, error)
}

// MessageStore is the append-only notification log.
type MessageStore interface {
	Append(ctx context.Context, m *model.Message) error
	Count(ctx context.Context, f MessageFilter) (int, error)
	List(ctx context.Context, f MessageFilter, limit int) ([]model.Message, error)
}

// Window is a half-open time range [From, To).  A zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// EventFilter selects attendance rows.  Empty fields match everything.
type EventFilter struct {
	SchoolID string
	Event    string
	Window
}

// Match reports whether a satisfies the filter.
func (f EventFilter) Match(a model.Attendance) bool {
	return (f.SchoolID == "" || a.SchoolID == f.SchoolID) &&
		(f.Event == "" || a.Event == f.Event) &&
		f.Contains(a.Timestamp)
}

// MessageFilter selects message rows.  Empty fields match everything.
type MessageFilter struct {
	SchoolID string
	Status   string
	Window
}

// Match reports whether m satisfies the filter.
func (f MessageFilter) Match(m model.Message) bool {
	return (f.SchoolID == "" || m.SchoolID == f.SchoolID) &&
		(f.Status == "" || m.Status == f.Status) &&
		f.Contains(m.Timestamp)
}
