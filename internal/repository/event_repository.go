package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/model"
)

// where renders the shared part of attendance and message filters.
func (w Window) where(schoolID, col, val string) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if schoolID != "" {
		conds = append(conds, "school_id = ?")
		args = append(args, schoolID)
	}
	if val != "" {
		conds = append(conds, col+" = ?")
		args = append(args, val)
	}
	if !w.From.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, w.From.UTC())
	}
	if !w.To.IsZero() {
		conds = append(conds, "timestamp < ?")
		args = append(args, w.To.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type attendanceRow struct {
	ID          string    `db:"id"`
	SchoolID    string    `db:"school_id"`
	RFID        string    `db:"rfid"`
	StudentName *string   `db:"student_name"`
	Event       string    `db:"event"`
	Manual      bool      `db:"manual"`
	Timestamp   time.Time `db:"timestamp"`
}

// AttendanceRepo is the MySQL AttendanceStore.  Rows are only ever
// inserted.
type AttendanceRepo struct{ db *sqlx.DB }

func NewAttendanceRepo(db *sqlx.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

func (r *AttendanceRepo) Append(ctx context.Context, a *model.Attendance) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = now()
	}
	const q = `INSERT INTO attendance (id, school_id, rfid, student_name, event, manual, timestamp)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, a.ID, a.SchoolID, a.RFID, a.StudentName, a.Event, a.Manual, a.Timestamp.UTC())
	return errors.Wrap(err, "insert attendance")
}

func (r *AttendanceRepo) Count(ctx context.Context, f EventFilter) (int, error) {
	where, args := f.Window.where(f.SchoolID, "event", f.Event)
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM attendance"+where, args...); err != nil {
		return 0, errors.Wrap(err, "count attendance")
	}
	return n, nil
}

func (r *AttendanceRepo) List(ctx context.Context, f EventFilter, limit int) ([]model.Attendance, error) {
	where, args := f.Window.where(f.SchoolID, "event", f.Event)
	args = append(args, limit)
	var rows []attendanceRow
	q := "SELECT id, school_id, rfid, student_name, event, manual, timestamp FROM attendance" + where + " ORDER BY timestamp DESC, id LIMIT ?"
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "list attendance")
	}
	out := make([]model.Attendance, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Attendance(row))
	}
	return out, nil
}

type messageRow struct {
	ID          string    `db:"id"`
	SchoolID    string    `db:"school_id"`
	RFID        string    `db:"rfid"`
	StudentName *string   `db:"student_name"`
	PhoneNumber string    `db:"phone_number"`
	Body        string    `db:"message"`
	Status      string    `db:"status"`
	Timestamp   time.Time `db:"timestamp"`
}

// MessageRepo is the MySQL MessageStore.
type MessageRepo struct{ db *sqlx.DB }

func NewMessageRepo(db *sqlx.DB) *MessageRepo { return &MessageRepo{db: db} }

func (r *MessageRepo) Append(ctx context.Context, m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now()
	}
	const q = `INSERT INTO messages (id, school_id, rfid, student_name, phone_number, message, status, timestamp)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, m.ID, m.SchoolID, m.RFID, m.StudentName, m.PhoneNumber, m.Body, m.Status, m.Timestamp.UTC())
	return errors.Wrap(err, "insert message")
}

func (r *MessageRepo) Count(ctx context.Context, f MessageFilter) (int, error) {
	where, args := f.Window.where(f.SchoolID, "status", f.Status)
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM messages"+where, args...); err != nil {
		return 0, errors.Wrap(err, "count messages")
	}
	return n, nil
}

func (r *MessageRepo) List(ctx context.Context, f MessageFilter, limit int) ([]model.Message, error) {
	where, args := f.Window.where(f.SchoolID, "status", f.Status)
	args = append(args, limit)
	var rows []messageRow
	q := "SELECT id, school_id, rfid, student_name, phone_number, message, status, timestamp FROM messages" + where + " ORDER BY timestamp DESC, id LIMIT ?"
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	out := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Message(row))
	}
	return out, nil
}
