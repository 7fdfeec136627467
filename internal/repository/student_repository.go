package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/model"
)

// upsertChunk bounds the number of rows per INSERT so a large import stays
// below MySQL's placeholder limit (65535 / 9 columns).
const upsertChunk = 1000

// studentRow mirrors the `students` table.  The last event is flattened
// into two nullable columns.
type studentRow struct {
	ID              string     `db:"id"`
	SchoolID        string     `db:"school_id"`
	RFID            string     `db:"rfid"`
	Name            string     `db:"name"`
	AdmissionNumber string     `db:"admission_number"`
	ParentPhone     string     `db:"parent_phone"`
	ParentPhone2    *string    `db:"parent_phone2"`
	LastEvent       *string    `db:"last_event"`
	LastEventAt     *time.Time `db:"last_event_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (r studentRow) model() model.Student {
	s := model.Student{
		ID:              r.ID,
		SchoolID:        r.SchoolID,
		RFID:            r.RFID,
		Name:            r.Name,
		AdmissionNumber: r.AdmissionNumber,
		ParentPhone:     r.ParentPhone,
		ParentPhone2:    r.ParentPhone2,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.LastEvent != nil && r.LastEventAt != nil {
		s.LastEvent = &model.LastEvent{Event: *r.LastEvent, Timestamp: *r.LastEventAt}
	}
	return s
}

const studentColumns = "id, school_id, rfid, name, admission_number, parent_phone, parent_phone2, last_event, last_event_at, created_at, updated_at"

// StudentRepo is the MySQL StudentStore.  (school_id, rfid) is unique via
// uq_students_school_rfid.
type StudentRepo struct{ db *sqlx.DB }

func NewStudentRepo(db *sqlx.DB) *StudentRepo { return &StudentRepo{db: db} }

func (r *StudentRepo) Create(ctx context.Context, s *model.Student) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = now()
	s.UpdatedAt = s.CreatedAt
	const q = `INSERT INTO students (id, school_id, rfid, name, admission_number, parent_phone, parent_phone2, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.SchoolID, s.RFID, s.Name, s.AdmissionNumber, s.ParentPhone, s.ParentPhone2, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrStudentExists
		}
		return errors.Wrap(err, "insert student")
	}
	return nil
}

func (r *StudentRepo) Get(ctx context.Context, schoolID, rfid string) (model.Student, error) {
	var row studentRow
	err := r.db.GetContext(ctx, &row, "SELECT "+studentColumns+" FROM students WHERE school_id = ? AND rfid = ?", schoolID, rfid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Student{}, ErrStudentNotFound
		}
		return model.Student{}, errors.Wrap(err, "get student")
	}
	return row.model(), nil
}

func (r *StudentRepo) List(ctx context.Context, schoolID string) ([]model.Student, error) {
	q := "SELECT " + studentColumns + " FROM students"
	var args []interface{}
	if schoolID != "" {
		q += " WHERE school_id = ?"
		args = append(args, schoolID)
	}
	q += " ORDER BY created_at, id"

	var rows []studentRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "list students")
	}
	out := make([]model.Student, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

func (r *StudentRepo) Count(ctx context.Context, schoolID string) (int, error) {
	q := "SELECT COUNT(*) FROM students"
	var args []interface{}
	if schoolID != "" {
		q += " WHERE school_id = ?"
		args = append(args, schoolID)
	}
	var n int
	if err := r.db.GetContext(ctx, &n, q, args...); err != nil {
		return 0, errors.Wrap(err, "count students")
	}
	return n, nil
}

// Update applies p to the student identified by (schoolID, rfid).  When p
// renames the tag the returned student is looked up under the new rfid.
func (r *StudentRepo) Update(ctx context.Context, schoolID, rfid string, p model.StudentPatch) (model.Student, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{now()}
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	add("rfid", p.RFID)
	add("name", p.Name)
	add("admission_number", p.AdmissionNumber)
	add("parent_phone", p.ParentPhone)
	if p.ParentPhone2 != nil {
		sets = append(sets, "parent_phone2 = ?")
		args = append(args, nullable(*p.ParentPhone2))
	}
	args = append(args, schoolID, rfid)

	q := "UPDATE students SET " + strings.Join(sets, ", ") + " WHERE school_id = ? AND rfid = ?"
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		if isDuplicate(err) {
			return model.Student{}, ErrStudentExists
		}
		return model.Student{}, errors.Wrap(err, "update student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Student{}, ErrStudentNotFound
	}
	if p.RFID != nil {
		rfid = *p.RFID
	}
	return r.Get(ctx, schoolID, rfid)
}

func (r *StudentRepo) Delete(ctx context.Context, schoolID, rfid string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE school_id = ? AND rfid = ?", schoolID, rfid)
	if err != nil {
		return errors.Wrap(err, "delete student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

func (r *StudentRepo) DeleteBySchool(ctx context.Context, schoolID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE school_id = ?", schoolID)
	if err != nil {
		return 0, errors.Wrap(err, "delete students")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "rows affected")
}

// Upsert writes all students inside one transaction using multi-row
// INSERT ... ON DUPLICATE KEY UPDATE statements.  Existing rows keep their
// id, created_at and last event; parent_phone2 is only overwritten when a
// new value is supplied.
func (r *StudentRepo) Upsert(ctx context.Context, students []model.Student) (int64, error) {
	if len(students) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	for start := 0; start < len(students); start += upsertChunk {
		end := start + upsertChunk
		if end > len(students) {
			end = len(students)
		}
		batch := students[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO students (id, school_id, rfid, name, admission_number, parent_phone, parent_phone2, created_at, updated_at) VALUES `)
		args := make([]interface{}, 0, len(batch)*9)
		for i, s := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			id := s.ID
			if id == "" {
				id = uuid.NewString()
			}
			args = append(args, id, s.SchoolID, s.RFID, s.Name, s.AdmissionNumber, s.ParentPhone, s.ParentPhone2, ts, ts)
		}
		sb.WriteString(` ON DUPLICATE KEY UPDATE
            name = VALUES(name),
            admission_number = VALUES(admission_number),
            parent_phone = VALUES(parent_phone),
            parent_phone2 = COALESCE(VALUES(parent_phone2), parent_phone2),
            updated_at = VALUES(updated_at)`)

		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return 0, errors.Wrap(err, "upsert students")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	return int64(len(students)), nil
}

// SetLastEvent records the latest scan on the student row.  Unknown
// students are ignored.
func (r *StudentRepo) SetLastEvent(ctx context.Context, schoolID, rfid string, ev model.LastEvent) error {
	const q = "UPDATE students SET last_event = ?, last_event_at = ? WHERE school_id = ? AND rfid = ?"
	_, err := r.db.ExecContext(ctx, q, ev.Event, ev.Timestamp.UTC(), schoolID, rfid)
	return errors.Wrap(err, "set last event")
}
