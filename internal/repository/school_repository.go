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

// schoolRow mirrors the `schools` table.
type schoolRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	LogoURL   *string   `db:"logo_url"`
	Address   *string   `db:"address"`
	AdminID   *string   `db:"admin_id"`
	Disabled  bool      `db:"disabled"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r schoolRow) model() model.School {
	return model.School{
		ID:        r.ID,
		Name:      r.Name,
		LogoURL:   r.LogoURL,
		Address:   r.Address,
		AdminID:   r.AdminID,
		Disabled:  r.Disabled,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const schoolColumns = "id, name, logo_url, address, admin_id, disabled, created_at, updated_at"

// SchoolRepo is the MySQL SchoolStore.  Name uniqueness is enforced by
// the uq_schools_name index on a case-insensitive collation.
type SchoolRepo struct{ db *sqlx.DB }

func NewSchoolRepo(db *sqlx.DB) *SchoolRepo { return &SchoolRepo{db: db} }

// Create inserts s, assigning its id and timestamps.
func (r *SchoolRepo) Create(ctx context.Context, s *model.School) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = now()
	s.UpdatedAt = s.CreatedAt
	const q = `INSERT INTO schools (id, name, logo_url, address, admin_id, disabled, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.Name, s.LogoURL, s.Address, s.AdminID, s.Disabled, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrSchoolNameExists
		}
		return errors.Wrap(err, "insert school")
	}
	return nil
}

func (r *SchoolRepo) GetByID(ctx context.Context, id string) (model.School, error) {
	var row schoolRow
	err := r.db.GetContext(ctx, &row, "SELECT "+schoolColumns+" FROM schools WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.School{}, ErrSchoolNotFound
		}
		return model.School{}, errors.Wrap(err, "get school")
	}
	return row.model(), nil
}

// NameTaken relies on the column collation for the case-insensitive
// comparison.
func (r *SchoolRepo) NameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM schools WHERE name = ? AND id <> ?", strings.TrimSpace(name), excludeID)
	if err != nil {
		return false, errors.Wrap(err, "check school name")
	}
	return n > 0, nil
}

func (r *SchoolRepo) List(ctx context.Context) ([]model.School, error) {
	var rows []schoolRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT "+schoolColumns+" FROM schools ORDER BY created_at, id"); err != nil {
		return nil, errors.Wrap(err, "list schools")
	}
	out := make([]model.School, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

// Update applies the non-nil fields of p and returns the stored school.
func (r *SchoolRepo) Update(ctx context.Context, id string, p model.SchoolPatch) (model.School, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{now()}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.LogoURL != nil {
		sets = append(sets, "logo_url = ?")
		args = append(args, *p.LogoURL)
	}
	if p.Address != nil {
		sets = append(sets, "address = ?")
		args = append(args, *p.Address)
	}
	if p.AdminID != nil {
		sets = append(sets, "admin_id = ?")
		args = append(args, nullable(*p.AdminID))
	}
	if p.Disabled != nil {
		sets = append(sets, "disabled = ?")
		args = append(args, *p.Disabled)
	}
	args = append(args, id)

	q := "UPDATE schools SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		if isDuplicate(err) {
			return model.School{}, ErrSchoolNameExists
		}
		return model.School{}, errors.Wrap(err, "update school")
	}
	return r.GetByID(ctx, id)
}

// Delete removes the school and everything it owns in one transaction.
func (r *SchoolRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		"DELETE FROM messages WHERE school_id = ?",
		"DELETE FROM attendance WHERE school_id = ?",
		"DELETE FROM students WHERE school_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return errors.Wrap(err, "delete school dependents")
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM schools WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "delete school")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSchoolNotFound
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// nullable maps "" to SQL NULL for optional references.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
