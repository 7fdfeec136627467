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

// userRow mirrors the 'users' table.
type userRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	SchoolID     *string   `db:"school_id"`
	Email        *string   `db:"email"`
	PhoneNumber  *string   `db:"phone_number"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) model() model.User {
	return model.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		SchoolID:     r.SchoolID,
		Email:        r.Email,
		PhoneNumber:  r.PhoneNumber,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const userColumns = "id, username, password_hash, role, school_id, email, phone_number, created_at, updated_at"

type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts u.  The password must already be hashed.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	const q = `INSERT INTO users (id, username, password_hash, role, school_id, email, phone_number, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Username, u.PasswordHash, u.Role, u.SchoolID, u.Email, u.PhoneNumber, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrUsernameExists
		}
		return errors.Wrap(err, "insert user")
	}
	return nil
}

func (r *UserRepo) get(ctx context.Context, where string, arg interface{}) (model.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, errors.Wrap(err, "get user")
	}
	return row.model(), nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.get(ctx, "id = ?", id)
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.get(ctx, "username = ?", username)
}

func (r *UserRepo) list(ctx context.Context, where string, args ...interface{}) ([]model.User, error) {
	var rows []userRow
	q := "SELECT " + userColumns + " FROM users " + where + " ORDER BY created_at, id"
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	out := make([]model.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	return r.list(ctx, "")
}

func (r *UserRepo) ListAdmins(ctx context.Context, schoolID string) ([]model.User, error) {
	return r.list(ctx, "WHERE school_id = ? AND role = ?", schoolID, model.RoleAdmin)
}

// Update applies the non-nil fields of p and returns the stored user.
func (r *UserRepo) Update(ctx context.Context, id string, p model.UserPatch) (model.User, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{now()}
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	add("username", p.Username)
	add("password_hash", p.PasswordHash)
	add("role", p.Role)
	add("email", p.Email)
	add("phone_number", p.PhoneNumber)
	switch {
	case p.ClearSchool:
		sets = append(sets, "school_id = NULL")
	case p.SchoolID != nil:
		sets = append(sets, "school_id = ?")
		args = append(args, nullable(*p.SchoolID))
	}
	args = append(args, id)

	q := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrUsernameExists
		}
		return model.User{}, errors.Wrap(err, "update user")
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
