package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
)

type userStore struct{ db *DB }

// NewUserStore returns a UserStore over db.
func NewUserStore(db *DB) repository.UserStore { return &userStore{db: db} }

// usernameTaken is case-sensitive like the utf8mb4_bin column.
func (s *userStore) usernameTaken(username, excludeID string) bool {
	for id, rec := range s.db.users {
		if id != excludeID && rec.Username == username {
			return true
		}
	}
	return false
}

func (s *userStore) Create(_ context.Context, u *model.User) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	if s.usernameTaken(u.Username, "") {
		return repository.ErrUsernameExists
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	s.db.users[u.ID] = &userRecord{seq: s.db.next(), User: *u}
	return nil
}

func (s *userStore) GetByID(_ context.Context, id string) (model.User, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	if rec, ok := s.db.users[id]; ok {
		return rec.User, nil
	}
	return model.User{}, repository.ErrUserNotFound
}

func (s *userStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	for _, rec := range s.db.users {
		if rec.Username == username {
			return rec.User, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (s *userStore) query(keep func(model.User) bool) []model.User {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	recs := make([]*userRecord, 0, len(s.db.users))
	for _, rec := range s.db.users {
		if keep(rec.User) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]model.User, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.User)
	}
	return out
}

func (s *userStore) List(_ context.Context) ([]model.User, error) {
	return s.query(func(model.User) bool { return true }), nil
}

func (s *userStore) ListAdmins(_ context.Context, schoolID string) ([]model.User, error) {
	return s.query(func(u model.User) bool {
		return u.Role == model.RoleAdmin && u.School() == schoolID
	}), nil
}

func (s *userStore) Update(_ context.Context, id string, p model.UserPatch) (model.User, error) {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	rec, ok := s.db.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	if p.Username != nil && s.usernameTaken(*p.Username, id) {
		return model.User{}, repository.ErrUsernameExists
	}
	if p.Username != nil {
		rec.Username = *p.Username
	}
	if p.PasswordHash != nil {
		rec.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		rec.Role = *p.Role
	}
	if p.Email != nil {
		rec.Email = strPtr(*p.Email)
	}
	if p.PhoneNumber != nil {
		rec.PhoneNumber = strPtr(*p.PhoneNumber)
	}
	switch {
	case p.ClearSchool:
		rec.SchoolID = nil
	case p.SchoolID != nil:
		rec.SchoolID = optional(*p.SchoolID)
	}
	rec.UpdatedAt = now()
	return rec.User, nil
}

func (s *userStore) Delete(_ context.Context, id string) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	if _, ok := s.db.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.db.users, id)
	return nil
}
