package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
)

type schoolStore struct{ db *DB }

// NewSchoolStore returns a SchoolStore over db.
func NewSchoolStore(db *DB) repository.SchoolStore { return &schoolStore{db: db} }

// nameTaken compares names the way the SQL collation does.  Callers hold
// a lock.
func (s *schoolStore) nameTaken(name, excludeID string) bool {
	name = strings.TrimSpace(name)
	for id, rec := range s.db.schools {
		if id != excludeID && strings.EqualFold(rec.Name, name) {
			return true
		}
	}
	return false
}

func (s *schoolStore) Create(_ context.Context, sc *model.School) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	if s.nameTaken(sc.Name, "") {
		return repository.ErrSchoolNameExists
	}
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	sc.CreatedAt = now()
	sc.UpdatedAt = sc.CreatedAt
	s.db.schools[sc.ID] = &schoolRecord{seq: s.db.next(), School: *sc}
	return nil
}

func (s *schoolStore) GetByID(_ context.Context, id string) (model.School, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	if rec, ok := s.db.schools[id]; ok {
		return rec.School, nil
	}
	return model.School{}, repository.ErrSchoolNotFound
}

func (s *schoolStore) NameTaken(_ context.Context, name, excludeID string) (bool, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()
	return s.nameTaken(name, excludeID), nil
}

func (s *schoolStore) List(_ context.Context) ([]model.School, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	recs := make([]*schoolRecord, 0, len(s.db.schools))
	for _, rec := range s.db.schools {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]model.School, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.School)
	}
	return out, nil
}

func (s *schoolStore) Update(_ context.Context, id string, p model.SchoolPatch) (model.School, error) {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	rec, ok := s.db.schools[id]
	if !ok {
		return model.School{}, repository.ErrSchoolNotFound
	}
	if p.Name != nil && s.nameTaken(*p.Name, id) {
		return model.School{}, repository.ErrSchoolNameExists
	}
	if p.Name != nil {
		rec.Name = *p.Name
	}
	if p.LogoURL != nil {
		rec.LogoURL = strPtr(*p.LogoURL)
	}
	if p.Address != nil {
		rec.Address = strPtr(*p.Address)
	}
	if p.AdminID != nil {
		rec.AdminID = optional(*p.AdminID)
	}
	if p.Disabled != nil {
		rec.Disabled = *p.Disabled
	}
	rec.UpdatedAt = now()
	return rec.School, nil
}

func (s *schoolStore) Delete(_ context.Context, id string) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	if _, ok := s.db.schools[id]; !ok {
		return repository.ErrSchoolNotFound
	}
	delete(s.db.schools, id)
	for k := range s.db.students {
		if k.schoolID == id {
			delete(s.db.students, k)
		}
	}
	att := s.db.attendance[:0]
	for _, a := range s.db.attendance {
		if a.SchoolID != id {
			att = append(att, a)
		}
	}
	s.db.attendance = att
	msgs := s.db.messages[:0]
	for _, m := range s.db.messages {
		if m.SchoolID != id {
			msgs = append(msgs, m)
		}
	}
	s.db.messages = msgs
	return nil
}
