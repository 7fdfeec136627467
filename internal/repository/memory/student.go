package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
)

type studentStore struct{ db *DB }

// NewStudentStore returns a StudentStore over db.
func NewStudentStore(db *DB) repository.StudentStore { return &studentStore{db: db} }

func (s *studentStore) Create(_ context.Context, st *model.Student) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	key := studentKey{st.SchoolID, st.RFID}
	if _, ok := s.db.students[key]; ok {
		return repository.ErrStudentExists
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.CreatedAt = now()
	st.UpdatedAt = st.CreatedAt
	s.db.students[key] = &studentRecord{seq: s.db.next(), Student: *st}
	return nil
}

func (s *studentStore) Get(_ context.Context, schoolID, rfid string) (model.Student, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	if rec, ok := s.db.students[studentKey{schoolID, rfid}]; ok {
		return rec.Student, nil
	}
	return model.Student{}, repository.ErrStudentNotFound
}

func (s *studentStore) List(_ context.Context, schoolID string) ([]model.Student, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	recs := make([]*studentRecord, 0, len(s.db.students))
	for k, rec := range s.db.students {
		if schoolID == "" || k.schoolID == schoolID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]model.Student, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Student)
	}
	return out, nil
}

func (s *studentStore) Count(_ context.Context, schoolID string) (int, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	if schoolID == "" {
		return len(s.db.students), nil
	}
	n := 0
	for k := range s.db.students {
		if k.schoolID == schoolID {
			n++
		}
	}
	return n, nil
}

func (s *studentStore) Update(_ context.Context, schoolID, rfid string, p model.StudentPatch) (model.Student, error) {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	key := studentKey{schoolID, rfid}
	rec, ok := s.db.students[key]
	if !ok {
		return model.Student{}, repository.ErrStudentNotFound
	}
	if p.RFID != nil && *p.RFID != rfid {
		newKey := studentKey{schoolID, *p.RFID}
		if _, taken := s.db.students[newKey]; taken {
			return model.Student{}, repository.ErrStudentExists
		}
		delete(s.db.students, key)
		s.db.students[newKey] = rec
		rec.RFID = *p.RFID
	}
	if p.Name != nil {
		rec.Name = *p.Name
	}
	if p.AdmissionNumber != nil {
		rec.AdmissionNumber = *p.AdmissionNumber
	}
	if p.ParentPhone != nil {
		rec.ParentPhone = *p.ParentPhone
	}
	if p.ParentPhone2 != nil {
		rec.ParentPhone2 = optional(*p.ParentPhone2)
	}
	rec.UpdatedAt = now()
	return rec.Student, nil
}

func (s *studentStore) Delete(_ context.Context, schoolID, rfid string) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	key := studentKey{schoolID, rfid}
	if _, ok := s.db.students[key]; !ok {
		return repository.ErrStudentNotFound
	}
	delete(s.db.students, key)
	return nil
}

func (s *studentStore) DeleteBySchool(_ context.Context, schoolID string) (int64, error) {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	var n int64
	for k := range s.db.students {
		if k.schoolID == schoolID {
			delete(s.db.students, k)
			n++
		}
	}
	return n, nil
}

// Upsert applies the whole batch under one lock, mirroring the SQL
// statement's ON DUPLICATE KEY UPDATE column list.
func (s *studentStore) Upsert(_ context.Context, students []model.Student) (int64, error) {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	ts := now()
	for _, st := range students {
		key := studentKey{st.SchoolID, st.RFID}
		if rec, ok := s.db.students[key]; ok {
			rec.Name = st.Name
			rec.AdmissionNumber = st.AdmissionNumber
			rec.ParentPhone = st.ParentPhone
			if st.ParentPhone2 != nil {
				rec.ParentPhone2 = st.ParentPhone2
			}
			rec.UpdatedAt = ts
			continue
		}
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		st.LastEvent = nil
		st.CreatedAt, st.UpdatedAt = ts, ts
		s.db.students[key] = &studentRecord{seq: s.db.next(), Student: st}
	}
	return int64(len(students)), nil
}

func (s *studentStore) SetLastEvent(_ context.Context, schoolID, rfid string, ev model.LastEvent) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	if rec, ok := s.db.students[studentKey{schoolID, rfid}]; ok {
		ev.Timestamp = ev.Timestamp.UTC()
		rec.LastEvent = &ev
	}
	return nil
}
