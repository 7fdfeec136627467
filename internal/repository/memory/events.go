package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
)

type attendanceStore struct{ db *DB }

// NewAttendanceStore returns an AttendanceStore over db.
func NewAttendanceStore(db *DB) repository.AttendanceStore { return &attendanceStore{db: db} }

func (s *attendanceStore) Append(_ context.Context, a *model.Attendance) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = now()
	}
	s.db.attendance = append(s.db.attendance, *a)
	return nil
}

func (s *attendanceStore) Count(_ context.Context, f repository.EventFilter) (int, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	n := 0
	for _, a := range s.db.attendance {
		if f.Match(a) {
			n++
		}
	}
	return n, nil
}

func (s *attendanceStore) List(_ context.Context, f repository.EventFilter, limit int) ([]model.Attendance, error) {
	s.db.mutex.RLock()
	out := make([]model.Attendance, 0)
	for _, a := range s.db.attendance {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	s.db.mutex.RUnlock()

	// newest first; ties keep arrival order
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type messageStore struct{ db *DB }

// NewMessageStore returns a MessageStore over db.
func NewMessageStore(db *DB) repository.MessageStore { return &messageStore{db: db} }

func (s *messageStore) Append(_ context.Context, m *model.Message) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now()
	}
	s.db.messages = append(s.db.messages, *m)
	return nil
}

func (s *messageStore) Count(_ context.Context, f repository.MessageFilter) (int, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	n := 0
	for _, m := range s.db.messages {
		if f.Match(m) {
			n++
		}
	}
	return n, nil
}

func (s *messageStore) List(_ context.Context, f repository.MessageFilter, limit int) ([]model.Message, error) {
	s.db.mutex.RLock()
	out := make([]model.Message, 0)
	for _, m := range s.db.messages {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	s.db.mutex.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
