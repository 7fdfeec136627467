// Package service holds the attendance pipeline shared by the HTTP
// endpoint and the queue consumer.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/queue"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
)

// Notifier delivers a text message to a parent's phone.
type Notifier interface {
	Notify(ctx context.Context, phone, body string) error
}

// LogNotifier "delivers" messages by logging them.  It stands in for an
// SMS gateway.
type LogNotifier struct {
	Logger echo.Logger
}

func (n LogNotifier) Notify(_ context.Context, phone, body string) error {
	n.Logger.Infof("notify %s: %s", phone, body)
	return nil
}

// AttendanceService records scans.  Location controls how times are
// printed in parent messages; Now is overridable in tests.
type AttendanceService struct {
	Students   repository.StudentStore
	Attendance repository.AttendanceStore
	Messages   repository.MessageStore
	Notifier   Notifier
	Logger     echo.Logger
	Location   *time.Location
	Now        func() time.Time
}

// Record validates ev, appends it to the attendance log and, for a known
// student, updates the student's last event and notifies every parent
// phone.  Each notification attempt is logged as a message with status
// sent or failed; a failed notification does not fail the call.
func (s *AttendanceService) Record(ctx context.Context, ev queue.AttendanceEvent) (model.Attendance, error) {
	if err := ev.Validate(); err != nil {
		return model.Attendance{}, err
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}

	var student *model.Student
	st, err := s.Students.Get(ctx, ev.SchoolID, ev.RFID)
	switch {
	case err == nil:
		student = &st
	case errors.Is(err, repository.ErrStudentNotFound):
		s.Logger.Warnf("attendance: unknown rfid %s at school %s", ev.RFID, ev.SchoolID)
	default:
		return model.Attendance{}, errors.Wrap(err, "lookup student")
	}

	a := model.Attendance{
		SchoolID:  ev.SchoolID,
		RFID:      ev.RFID,
		Event:     ev.Event,
		Manual:    ev.Manual,
		Timestamp: ev.Timestamp,
	}
	if student != nil {
		a.StudentName = &student.Name
	}
	if err := s.Attendance.Append(ctx, &a); err != nil {
		return model.Attendance{}, errors.Wrap(err, "append attendance")
	}
	if student == nil {
		return a, nil
	}

	last := model.LastEvent{Event: ev.Event, Timestamp: ev.Timestamp}
	if err := s.Students.SetLastEvent(ctx, ev.SchoolID, ev.RFID, last); err != nil {
		return a, errors.Wrap(err, "set last event")
	}

	body := s.compose(*student, ev)
	for _, phone := range student.ParentPhones() {
		status := model.MessageSent
		if err := s.Notifier.Notify(ctx, phone, body); err != nil {
			s.Logger.Errorf("attendance: notify %s failed: %v", phone, err)
			status = model.MessageFailed
		}
		m := model.Message{
			SchoolID:    ev.SchoolID,
			RFID:        ev.RFID,
			StudentName: &student.Name,
			PhoneNumber: phone,
			Body:        body,
			Status:      status,
			Timestamp:   s.now(),
		}
		if err := s.Messages.Append(ctx, &m); err != nil {
			return a, errors.Wrap(err, "append message")
		}
	}
	return a, nil
}

// Handle adapts Record to the queue consumer.
func (s *AttendanceService) Handle(ctx context.Context, ev queue.AttendanceEvent) error {
	_, err := s.Record(ctx, ev)
	return err
}

func (s *AttendanceService) compose(st model.Student, ev queue.AttendanceEvent) string {
	verb := "arrived at"
	if ev.Event == model.EventOut {
		verb = "left"
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	at := ev.Timestamp.In(loc)
	return fmt.Sprintf("Dear parent, %s (adm. %s) %s school at %s on %s.",
		st.Name, st.AdmissionNumber, verb, at.Format("15:04"), at.Format("02 Jan 2006"))
}

func (s *AttendanceService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
