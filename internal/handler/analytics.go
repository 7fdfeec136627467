package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
)

// Analytics is the metrics document returned for one school or for all
// schools.  Nothing is cached; every request counts again.
type Analytics struct {
	TotalStudents int `json:"totalStudents"`

	AttendanceToday    int `json:"attendanceToday"`
	LastWeekAttendance int `json:"lastWeekAttendance"`
	InCount            int `json:"inCount"`
	OutCount           int `json:"outCount"`

	TotalMessages    int `json:"totalMessages"`
	MessagesToday    int `json:"messagesToday"`
	LastWeekMessages int `json:"lastWeekMessages"`
	SentCount        int `json:"sentCount"`
	FailedCount      int `json:"failedCount"`

	LastUpdate time.Time `json:"lastUpdate"`
}

// AnalyticsHandler serves /analytics.  Location decides where "today"
// starts and ends; Now is overridable in tests.
type AnalyticsHandler struct {
	Students   repository.StudentStore
	Attendance repository.AttendanceStore
	Messages   repository.MessageStore
	Location   *time.Location
	Now        func() time.Time
	Timeout    time.Duration
}

func NewAnalyticsHandler(st repository.StudentStore, a repository.AttendanceStore, m repository.MessageStore, loc *time.Location, timeout time.Duration) *AnalyticsHandler {
	if loc == nil {
		loc = time.Local
	}
	return &AnalyticsHandler{Students: st, Attendance: a, Messages: m, Location: loc, Now: time.Now, Timeout: timeout}
}

// School handles GET /analytics/:schoolId.
func (h *AnalyticsHandler) School(c echo.Context) error {
	return h.respond(c, c.Param("schoolId"))
}

// Global handles GET /analytics/superadmin/all.
func (h *AnalyticsHandler) Global(c echo.Context) error {
	return h.respond(c, "")
}

func (h *AnalyticsHandler) respond(c echo.Context, schoolID string) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	a, err := h.Compute(ctx, schoolID)
	if err != nil {
		return errors.Wrap(err, "compute analytics")
	}
	return c.JSON(http.StatusOK, a)
}

// Compute counts the metrics for schoolID, or for every school when
// schoolID is empty.  Today is local midnight to the next midnight; the
// last week is the seven days up to now.
func (h *AnalyticsHandler) Compute(ctx context.Context, schoolID string) (Analytics, error) {
	now := h.Now().In(h.Location)
	y, m, d := now.Date()
	today := repository.Window{
		From: time.Date(y, m, d, 0, 0, 0, 0, h.Location),
		To:   time.Date(y, m, d+1, 0, 0, 0, 0, h.Location),
	}
	week := repository.Window{From: now.AddDate(0, 0, -7)}

	a := Analytics{LastUpdate: now}
	var err error
	count := func(dst *int, f func() (int, error)) {
		if err != nil {
			return
		}
		*dst, err = f()
	}
	events := func(f repository.EventFilter) func() (int, error) {
		f.SchoolID = schoolID
		return func() (int, error) { return h.Attendance.Count(ctx, f) }
	}
	messages := func(f repository.MessageFilter) func() (int, error) {
		f.SchoolID = schoolID
		return func() (int, error) { return h.Messages.Count(ctx, f) }
	}

	count(&a.TotalStudents, func() (int, error) { return h.Students.Count(ctx, schoolID) })
	count(&a.AttendanceToday, events(repository.EventFilter{Window: today}))
	count(&a.LastWeekAttendance, events(repository.EventFilter{Window: week}))
	count(&a.InCount, events(repository.EventFilter{Event: model.EventIn}))
	count(&a.OutCount, events(repository.EventFilter{Event: model.EventOut}))
	count(&a.TotalMessages, messages(repository.MessageFilter{}))
	count(&a.MessagesToday, messages(repository.MessageFilter{Window: today}))
	count(&a.LastWeekMessages, messages(repository.MessageFilter{Window: week}))
	count(&a.SentCount, messages(repository.MessageFilter{Status: model.MessageSent}))
	count(&a.FailedCount, messages(repository.MessageFilter{Status: model.MessageFailed}))
	if err != nil {
		return Analytics{}, err
	}
	return a, nil
}
