package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/queue"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

var errInvalidEvent = badRequest("event must be one of: in, out")

// EventPublisher hands an attendance event to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AttendanceEvent) error
}

// EventRecorder records an attendance event immediately.
type EventRecorder interface {
	Record(ctx context.Context, ev queue.AttendanceEvent) (model.Attendance, error)
}

// AttendanceHandler serves /attendance and /messages.  When Publisher is
// nil, or publishing fails, manual events are recorded in-process.
type AttendanceHandler struct {
	Schools    repository.SchoolStore
	Attendance repository.AttendanceStore
	Messages   repository.MessageStore
	Publisher  EventPublisher
	Recorder   EventRecorder
	Now        func() time.Time
	Timeout    time.Duration
}

type markReq struct {
	RFID  string `json:"rfid" validate:"required"`
	Event string `json:"event" validate:"required"`
}

// Mark handles POST /attendance/:schoolId.
func (h *AttendanceHandler) Mark(c echo.Context) error {
	var req markReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	req.RFID = strings.TrimSpace(req.RFID)
	req.Event = strings.ToLower(strings.TrimSpace(req.Event))
	if err := c.Validate(&req); err != nil {
		return err
	}
	if !model.ValidEvent(req.Event) {
		return errInvalidEvent
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	schoolID := c.Param("schoolId")
	if err := requireSchool(ctx, h.Schools, schoolID); err != nil {
		return err
	}

	ev := queue.AttendanceEvent{
		SchoolID:  schoolID,
		RFID:      req.RFID,
		Event:     req.Event,
		Manual:    true,
		Timestamp: h.now().UTC().Truncate(time.Millisecond),
	}
	if h.Publisher != nil {
		err := h.Publisher.Publish(ctx, ev)
		if err == nil {
			return c.JSON(http.StatusAccepted, echo.Map{"message": "Attendance event queued", "event": ev})
		}
		c.Logger().Warnf("attendance: publish failed, recording inline: %v", err)
	}

	a, err := h.Recorder.Record(ctx, ev)
	if err != nil {
		return errors.Wrap(err, "record attendance")
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Attendance recorded", "attendance": a})
}

// List handles GET /attendance/:schoolId?limit=&event=.
func (h *AttendanceHandler) List(c echo.Context) error {
	f := repository.EventFilter{SchoolID: c.Param("schoolId")}
	if ev := strings.ToLower(c.QueryParam("event")); ev != "" {
		if !model.ValidEvent(ev) {
			return errInvalidEvent
		}
		f.Event = ev
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	rows, err := h.Attendance.List(ctx, f, queryLimit(c, defaultListLimit, maxListLimit))
	if err != nil {
		return errors.Wrap(err, "list attendance")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": len(rows), "attendance": rows})
}

// ListMessages handles GET /messages/:schoolId?limit=&status=.
func (h *AttendanceHandler) ListMessages(c echo.Context) error {
	f := repository.MessageFilter{SchoolID: c.Param("schoolId")}
	switch st := strings.ToLower(c.QueryParam("status")); st {
	case "":
	case model.MessageSent, model.MessageFailed:
		f.Status = st
	default:
		return badRequest("status must be one of: sent, failed")
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	rows, err := h.Messages.List(ctx, f, queryLimit(c, defaultListLimit, maxListLimit))
	if err != nil {
		return errors.Wrap(err, "list messages")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": len(rows), "messages": rows})
}

func (h *AttendanceHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
