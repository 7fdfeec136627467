// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/model"
)

// ErrInvalidEvent marks an event that can never be recorded, however
// often it is retried.
var ErrInvalidEvent = errors.New("invalid attendance event")

// AttendanceEvent is published by RFID gate readers (and by the manual
// attendance endpoint) every time a tag is scanned.  It carries enough to
// record the scan without a second lookup on the producer side.
type AttendanceEvent struct {
	SchoolID  string    `json:"schoolId"`
	RFID      string    `json:"rfid"`
	Event     string    `json:"event"`
	Manual    bool      `json:"manual"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate normalises the event and reports the first problem found.  A
// zero timestamp is left for the consumer to fill in.
func (e *AttendanceEvent) Validate() error {
	e.SchoolID = strings.TrimSpace(e.SchoolID)
	e.RFID = strings.TrimSpace(e.RFID)
	e.Event = strings.ToLower(strings.TrimSpace(e.Event))
	switch {
	case e.SchoolID == "":
		return errors.Wrap(ErrInvalidEvent, "schoolId is required")
	case e.RFID == "":
		return errors.Wrap(ErrInvalidEvent, "rfid is required")
	case !model.ValidEvent(e.Event):
		return errors.Wrapf(ErrInvalidEvent, "event %q", e.Event)
	}
	return nil
}

// Decode unmarshals and validates a delivery body.
func Decode(body []byte) (AttendanceEvent, error) {
	var ev AttendanceEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, errors.Wrapf(ErrInvalidEvent, "unmarshal: %v", err)
	}
	if err := ev.Validate(); err != nil {
		return ev, err
	}
	return ev, nil
}
