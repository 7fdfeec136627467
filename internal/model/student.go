package model

import "time"

// Attendance event kinds.
const (
	EventIn  = "in"
	EventOut = "out"
)

// ValidEvent reports whether e is a known attendance event.
func ValidEvent(e string) bool {
	return e == EventIn || e == EventOut
}

// LastEvent is the most recent attendance event seen for a student.
type LastEvent struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// Student is a pupil identified by an RFID tag.  A tag is only unique
// within its school, so (SchoolID, RFID) is the natural key.
//
// Fields:
//  ID              – surrogate identifier (UUID).
//  SchoolID        – owning school.
//  RFID            – tag value, unique per school.
//  Name            – student's full name.
//  AdmissionNumber – school-issued admission number.
//  ParentPhone     – primary parent contact for notifications.
//  ParentPhone2    – optional secondary parent contact.
//  LastEvent       – most recent in/out scan, nil until the first scan.
//  CreatedAt       – timestamp of creation.
//  UpdatedAt       – timestamp of last update.
type Student struct {
	ID              string     `json:"id"`                     // students.id
	SchoolID        string     `json:"schoolId"`               // students.school_id
	RFID            string     `json:"rfid"`                   // students.rfid
	Name            string     `json:"name"`                   // students.name
	AdmissionNumber string     `json:"admissionNumber"`        // students.admission_number
	ParentPhone     string     `json:"parentPhone"`            // students.parent_phone
	ParentPhone2    *string    `json:"parentPhone2,omitempty"` // students.parent_phone2 (nullable)
	LastEvent       *LastEvent `json:"lastEvent,omitempty"`    // students.last_event + last_event_at
	CreatedAt       time.Time  `json:"createdAt"`              // students.created_at
	UpdatedAt       time.Time  `json:"updatedAt"`              // students.updated_at
}

// ParentPhones lists the non-empty parent contacts, primary first.
func (s Student) ParentPhones() []string {
	out := []string{s.ParentPhone}
	if s.ParentPhone2 != nil && *s.ParentPhone2 != "" && *s.ParentPhone2 != s.ParentPhone {
		out = append(out, *s.ParentPhone2)
	}
	return out
}

// StudentPatch carries the fields of a partial student update.  The
// school is part of the key and cannot be changed.
type StudentPatch struct {
	RFID            *string
	Name            *string
	AdmissionNumber *string
	ParentPhone     *string
	ParentPhone2    *string
}

// Empty reports whether the patch changes nothing.
func (p StudentPatch) Empty() bool {
	return p.RFID == nil && p.Name == nil && p.AdmissionNumber == nil && p.ParentPhone == nil && p.ParentPhone2 == nil
}
