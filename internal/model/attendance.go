package model

import "time"

// Message delivery outcomes.
const (
	MessageSent   = "sent"
	MessageFailed = "failed"
)

// Attendance is one RFID scan (or manual mark) at a school gate.  Rows
// are append-only.
//
// Fields:
//  ID          – primary key identifier (UUID).
//  SchoolID    – school where the scan happened.
//  RFID        – scanned tag.
//  StudentName – resolved student name, nil for unknown tags.
//  Event       – in or out.
//  Manual      – true when entered by an operator instead of a reader.
//  Timestamp   – when the event happened.
type Attendance struct {
	ID          string    `json:"id"`                    // attendance.id
	SchoolID    string    `json:"schoolId"`              // attendance.school_id
	RFID        string    `json:"rfid"`                  // attendance.rfid
	StudentName *string   `json:"studentName,omitempty"` // attendance.student_name (nullable)
	Event       string    `json:"event"`                 // attendance.event
	Manual      bool      `json:"manual"`                // attendance.manual
	Timestamp   time.Time `json:"timestamp"`             // attendance.timestamp
}

// Message is an SMS-style notification sent to a parent.  Rows are
// append-only.
type Message struct {
	ID          string    `json:"id"`                    // messages.id
	SchoolID    string    `json:"schoolId"`              // messages.school_id
	RFID        string    `json:"rfid"`                  // messages.rfid
	StudentName *string   `json:"studentName,omitempty"` // messages.student_name (nullable)
	PhoneNumber string    `json:"phoneNumber"`           // messages.phone_number
	Body        string    `json:"message"`               // messages.message
	Status      string    `json:"status"`                // messages.status
	Timestamp   time.Time `json:"timestamp"`             // messages.timestamp
}
