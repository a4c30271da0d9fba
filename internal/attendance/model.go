package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for the attendance date column.
const DateLayout = "2006-01-02"

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateStudent = errors.New("student id already registered")
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
	ErrInvalidSession   = errors.New("unknown session type")
)

// SessionType is one of the two daily checkpoints.
type SessionType string

const (
	SessionBeforeBreak SessionType = "before_break"
	SessionEndOfDay    SessionType = "end_of_day"
)

// Valid reports whether s is a known checkpoint.
func (s SessionType) Valid() bool {
	return s == SessionBeforeBreak || s == SessionEndOfDay
}

// Label is the human-readable form ("before break").
func (s SessionType) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// SessionFor picks the checkpoint for a capture instant: mornings count as
// before the break, everything from noon on as end of day.
func SessionFor(t time.Time) SessionType {
	if t.Hour() < 12 {
		return SessionBeforeBreak
	}
	return SessionEndOfDay
}

// Order of the timestamp column in listings.
type Order int

const (
	Descending Order = iota
	Ascending
)

// Student is a registered student.
type Student struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	FaceDescriptor *string   `json:"face_descriptor,omitempty"`
	ImageURL       *string   `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Record is one attendance row joined with its student. The joined fields
// are empty when the student row is missing.
type Record struct {
	ID           string      `json:"id"`
	StudentID    int64       `json:"student_id"`
	SessionType  SessionType `json:"session_type"`
	Timestamp    time.Time   `json:"timestamp"`
	Date         string      `json:"date"`
	CreatedAt    time.Time   `json:"created_at"`
	StudentName  string      `json:"student_name"`
	StudentEmail string      `json:"student_email"`
	StudentPhone string      `json:"student_phone"`
}

// Stats are the dashboard counters for one day.
type Stats struct {
	Date               string `json:"date"`
	TotalStudents      int    `json:"total_students"`
	PresentBeforeBreak int    `json:"present_before_break"`
	PresentEndOfDay    int    `json:"present_end_of_day"`
	TodayAttendance    int    `json:"today_attendance"`
}

// ParseDate validates a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}
