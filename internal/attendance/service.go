package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store is the remote data store the service composes queries over.
type Store interface {
	CountStudents(ctx context.Context) (int, error)
	ListByDate(ctx context.Context, date string, order Order) ([]Record, error)
	FindRecord(ctx context.Context, studentID int64, date string, session SessionType) (*Record, error)
	InsertRecord(ctx context.Context, rec Record) (Record, error)
	ListStudents(ctx context.Context) ([]Student, error)
	GetStudent(ctx context.Context, id int64) (*Student, error)
}

// Service answers the dashboard's attendance queries.
type Service struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

// NewService creates a service backed by a store. Calendar days are
// evaluated in loc.
func NewService(store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

// Today returns the current calendar day in the service location.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(DateLayout)
}

// Location is the zone used for calendar days and export times.
func (s *Service) Location() *time.Location {
	return s.loc
}

// DailyStats counts students and the day's records per session type.
// Zero counts are valid results; failures come back as errors only.
func (s *Service) DailyStats(ctx context.Context, date string) (Stats, error) {
	if _, err := ParseDate(date); err != nil {
		return Stats{}, err
	}
	total, err := s.store.CountStudents(ctx)
	if err != nil {
		return Stats{}, err
	}
	records, err := s.store.ListByDate(ctx, date, Descending)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Date: date, TotalStudents: total, TodayAttendance: len(records)}
	for _, rec := range records {
		switch rec.SessionType {
		case SessionBeforeBreak:
			stats.PresentBeforeBreak++
		case SessionEndOfDay:
			stats.PresentEndOfDay++
		}
	}
	return stats, nil
}

// List returns the day's records, newest first, narrowed by search.
func (s *Service) List(ctx context.Context, date, search string) ([]Record, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	records, err := s.store.ListByDate(ctx, date, Descending)
	if err != nil {
		return nil, err
	}
	return Filter(records, search), nil
}

// ExportRecords returns the day's records oldest first.
func (s *Service) ExportRecords(ctx context.Context, date string) ([]Record, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	return s.store.ListByDate(ctx, date, Ascending)
}

// ListStudents returns every registered student.
func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	return s.store.ListStudents(ctx)
}

// GetStudent returns one student or ErrNotFound.
func (s *Service) GetStudent(ctx context.Context, id int64) (*Student, error) {
	student, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, fmt.Errorf("student %d: %w", id, ErrNotFound)
	}
	return student, nil
}

// Filter keeps records whose student name or email contains term,
// case-insensitively. Order is preserved and an empty term keeps all.
func Filter(records []Record, term string) []Record {
	if term == "" {
		return records
	}
	needle := strings.ToLower(term)
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.StudentName), needle) ||
			strings.Contains(strings.ToLower(rec.StudentEmail), needle) {
			out = append(out, rec)
		}
	}
	return out
}

// MarkResult is the outcome of a manual check-in.
type MarkResult struct {
	Record        Record `json:"record"`
	AlreadyMarked bool   `json:"already_marked"`
}

// Mark records a manual check-in for studentID at the given instant. The
// checkpoint is derived from the local hour; a second mark for the same
// student, day and checkpoint returns the existing record.
func (s *Service) Mark(ctx context.Context, studentID int64, at time.Time) (MarkResult, error) {
	if at.IsZero() {
		at = s.now()
	}
	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return MarkResult{}, err
	}
	if student == nil {
		return MarkResult{}, fmt.Errorf("student %d: %w", studentID, ErrNotFound)
	}

	local := at.In(s.loc)
	date := local.Format(DateLayout)
	session := SessionFor(local)

	existing, err := s.store.FindRecord(ctx, studentID, date, session)
	if err != nil {
		return MarkResult{}, err
	}
	if existing != nil {
		existing.StudentName, existing.StudentEmail, existing.StudentPhone = student.Name, student.Email, student.Phone
		return MarkResult{Record: *existing, AlreadyMarked: true}, nil
	}

	rec, err := s.store.InsertRecord(ctx, Record{
		StudentID:   studentID,
		SessionType: session,
		Timestamp:   at.UTC(),
		Date:        date,
	})
	if err != nil {
		return MarkResult{}, err
	}
	rec.StudentName, rec.StudentEmail, rec.StudentPhone = student.Name, student.Email, student.Phone
	return MarkResult{Record: rec}, nil
}
