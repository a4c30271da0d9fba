package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"attendconsole/internal/attendance"
	"attendconsole/internal/export"
	"attendconsole/internal/recognition"
	"attendconsole/internal/registration"
)

type fakeAttendance struct {
	stats    attendance.Stats
	records  []attendance.Record
	students []attendance.Student
	mark     attendance.MarkResult
	err      error

	gotDate   string
	gotSearch string
}

func (f *fakeAttendance) Today() string { return "2024-01-10" }

func (f *fakeAttendance) DailyStats(ctx context.Context, date string) (attendance.Stats, error) {
	f.gotDate = date
	if f.err != nil {
		return attendance.Stats{}, f.err
	}
	s := f.stats
	s.Date = date
	return s, nil
}

func (f *fakeAttendance) List(ctx context.Context, date, search string) ([]attendance.Record, error) {
	f.gotDate, f.gotSearch = date, search
	return f.records, f.err
}

func (f *fakeAttendance) ListStudents(ctx context.Context) ([]attendance.Student, error) {
	return f.students, f.err
}

func (f *fakeAttendance) GetStudent(ctx context.Context, id int64) (*attendance.Student, error) {
	for _, st := range f.students {
		if st.ID == id {
			return &st, nil
		}
	}
	return nil, fmt.Errorf("student %d: %w", id, attendance.ErrNotFound)
}

func (f *fakeAttendance) Mark(ctx context.Context, studentID int64, at time.Time) (attendance.MarkResult, error) {
	if f.err != nil {
		return attendance.MarkResult{}, f.err
	}
	return f.mark, nil
}

type fakeDashboard struct {
	mu        sync.Mutex
	date      string
	refreshes int
	active    bool
	toggleErr error
	resetErr  error
}

func (f *fakeDashboard) Date() string {
	if f.date == "" {
		return "2024-01-10"
	}
	return f.date
}

func (f *fakeDashboard) SetDate(ctx context.Context, date string) error {
	if date != "" {
		if _, err := attendance.ParseDate(date); err != nil {
			return err
		}
	}
	f.date = date
	return nil
}

func (f *fakeDashboard) Refresh() {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
}

func (f *fakeDashboard) Snapshot() (attendance.Stats, bool) {
	return attendance.Stats{Date: f.Date(), TotalStudents: 2}, true
}

func (f *fakeDashboard) Active() bool { return f.active }

func (f *fakeDashboard) Recognition() recognition.Display {
	return recognition.Display{Phase: recognition.PhaseIdle, Status: recognition.StatusReady}
}

func (f *fakeDashboard) ToggleRecognition(ctx context.Context) (*recognition.ToggleResult, error) {
	if f.toggleErr != nil {
		return nil, f.toggleErr
	}
	f.active = !f.active
	return &recognition.ToggleResult{Active: f.active, Message: "ok"}, nil
}

func (f *fakeDashboard) ResetRecognition(ctx context.Context) error { return f.resetErr }

type fakeExporter struct {
	block   chan struct{}
	started chan struct{}
	sheet   *export.SheetResult
	err     error
}

func (f *fakeExporter) XLSX(ctx context.Context, date string) (*export.File, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &export.File{Name: export.FileName(date, "xlsx"), ContentType: export.ContentTypeXLSX, Data: []byte("PK")}, nil
}

func (f *fakeExporter) CSV(ctx context.Context, date string) (*export.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &export.File{Name: export.FileName(date, "csv"), ContentType: export.ContentTypeCSV, Data: []byte("Student Name\n")}, nil
}

func (f *fakeExporter) ToSheet(ctx context.Context, date string) (*export.SheetResult, error) {
	return f.sheet, f.err
}

type fakeRegistrar struct {
	form  registration.Form
	photo *registration.Photo
	err   error
}

func (f *fakeRegistrar) Register(ctx context.Context, form registration.Form, photo *registration.Photo) (*attendance.Student, error) {
	f.form, f.photo = form, photo
	if f.err != nil {
		return nil, f.err
	}
	return &attendance.Student{ID: 7, Name: form.Name, Email: form.Email, Phone: form.Phone}, nil
}

type fakeRecognition struct {
	current recognition.Recognized
	err     error
}

func (f *fakeRecognition) Current(ctx context.Context) (*recognition.Recognized, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := f.current
	return &r, nil
}

func (f *fakeRecognition) StreamURL() string { return "http://rec.test/video_feed" }
func (f *fakeRecognition) ViewerURL() string { return "http://rec.test/camera" }
