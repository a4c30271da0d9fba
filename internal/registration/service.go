package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"attendconsole/internal/attendance"
	"attendconsole/internal/observability"
)

// ErrUpload marks a failure of the image host.
var ErrUpload = errors.New("photo upload failed")

// Form is the submitted student data.
type Form struct {
	ID    string `json:"id" form:"id" validate:"required,notblank"`
	Name  string `json:"name" form:"name" validate:"required,notblank,max=200"`
	Email string `json:"email" form:"email" validate:"required,email,max=320"`
	Phone string `json:"phone" form:"phone" validate:"required,notblank,max=40"`
}

// Photo is the uploaded image.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Uploaded identifies a hosted photo.
type Uploaded struct {
	URL string
	// Ref is what the host needs to delete the photo again.
	Ref string
}

// ImageHost stores student photos at a public URL.
type ImageHost interface {
	Upload(ctx context.Context, studentID int64, photo Photo) (Uploaded, error)
	Delete(ctx context.Context, ref string) error
	CanDelete() bool
}

// Inserter persists a new student.
type Inserter interface {
	InsertStudent(ctx context.Context, s attendance.Student) (attendance.Student, error)
}

// Service registers students: validate, upload photo, insert.
type Service struct {
	students Inserter
	host     ImageHost
}

func NewService(students Inserter, host ImageHost) *Service {
	return &Service{students: students, host: host}
}

// Register validates the input, uploads the photo and inserts the student.
// If the insert fails the uploaded photo is deleted again when the host
// supports it; otherwise it is logged as orphaned.
func (s *Service) Register(ctx context.Context, form Form, photo *Photo) (*attendance.Student, error) {
	id, err := check(form, photo)
	if err != nil {
		observability.Registrations.WithLabelValues("invalid").Inc()
		return nil, err
	}

	p := *photo
	if p.ContentType == "" {
		p.ContentType = http.DetectContentType(p.Data)
	}
	up, err := s.host.Upload(ctx, id, p)
	if err != nil {
		observability.Registrations.WithLabelValues("upload_error").Inc()
		slog.Error("photo upload failed", "student_id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}

	student, err := s.students.InsertStudent(ctx, attendance.Student{
		ID:       id,
		Name:     strings.TrimSpace(form.Name),
		Email:    strings.TrimSpace(form.Email),
		Phone:    strings.TrimSpace(form.Phone),
		ImageURL: &up.URL,
	})
	if err != nil {
		if errors.Is(err, attendance.ErrDuplicateStudent) {
			observability.Registrations.WithLabelValues("duplicate").Inc()
		} else {
			observability.Registrations.WithLabelValues("insert_error").Inc()
			slog.Error("insert student failed", "student_id", id, "error", err)
		}
		s.compensate(ctx, id, up)
		return nil, err
	}

	observability.Registrations.WithLabelValues("ok").Inc()
	slog.Info("student registered", "student_id", id, "image_url", up.URL)
	return &student, nil
}

func (s *Service) compensate(ctx context.Context, id int64, up Uploaded) {
	if !s.host.CanDelete() {
		observability.OrphanedImages.Inc()
		slog.Warn("orphaned photo left on image host", "student_id", id, "url", up.URL)
		return
	}
	// the request may already be cancelled
	if err := s.host.Delete(context.WithoutCancel(ctx), up.Ref); err != nil {
		observability.OrphanedImages.Inc()
		slog.Error("could not delete orphaned photo", "student_id", id, "url", up.URL, "error", err)
	}
}
