package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Repository persists students and attendance in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CountStudents returns the unfiltered number of students.
func (r *Repository) CountStudents(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

// ListByDate returns every record for date joined with its student.
func (r *Repository) ListByDate(ctx context.Context, date string, order Order) ([]Record, error) {
	dir := "DESC"
	if order == Ascending {
		dir = "ASC"
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.student_id, a.session_type, a.timestamp, to_char(a.date, 'YYYY-MM-DD'), a.created_at,
		       s.name, s.email, s.phone
		FROM attendance a
		LEFT JOIN students s ON s.id = a.student_id
		WHERE a.date = $1
		ORDER BY a.timestamp `+dir+`, a.id `+dir, date)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var (
			rec                Record
			name, email, phone sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.SessionType, &rec.Timestamp, &rec.Date, &rec.CreatedAt,
			&name, &email, &phone); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.StudentName, rec.StudentEmail, rec.StudentPhone = name.String, email.String, phone.String
		res = append(res, rec)
	}
	return res, rows.Err()
}

// FindRecord returns the record for (student, date, session) or nil.
func (r *Repository) FindRecord(ctx context.Context, studentID int64, date string, session SessionType) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, session_type, timestamp, to_char(date, 'YYYY-MM-DD'), created_at
		FROM attendance
		WHERE student_id = $1 AND date = $2 AND session_type = $3
		ORDER BY timestamp
		LIMIT 1
	`, studentID, date, string(session))
	var rec Record
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.SessionType, &rec.Timestamp, &rec.Date, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &rec, nil
}

// InsertRecord writes a new attendance row.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (id, student_id, session_type, timestamp, date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, rec.ID, rec.StudentID, string(rec.SessionType), rec.Timestamp, rec.Date)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return Record{}, fmt.Errorf("insert attendance: %w", err)
	}
	return rec, nil
}

// ListStudents returns all students ordered by id.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, phone, face_descriptor, image_url, created_at
		FROM students
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.FaceDescriptor, &s.ImageURL, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// GetStudent returns a single student or nil.
func (r *Repository) GetStudent(ctx context.Context, id int64) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, face_descriptor, image_url, created_at
		FROM students WHERE id = $1
	`, id)
	var s Student
	if err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.FaceDescriptor, &s.ImageURL, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &s, nil
}

// InsertStudent creates a student with a caller-supplied id.
func (r *Repository) InsertStudent(ctx context.Context, s Student) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, name, email, phone, face_descriptor, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, s.ID, s.Name, s.Email, s.Phone, s.FaceDescriptor, s.ImageURL)
	if err := row.Scan(&s.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Student{}, fmt.Errorf("%w: %d", ErrDuplicateStudent, s.ID)
		}
		return Student{}, fmt.Errorf("insert student: %w", err)
	}
	return s, nil
}
