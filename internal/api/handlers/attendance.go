package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"attendconsole/internal/attendance"
)

// AttendanceService answers stats and listing queries.
type AttendanceService interface {
	Today() string
	DailyStats(ctx context.Context, date string) (attendance.Stats, error)
	List(ctx context.Context, date, search string) ([]attendance.Record, error)
	ListStudents(ctx context.Context) ([]attendance.Student, error)
	GetStudent(ctx context.Context, id int64) (*attendance.Student, error)
	Mark(ctx context.Context, studentID int64, at time.Time) (attendance.MarkResult, error)
}

type AttendanceHandler struct {
	svc       AttendanceService
	dashboard Dashboard
}

func NewAttendanceHandler(svc AttendanceService, dashboard Dashboard) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, dashboard: dashboard}
}

// date resolves ?date=, defaulting to the dashboard's selected day.
func (h *AttendanceHandler) date(c *gin.Context) string {
	if d := c.Query("date"); d != "" {
		return d
	}
	return h.dashboard.Date()
}

func (h *AttendanceHandler) Stats(c *gin.Context) {
	stats, err := h.svc.DailyStats(c.Request.Context(), h.date(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AttendanceHandler) List(c *gin.Context) {
	date := h.date(c)
	records, err := h.svc.List(c.Request.Context(), date, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "records": records, "total": len(records)})
}

func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req struct {
		StudentID int64      `json:"student_id" binding:"required,gt=0"`
		At        *time.Time `json:"timestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_id required"})
		return
	}

	var at time.Time
	if req.At != nil {
		at = *req.At
	}
	res, err := h.svc.Mark(c.Request.Context(), req.StudentID, at)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.AlreadyMarked {
		status = http.StatusOK
	} else {
		h.dashboard.Refresh()
	}
	c.JSON(status, res)
}

func (h *AttendanceHandler) Students(c *gin.Context) {
	students, err := h.svc.ListStudents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students, "total": len(students)})
}

func (h *AttendanceHandler) Student(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student id must be a number"})
		return
	}
	student, err := h.svc.GetStudent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}
