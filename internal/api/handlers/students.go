package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"attendconsole/internal/attendance"
	"attendconsole/internal/inflight"
	"attendconsole/internal/registration"
)

// Registrar registers new students.
type Registrar interface {
	Register(ctx context.Context, form registration.Form, photo *registration.Photo) (*attendance.Student, error)
}

type StudentHandler struct {
	reg       Registrar
	guard     inflight.Guard
	dashboard Dashboard
}

func NewStudentHandler(reg Registrar, guard inflight.Guard, dashboard Dashboard) *StudentHandler {
	return &StudentHandler{reg: reg, guard: guard, dashboard: dashboard}
}

// Register accepts multipart id, name, email, phone and photo.
func (h *StudentHandler) Register(c *gin.Context) {
	var form registration.Form
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form"})
		return
	}

	photo, err := readPhoto(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read photo"})
		return
	}

	guarded(c, h.guard, "register:"+strings.TrimSpace(form.ID), func() {
		student, err := h.reg.Register(c.Request.Context(), form, photo)
		if err != nil {
			respondError(c, err)
			return
		}
		h.dashboard.Refresh()
		c.JSON(http.StatusCreated, student)
	})
}

// readPhoto returns nil when no photo was sent. Reads stop just past the
// size limit so validation can report an oversized file.
func readPhoto(c *gin.Context) (*registration.Photo, error) {
	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, registration.MaxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	return &registration.Photo{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
