package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendconsole/internal/attendance"
	"attendconsole/internal/export"
	"attendconsole/internal/inflight"
	"attendconsole/internal/recognition"
	"attendconsole/internal/registration"
)

// respondError maps service errors to a status and a message safe to show.
// Details of store and upstream failures only go to the log.
func respondError(c *gin.Context, err error) {
	var verr *registration.ValidationError
	var sheetErr *export.SheetError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration", "fields": verr.Fields})
	case errors.Is(err, attendance.ErrInvalidDate), errors.Is(err, attendance.ErrInvalidSession):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, inflight.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "the same operation is already in progress"})
	case errors.Is(err, attendance.ErrDuplicateStudent):
		c.JSON(http.StatusConflict, gin.H{"error": "a student with this id is already registered"})
	case errors.As(err, &sheetErr):
		slog.Error("spreadsheet export rejected", "status", sheetErr.Status, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": sheetErr.Message})
	case errors.Is(err, export.ErrSheetExport):
		slog.Error("spreadsheet export failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to export to spreadsheet"})
	case errors.Is(err, registration.ErrUpload):
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to upload photo"})
	case errors.Is(err, recognition.ErrService):
		slog.Error("recognition service call failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to communicate with recognition service"})
	case errors.Is(err, context.DeadlineExceeded):
		slog.Error("request timed out", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "timed out"})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// guarded runs fn unless the same key is already running.
func guarded(c *gin.Context, guard inflight.Guard, key string, fn func()) {
	release, err := guard.Acquire(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	defer release()
	fn()
}
