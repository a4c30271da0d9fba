package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendconsole/internal/attendance"
	"attendconsole/internal/recognition"
)

// Dashboard is the controller holding the console's live state.
type Dashboard interface {
	Date() string
	SetDate(ctx context.Context, date string) error
	Refresh()
	Snapshot() (attendance.Stats, bool)
	Active() bool
	Recognition() recognition.Display
	ToggleRecognition(ctx context.Context) (*recognition.ToggleResult, error)
	ResetRecognition(ctx context.Context) error
}

type DashboardHandler struct {
	dashboard Dashboard
}

func NewDashboardHandler(dashboard Dashboard) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

func (h *DashboardHandler) Get(c *gin.Context) {
	resp := gin.H{
		"date":               h.dashboard.Date(),
		"recognition":        h.dashboard.Recognition(),
		"recognition_active": h.dashboard.Active(),
	}
	if stats, ok := h.dashboard.Snapshot(); ok {
		resp["stats"] = stats
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DashboardHandler) SetDate(c *gin.Context) {
	var req struct {
		Date string `json:"date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := h.dashboard.SetDate(c.Request.Context(), req.Date); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": h.dashboard.Date()})
}
