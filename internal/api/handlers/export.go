package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendconsole/internal/export"
	"attendconsole/internal/inflight"
)

// Exporter builds the day's exports.
type Exporter interface {
	XLSX(ctx context.Context, date string) (*export.File, error)
	CSV(ctx context.Context, date string) (*export.File, error)
	ToSheet(ctx context.Context, date string) (*export.SheetResult, error)
}

type ExportHandler struct {
	exporter  Exporter
	guard     inflight.Guard
	dashboard Dashboard
}

func NewExportHandler(exporter Exporter, guard inflight.Guard, dashboard Dashboard) *ExportHandler {
	return &ExportHandler{exporter: exporter, guard: guard, dashboard: dashboard}
}

func (h *ExportHandler) date(c *gin.Context) string {
	if d := c.Query("date"); d != "" {
		return d
	}
	return h.dashboard.Date()
}

func (h *ExportHandler) XLSX(c *gin.Context) {
	h.file(c, "xlsx", h.exporter.XLSX)
}

func (h *ExportHandler) CSV(c *gin.Context) {
	h.file(c, "csv", h.exporter.CSV)
}

func (h *ExportHandler) file(c *gin.Context, format string, build func(context.Context, string) (*export.File, error)) {
	date := h.date(c)
	guarded(c, h.guard, "export:"+format+":"+date, func() {
		f, err := build(c.Request.Context(), date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
		c.Data(http.StatusOK, f.ContentType, f.Data)
	})
}

func (h *ExportHandler) Sheets(c *gin.Context) {
	date := h.date(c)
	guarded(c, h.guard, "export:sheets:"+date, func() {
		res, err := h.exporter.ToSheet(c.Request.Context(), date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}
