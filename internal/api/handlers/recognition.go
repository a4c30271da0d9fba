package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendconsole/internal/recognition"
)

// RecognitionService is the part of the recognition client read directly.
type RecognitionService interface {
	Current(ctx context.Context) (*recognition.Recognized, error)
	StreamURL() string
	ViewerURL() string
}

type RecognitionHandler struct {
	svc       RecognitionService
	dashboard Dashboard
}

func NewRecognitionHandler(svc RecognitionService, dashboard Dashboard) *RecognitionHandler {
	return &RecognitionHandler{svc: svc, dashboard: dashboard}
}

// Toggle flips recognition. The viewer link comes with every answer, whatever
// state the service reports; clients that open the camera page before the
// toggle completes take it from Links.
func (h *RecognitionHandler) Toggle(c *gin.Context) {
	res, err := h.dashboard.ToggleRecognition(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":     res.Active,
		"message":    res.Message,
		"viewer_url": h.svc.ViewerURL(),
	})
}

func (h *RecognitionHandler) Current(c *gin.Context) {
	r, err := h.svc.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":      r.Name,
		"image_url": r.PhotoURL,
		"status":    r.Status,
		"outcome":   recognition.Classify(*r),
	})
}

// Reset always answers with the local "ready for next" state; service_ok
// tells whether the service confirmed the reset.
func (h *RecognitionHandler) Reset(c *gin.Context) {
	err := h.dashboard.ResetRecognition(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"display":    h.dashboard.Recognition(),
		"service_ok": err == nil,
	})
}

func (h *RecognitionHandler) Links(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stream_url": h.svc.StreamURL(),
		"viewer_url": h.svc.ViewerURL(),
	})
}
