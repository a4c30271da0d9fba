package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrService marks any failure talking to the recognition service.
var ErrService = errors.New("recognition service error")

// ToggleResult is the state reported by the service after a toggle.
type ToggleResult struct {
	Active  bool   `json:"active"`
	Message string `json:"message,omitempty"`
}

// Recognized is the content of the service's current-recognition slot.
type Recognized struct {
	Name     string `json:"name"`
	PhotoURL string `json:"image_url"`
	Status   string `json:"status"`
	// Outcome is sent by services that report a structured result.
	Outcome string `json:"outcome,omitempty"`
}

// Client calls the face recognition service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client with a request timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			// starting recognition loads every student face first
			Timeout: 30 * time.Second,
		},
	}
}

// Toggle flips recognition on or off and returns the state the service reports.
func (c *Client) Toggle(ctx context.Context) (*ToggleResult, error) {
	var out ToggleResult
	if err := c.do(ctx, http.MethodPost, "/toggle-recognition", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Current fetches the currently recognized person.
func (c *Client) Current(ctx context.Context) (*Recognized, error) {
	var out Recognized
	if err := c.do(ctx, http.MethodGet, "/current", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reset clears the service's current-recognition slot.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/reset", nil)
}

// Health checks if the recognition service is available.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: unavailable: %v", ErrService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unhealthy: %s", ErrService, resp.Status)
	}
	return nil
}

// StreamURL is the live MJPEG video feed.
func (c *Client) StreamURL() string { return c.BaseURL + "/video_feed" }

// ViewerURL is the standalone camera page.
func (c *Client) ViewerURL() string { return c.BaseURL + "/camera" }

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrService, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return fmt.Errorf("%w: %s", ErrService, payload.Error)
		}
		return fmt.Errorf("%w: %s %s: %s", ErrService, method, path, resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrService, path, err)
	}
	return nil
}
