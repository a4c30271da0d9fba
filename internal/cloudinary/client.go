package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNoCredentials is returned by operations that need a signed request
// when no API key/secret pair is configured.
var ErrNoCredentials = errors.New("cloudinary: api key and secret required")

// Config describes a Cloudinary account used for student photos.
type Config struct {
	CloudName    string
	UploadPreset string
	APIKey       string
	APISecret    string
	Folder       string
	// BaseURL defaults to https://api.cloudinary.com.
	BaseURL string
}

// Client uploads images through an unsigned upload preset and deletes them
// with signed requests when credentials are present.
type Client struct {
	cfg  Config
	HTTP *http.Client
	now  func() time.Time
}

// New creates a Cloudinary client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cloudinary.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		HTTP: &http.Client{Timeout: 30 * time.Second},
		now:  time.Now,
	}
}

// CanDelete reports whether Destroy can be used.
func (c *Client) CanDelete() bool {
	return c.cfg.APIKey != "" && c.cfg.APISecret != ""
}

// UploadResult holds the response from Cloudinary after a successful upload.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int    `json:"bytes"`
}

// Upload sends raw image bytes using the configured upload preset.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: create form file failed: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("cloudinary: write file failed: %w", err)
	}
	_ = w.WriteField("upload_preset", c.cfg.UploadPreset)
	if c.cfg.Folder != "" {
		_ = w.WriteField("folder", c.cfg.Folder)
	}
	w.Close()

	body, err := c.post(ctx, "upload", w.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("cloudinary: decode response failed: %w", err)
	}
	if result.SecureURL == "" {
		return nil, fmt.Errorf("cloudinary: response has no secure_url")
	}
	return &result, nil
}

// Destroy removes an uploaded image by public id.
func (c *Client) Destroy(ctx context.Context, publicID string) error {
	if !c.CanDelete() {
		return ErrNoCredentials
	}
	params := map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.cfg.APIKey

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	body, err := c.post(ctx, "destroy", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}

	var out struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("cloudinary: decode response failed: %w", err)
	}
	// "not found" means there is nothing left to clean up
	if out.Result != "ok" && out.Result != "not found" {
		return fmt.Errorf("cloudinary: destroy %s: %s", publicID, out.Result)
	}
	return nil
}

func (c *Client) post(ctx context.Context, action, contentType string, body io.Reader) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v1_1/%s/image/%s", c.cfg.BaseURL, c.cfg.CloudName, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cloudinary: %s failed (%d): %s", action, resp.StatusCode, string(payload))
	}
	return payload, nil
}

// sign computes the Cloudinary API signature from the given params.
// api_key, file and resource_type are excluded from the signature.
func (c *Client) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true, "resource_type": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	payload := strings.Join(pairs, "&") + c.cfg.APISecret
	h := sha1.New()
	h.Write([]byte(payload))
	return fmt.Sprintf("%x", h.Sum(nil))
}
