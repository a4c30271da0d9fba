package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	c := New(Config{APISecret: "shh"})

	got := c.sign(map[string]string{
		"timestamp": "1700000000",
		"public_id": "students/7",
		"api_key":   "ignored",
		"file":      "ignored",
		"folder":    "",
	})

	want := fmt.Sprintf("%x", sha1.Sum([]byte("public_id=students/7&timestamp=1700000000shh")))
	assert.Equal(t, want, got)
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/demo/image/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "devops", r.FormValue("upload_preset"))
		assert.Equal(t, "students", r.FormValue("folder"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "ada.jpg", header.Filename)
		assert.Equal(t, []byte("jpeg-bytes"), data)

		_, _ = w.Write([]byte(`{"public_id":"students/abc","secure_url":"https://res.cloudinary.test/abc.jpg","width":100}`))
	}))
	defer srv.Close()

	c := New(Config{CloudName: "demo", UploadPreset: "devops", Folder: "students", BaseURL: srv.URL})
	res, err := c.Upload(context.Background(), "ada.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "students/abc", res.PublicID)
	assert.Equal(t, "https://res.cloudinary.test/abc.jpg", res.SecureURL)
	assert.Equal(t, 100, res.Width)
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "rejected", status: http.StatusBadRequest, body: `{"error":{"message":"Upload preset not found"}}`, wantErr: `cloudinary: upload failed (400): {"error":{"message":"Upload preset not found"}}`},
		{name: "unexpected shape", status: http.StatusOK, body: `{"public_id":"x"}`, wantErr: "cloudinary: response has no secure_url"},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantErr: "cloudinary: decode response failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(Config{CloudName: "demo", UploadPreset: "devops", BaseURL: srv.URL})
			_, err := c.Upload(context.Background(), "a.jpg", []byte("x"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDestroy(t *testing.T) {
	now := time.Unix(1700000000, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/demo/image/destroy", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "students/abc", r.PostForm.Get("public_id"))
		assert.Equal(t, "key", r.PostForm.Get("api_key"))
		assert.Equal(t, "1700000000", r.PostForm.Get("timestamp"))
		want := fmt.Sprintf("%x", sha1.Sum([]byte("public_id=students/abc&timestamp=1700000000secret")))
		assert.Equal(t, want, r.PostForm.Get("signature"))
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer srv.Close()

	c := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", BaseURL: srv.URL})
	c.now = func() time.Time { return now }

	require.NoError(t, c.Destroy(context.Background(), "students/abc"))
}

func TestDestroyWithoutCredentials(t *testing.T) {
	c := New(Config{CloudName: "demo", UploadPreset: "devops"})

	assert.False(t, c.CanDelete())
	assert.ErrorIs(t, c.Destroy(context.Background(), "x"), ErrNoCredentials)
}
