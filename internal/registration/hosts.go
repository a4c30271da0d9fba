package registration

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"attendconsole/internal/cloudinary"
	"attendconsole/internal/store"
)

// CloudinaryHost uploads through an unsigned preset.
type CloudinaryHost struct {
	Client *cloudinary.Client
}

func (h CloudinaryHost) Upload(ctx context.Context, studentID int64, photo Photo) (Uploaded, error) {
	name := photo.Filename
	if name == "" {
		name = fmt.Sprintf("student-%d", studentID)
	}
	res, err := h.Client.Upload(ctx, name, photo.Data)
	if err != nil {
		return Uploaded{}, err
	}
	return Uploaded{URL: res.SecureURL, Ref: res.PublicID}, nil
}

func (h CloudinaryHost) Delete(ctx context.Context, ref string) error {
	return h.Client.Destroy(ctx, ref)
}

func (h CloudinaryHost) CanDelete() bool { return h.Client.CanDelete() }

// MinIOHost stores photos as objects keyed by student id.
type MinIOHost struct {
	Store *store.MinIOStore
}

func (h MinIOHost) Upload(ctx context.Context, studentID int64, photo Photo) (Uploaded, error) {
	key := ObjectKey(studentID, photo.Filename)
	url, err := h.Store.PutObject(ctx, key, photo.Data, photo.ContentType)
	if err != nil {
		return Uploaded{}, err
	}
	return Uploaded{URL: url, Ref: key}, nil
}

func (h MinIOHost) Delete(ctx context.Context, ref string) error {
	return h.Store.DeleteObject(ctx, ref)
}

func (h MinIOHost) CanDelete() bool { return true }

// ObjectKey builds students/<id>/<uuid><ext>.
func ObjectKey(studentID int64, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("students/%d/%s%s", studentID, uuid.NewString(), ext)
}
