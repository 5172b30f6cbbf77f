// Package objectstore puts cover images into the Firebase Storage bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/anonto42/quill/backend/internal/authoring"
	"github.com/google/uuid"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds the upload limit")
	ErrUnsupportedType = errors.New("only jpeg, png, gif and webp images are accepted")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// FirebaseUploader implements authoring.Uploader on top of a Cloud Storage bucket.
type FirebaseUploader struct {
	bucket     *gcs.BucketHandle
	bucketName string
	prefix     string
	maxBytes   int64
}

func NewFirebaseUploader(bucket *gcs.BucketHandle, bucketName string, maxBytes int64) *FirebaseUploader {
	return &FirebaseUploader{bucket: bucket, bucketName: bucketName, prefix: "covers", maxBytes: maxBytes}
}

// Upload stores the file under a random key and returns a tokenized download URL that
// stays valid without signing.
func (u *FirebaseUploader) Upload(ctx context.Context, file authoring.ImageFile) (string, error) {
	contentType, err := Check(file, u.maxBytes)
	if err != nil {
		return "", err
	}

	key := path.Join(u.prefix, uuid.NewString()+extensions[contentType])
	token := uuid.NewString()

	w := u.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}

	if _, err := w.Write(file.Data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing %s: %w", key, err)
	}

	return DownloadURL(u.bucketName, key, token), nil
}

// Check validates size and sniffs the content type; the declared type is not trusted.
func Check(file authoring.ImageFile, maxBytes int64) (string, error) {
	if len(file.Data) == 0 {
		return "", ErrEmptyFile
	}
	if maxBytes > 0 && int64(len(file.Data)) > maxBytes {
		return "", ErrFileTooLarge
	}
	contentType := http.DetectContentType(file.Data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if _, ok := extensions[contentType]; !ok {
		return "", ErrUnsupportedType
	}
	return contentType, nil
}

func DownloadURL(bucket, key, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(key), token)
}
