// Package storage keeps course material bytes in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobStore is the object storage used for course materials.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	PresignedURL(key string, expiration time.Duration) (string, error)
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// MaterialKey builds a collision-free object key for a course material.
func MaterialKey(courseID uint, filename string) string {
	name := unsafeKeyChars.ReplaceAllString(filepath.Base(filename), "_")
	name = strings.Trim(name, "_")
	if name == "" || name == "." {
		name = "file"
	}
	return fmt.Sprintf("materials/%d/%s_%s", courseID, uuid.NewString(), name)
}

// ContentType returns the content type for a filename
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".ppt":
		return "application/vnd.ms-powerpoint"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
