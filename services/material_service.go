package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services/storage"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/pdfvalidation"
	"go.uber.org/zap"
)

// DownloadURLExpiry is how long a material download link stays valid.
const DownloadURLExpiry = 15 * time.Minute

// MaterialUpload is a file posted by the course professor.
type MaterialUpload struct {
	Title    string
	FileName string
	Data     []byte
}

// MaterialService manages course material files
type MaterialService struct {
	store  database.CourseStore
	access courseAccess
	blobs  storage.BlobStore
	limits pdfvalidation.Limits
	log    *zap.Logger
}

// NewMaterialService creates a material service. blobs may be nil, in which
// case uploads and downloads report ErrStorageUnavailable.
func NewMaterialService(store database.CourseStore, blobs storage.BlobStore, log *zap.Logger) *MaterialService {
	return &MaterialService{
		store:  store,
		access: courseAccess{store: store},
		blobs:  blobs,
		limits: pdfvalidation.MaterialLimits,
		log:    log,
	}
}

// Upload validates and stores a material for a course the caller owns.
func (s *MaterialService) Upload(ctx context.Context, user *model.User, courseID uint, up MaterialUpload) (*model.Material, error) {
	course, err := s.access.visible(ctx, user, courseID)
	if err != nil {
		return nil, err
	}
	if course.ProfessorID != user.ID {
		return nil, fmt.Errorf("%w: only the course professor may upload materials", ErrForbidden)
	}
	if s.blobs == nil {
		return nil, ErrStorageUnavailable
	}
	result := pdfvalidation.Inspect(up.FileName, up.Data, s.limits)
	if !result.Valid {
		return nil, invalid("%s", result.Error)
	}
	contentType := storage.ContentType(up.FileName)
	if result.IsPDF {
		contentType = "application/pdf"
	}

	title := strings.TrimSpace(up.Title)
	if title == "" {
		title = up.FileName
	}

	key := storage.MaterialKey(courseID, up.FileName)
	url, err := s.blobs.Upload(ctx, key, up.Data, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload material: %w", err)
	}

	uploader := user.ID
	material := &model.Material{
		CourseID:    courseID,
		Title:       title,
		FileName:    up.FileName,
		StorageKey:  key,
		FileURL:     url,
		ContentType: contentType,
		FileSize:    int64(len(up.Data)),
		PageCount:   result.PageCount,
		UploadedBy:  &uploader,
	}
	if err := s.store.CreateMaterial(ctx, material); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.log.Warn("failed to remove orphaned material object", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to save material: %w", err)
	}

	s.log.Info("material uploaded",
		zap.Uint("course_id", courseID),
		zap.Uint("material_id", material.ID),
		zap.Int64("size", material.FileSize))
	return material, nil
}

// List returns the materials of a course visible to the caller.
func (s *MaterialService) List(ctx context.Context, user *model.User, courseID uint) ([]model.Material, error) {
	if _, err := s.access.visible(ctx, user, courseID); err != nil {
		return nil, err
	}
	materials, err := s.store.ListMaterials(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	return materials, nil
}

// DownloadURL returns a presigned link to a material.
func (s *MaterialService) DownloadURL(ctx context.Context, user *model.User, courseID, materialID uint) (string, time.Time, error) {
	if _, err := s.access.visible(ctx, user, courseID); err != nil {
		return "", time.Time{}, err
	}
	if s.blobs == nil {
		return "", time.Time{}, ErrStorageUnavailable
	}

	material, err := s.store.GetMaterial(ctx, courseID, materialID)
	if err != nil {
		return "", time.Time{}, notFound("material", materialID)
	}

	url, err := s.blobs.PresignedURL(material.StorageKey, DownloadURLExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign download url: %w", err)
	}
	return url, time.Now().Add(DownloadURLExpiry), nil
}
