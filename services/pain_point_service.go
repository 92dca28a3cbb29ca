package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services/realtime"
	"go.uber.org/zap"
)

const defaultPublishTimeout = 2 * time.Second

// PainPointInput is a submitted pain point.
type PainPointInput struct {
	CourseID    uint
	Title       string
	Description string
	Topic       string
}

// PainPointStore is the storage the ledger needs.
type PainPointStore interface {
	database.CourseStore
	database.PainPointStore
}

// PainPointService records pain points and announces them to course rooms
type PainPointService struct {
	store          PainPointStore
	access         courseAccess
	publisher      realtime.Publisher
	publishTimeout time.Duration
	log            *zap.Logger
}

// NewPainPointService creates a pain point service. publisher may be nil.
func NewPainPointService(store PainPointStore, publisher realtime.Publisher, log *zap.Logger) *PainPointService {
	return &PainPointService{
		store:          store,
		access:         courseAccess{store: store},
		publisher:      publisher,
		publishTimeout: defaultPublishTimeout,
		log:            log,
	}
}

// Create stores a pain point authored by the caller, then notifies the
// course room. A failed notification is logged and does not fail the write.
func (s *PainPointService) Create(ctx context.Context, user *model.User, in PainPointInput) (*model.PainPoint, error) {
	if _, err := s.access.load(ctx, in.CourseID); err != nil {
		return nil, err
	}

	author := user.ID
	pp := &model.PainPoint{
		CourseID:    in.CourseID,
		AuthorID:    &author,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Topic:       strings.TrimSpace(in.Topic),
	}
	if err := s.store.CreatePainPoint(ctx, pp); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("course", in.CourseID)
		}
		return nil, fmt.Errorf("failed to create pain point: %w", err)
	}

	s.notify(ctx, pp)
	return pp, nil
}

func (s *PainPointService) notify(ctx context.Context, pp *model.PainPoint) {
	if s.publisher == nil {
		return
	}

	// The request may be cancelled once the row is stored; delivery should not be.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	event := realtime.NewConfusionUpdate(pp.CourseID, pp.ID)
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		s.log.Warn("failed to publish confusion update",
			zap.Uint("course_id", pp.CourseID),
			zap.Uint("pain_point_id", pp.ID),
			zap.Error(err))
	}
}

// List returns pain points visible to the caller, newest first. A non-zero
// courseID narrows the listing before the caller's scope is applied.
func (s *PainPointService) List(ctx context.Context, user *model.User, courseID uint) ([]model.PainPoint, error) {
	points, err := s.store.ListPainPoints(ctx, database.PainPointFilter{
		CourseID: courseID,
		Scope:    database.ScopeFor(user),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pain points: %w", err)
	}
	return points, nil
}

// Get returns a pain point in a course visible to the caller.
func (s *PainPointService) Get(ctx context.Context, user *model.User, id uint) (*model.PainPoint, error) {
	pp, err := s.store.GetPainPoint(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("pain point", id)
		}
		return nil, fmt.Errorf("failed to load pain point: %w", err)
	}
	if _, err := s.access.visible(ctx, user, pp.CourseID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("pain point", id)
		}
		return nil, err
	}
	return pp, nil
}

// Delete removes a pain point. Only its author may delete it.
func (s *PainPointService) Delete(ctx context.Context, user *model.User, id uint) error {
	pp, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}
	if pp.AuthorID == nil || *pp.AuthorID != user.ID {
		return fmt.Errorf("%w: only the author may delete a pain point", ErrForbidden)
	}
	if err := s.store.DeletePainPoint(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return notFound("pain point", id)
		}
		return fmt.Errorf("failed to delete pain point: %w", err)
	}
	return nil
}
