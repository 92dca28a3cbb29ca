package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// StudyPacketStore is the storage the packet workflow needs.
type StudyPacketStore interface {
	database.CourseStore
	database.StudyPacketStore
}

// StudyPacketService drives the study packet workflow:
// PENDING -> READY -> APPROVED -> SENT.
type StudyPacketService struct {
	store  StudyPacketStore
	access courseAccess
	now    func() time.Time
	log    *zap.Logger
}

// NewStudyPacketService creates a new study packet service
func NewStudyPacketService(store StudyPacketStore, log *zap.Logger) *StudyPacketService {
	return &StudyPacketService{
		store:  store,
		access: courseAccess{store: store},
		now:    time.Now,
		log:    log,
	}
}

// WithClock replaces the clock. Used by tests.
func (s *StudyPacketService) WithClock(now func() time.Time) *StudyPacketService {
	s.now = now
	return s
}

// Create opens a PENDING packet with an empty payload for a course the
// caller owns. Clients cannot choose the initial status or payload.
func (s *StudyPacketService) Create(ctx context.Context, user *model.User, courseID uint) (*model.StudyPacket, error) {
	if _, err := s.access.owned(ctx, user, courseID); err != nil {
		return nil, err
	}

	creator := user.ID
	packet := &model.StudyPacket{
		CourseID:  courseID,
		Status:    model.StudyPacketPending,
		Payload:   datatypes.JSON("{}"),
		CreatedBy: &creator,
	}
	if err := s.store.CreateStudyPacket(ctx, packet); err != nil {
		return nil, fmt.Errorf("failed to create study packet: %w", err)
	}

	s.log.Info("study packet requested", zap.Uint("packet_id", packet.ID), zap.Uint("course_id", courseID))
	return packet, nil
}

// List returns packets in courses visible to the caller.
func (s *StudyPacketService) List(ctx context.Context, user *model.User, courseID uint) ([]model.StudyPacket, error) {
	packets, err := s.store.ListStudyPackets(ctx, database.StudyPacketFilter{
		CourseID: courseID,
		Scope:    database.ScopeFor(user),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list study packets: %w", err)
	}
	return packets, nil
}

// Get returns a packet in a course visible to the caller.
func (s *StudyPacketService) Get(ctx context.Context, user *model.User, id uint) (*model.StudyPacket, error) {
	packet, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.visible(ctx, user, packet.CourseID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("study packet", id)
		}
		return nil, err
	}
	return packet, nil
}

// Approve marks the packet APPROVED and stamps approved_at. The course
// professor may approve from any state; approving again re-stamps the time.
func (s *StudyPacketService) Approve(ctx context.Context, user *model.User, id uint) (*model.StudyPacket, error) {
	packet, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.owned(ctx, user, packet.CourseID); err != nil {
		return nil, err
	}

	approvedAt := s.now().UTC()
	packet, err = s.transition(ctx, id, nil, database.StudyPacketUpdate{
		Status:     model.StudyPacketApproved,
		ApprovedAt: &approvedAt,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("study packet approved", zap.Uint("packet_id", id), zap.Uint("approved_by", user.ID))
	return packet, nil
}

// MarkReady stores the generated payload. Called by the generation worker;
// a packet may be regenerated while it is still READY.
func (s *StudyPacketService) MarkReady(ctx context.Context, id uint, payload json.RawMessage) (*model.StudyPacket, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return nil, invalid("payload must be a JSON object")
	}

	packet, err := s.transition(ctx, id,
		[]model.StudyPacketStatus{model.StudyPacketPending, model.StudyPacketReady},
		database.StudyPacketUpdate{Status: model.StudyPacketReady, Payload: datatypes.JSON(payload)})
	if err != nil {
		return nil, err
	}

	s.log.Info("study packet ready", zap.Uint("packet_id", id), zap.Int("payload_bytes", len(payload)))
	return packet, nil
}

// MarkSent records delivery of an approved packet.
func (s *StudyPacketService) MarkSent(ctx context.Context, id uint) (*model.StudyPacket, error) {
	packet, err := s.transition(ctx, id,
		[]model.StudyPacketStatus{model.StudyPacketApproved},
		database.StudyPacketUpdate{Status: model.StudyPacketSent})
	if err != nil {
		return nil, err
	}

	s.log.Info("study packet sent", zap.Uint("packet_id", id))
	return packet, nil
}

func (s *StudyPacketService) load(ctx context.Context, id uint) (*model.StudyPacket, error) {
	packet, err := s.store.GetStudyPacket(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("study packet", id)
		}
		return nil, fmt.Errorf("failed to load study packet: %w", err)
	}
	return packet, nil
}

func (s *StudyPacketService) transition(ctx context.Context, id uint, from []model.StudyPacketStatus, update database.StudyPacketUpdate) (*model.StudyPacket, error) {
	packet, err := s.store.TransitionStudyPacket(ctx, id, from, update)
	switch {
	case err == nil:
		return packet, nil
	case errors.Is(err, database.ErrNotFound):
		return nil, notFound("study packet", id)
	case errors.Is(err, database.ErrConflict):
		current := model.StudyPacketStatus("unknown")
		if packet != nil {
			current = packet.Status
		}
		return nil, fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, current, update.Status)
	default:
		return nil, fmt.Errorf("failed to update study packet: %w", err)
	}
}
