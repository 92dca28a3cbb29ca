package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"go.uber.org/zap"
)

func TestStudyPacketWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)
	svc := NewStudyPacketService(f.store, zap.NewNop()).WithClock(func() time.Time { return now })

	if _, err := svc.Create(ctx, f.student, f.course.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("student create: expected ErrForbidden, got %v", err)
	}

	packet, err := svc.Create(ctx, f.teacher, f.course.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if packet.Status != model.StudyPacketPending || string(packet.Payload) != "{}" || packet.ApprovedAt != nil {
		t.Fatalf("unexpected new packet: %+v", packet)
	}

	if _, err := svc.MarkSent(ctx, packet.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("send pending: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.MarkReady(ctx, packet.ID, json.RawMessage(`["not","an","object"]`)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("array payload: expected ErrInvalidInput, got %v", err)
	}

	payload := json.RawMessage(`{"quiz":[{"q":"What is a base case?"}]}`)
	packet, err = svc.MarkReady(ctx, packet.ID, payload)
	if err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	if packet.Status != model.StudyPacketReady || string(packet.Payload) != string(payload) {
		t.Fatalf("unexpected ready packet: %+v", packet)
	}

	if _, err := svc.Approve(ctx, f.student, packet.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("student approve: expected ErrForbidden, got %v", err)
	}
	packet, err = svc.Approve(ctx, f.teacher, packet.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if packet.Status != model.StudyPacketApproved || packet.ApprovedAt == nil || !packet.ApprovedAt.Equal(now) {
		t.Fatalf("unexpected approved packet: %+v", packet)
	}

	if _, err := svc.MarkReady(ctx, packet.ID, payload); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ready after approval: expected ErrInvalidTransition, got %v", err)
	}

	packet, err = svc.MarkSent(ctx, packet.ID)
	if err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if packet.Status != model.StudyPacketSent {
		t.Fatalf("expected SENT, got %s", packet.Status)
	}
}

// Approval is not guarded by the current status: a PENDING or SENT packet
// can be approved, and approving again moves approved_at forward.
func TestStudyPacketApproveIsUnguarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)
	svc := NewStudyPacketService(f.store, zap.NewNop()).WithClock(func() time.Time { return now })

	packet, err := svc.Create(ctx, f.teacher, f.course.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if packet, err = svc.Approve(ctx, f.teacher, packet.ID); err != nil {
		t.Fatalf("approve pending: %v", err)
	}

	now = now.Add(time.Hour)
	packet, err = svc.Approve(ctx, f.teacher, packet.ID)
	if err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if !packet.ApprovedAt.Equal(now) {
		t.Fatalf("expected approved_at %v, got %v", now, packet.ApprovedAt)
	}
}

func TestStudyPacketScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewStudyPacketService(f.store, zap.NewNop())

	packet, err := svc.Create(ctx, f.teacher, f.course.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if list, err := svc.List(ctx, f.student, 0); err != nil || len(list) != 1 {
		t.Fatalf("enrolled student list: %d packets, err %v", len(list), err)
	}
	if list, err := svc.List(ctx, f.other, 0); err != nil || len(list) != 0 {
		t.Fatalf("other teacher list: %d packets, err %v", len(list), err)
	}
	if _, err := svc.Get(ctx, f.outside, packet.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("outsider get: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Approve(ctx, f.other, packet.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other teacher approve: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.MarkReady(ctx, 999, json.RawMessage(`{}`)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing packet: expected ErrNotFound, got %v", err)
	}
}
