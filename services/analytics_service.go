package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/validation"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	// ConfusionWindow is the rolling window of the live confusion view.
	ConfusionWindow = 15 * time.Minute
	// TopTopicsLimit caps the ranked topic list.
	TopTopicsLimit = 5
)

// TopicCount is one entry of a topic ranking. It encodes as [topic, count].
type TopicCount struct {
	Topic string
	Count int
}

func (tc TopicCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{tc.Topic, tc.Count})
}

func (tc *TopicCount) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("topic count must have 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &tc.Topic); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &tc.Count)
}

// CourseConfusion is the live confusion view of a course.
type CourseConfusion struct {
	CourseID         uint         `json:"course_id"`
	CountLast15m     int          `json:"count_last_15m"`
	TopTopics        []TopicCount `json:"top_topics"`
	TotalSubmissions int64        `json:"total_submissions"`
	WindowStart      time.Time    `json:"window_start"`
	WindowEnd        time.Time    `json:"window_end"`
}

// SnapshotInput describes a snapshot to persist. A nil bound defaults to the
// last ConfusionWindow ending now.
type SnapshotInput struct {
	CourseID    uint
	WindowStart *time.Time
	WindowEnd   *time.Time
	Summary     string
}

// AnalyticsStore is the storage the aggregator reads and writes.
type AnalyticsStore interface {
	database.CourseStore
	database.PainPointStore
	database.SnapshotStore
}

// AnalyticsService computes confusion rollups from the pain point ledger
type AnalyticsService struct {
	store  AnalyticsStore
	access courseAccess
	now    func() time.Time
	log    *zap.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(store AnalyticsStore, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		store:  store,
		access: courseAccess{store: store},
		now:    time.Now,
		log:    log,
	}
}

// WithClock replaces the clock. Used by tests.
func (s *AnalyticsService) WithClock(now func() time.Time) *AnalyticsService {
	s.now = now
	return s
}

// RankTopics counts pain points per topic and returns the limit most frequent,
// most frequent first. Empty topics count as model.GeneralTopic. Equal counts
// keep the order in which the topic was first seen.
func RankTopics(points []model.PainPoint, limit int) []TopicCount {
	index := make(map[string]int)
	ranked := make([]TopicCount, 0)
	for i := range points {
		topic := points[i].TopicKey()
		if pos, ok := index[topic]; ok {
			ranked[pos].Count++
			continue
		}
		index[topic] = len(ranked)
		ranked = append(ranked, TopicCount{Topic: topic, Count: 1})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// CourseConfusion aggregates the last ConfusionWindow of pain points for a
// course the caller belongs to.
func (s *AnalyticsService) CourseConfusion(ctx context.Context, user *model.User, courseID uint) (*CourseConfusion, error) {
	if _, err := s.access.member(ctx, user, courseID); err != nil {
		return nil, err
	}

	now := s.now()
	windowStart := now.Add(-ConfusionWindow)
	points, err := s.store.PainPointsBetween(ctx, courseID, windowStart, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent pain points: %w", err)
	}
	total, err := s.store.CountPainPoints(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pain points: %w", err)
	}

	return &CourseConfusion{
		CourseID:         courseID,
		CountLast15m:     len(points),
		TopTopics:        RankTopics(points, TopTopicsLimit),
		TotalSubmissions: total,
		WindowStart:      windowStart.UTC(),
		WindowEnd:        now.UTC(),
	}, nil
}

// CreateSnapshot computes and persists a rollup for a course the caller owns.
// Snapshots are never updated afterwards.
func (s *AnalyticsService) CreateSnapshot(ctx context.Context, user *model.User, in SnapshotInput) (*model.ConfusionSnapshot, error) {
	if _, err := s.access.owned(ctx, user, in.CourseID); err != nil {
		return nil, err
	}

	end := s.now()
	if in.WindowEnd != nil {
		end = *in.WindowEnd
	}
	start := end.Add(-ConfusionWindow)
	if in.WindowStart != nil {
		start = *in.WindowStart
	}
	if !end.After(start) {
		return nil, validation.NewFieldErrors(map[string]string{
			"window_end": "The window must end after it starts",
		})
	}

	points, err := s.store.PainPointsBetween(ctx, in.CourseID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load pain points: %w", err)
	}

	ranked := RankTopics(points, TopTopicsLimit)
	names := make([]string, len(ranked))
	for i, tc := range ranked {
		names[i] = tc.Topic
	}
	topics, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("failed to encode top topics: %w", err)
	}

	snapshot := &model.ConfusionSnapshot{
		CourseID:    in.CourseID,
		WindowStart: start.UTC(),
		WindowEnd:   end.UTC(),
		Count:       len(points),
		TopTopics:   datatypes.JSON(topics),
		Summary:     strings.TrimSpace(in.Summary),
	}
	if err := s.store.CreateSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.log.Info("confusion snapshot created",
		zap.Uint("course_id", in.CourseID),
		zap.Uint("snapshot_id", snapshot.ID),
		zap.Int("count", snapshot.Count))
	return snapshot, nil
}

// ListSnapshots returns the snapshots of a course the caller belongs to.
func (s *AnalyticsService) ListSnapshots(ctx context.Context, user *model.User, courseID uint) ([]model.ConfusionSnapshot, error) {
	if _, err := s.access.member(ctx, user, courseID); err != nil {
		return nil, err
	}
	snapshots, err := s.store.ListSnapshots(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, nil
}
