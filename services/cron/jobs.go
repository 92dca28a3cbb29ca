package cron

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// KeepAliveRooms pings every open course stream.
func (m *CronManager) KeepAliveRooms() {
	if m.rooms == nil {
		return
	}
	n := m.rooms.KeepAlive()
	m.log.Debug("room keep-alive sent", zap.String("job", JobRoomKeepAlive), zap.Int("subscribers", n))
}

// PruneCronLogs deletes job logs older than the retention period.
func (m *CronManager) PruneCronLogs(ctx context.Context) (string, map[string]interface{}, error) {
	cutoff := m.now().Add(-m.config.LogRetention)

	deleted, err := m.logs.PruneCronJobLogs(ctx, cutoff)
	if err != nil {
		return "", nil, fmt.Errorf("failed to prune cron logs: %w", err)
	}

	return fmt.Sprintf("Deleted %d cron logs", deleted), map[string]interface{}{
		"deleted": deleted,
		"cutoff":  cutoff,
	}, nil
}
