package cron

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	JobRoomKeepAlive = "room_keepalive"
	JobPruneCronLogs = "prune_cron_logs"

	defaultKeepAliveSchedule = "*/20 * * * * *"
	pruneSchedule            = "0 0 3 * * *"
	defaultLogRetention      = 30 * 24 * time.Hour
	jobTimeout               = 5 * time.Minute
)

// KeepAliver asks open streams to write a keep-alive.
type KeepAliver interface {
	KeepAlive() int
}

// Config controls job schedules. Zero values use the defaults.
type Config struct {
	KeepAliveSchedule string
	LogRetention      time.Duration
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron   *cron.Cron
	logs   database.CronLogStore
	rooms  KeepAliver
	config Config
	log    *zap.Logger
	now    func() time.Time
}

// NewCronManager creates a new cron manager
func NewCronManager(logs database.CronLogStore, rooms KeepAliver, config Config, log *zap.Logger) *CronManager {
	if config.KeepAliveSchedule == "" {
		config.KeepAliveSchedule = defaultKeepAliveSchedule
	}
	if config.LogRetention <= 0 {
		config.LogRetention = defaultLogRetention
	}

	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger{log})))

	return &CronManager{
		cron:   c,
		logs:   logs,
		rooms:  rooms,
		config: config,
		log:    log,
		now:    time.Now,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	m.log.Info("starting cron jobs")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	m.log.Info("cron jobs started", zap.Int("jobs", len(m.cron.Entries())))
	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (m *CronManager) Stop() {
	m.log.Info("stopping cron jobs")
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.log.Info("cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// Every 20 seconds: keep idle course streams open through proxies.
	// Too frequent to be worth a log row per run.
	if _, err := m.cron.AddFunc(m.config.KeepAliveSchedule, m.KeepAliveRooms); err != nil {
		return err
	}

	// Daily at 3 AM: drop old job logs
	if _, err := m.cron.AddFunc(pruneSchedule, func() {
		m.runLogged(JobPruneCronLogs, m.PruneCronLogs)
	}); err != nil {
		return err
	}

	return nil
}

// runLogged records a job run in the cron log table.
func (m *CronManager) runLogged(jobName string, job func(ctx context.Context) (string, map[string]interface{}, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	started := m.now()
	entry := &model.CronJobLog{
		JobName:   jobName,
		Status:    model.CronJobStarted,
		StartedAt: started,
		Metadata:  datatypes.JSON("{}"),
	}
	if err := m.logs.CreateCronJobLog(ctx, entry); err != nil {
		m.log.Warn("failed to record cron job start", zap.String("job", jobName), zap.Error(err))
	}

	m.log.Info("cron job started", zap.String("job", jobName))
	message, metadata, err := job(ctx)

	completed := m.now()
	entry.CompletedAt = &completed
	entry.Duration = int(completed.Sub(started).Milliseconds())
	if metadata != nil {
		if raw, mErr := json.Marshal(metadata); mErr == nil {
			entry.Metadata = datatypes.JSON(raw)
		}
	}
	if err != nil {
		entry.Status = model.CronJobFailed
		entry.ErrorMsg = err.Error()
		m.log.Error("cron job failed", zap.String("job", jobName), zap.Error(err))
	} else {
		entry.Status = model.CronJobCompleted
		entry.Message = message
		m.log.Info("cron job completed", zap.String("job", jobName), zap.String("message", message))
	}

	if entry.ID == 0 {
		return
	}
	if err := m.logs.SaveCronJobLog(ctx, entry); err != nil {
		m.log.Warn("failed to record cron job result", zap.String("job", jobName), zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger for the recover wrapper.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
