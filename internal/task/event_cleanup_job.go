package task

import (
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/repository"
	"github.com/go-co-op/gocron/v2"
)

// EventCleanupJob 发件箱清理任务。只清理超过保留期的终态事件，
// pending/processing 永不清理。
type EventCleanupJob struct {
	events repository.EventLogRepository
	config *config.Config
}

// NewEventCleanupJob 创建发件箱清理任务
func NewEventCleanupJob(events repository.EventLogRepository, cfg *config.Config) *EventCleanupJob {
	return &EventCleanupJob{
		events: events,
		config: cfg,
	}
}

// GetName 获取任务名称
func (j *EventCleanupJob) GetName() string {
	return "event_log_cleaner"
}

// GetSchedule 获取调度配置，清理任务每天跑一次即可
func (j *EventCleanupJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(24 * time.Hour)
}

// Execute 执行任务
func (j *EventCleanupJob) Execute() {
	logger.Info("Starting event log cleanup task")

	retention := time.Duration(j.config.Outbox.RetentionDays) * 24 * time.Hour
	cutoff := time.Now().Add(-retention)

	deleted, err := j.events.DeleteTerminalBefore(cutoff)
	if err != nil {
		logger.Error("Failed to cleanup old events: %v", err)
		return
	}

	logger.Info("Event log cleanup completed. Deleted %d entries", deleted)
}
