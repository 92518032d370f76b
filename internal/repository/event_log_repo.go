package repository

import (
	"fmt"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"gorm.io/gorm"
)

// eventLogRepo EventLogRepository 的 gorm 实现
type eventLogRepo struct {
	db *gorm.DB
}

// NewEventLogRepository 创建事件发件箱存储
func NewEventLogRepository(db *gorm.DB) EventLogRepository {
	return &eventLogRepo{db: db}
}

func (r *eventLogRepo) Append(entry *model.EventLogEntry) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append event log: %w", err)
	}
	return nil
}

func (r *eventLogRepo) FindPending(limit int) ([]model.EventLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	// 按创建时间升序返回，单线程派发时保证同一聚合内的因果顺序
	var entries []model.EventLogEntry
	err := r.db.Where("status = ? AND next_attempt_at <= ? AND retry_count < max_retries",
		model.EventStatusPending, time.Now()).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find pending events: %w", err)
	}
	return entries, nil
}

func (r *eventLogRepo) MarkProcessing(id int64) (bool, error) {
	// CAS 认领，防止多个派发器重复处理同一事件
	result := r.db.Model(&model.EventLogEntry{}).
		Where("id = ? AND status = ?", id, model.EventStatusPending).
		Update("status", model.EventStatusProcessing)
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark event as processing: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *eventLogRepo) Save(entry *model.EventLogEntry) error {
	err := r.db.Model(&model.EventLogEntry{}).
		Where("id = ?", entry.Id).
		Updates(map[string]interface{}{
			"status":          entry.Status,
			"retry_count":     entry.RetryCount,
			"next_attempt_at": entry.NextAttemptAt,
			"last_error":      entry.LastError,
			"processed_at":    entry.ProcessedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to save event log entry: %w", err)
	}
	return nil
}

func (r *eventLogRepo) Retry(id int64) error {
	var entry model.EventLogEntry
	if err := r.db.First(&entry, id).Error; err != nil {
		return wrapNotFound(err, "事件不存在: %d", id)
	}

	if entry.Status != model.EventStatusFailed {
		return errs.Business("当前状态为 %s，只有 failed 状态的事件可以人工重试", entry.Status)
	}

	entry.Rearm(time.Now())
	return r.Save(&entry)
}

func (r *eventLogRepo) DeleteTerminalBefore(cutoff time.Time) (int64, error) {
	// 只清理终态事件，pending/processing 永不清理
	result := r.db.Where("status IN ? AND created_at < ?",
		[]model.EventStatus{model.EventStatusCompleted, model.EventStatusFailed, model.EventStatusCancelled},
		cutoff).
		Delete(&model.EventLogEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup old events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
