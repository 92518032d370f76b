package repository

import (
	"fmt"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"gorm.io/gorm"
)

// distributionRepo DistributionRepository 的 gorm 实现
type distributionRepo struct {
	db *gorm.DB
}

// NewDistributionRepository 创建分配计划存储
func NewDistributionRepository(db *gorm.DB) DistributionRepository {
	return &distributionRepo{db: db}
}

func (r *distributionRepo) Create(distribution *model.Distribution, event *model.EventLogEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(distribution).Error; err != nil {
			return fmt.Errorf("failed to create distribution: %w", err)
		}

		// 事件的聚合ID在插入后才可知
		event.AggregateId = distribution.Id
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to append event log: %w", err)
		}
		return nil
	})
}

func (r *distributionRepo) GetById(id int64) (*model.Distribution, error) {
	var distribution model.Distribution
	if err := r.db.Preload("Items").First(&distribution, id).Error; err != nil {
		return nil, wrapNotFound(err, "分配计划不存在: %d", id)
	}
	return &distribution, nil
}

func (r *distributionRepo) GetActiveByProject(projectId int64) (*model.Distribution, error) {
	var distribution model.Distribution
	err := r.db.Preload("Items").
		Where("project_id = ? AND status IN ?", projectId, []model.DistributionStatus{
			model.DistributionStatusPending,
			model.DistributionStatusPartiallyExecuted,
			model.DistributionStatusFailed,
		}).
		First(&distribution).Error
	if err != nil {
		return nil, wrapNotFound(err, "项目 %d 没有进行中的分配计划", projectId)
	}
	return &distribution, nil
}

func (r *distributionRepo) ListRetryable() ([]model.Distribution, error) {
	var distributions []model.Distribution
	err := r.db.Preload("Items").
		Where("status IN ?", []model.DistributionStatus{
			model.DistributionStatusPartiallyExecuted,
			model.DistributionStatusFailed,
		}).
		Order("id asc").
		Find(&distributions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable distributions: %w", err)
	}
	return distributions, nil
}

func (r *distributionRepo) UpdateItem(item *model.DistributionItem) error {
	err := r.db.Model(&model.DistributionItem{}).
		Where("id = ?", item.Id).
		Updates(map[string]interface{}{
			"status":         item.Status,
			"transaction_id": item.TransactionId,
			"error":          item.Error,
			"completed_at":   item.CompletedAt,
			"failed_at":      item.FailedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update distribution item: %w", err)
	}
	return nil
}

func (r *distributionRepo) UpdateStatus(distribution *model.Distribution, event *model.EventLogEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.Distribution{}).
			Where("id = ?", distribution.Id).
			Updates(map[string]interface{}{
				"status":      distribution.Status,
				"executed_at": distribution.ExecutedAt,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update distribution status: %w", err)
		}

		if event != nil {
			if err := tx.Create(event).Error; err != nil {
				return fmt.Errorf("failed to append event log: %w", err)
			}
		}
		return nil
	})
}
