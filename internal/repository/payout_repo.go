package repository

import (
	"fmt"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"gorm.io/gorm"
)

// payoutRepo PayoutRepository 的 gorm 实现
type payoutRepo struct {
	db *gorm.DB
}

// NewPayoutRepository 创建打款记录存储
func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepo{db: db}
}

func (r *payoutRepo) Create(payout *model.CreatorPayout) error {
	if err := r.db.Create(payout).Error; err != nil {
		return fmt.Errorf("failed to create payout: %w", err)
	}
	return nil
}

func (r *payoutRepo) GetById(id int64) (*model.CreatorPayout, error) {
	var payout model.CreatorPayout
	if err := r.db.First(&payout, id).Error; err != nil {
		return nil, wrapNotFound(err, "打款记录不存在: %d", id)
	}
	return &payout, nil
}

func (r *payoutRepo) ListRetryable(maxRetries int) ([]model.CreatorPayout, error) {
	var payouts []model.CreatorPayout
	err := r.db.
		Where("status = ? AND retry_count < ?", model.PayoutStatusFailed, maxRetries).
		Order("id asc").
		Find(&payouts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable payouts: %w", err)
	}
	return payouts, nil
}

func (r *payoutRepo) Update(payout *model.CreatorPayout, event *model.EventLogEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.CreatorPayout{}).
			Where("id = ?", payout.Id).
			Updates(map[string]interface{}{
				"status":         payout.Status,
				"payout_id":      payout.PayoutId,
				"retry_count":    payout.RetryCount,
				"last_retry_at":  payout.LastRetryAt,
				"failure_reason": payout.FailureReason,
				"processed_at":   payout.ProcessedAt,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update payout: %w", err)
		}

		if event != nil {
			if err := tx.Create(event).Error; err != nil {
				return fmt.Errorf("failed to append event log: %w", err)
			}
		}
		return nil
	})
}
