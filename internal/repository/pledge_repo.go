package repository

import (
	"fmt"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// pledgeRepo PledgeRepository 的 gorm 实现
type pledgeRepo struct {
	db           *gorm.DB
	historyLimit int
}

// NewPledgeRepository 创建支持记录存储
func NewPledgeRepository(db *gorm.DB, historyLimit int) PledgeRepository {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &pledgeRepo{db: db, historyLimit: historyLimit}
}

func (r *pledgeRepo) Create(pledge *model.Pledge) error {
	if err := r.db.Create(pledge).Error; err != nil {
		return fmt.Errorf("failed to create pledge: %w", err)
	}
	return nil
}

func (r *pledgeRepo) GetById(id int64) (*model.Pledge, error) {
	var pledge model.Pledge
	if err := r.db.First(&pledge, id).Error; err != nil {
		return nil, wrapNotFound(err, "支持记录不存在: %d", id)
	}
	return &pledge, nil
}

func (r *pledgeRepo) GetByIdempotencyKey(key string) (*model.Pledge, error) {
	var pledge model.Pledge
	if err := r.db.Where("idempotency_key = ?", key).First(&pledge).Error; err != nil {
		return nil, wrapNotFound(err, "幂等键对应的支持记录不存在: %s", key)
	}
	return &pledge, nil
}

func (r *pledgeRepo) Save(pledge *model.Pledge, change *model.PledgeChange) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(pledge).Error; err != nil {
			return fmt.Errorf("failed to save pledge: %w", err)
		}
		return r.appendChange(tx, change)
	})
}

func (r *pledgeRepo) Capture(pledge *model.Pledge, event *model.EventLogEntry, change *model.PledgeChange) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 锁定项目行，串行化同一项目的扣款与退款
		var project model.FundingProject
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&project, pledge.ProjectId).Error; err != nil {
			return wrapNotFound(err, "项目不存在: %d", pledge.ProjectId)
		}

		if project.Status != model.ProjectStatusCollecting {
			return errs.Business("项目状态为 %s，不在募集中，无法扣款", project.Status)
		}

		// 支持状态 CAS：并发重复扣款时第二个事务在此失败
		result := tx.Model(&model.Pledge{}).
			Where("id = ? AND status = ?", pledge.Id, model.PledgeStatusAuthorized).
			Updates(map[string]interface{}{
				"status":         model.PledgeStatusCaptured,
				"transaction_id": pledge.TransactionId,
				"captured_at":    pledge.CapturedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to capture pledge: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errs.Conflict("支持 %d 的状态已变化，扣款被拒绝", pledge.Id)
		}

		// 项目金额与支持人数随状态变更原子更新
		if err := tx.Model(&project).Updates(map[string]interface{}{
			"current_amount": gorm.Expr("current_amount + ?", pledge.Amount),
			"backer_count":   gorm.Expr("backer_count + 1"),
		}).Error; err != nil {
			return fmt.Errorf("failed to update project amount: %w", err)
		}

		// 回报档位库存累加，受库存上限约束
		if pledge.RewardId != nil {
			result := tx.Model(&model.Reward{}).
				Where("id = ? AND (stock = 0 OR sold < stock)", *pledge.RewardId).
				Update("sold", gorm.Expr("sold + 1"))
			if result.Error != nil {
				return fmt.Errorf("failed to update reward stock: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return errs.Business("回报档位 %d 已售罄", *pledge.RewardId)
			}
		}

		// 发件箱事件与状态变更同事务提交
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to append event log: %w", err)
		}

		return r.appendChange(tx, change)
	})
}

func (r *pledgeRepo) Refund(pledge *model.Pledge, deducted model.Money, event *model.EventLogEntry, change *model.PledgeChange) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 锁定项目行，串行化同一项目的扣款与退款
		var project model.FundingProject
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&project, pledge.ProjectId).Error; err != nil {
			return wrapNotFound(err, "项目不存在: %d", pledge.ProjectId)
		}

		// 支持状态 CAS：已退款或状态变化时拒绝
		result := tx.Model(&model.Pledge{}).
			Where("id = ? AND status IN ? AND refund_amount IS NULL",
				pledge.Id, []model.PledgeStatus{model.PledgeStatusAuthorized, model.PledgeStatusCaptured}).
			Updates(map[string]interface{}{
				"status":        model.PledgeStatusRefunded,
				"refund_amount": pledge.RefundAmount,
				"refund_reason": pledge.RefundReason,
				"refund_id":     pledge.RefundId,
				"refunded_at":   pledge.RefundedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to refund pledge: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errs.Conflict("支持 %d 的状态已变化，退款被拒绝", pledge.Id)
		}

		// 已扣款的支持退款时扣减项目金额，未扣款的支持没有计入过
		if deducted > 0 {
			if err := tx.Model(&project).
				Update("current_amount", gorm.Expr("current_amount - ?", deducted)).Error; err != nil {
				return fmt.Errorf("failed to deduct project amount: %w", err)
			}
		}

		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to append event log: %w", err)
		}

		return r.appendChange(tx, change)
	})
}

func (r *pledgeRepo) CountOutstandingByProject(projectId int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.Pledge{}).
		Where("project_id = ? AND status IN ?", projectId,
			[]model.PledgeStatus{model.PledgeStatusAuthorized, model.PledgeStatusCaptured}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count outstanding pledges: %w", err)
	}
	return count, nil
}

func (r *pledgeRepo) ListOutstandingByProject(projectId int64) ([]model.Pledge, error) {
	var pledges []model.Pledge
	err := r.db.Where("project_id = ? AND status IN ?", projectId,
		[]model.PledgeStatus{model.PledgeStatusAuthorized, model.PledgeStatusCaptured}).
		Order("created_at ASC").
		Find(&pledges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list outstanding pledges: %w", err)
	}
	return pledges, nil
}

// appendChange 追加变更历史并裁剪超出上限的最老记录
func (r *pledgeRepo) appendChange(tx *gorm.DB, change *model.PledgeChange) error {
	if change == nil {
		return nil
	}
	if err := tx.Create(change).Error; err != nil {
		return fmt.Errorf("failed to append pledge change: %w", err)
	}

	// 历史条数有上限，删除最老的超额记录
	err := tx.Exec(`DELETE FROM pledge_change WHERE pledge_id = ? AND id NOT IN (
		SELECT id FROM pledge_change WHERE pledge_id = ? ORDER BY id DESC LIMIT ?
	)`, change.PledgeId, change.PledgeId, r.historyLimit).Error
	if err != nil {
		return fmt.Errorf("failed to prune pledge changes: %w", err)
	}
	return nil
}
