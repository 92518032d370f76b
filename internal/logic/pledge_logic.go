package logic

import (
	"context"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/gateway"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/repository"
)

// PledgeLogic 支持记录业务逻辑
type PledgeLogic struct {
	pledges  repository.PledgeRepository
	projects repository.ProjectRepository
	gateway  gateway.PaymentGateway

	minAmount      model.Money
	maxRetries     int
	gatewayTimeout time.Duration
}

// NewPledgeLogic 创建支持记录业务逻辑
func NewPledgeLogic(
	pledges repository.PledgeRepository,
	projects repository.ProjectRepository,
	gw gateway.PaymentGateway,
	cfg *config.Config,
) *PledgeLogic {
	return &PledgeLogic{
		pledges:        pledges,
		projects:       projects,
		gateway:        gw,
		minAmount:      model.Money(cfg.Funding.MinPledgeAmount),
		maxRetries:     cfg.Outbox.MaxRetries,
		gatewayTimeout: time.Duration(cfg.Gateway.Timeout) * time.Second,
	}
}

// CreatePledge 创建支持记录。同一幂等键的重复提交返回已有记录而不是报错。
func (l *PledgeLogic) CreatePledge(pledge *model.Pledge) (*model.Pledge, error) {
	if err := model.ValidatePledge(pledge, l.minAmount); err != nil {
		return nil, err
	}

	// 幂等检查：重复提交直接返回之前的结果
	if existing, err := l.pledges.GetByIdempotencyKey(pledge.IdempotencyKey); err == nil {
		logger.Info("Duplicate pledge submission with key %s, returning pledge %d",
			pledge.IdempotencyKey, existing.Id)
		return existing, nil
	} else if !errs.IsNotFound(err) {
		return nil, err
	}

	project, err := l.projects.GetById(pledge.ProjectId)
	if err != nil {
		return nil, err
	}
	if project.Status != model.ProjectStatusCollecting {
		return nil, errs.Business("项目状态为 %s，不在募集中，无法接受支持", project.Status)
	}

	// 校验回报档位
	if pledge.RewardId != nil {
		reward := findReward(project, *pledge.RewardId)
		if reward == nil {
			return nil, errs.Validation("回报档位 %d 不属于项目 %d", *pledge.RewardId, pledge.ProjectId)
		}
		if reward.Stock > 0 && reward.Sold >= reward.Stock {
			return nil, errs.Business("回报档位 %d 已售罄", reward.Id)
		}
		if pledge.Amount < reward.Amount {
			return nil, errs.Validation("支持金额低于回报档位金额: %d < %d", pledge.Amount, reward.Amount)
		}
	}

	pledge.Status = model.PledgeStatusPending
	if err := l.pledges.Create(pledge); err != nil {
		return nil, err
	}

	logger.Info("Created pledge %d for project %d, amount: %d", pledge.Id, pledge.ProjectId, pledge.Amount)
	return pledge, nil
}

// Authorize 记录网关授权结果（pending -> authorized）
func (l *PledgeLogic) Authorize(pledgeId int64, paymentId string, actor string) (*model.Pledge, error) {
	pledge, err := l.pledges.GetById(pledgeId)
	if err != nil {
		return nil, err
	}

	if err := model.ValidateAuthorize(pledge); err != nil {
		return nil, err
	}

	now := time.Now()
	oldStatus := pledge.Status
	pledge.Status = model.PledgeStatusAuthorized
	pledge.PaymentId = paymentId
	pledge.AuthorizedAt = &now

	change := newStatusChange(pledge.Id, oldStatus, pledge.Status, actor, "payment authorized")
	if err := l.pledges.Save(pledge, change); err != nil {
		return nil, err
	}

	logger.Info("Authorized pledge %d with payment %s", pledge.Id, paymentId)
	return pledge, nil
}

// Capture 执行扣款（authorized -> captured）。
// 对已扣款的支持重复调用是无操作，返回之前的结果。
// 扣款成功与项目金额累加、发件箱事件在同一事务内提交。
func (l *PledgeLogic) Capture(pledgeId int64, actor string) (*model.Pledge, error) {
	pledge, err := l.pledges.GetById(pledgeId)
	if err != nil {
		return nil, err
	}

	// 幂等：重复扣款返回之前的结果，不产生第二次经济效果
	if pledge.Status == model.PledgeStatusCaptured {
		return pledge, nil
	}

	if err := model.ValidateCapture(pledge); err != nil {
		return nil, err
	}

	// 调用网关执行实际扣款
	ctx, cancel := context.WithTimeout(context.Background(), l.gatewayTimeout)
	defer cancel()

	result, err := l.gateway.ProcessPayment(ctx, pledge)
	if err != nil {
		return nil, errs.External(err, "网关扣款失败: pledge %d", pledge.Id)
	}

	now := time.Now()
	oldStatus := pledge.Status
	pledge.Status = model.PledgeStatusCaptured
	pledge.TransactionId = result.TransactionId
	pledge.CapturedAt = &now

	event, err := model.NewEventLogEntry(
		model.EventPledgeCaptured,
		pledge.Id,
		model.AggregatePledge,
		map[string]interface{}{
			"pledge_id":      pledge.Id,
			"project_id":     pledge.ProjectId,
			"backer_id":      pledge.BackerId,
			"amount":         pledge.Amount,
			"transaction_id": pledge.TransactionId,
		},
		map[string]string{"actor": actor},
		l.maxRetries,
		now,
	)
	if err != nil {
		return nil, err
	}

	change := newStatusChange(pledge.Id, oldStatus, pledge.Status, actor, "payment captured")
	if err := l.pledges.Capture(pledge, event, change); err != nil {
		// 并发下另一个请求先完成了扣款，返回其结果
		if errs.IsConflict(err) {
			if current, getErr := l.pledges.GetById(pledgeId); getErr == nil &&
				current.Status == model.PledgeStatusCaptured {
				return current, nil
			}
		}
		return nil, err
	}

	logger.Info("Captured pledge %d for project %d, amount: %d", pledge.Id, pledge.ProjectId, pledge.Amount)
	return pledge, nil
}

// Refund 执行退款（authorized/captured -> refunded）。
// amount 为 0 时退全款。对已退款的支持重复调用是无操作。
func (l *PledgeLogic) Refund(pledgeId int64, amount model.Money, reason string, actor string) (*model.Pledge, error) {
	pledge, err := l.pledges.GetById(pledgeId)
	if err != nil {
		return nil, err
	}

	// 幂等：已退款的支持直接返回之前的结果
	if pledge.Status == model.PledgeStatusRefunded {
		return pledge, nil
	}

	if amount == 0 {
		amount = pledge.Amount
	}
	if err := model.ValidateRefund(pledge, amount); err != nil {
		return nil, err
	}

	// 调用网关执行实际退款
	ctx, cancel := context.WithTimeout(context.Background(), l.gatewayTimeout)
	defer cancel()

	result, err := l.gateway.ProcessRefund(ctx, pledge, amount, reason)
	if err != nil {
		return nil, errs.External(err, "网关退款失败: pledge %d", pledge.Id)
	}

	now := time.Now()
	oldStatus := pledge.Status
	pledge.Status = model.PledgeStatusRefunded
	pledge.RefundAmount = &amount
	pledge.RefundReason = reason
	pledge.RefundId = result.RefundId
	pledge.RefundedAt = &now

	// 只有已扣款的支持计入过项目金额，需要扣减
	var deducted model.Money
	if oldStatus == model.PledgeStatusCaptured {
		deducted = amount
	}

	event, err := model.NewEventLogEntry(
		model.EventPledgeRefunded,
		pledge.Id,
		model.AggregatePledge,
		map[string]interface{}{
			"pledge_id":  pledge.Id,
			"project_id": pledge.ProjectId,
			"backer_id":  pledge.BackerId,
			"amount":     amount,
			"refund_id":  pledge.RefundId,
			"reason":     reason,
		},
		map[string]string{"actor": actor},
		l.maxRetries,
		now,
	)
	if err != nil {
		return nil, err
	}

	change := newStatusChange(pledge.Id, oldStatus, pledge.Status, actor, reason)
	if err := l.pledges.Refund(pledge, deducted, event, change); err != nil {
		if errs.IsConflict(err) {
			if current, getErr := l.pledges.GetById(pledgeId); getErr == nil &&
				current.Status == model.PledgeStatusRefunded {
				return current, nil
			}
		}
		return nil, err
	}

	logger.Info("Refunded pledge %d, amount: %d, reason: %s", pledge.Id, amount, reason)
	return pledge, nil
}

// Cancel 取消支持（pending/authorized -> cancelled）
func (l *PledgeLogic) Cancel(pledgeId int64, reason string, actor string) (*model.Pledge, error) {
	pledge, err := l.pledges.GetById(pledgeId)
	if err != nil {
		return nil, err
	}

	if err := model.ValidateCancel(pledge); err != nil {
		return nil, err
	}

	now := time.Now()
	oldStatus := pledge.Status
	pledge.Status = model.PledgeStatusCancelled
	pledge.CancelReason = reason
	pledge.CancelledAt = &now

	change := newStatusChange(pledge.Id, oldStatus, pledge.Status, actor, reason)
	if err := l.pledges.Save(pledge, change); err != nil {
		return nil, err
	}

	logger.Info("Cancelled pledge %d, reason: %s", pledge.Id, reason)
	return pledge, nil
}

// MarkFailed 标记支付失败（pending -> failed），由网关回调触发
func (l *PledgeLogic) MarkFailed(pledgeId int64, reason string) (*model.Pledge, error) {
	pledge, err := l.pledges.GetById(pledgeId)
	if err != nil {
		return nil, err
	}

	if pledge.Status != model.PledgeStatusPending {
		return nil, errs.Business("当前状态为 %s，只有 pending 状态的支持可以标记失败", pledge.Status)
	}

	oldStatus := pledge.Status
	pledge.Status = model.PledgeStatusFailed

	change := newStatusChange(pledge.Id, oldStatus, pledge.Status, "gateway", reason)
	if err := l.pledges.Save(pledge, change); err != nil {
		return nil, err
	}

	logger.Info("Marked pledge %d as failed: %s", pledge.Id, reason)
	return pledge, nil
}

// findReward 在项目回报列表中查找档位
func findReward(project *model.FundingProject, rewardId int64) *model.Reward {
	for i := range project.Rewards {
		if project.Rewards[i].Id == rewardId {
			return &project.Rewards[i]
		}
	}
	return nil
}

// newStatusChange 构建状态变更历史记录
func newStatusChange(pledgeId int64, from, to model.PledgeStatus, actor, reason string) *model.PledgeChange {
	return &model.PledgeChange{
		PledgeId: pledgeId,
		Field:    "status",
		OldValue: string(from),
		NewValue: string(to),
		Actor:    actor,
		Reason:   reason,
	}
}
