package logic

import (
	"context"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/gateway"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/repository"
)

// PayoutLogic 创作者打款业务逻辑
type PayoutLogic struct {
	payouts repository.PayoutRepository
	gateway gateway.PaymentGateway

	maxRetries     int
	gatewayTimeout time.Duration
}

// NewPayoutLogic 创建打款业务逻辑
func NewPayoutLogic(
	payouts repository.PayoutRepository,
	gw gateway.PaymentGateway,
	cfg *config.Config,
) *PayoutLogic {
	return &PayoutLogic{
		payouts:        payouts,
		gateway:        gw,
		maxRetries:     cfg.Outbox.MaxRetries,
		gatewayTimeout: time.Duration(cfg.Gateway.Timeout) * time.Second,
	}
}

// ProcessPayout 执行一次打款。先以 processing 状态落库再调用网关，
// 网关结果落库时一并写入发件箱事件。打款失败记录在打款单上，不作为错误返回。
func (l *PayoutLogic) ProcessPayout(payout *model.CreatorPayout) (*model.CreatorPayout, error) {
	if err := model.ValidatePayout(payout); err != nil {
		return nil, err
	}

	payout.Status = model.PayoutStatusProcessing
	if err := l.payouts.Create(payout); err != nil {
		return nil, err
	}

	return l.attempt(payout)
}

// RetryPayout 重试一次失败的打款。仅 failed 且未超过重试上限时允许。
func (l *PayoutLogic) RetryPayout(payoutId int64) (*model.CreatorPayout, error) {
	payout, err := l.payouts.GetById(payoutId)
	if err != nil {
		return nil, err
	}

	if err := model.ValidatePayoutRetry(payout); err != nil {
		return nil, err
	}

	now := time.Now()
	payout.Status = model.PayoutStatusProcessing
	payout.RetryCount++
	payout.LastRetryAt = &now
	payout.FailureReason = ""
	if err := l.payouts.Update(payout, nil); err != nil {
		return nil, err
	}

	return l.attempt(payout)
}

// attempt 调用网关执行打款并持久化结果
func (l *PayoutLogic) attempt(payout *model.CreatorPayout) (*model.CreatorPayout, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.gatewayTimeout)
	defer cancel()

	result, gatewayErr := l.gateway.ProcessPayout(ctx, payout.CreatorId, payout.Amount, payout.BankAccount)
	now := time.Now()

	var eventType string
	if gatewayErr != nil {
		payout.Status = model.PayoutStatusFailed
		payout.FailureReason = gatewayErr.Error()
		eventType = model.EventPayoutFailed
		logger.Error("Payout %d failed: %v", payout.Id, gatewayErr)
	} else {
		payout.Status = model.PayoutStatusCompleted
		payout.PayoutId = result.PayoutId
		payout.ProcessedAt = &now
		eventType = model.EventPayoutCompleted
		logger.Info("Payout %d completed with gateway id %s", payout.Id, result.PayoutId)
	}

	event, err := model.NewEventLogEntry(
		eventType,
		payout.Id,
		model.AggregatePayout,
		map[string]interface{}{
			"payout_id":  payout.Id,
			"creator_id": payout.CreatorId,
			"project_id": payout.ProjectId,
			"amount":     payout.Amount,
			"status":     payout.Status,
		},
		nil,
		l.maxRetries,
		now,
	)
	if err != nil {
		return nil, err
	}

	if err := l.payouts.Update(payout, event); err != nil {
		return nil, err
	}

	return payout, nil
}
