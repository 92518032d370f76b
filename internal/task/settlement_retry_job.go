package task

import (
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logic"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/repository"
	"github.com/go-co-op/gocron/v2"
)

// SettlementRetryJob 结算重试任务。重试存在失败分配项的分配计划，
// 以及失败且未达重试上限的创作者打款。
type SettlementRetryJob struct {
	distributions     repository.DistributionRepository
	payouts           repository.PayoutRepository
	distributionLogic *logic.DistributionLogic
	payoutLogic       *logic.PayoutLogic
	config            *config.Config
}

// NewSettlementRetryJob 创建结算重试任务
func NewSettlementRetryJob(
	distributions repository.DistributionRepository,
	payouts repository.PayoutRepository,
	distributionLogic *logic.DistributionLogic,
	payoutLogic *logic.PayoutLogic,
	cfg *config.Config,
) *SettlementRetryJob {
	return &SettlementRetryJob{
		distributions:     distributions,
		payouts:           payouts,
		distributionLogic: distributionLogic,
		payoutLogic:       payoutLogic,
		config:            cfg,
	}
}

// GetName 获取任务名称
func (j *SettlementRetryJob) GetName() string {
	return "settlement_retry_updater"
}

// GetSchedule 获取调度配置
func (j *SettlementRetryJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *SettlementRetryJob) Execute() {
	logger.Info("Starting settlement retry task")

	retried := 0

	distributions, err := j.distributions.ListRetryable()
	if err != nil {
		logger.Error("Failed to fetch retryable distributions: %v", err)
	} else {
		for _, distribution := range distributions {
			if _, err := j.distributionLogic.RetryFailedDistribution(distribution.Id); err != nil {
				logger.Error("Failed to retry distribution %d: %v", distribution.Id, err)
				continue
			}
			retried++
		}
	}

	payouts, err := j.payouts.ListRetryable(model.MaxPayoutRetries)
	if err != nil {
		logger.Error("Failed to fetch retryable payouts: %v", err)
	} else {
		for _, payout := range payouts {
			if _, err := j.payoutLogic.RetryPayout(payout.Id); err != nil {
				logger.Error("Failed to retry payout %d: %v", payout.Id, err)
				continue
			}
			retried++
		}
	}

	logger.Info("Settlement retry task completed. Retried %d records", retried)
}
