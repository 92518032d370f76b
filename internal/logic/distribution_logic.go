package logic

import (
	"context"
	"sync"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/gateway"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/repository"
	"github.com/panjf2000/ants/v2"
)

// DistributionLogic 收益分配业务逻辑
type DistributionLogic struct {
	distributions repository.DistributionRepository
	projects      repository.ProjectRepository
	gateway       gateway.PaymentGateway

	minAmount      model.Money
	maxRetries     int
	poolSize       int
	gatewayTimeout time.Duration
}

// NewDistributionLogic 创建收益分配业务逻辑
func NewDistributionLogic(
	distributions repository.DistributionRepository,
	projects repository.ProjectRepository,
	gw gateway.PaymentGateway,
	cfg *config.Config,
) *DistributionLogic {
	return &DistributionLogic{
		distributions:  distributions,
		projects:       projects,
		gateway:        gw,
		minAmount:      model.Money(cfg.Funding.MinDistributionAmount),
		maxRetries:     cfg.Outbox.MaxRetries,
		poolSize:       cfg.Task.PoolSize,
		gatewayTimeout: time.Duration(cfg.Gateway.Timeout) * time.Second,
	}
}

// CreateDistribution 根据规则计算并持久化分配计划。
// 同一项目存在进行中的分配计划时拒绝重复创建。
func (l *DistributionLogic) CreateDistribution(projectId int64, rules []model.DistributionRule, actor string) (*model.Distribution, error) {
	project, err := l.projects.GetById(projectId)
	if err != nil {
		return nil, err
	}

	switch project.Status {
	case model.ProjectStatusSucceeded, model.ProjectStatusExecuting, model.ProjectStatusDistributing:
		// 募集成功之后的阶段都允许创建分配计划
	default:
		return nil, errs.Business("项目状态为 %s，只有募集成功的项目可以创建分配计划", project.Status)
	}

	// 同一项目同时只允许一个进行中的分配计划
	if _, err := l.distributions.GetActiveByProject(projectId); err == nil {
		return nil, errs.Business("项目 %d 已存在进行中的分配计划", projectId)
	} else if !errs.IsNotFound(err) {
		return nil, err
	}

	items, err := model.CalculateDistribution(project.CurrentAmount, rules, l.minAmount)
	if err != nil {
		return nil, err
	}

	distribution := &model.Distribution{
		ProjectId:   projectId,
		TotalAmount: project.CurrentAmount,
		Status:      model.DistributionStatusPending,
		Items:       items,
	}

	event, err := model.NewEventLogEntry(
		model.EventDistributionCreated,
		0, // 插入后由存储层填充
		model.AggregateDistribution,
		map[string]interface{}{
			"project_id":   projectId,
			"total_amount": project.CurrentAmount,
			"item_count":   len(items),
		},
		map[string]string{"actor": actor},
		l.maxRetries,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}

	if err := l.distributions.Create(distribution, event); err != nil {
		return nil, err
	}

	logger.Info("Created distribution %d for project %d, total: %d, items: %d",
		distribution.Id, projectId, distribution.TotalAmount, len(items))
	return distribution, nil
}

// ExecuteDistribution 执行分配计划中所有待打款的分配项。
// 各分配项并行打款，单项失败不影响其他项；
// 整体状态按三态规则汇总：全部成功 executed、全部失败 failed、其余 partially_executed。
func (l *DistributionLogic) ExecuteDistribution(distributionId int64) (*model.Distribution, error) {
	return l.execute(distributionId, model.DistributionItemStatusPending)
}

// RetryFailedDistribution 只重试打款失败的分配项，并按同样的三态规则重新汇总
func (l *DistributionLogic) RetryFailedDistribution(distributionId int64) (*model.Distribution, error) {
	return l.execute(distributionId, model.DistributionItemStatusFailed)
}

func (l *DistributionLogic) execute(distributionId int64, eligible model.DistributionItemStatus) (*model.Distribution, error) {
	distribution, err := l.distributions.GetById(distributionId)
	if err != nil {
		return nil, err
	}

	if distribution.Status == model.DistributionStatusExecuted {
		return nil, errs.Business("分配计划 %d 已全部执行完成", distributionId)
	}

	var targets []*model.DistributionItem
	for i := range distribution.Items {
		if distribution.Items[i].Status == eligible {
			targets = append(targets, &distribution.Items[i])
		}
	}
	if len(targets) == 0 {
		return nil, errs.Business("分配计划 %d 没有状态为 %s 的分配项", distributionId, eligible)
	}

	pool, err := ants.NewPool(l.poolSize)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	// 各分配项并行执行，聚合写串行化
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, item := range targets {
		item := item
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			l.executeItem(item, &mu)
		})
		if submitErr != nil {
			wg.Done()
			logger.Error("Failed to submit distribution item %d to pool: %v", item.Id, submitErr)
		}
	}
	wg.Wait()

	// 按执行结果汇总整体状态
	now := time.Now()
	distribution.Status = model.AggregateDistributionStatus(distribution.Items)
	distribution.ExecutedAt = &now

	event, err := model.NewEventLogEntry(
		model.EventDistributionExecuted,
		distribution.Id,
		model.AggregateDistribution,
		map[string]interface{}{
			"distribution_id": distribution.Id,
			"project_id":      distribution.ProjectId,
			"status":          distribution.Status,
		},
		nil,
		l.maxRetries,
		now,
	)
	if err != nil {
		return nil, err
	}

	if err := l.distributions.UpdateStatus(distribution, event); err != nil {
		return nil, err
	}

	logger.Info("Executed distribution %d with result: %s", distribution.Id, distribution.Status)
	return distribution, nil
}

// executeItem 对单个分配项调用网关打款并记录结果。
// 网关错误只记录在该分配项上，不向上传播。
func (l *DistributionLogic) executeItem(item *model.DistributionItem, mu *sync.Mutex) {
	ctx, cancel := context.WithTimeout(context.Background(), l.gatewayTimeout)
	defer cancel()

	result, err := l.gateway.ProcessPayout(ctx, item.RecipientId, item.Amount, item.BankAccount)
	now := time.Now()

	if err != nil {
		item.Status = model.DistributionItemStatusFailed
		item.Error = err.Error()
		item.FailedAt = &now
		logger.Error("Distribution item %d payout failed: %v", item.Id, err)
	} else {
		item.Status = model.DistributionItemStatusCompleted
		item.TransactionId = result.PayoutId
		item.CompletedAt = &now
		item.Error = ""
	}

	mu.Lock()
	defer mu.Unlock()
	if err := l.distributions.UpdateItem(item); err != nil {
		logger.Error("Failed to persist distribution item %d result: %v", item.Id, err)
	}
}
