package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/gateway"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Funding: config.FundingConfig{
			MinPledgeAmount:       1000,
			MinTargetAmount:       100000,
			MinDistributionAmount: 1000,
			MaxDurationDays:       90,
			HistoryLimit:          50,
		},
		Outbox:  config.OutboxConfig{MaxRetries: 3, BatchSize: 100, Interval: 5},
		Gateway: config.GatewayConfig{Provider: "mock", Timeout: 5},
		Task:    config.TaskConfig{Interval: 60, PoolSize: 4},
	}
}

// stubProjectRepo ProjectRepository 的内存实现
type stubProjectRepo struct {
	projects       map[int64]model.FundingProject
	events         []*model.EventLogEntry
	openMilestones int64
	nextId         int64
}

func newStubProjectRepo() *stubProjectRepo {
	return &stubProjectRepo{projects: make(map[int64]model.FundingProject)}
}

func (s *stubProjectRepo) put(p model.FundingProject) {
	s.projects[p.Id] = p
}

func (s *stubProjectRepo) Create(project *model.FundingProject) error {
	s.nextId++
	project.Id = s.nextId
	s.projects[project.Id] = *project
	return nil
}

func (s *stubProjectRepo) GetById(id int64) (*model.FundingProject, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, errs.NotFound("项目不存在: %d", id)
	}
	return &p, nil
}

func (s *stubProjectRepo) UpdateStatus(projectId int64, from, to model.ProjectStatus, event *model.EventLogEntry) error {
	p, ok := s.projects[projectId]
	if !ok {
		return errs.NotFound("项目不存在: %d", projectId)
	}
	if p.Status != from {
		return errs.Conflict("项目 %d 状态已变为 %s", projectId, p.Status)
	}
	p.Status = to
	s.projects[projectId] = p
	s.events = append(s.events, event)
	return nil
}

func (s *stubProjectRepo) ListCollectingExpired(now time.Time) ([]model.FundingProject, error) {
	var out []model.FundingProject
	for _, p := range s.projects {
		if p.Status == model.ProjectStatusCollecting && !p.EndTime.After(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubProjectRepo) ListByStatus(status model.ProjectStatus) ([]model.FundingProject, error) {
	var out []model.FundingProject
	for _, p := range s.projects {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubProjectRepo) AddMilestone(milestone *model.ProjectMilestone) error { return nil }

func (s *stubProjectRepo) UpdateMilestoneStatus(milestoneId int64, status string, completedDate *time.Time) error {
	return nil
}

func (s *stubProjectRepo) CountOpenMilestones(projectId int64) (int64, error) {
	return s.openMilestones, nil
}

// stubPledgeRepo PledgeRepository 的内存实现，Capture/Refund 模拟数据库的 CAS 语义
type stubPledgeRepo struct {
	pledges map[int64]model.Pledge
	events  []*model.EventLogEntry
	changes []*model.PledgeChange
	nextId  int64

	deducted model.Money // 最近一次退款扣减的项目金额
}

func newStubPledgeRepo() *stubPledgeRepo {
	return &stubPledgeRepo{pledges: make(map[int64]model.Pledge)}
}

func (s *stubPledgeRepo) put(p model.Pledge) {
	s.pledges[p.Id] = p
}

func (s *stubPledgeRepo) Create(pledge *model.Pledge) error {
	s.nextId++
	pledge.Id = s.nextId
	s.pledges[pledge.Id] = *pledge
	return nil
}

func (s *stubPledgeRepo) GetById(id int64) (*model.Pledge, error) {
	p, ok := s.pledges[id]
	if !ok {
		return nil, errs.NotFound("支持记录不存在: %d", id)
	}
	return &p, nil
}

func (s *stubPledgeRepo) GetByIdempotencyKey(key string) (*model.Pledge, error) {
	for _, p := range s.pledges {
		if p.IdempotencyKey == key {
			found := p
			return &found, nil
		}
	}
	return nil, errs.NotFound("幂等键不存在: %s", key)
}

func (s *stubPledgeRepo) Save(pledge *model.Pledge, change *model.PledgeChange) error {
	s.pledges[pledge.Id] = *pledge
	s.changes = append(s.changes, change)
	return nil
}

func (s *stubPledgeRepo) Capture(pledge *model.Pledge, event *model.EventLogEntry, change *model.PledgeChange) error {
	stored := s.pledges[pledge.Id]
	if stored.Status != model.PledgeStatusAuthorized {
		return errs.Conflict("支持 %d 状态已变为 %s", pledge.Id, stored.Status)
	}
	s.pledges[pledge.Id] = *pledge
	s.events = append(s.events, event)
	s.changes = append(s.changes, change)
	return nil
}

func (s *stubPledgeRepo) Refund(pledge *model.Pledge, deducted model.Money, event *model.EventLogEntry, change *model.PledgeChange) error {
	stored := s.pledges[pledge.Id]
	if stored.Status != model.PledgeStatusAuthorized && stored.Status != model.PledgeStatusCaptured {
		return errs.Conflict("支持 %d 状态已变为 %s", pledge.Id, stored.Status)
	}
	s.pledges[pledge.Id] = *pledge
	s.deducted = deducted
	s.events = append(s.events, event)
	s.changes = append(s.changes, change)
	return nil
}

func (s *stubPledgeRepo) CountOutstandingByProject(projectId int64) (int64, error) {
	var n int64
	for _, p := range s.pledges {
		if p.ProjectId == projectId && !p.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (s *stubPledgeRepo) ListOutstandingByProject(projectId int64) ([]model.Pledge, error) {
	var out []model.Pledge
	for _, p := range s.pledges {
		if p.ProjectId == projectId && !p.Status.Terminal() {
			out = append(out, p)
		}
	}
	return out, nil
}

// stubDistributionRepo DistributionRepository 的内存实现
type stubDistributionRepo struct {
	distributions map[int64]model.Distribution
	events        []*model.EventLogEntry
	nextId        int64
}

func newStubDistributionRepo() *stubDistributionRepo {
	return &stubDistributionRepo{distributions: make(map[int64]model.Distribution)}
}

func (s *stubDistributionRepo) put(d model.Distribution) {
	s.distributions[d.Id] = d
}

func (s *stubDistributionRepo) Create(distribution *model.Distribution, event *model.EventLogEntry) error {
	s.nextId++
	distribution.Id = s.nextId
	for i := range distribution.Items {
		s.nextId++
		distribution.Items[i].Id = s.nextId
		distribution.Items[i].DistributionId = distribution.Id
	}
	s.distributions[distribution.Id] = *distribution
	event.AggregateId = distribution.Id
	s.events = append(s.events, event)
	return nil
}

func (s *stubDistributionRepo) GetById(id int64) (*model.Distribution, error) {
	d, ok := s.distributions[id]
	if !ok {
		return nil, errs.NotFound("分配计划不存在: %d", id)
	}
	items := make([]model.DistributionItem, len(d.Items))
	copy(items, d.Items)
	d.Items = items
	return &d, nil
}

func (s *stubDistributionRepo) GetActiveByProject(projectId int64) (*model.Distribution, error) {
	for _, d := range s.distributions {
		if d.ProjectId == projectId && d.Status.Active() {
			found := d
			return &found, nil
		}
	}
	return nil, errs.NotFound("项目 %d 没有进行中的分配计划", projectId)
}

func (s *stubDistributionRepo) ListRetryable() ([]model.Distribution, error) {
	var out []model.Distribution
	for _, d := range s.distributions {
		if d.Status == model.DistributionStatusPartiallyExecuted || d.Status == model.DistributionStatusFailed {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubDistributionRepo) UpdateItem(item *model.DistributionItem) error {
	d, ok := s.distributions[item.DistributionId]
	if !ok {
		return errs.NotFound("分配计划不存在: %d", item.DistributionId)
	}
	for i := range d.Items {
		if d.Items[i].Id == item.Id {
			d.Items[i] = *item
		}
	}
	s.distributions[item.DistributionId] = d
	return nil
}

func (s *stubDistributionRepo) UpdateStatus(distribution *model.Distribution, event *model.EventLogEntry) error {
	d := s.distributions[distribution.Id]
	d.Status = distribution.Status
	d.ExecutedAt = distribution.ExecutedAt
	s.distributions[distribution.Id] = d
	if event != nil {
		s.events = append(s.events, event)
	}
	return nil
}

// stubPayoutRepo PayoutRepository 的内存实现
type stubPayoutRepo struct {
	payouts map[int64]model.CreatorPayout
	events  []*model.EventLogEntry
	nextId  int64
}

func newStubPayoutRepo() *stubPayoutRepo {
	return &stubPayoutRepo{payouts: make(map[int64]model.CreatorPayout)}
}

func (s *stubPayoutRepo) Create(payout *model.CreatorPayout) error {
	s.nextId++
	payout.Id = s.nextId
	s.payouts[payout.Id] = *payout
	return nil
}

func (s *stubPayoutRepo) GetById(id int64) (*model.CreatorPayout, error) {
	p, ok := s.payouts[id]
	if !ok {
		return nil, errs.NotFound("打款记录不存在: %d", id)
	}
	return &p, nil
}

func (s *stubPayoutRepo) ListRetryable(maxRetries int) ([]model.CreatorPayout, error) {
	var out []model.CreatorPayout
	for _, p := range s.payouts {
		if p.Status == model.PayoutStatusFailed && p.RetryCount < maxRetries {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPayoutRepo) Update(payout *model.CreatorPayout, event *model.EventLogEntry) error {
	s.payouts[payout.Id] = *payout
	if event != nil {
		s.events = append(s.events, event)
	}
	return nil
}

// stubGateway 可编程的网关替身
type stubGateway struct {
	paymentErr error
	refundErr  error
	payoutErr  error

	payments int
	refunds  int
	payouts  int
}

func (g *stubGateway) ProcessPayment(ctx context.Context, pledge *model.Pledge) (*gateway.PaymentResult, error) {
	g.payments++
	if g.paymentErr != nil {
		return nil, g.paymentErr
	}
	return &gateway.PaymentResult{
		TransactionId: fmt.Sprintf("txn_%d", pledge.Id),
		ApprovedAt:    time.Now(),
	}, nil
}

func (g *stubGateway) ProcessRefund(ctx context.Context, pledge *model.Pledge, amount model.Money, reason string) (*gateway.RefundResult, error) {
	g.refunds++
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &gateway.RefundResult{
		RefundId:   fmt.Sprintf("ref_%d", pledge.Id),
		RefundedAt: time.Now(),
	}, nil
}

func (g *stubGateway) ProcessPayout(ctx context.Context, recipientId int64, amount model.Money, bankAccount string) (*gateway.PayoutResult, error) {
	g.payouts++
	if g.payoutErr != nil {
		return nil, g.payoutErr
	}
	return &gateway.PayoutResult{
		PayoutId:    fmt.Sprintf("po_%d", recipientId),
		ProcessedAt: time.Now(),
	}, nil
}

var errGatewayDown = errors.New("gateway unavailable")
