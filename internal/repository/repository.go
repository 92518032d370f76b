package repository

import (
	"errors"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"gorm.io/gorm"
)

// ProjectRepository 项目存储
type ProjectRepository interface {
	Create(project *model.FundingProject) error
	GetById(id int64) (*model.FundingProject, error)
	// UpdateStatus 以 CAS 方式更新项目状态，并在同一事务内写入发件箱事件。
	// 观察到的状态与 from 不一致时返回冲突错误。
	UpdateStatus(projectId int64, from, to model.ProjectStatus, event *model.EventLogEntry) error
	ListCollectingExpired(now time.Time) ([]model.FundingProject, error)
	ListByStatus(status model.ProjectStatus) ([]model.FundingProject, error)
	AddMilestone(milestone *model.ProjectMilestone) error
	UpdateMilestoneStatus(milestoneId int64, status string, completedDate *time.Time) error
	// CountOpenMilestones 统计未完结的执行里程碑数量
	CountOpenMilestones(projectId int64) (int64, error)
}

// PledgeRepository 支持记录存储
type PledgeRepository interface {
	Create(pledge *model.Pledge) error
	GetById(id int64) (*model.Pledge, error)
	GetByIdempotencyKey(key string) (*model.Pledge, error)
	// Save 持久化简单状态变更（authorize/cancel/fail）并追加变更历史
	Save(pledge *model.Pledge, change *model.PledgeChange) error
	// Capture 在单个事务内完成扣款：支持状态 CAS、项目金额与支持人数累加、
	// 回报档位库存累加、发件箱事件和变更历史写入
	Capture(pledge *model.Pledge, event *model.EventLogEntry, change *model.PledgeChange) error
	// Refund 在单个事务内完成退款：支持状态更新、项目金额扣减、
	// 发件箱事件和变更历史写入
	Refund(pledge *model.Pledge, deducted model.Money, event *model.EventLogEntry, change *model.PledgeChange) error
	CountOutstandingByProject(projectId int64) (int64, error)
	ListOutstandingByProject(projectId int64) ([]model.Pledge, error)
}

// EventLogRepository 事件发件箱存储。状态字段只允许派发器和人工操作修改。
type EventLogRepository interface {
	Append(entry *model.EventLogEntry) error
	FindPending(limit int) ([]model.EventLogEntry, error)
	// MarkProcessing 以 CAS 方式认领一条待派发事件，认领失败返回 false
	MarkProcessing(id int64) (bool, error)
	Save(entry *model.EventLogEntry) error
	// Retry 将终态 failed 的事件重置为 pending 并立即可派发
	Retry(id int64) error
	// DeleteTerminalBefore 清理早于截止时间的终态事件，返回删除条数
	DeleteTerminalBefore(cutoff time.Time) (int64, error)
}

// DistributionRepository 分配计划存储
type DistributionRepository interface {
	// Create 在单个事务内持久化分配计划（含分配项）和发件箱事件
	Create(distribution *model.Distribution, event *model.EventLogEntry) error
	GetById(id int64) (*model.Distribution, error)
	GetActiveByProject(projectId int64) (*model.Distribution, error)
	// ListRetryable 返回存在失败分配项、可重试的分配计划
	ListRetryable() ([]model.Distribution, error)
	UpdateItem(item *model.DistributionItem) error
	// UpdateStatus 更新整体状态，并在同一事务内写入可选的发件箱事件
	UpdateStatus(distribution *model.Distribution, event *model.EventLogEntry) error
}

// PayoutRepository 打款记录存储
type PayoutRepository interface {
	Create(payout *model.CreatorPayout) error
	GetById(id int64) (*model.CreatorPayout, error)
	// ListRetryable 返回失败且未达重试上限的打款记录
	ListRetryable(maxRetries int) ([]model.CreatorPayout, error)
	// Update 持久化打款结果，并在同一事务内写入可选的发件箱事件
	Update(payout *model.CreatorPayout, event *model.EventLogEntry) error
}

// wrapNotFound 将 gorm 的未找到错误映射为领域错误
func wrapNotFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound(format, args...)
	}
	return err
}
