package logic

import (
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/repository"
)

// ProjectLogic 项目业务逻辑
type ProjectLogic struct {
	projects      repository.ProjectRepository
	pledges       repository.PledgeRepository
	distributions repository.DistributionRepository

	minTarget       model.Money
	maxDurationDays int
	maxRetries      int
}

// NewProjectLogic 创建项目业务逻辑
func NewProjectLogic(
	projects repository.ProjectRepository,
	pledges repository.PledgeRepository,
	distributions repository.DistributionRepository,
	cfg *config.Config,
) *ProjectLogic {
	return &ProjectLogic{
		projects:        projects,
		pledges:         pledges,
		distributions:   distributions,
		minTarget:       model.Money(cfg.Funding.MinTargetAmount),
		maxDurationDays: cfg.Funding.MaxDurationDays,
		maxRetries:      cfg.Outbox.MaxRetries,
	}
}

// CreateProject 创建草稿项目
func (l *ProjectLogic) CreateProject(project *model.FundingProject) (*model.FundingProject, error) {
	if project.Title == "" {
		return nil, errs.Validation("项目标题不能为空")
	}
	if project.OwnerId == 0 {
		return nil, errs.Validation("项目创建者不能为空")
	}
	if project.TargetAmount <= 0 {
		return nil, errs.Validation("目标金额必须大于0")
	}

	project.Status = model.ProjectStatusDraft
	project.CurrentAmount = 0
	project.BackerCount = 0

	if err := l.projects.Create(project); err != nil {
		return nil, err
	}

	logger.Info("Created project %d: %s", project.Id, project.Title)
	return project, nil
}

// Publish 发布项目（draft -> collecting）
func (l *ProjectLogic) Publish(projectId int64, actor string) (*model.FundingProject, error) {
	return l.TransitionStatus(projectId, model.ProjectStatusCollecting, actor)
}

// TransitionStatus 执行项目状态转换。先校验转换表，再评估目标状态的
// 业务前置条件，最后以 CAS 提交状态变更，发件箱事件在同一事务内写入。
// 校验失败时项目保持原状。
func (l *ProjectLogic) TransitionStatus(projectId int64, to model.ProjectStatus, actor string) (*model.FundingProject, error) {
	project, err := l.projects.GetById(projectId)
	if err != nil {
		return nil, err
	}

	from := project.Status
	if err := model.ValidateTransition(from, to); err != nil {
		return nil, err
	}

	if err := l.checkGuard(project, to); err != nil {
		return nil, err
	}

	event, err := model.NewEventLogEntry(
		model.EventProjectStatusChanged,
		project.Id,
		model.AggregateProject,
		map[string]interface{}{
			"project_id":     project.Id,
			"from":           from,
			"to":             to,
			"current_amount": project.CurrentAmount,
			"target_amount":  project.TargetAmount,
		},
		map[string]string{"actor": actor},
		l.maxRetries,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}

	if err := l.projects.UpdateStatus(project.Id, from, to, event); err != nil {
		return nil, err
	}

	project.Status = to
	logger.Info("Transitioned project %d from %s to %s", project.Id, from, to)
	return project, nil
}

// checkGuard 评估目标状态的业务前置条件
func (l *ProjectLogic) checkGuard(project *model.FundingProject, to model.ProjectStatus) error {
	now := time.Now()

	switch to {
	case model.ProjectStatusCollecting:
		return model.ValidatePublish(project, l.minTarget, l.maxDurationDays, now)

	case model.ProjectStatusSucceeded:
		if !project.Expired(now) {
			return errs.Business("募集期尚未结束，不能判定为成功")
		}
		if !project.GoalReached() {
			return errs.Business("未达到目标金额: %d < %d", project.CurrentAmount, project.TargetAmount)
		}

	case model.ProjectStatusFailed:
		if !project.Expired(now) {
			return errs.Business("募集期尚未结束，不能判定为失败")
		}
		if project.GoalReached() {
			return errs.Business("已达到目标金额，不能判定为失败")
		}

	case model.ProjectStatusExecuting:
		// 转换表已保证来源为 succeeded，无额外条件

	case model.ProjectStatusDistributing:
		open, err := l.projects.CountOpenMilestones(project.Id)
		if err != nil {
			return err
		}
		if open > 0 {
			return errs.Business("还有 %d 个执行里程碑未完结，不能进入分配阶段", open)
		}

	case model.ProjectStatusClosed:
		return l.checkCloseGuard(project)
	}

	return nil
}

// checkCloseGuard 关闭项目的前置条件取决于来源状态
func (l *ProjectLogic) checkCloseGuard(project *model.FundingProject) error {
	switch project.Status {
	case model.ProjectStatusFailed:
		// 所有支持必须已经退款或取消
		outstanding, err := l.pledges.CountOutstandingByProject(project.Id)
		if err != nil {
			return err
		}
		if outstanding > 0 {
			return errs.Business("还有 %d 笔支持未退款或取消，不能关闭项目", outstanding)
		}

	case model.ProjectStatusDistributing:
		// 所有分配项必须已经完成（或被明确核销）
		if _, err := l.distributions.GetActiveByProject(project.Id); err == nil {
			return errs.Business("分配计划尚未全部完成，不能关闭项目")
		} else if !errs.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// CheckAutomaticTransitions 扫描募集到期的项目并应用强制转换。
// 这是唯一不由用户操作触发的转换，每个调度周期重复评估是安全的。
// 返回成功转换的项目数。
func (l *ProjectLogic) CheckAutomaticTransitions() (int, error) {
	now := time.Now()

	projects, err := l.projects.ListCollectingExpired(now)
	if err != nil {
		return 0, err
	}

	transitioned := 0
	for i := range projects {
		project := &projects[i]

		to, ok := model.ExpiryOutcome(project, now)
		if !ok {
			continue
		}

		if _, err := l.TransitionStatus(project.Id, to, "scheduler"); err != nil {
			// 并发冲突说明另一个实例已经完成转换，跳过即可
			if errs.IsConflict(err) {
				continue
			}
			logger.Error("Failed to transition expired project %d: %v", project.Id, err)
			continue
		}
		transitioned++
	}

	return transitioned, nil
}

// AddMilestone 添加执行里程碑
func (l *ProjectLogic) AddMilestone(milestone *model.ProjectMilestone) error {
	if milestone.ProjectId == 0 {
		return errs.Validation("项目ID不能为空")
	}
	if milestone.Title == "" {
		return errs.Validation("里程碑标题不能为空")
	}
	milestone.Status = model.MilestoneStatusPending
	return l.projects.AddMilestone(milestone)
}

// CompleteMilestone 完结执行里程碑
func (l *ProjectLogic) CompleteMilestone(milestoneId int64) error {
	now := time.Now()
	return l.projects.UpdateMilestoneStatus(milestoneId, model.MilestoneStatusCompleted, &now)
}
