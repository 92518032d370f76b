package task

import (
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logic"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/repository"
	"github.com/go-co-op/gocron/v2"
)

// ProjectRefundJob 失败项目退款任务。将 failed 项目的未了结支持逐笔退款，
// 全部了结后把项目转入 closed。
type ProjectRefundJob struct {
	projects     repository.ProjectRepository
	pledges      repository.PledgeRepository
	pledgeLogic  *logic.PledgeLogic
	projectLogic *logic.ProjectLogic
	config       *config.Config
}

// NewProjectRefundJob 创建失败项目退款任务
func NewProjectRefundJob(
	projects repository.ProjectRepository,
	pledges repository.PledgeRepository,
	pledgeLogic *logic.PledgeLogic,
	projectLogic *logic.ProjectLogic,
	cfg *config.Config,
) *ProjectRefundJob {
	return &ProjectRefundJob{
		projects:     projects,
		pledges:      pledges,
		pledgeLogic:  pledgeLogic,
		projectLogic: projectLogic,
		config:       cfg,
	}
}

// GetName 获取任务名称
func (j *ProjectRefundJob) GetName() string {
	return "project_refund_updater"
}

// GetSchedule 获取调度配置
func (j *ProjectRefundJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *ProjectRefundJob) Execute() {
	logger.Info("Starting project refund task")

	projects, err := j.projects.ListByStatus(model.ProjectStatusFailed)
	if err != nil {
		logger.Error("Failed to fetch failed projects: %v", err)
		return
	}

	refundedCount := 0
	closedCount := 0

	for _, project := range projects {
		pledges, err := j.pledges.ListOutstandingByProject(project.Id)
		if err != nil {
			logger.Error("Failed to fetch outstanding pledges for project %d: %v", project.Id, err)
			continue
		}

		for _, pledge := range pledges {
			if _, err := j.pledgeLogic.Refund(pledge.Id, 0, "project failed", "system"); err != nil {
				// 网关失败的支持留到下个周期重试
				logger.Error("Failed to refund pledge %d for project %d: %v",
					pledge.Id, project.Id, err)
				continue
			}
			refundedCount++
		}

		// 所有支持都了结后关闭项目；前置条件不满足则等待下个周期
		if _, err := j.projectLogic.TransitionStatus(project.Id, model.ProjectStatusClosed, "scheduler"); err != nil {
			if !errs.IsBusiness(err) && !errs.IsConflict(err) {
				logger.Error("Failed to close failed project %d: %v", project.Id, err)
			}
			continue
		}
		closedCount++
	}

	logger.Info("Project refund task completed. Refunded %d pledges, closed %d projects",
		refundedCount, closedCount)
}
