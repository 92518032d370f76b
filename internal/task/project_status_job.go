package task

import (
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logic"
	"github.com/go-co-op/gocron/v2"
)

// ProjectStatusJob 项目自动转换任务。扫描募集到期的项目，
// 按是否达标强制转入 succeeded / failed。
type ProjectStatusJob struct {
	projectLogic *logic.ProjectLogic
	config       *config.Config
}

// NewProjectStatusJob 创建项目自动转换任务
func NewProjectStatusJob(projectLogic *logic.ProjectLogic, cfg *config.Config) *ProjectStatusJob {
	return &ProjectStatusJob{
		projectLogic: projectLogic,
		config:       cfg,
	}
}

// GetName 获取任务名称
func (j *ProjectStatusJob) GetName() string {
	return "project_status_updater"
}

// GetSchedule 获取调度配置
func (j *ProjectStatusJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *ProjectStatusJob) Execute() {
	logger.Info("Starting project status update task")

	transitioned, err := j.projectLogic.CheckAutomaticTransitions()
	if err != nil {
		logger.Error("Failed to check automatic transitions: %v", err)
		return
	}

	logger.Info("Project status update completed. Transitioned %d projects", transitioned)
}
