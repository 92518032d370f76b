package repository

import (
	"fmt"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"gorm.io/gorm"
)

// projectRepo ProjectRepository 的 gorm 实现
type projectRepo struct {
	db *gorm.DB
}

// NewProjectRepository 创建项目存储
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepo{db: db}
}

func (r *projectRepo) Create(project *model.FundingProject) error {
	if err := r.db.Create(project).Error; err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *projectRepo) GetById(id int64) (*model.FundingProject, error) {
	var project model.FundingProject
	if err := r.db.Preload("Rewards").Preload("Images").First(&project, id).Error; err != nil {
		return nil, wrapNotFound(err, "项目不存在: %d", id)
	}
	return &project, nil
}

func (r *projectRepo) UpdateStatus(projectId int64, from, to model.ProjectStatus, event *model.EventLogEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 状态 CAS：自校验以来状态已被其他请求修改时放弃转换
		result := tx.Model(&model.FundingProject{}).
			Where("id = ? AND status = ?", projectId, from).
			Update("status", to)
		if result.Error != nil {
			return fmt.Errorf("failed to update project status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errs.Conflict("项目 %d 的状态已不是 %s，转换被拒绝", projectId, from)
		}

		// 发件箱事件与状态变更同事务提交
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to append event log: %w", err)
		}
		return nil
	})
}

func (r *projectRepo) ListCollectingExpired(now time.Time) ([]model.FundingProject, error) {
	var projects []model.FundingProject
	if err := r.db.Where("status = ? AND end_time <= ?",
		model.ProjectStatusCollecting, now).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to list expired projects: %w", err)
	}
	return projects, nil
}

func (r *projectRepo) ListByStatus(status model.ProjectStatus) ([]model.FundingProject, error) {
	var projects []model.FundingProject
	if err := r.db.Where("status = ?", status).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects by status: %w", err)
	}
	return projects, nil
}

func (r *projectRepo) AddMilestone(milestone *model.ProjectMilestone) error {
	if err := r.db.Create(milestone).Error; err != nil {
		return fmt.Errorf("failed to create milestone: %w", err)
	}
	return nil
}

func (r *projectRepo) UpdateMilestoneStatus(milestoneId int64, status string, completedDate *time.Time) error {
	result := r.db.Model(&model.ProjectMilestone{}).
		Where("id = ?", milestoneId).
		Updates(map[string]interface{}{
			"status":         status,
			"completed_date": completedDate,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update milestone status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("里程碑不存在: %d", milestoneId)
	}
	return nil
}

func (r *projectRepo) CountOpenMilestones(projectId int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.ProjectMilestone{}).
		Where("project_id = ? AND status IN ?", projectId,
			[]string{model.MilestoneStatusPending, model.MilestoneStatusInProgress}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count open milestones: %w", err)
	}
	return count, nil
}
