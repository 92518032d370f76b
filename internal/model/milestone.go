package model

import (
	"time"
)

// ProjectMilestone 项目执行里程碑。executing -> distributing 的转换
// 要求所有里程碑都已完结。
type ProjectMilestone struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectId     int64      `json:"project_id" gorm:"not null;index"`
	Title         string     `json:"title" gorm:"not null"`
	Description   string     `json:"description" gorm:"type:text"`
	TargetDate    time.Time  `json:"target_date"`
	CompletedDate *time.Time `json:"completed_date"`
	Status        string     `json:"status" gorm:"default:'pending'"` // pending, in_progress, completed, cancelled
}

// MilestoneStatus 里程碑状态
const (
	MilestoneStatusPending    = "pending"     // 待开始
	MilestoneStatusInProgress = "in_progress" // 进行中
	MilestoneStatusCompleted  = "completed"   // 已完成
	MilestoneStatusCancelled  = "cancelled"   // 已取消
)

// TableName 自定义表名
func (ProjectMilestone) TableName() string {
	return "project_milestone"
}

// Open 判断里程碑是否仍未完结
func (m *ProjectMilestone) Open() bool {
	return m.Status == MilestoneStatusPending || m.Status == MilestoneStatusInProgress
}
