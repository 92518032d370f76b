package model

import (
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
)

// FundingProject 众筹项目
type FundingProject struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 基本信息
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`
	Category    string `json:"category"`

	// 众筹信息
	TargetAmount  Money `json:"target_amount" gorm:"not null"`
	CurrentAmount Money `json:"current_amount" gorm:"default:0"`
	BackerCount   int64 `json:"backer_count" gorm:"default:0"`

	// 时间信息
	StartTime time.Time `json:"start_time" gorm:"not null"`
	EndTime   time.Time `json:"end_time" gorm:"not null"`

	// 状态
	Status ProjectStatus `json:"status" gorm:"default:'draft'"`

	// 创建者信息
	OwnerId   int64  `json:"owner_id" gorm:"not null;index"`
	OwnerName string `json:"owner_name"`

	// 关联
	Rewards []Reward       `json:"rewards,omitempty" gorm:"foreignKey:ProjectId"`
	Images  []ProjectImage `json:"images,omitempty" gorm:"foreignKey:ProjectId"`
}

// TableName 自定义表名
func (FundingProject) TableName() string {
	return "funding_project"
}

// Reward 项目回报档位
type Reward struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectId   int64  `json:"project_id" gorm:"not null;index"`
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`
	Amount      Money  `json:"amount" gorm:"not null"` // 档位金额
	Stock       int64  `json:"stock" gorm:"default:0"` // 库存上限，0表示不限量
	Sold        int64  `json:"sold" gorm:"default:0"`  // 已售数量
}

// TableName 自定义表名
func (Reward) TableName() string {
	return "reward"
}

// ProjectImage 项目图片
type ProjectImage struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ProjectId int64  `json:"project_id" gorm:"not null;index"`
	URL       string `json:"url" gorm:"not null"`
	SortOrder int    `json:"sort_order" gorm:"default:0"`
}

// TableName 自定义表名
func (ProjectImage) TableName() string {
	return "project_image"
}

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusDraft        ProjectStatus = "draft"        // 草稿
	ProjectStatusCollecting   ProjectStatus = "collecting"   // 募集中
	ProjectStatusSucceeded    ProjectStatus = "succeeded"    // 募集成功
	ProjectStatusFailed       ProjectStatus = "failed"       // 募集失败
	ProjectStatusExecuting    ProjectStatus = "executing"    // 项目执行中
	ProjectStatusDistributing ProjectStatus = "distributing" // 收益分配中
	ProjectStatusClosed       ProjectStatus = "closed"       // 已关闭
)

// allowedTransitions 项目状态转换表，表外的任何组合都拒绝
var allowedTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectStatusDraft:        {ProjectStatusCollecting},
	ProjectStatusCollecting:   {ProjectStatusSucceeded, ProjectStatusFailed},
	ProjectStatusSucceeded:    {ProjectStatusExecuting},
	ProjectStatusFailed:       {ProjectStatusClosed},
	ProjectStatusExecuting:    {ProjectStatusDistributing},
	ProjectStatusDistributing: {ProjectStatusClosed},
}

// CanTransition 判断状态转换是否在允许范围内
func CanTransition(from, to ProjectStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition 校验状态转换，非法组合返回业务错误
func ValidateTransition(from, to ProjectStatus) error {
	if !CanTransition(from, to) {
		return errs.Business("项目状态不允许从 %s 转换到 %s", from, to)
	}
	return nil
}

// ValidatePublish 校验项目发布条件（draft -> collecting）
func ValidatePublish(p *FundingProject, minTarget Money, maxDurationDays int, now time.Time) error {
	if p.Title == "" {
		return errs.Validation("项目标题不能为空")
	}
	if p.Description == "" {
		return errs.Validation("项目描述不能为空")
	}
	if p.TargetAmount <= 0 {
		return errs.Validation("目标金额必须大于0")
	}
	if p.TargetAmount < minTarget {
		return errs.Validation("目标金额低于最小限制: %d < %d", p.TargetAmount, minTarget)
	}
	if !p.EndTime.After(now) {
		return errs.Validation("结束时间必须晚于当前时间")
	}
	if !p.EndTime.After(p.StartTime) {
		return errs.Validation("结束时间必须晚于开始时间")
	}
	duration := p.EndTime.Sub(p.StartTime)
	if duration < 24*time.Hour {
		return errs.Validation("众筹周期不能少于1天")
	}
	if duration > time.Duration(maxDurationDays)*24*time.Hour {
		return errs.Validation("众筹周期不能超过%d天", maxDurationDays)
	}
	if len(p.Rewards) == 0 {
		return errs.Validation("项目至少需要一个回报档位")
	}
	if len(p.Images) == 0 {
		return errs.Validation("项目至少需要一张图片")
	}
	return nil
}

// GoalReached 判断是否达到目标金额
func (p *FundingProject) GoalReached() bool {
	return p.CurrentAmount >= p.TargetAmount
}

// Expired 判断募集期是否已结束
func (p *FundingProject) Expired(now time.Time) bool {
	return !p.EndTime.After(now)
}

// ExpiryOutcome 计算募集到期后的强制转换目标状态。
// 仅对募集中且已到期的项目返回转换目标，可安全地重复评估。
func ExpiryOutcome(p *FundingProject, now time.Time) (ProjectStatus, bool) {
	if p.Status != ProjectStatusCollecting || !p.Expired(now) {
		return "", false
	}
	if p.GoalReached() {
		return ProjectStatusSucceeded, true
	}
	return ProjectStatusFailed, true
}
