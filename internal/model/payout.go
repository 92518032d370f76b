package model

import (
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
)

// MaxPayoutRetries 打款自动重试次数上限
const MaxPayoutRetries = 3

// CreatorPayout 创作者打款记录。作为资金审计痕迹，只增不删。
type CreatorPayout struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CreatorId   int64  `json:"creator_id" gorm:"not null;index"`
	ProjectId   int64  `json:"project_id" gorm:"not null;index"`
	Amount      Money  `json:"amount" gorm:"not null"`
	BankAccount string `json:"bank_account" gorm:"not null"`

	Status        PayoutStatus `json:"status" gorm:"default:'pending'"`
	PayoutId      string       `json:"payout_id"` // 网关返回的打款流水号
	RetryCount    int          `json:"retry_count" gorm:"default:0"`
	LastRetryAt   *time.Time   `json:"last_retry_at"`
	FailureReason string       `json:"failure_reason" gorm:"type:text"`
	ProcessedAt   *time.Time   `json:"processed_at"`
}

// TableName 自定义表名
func (CreatorPayout) TableName() string {
	return "creator_payout"
}

// PayoutStatus 打款状态
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"    // 待处理
	PayoutStatusProcessing PayoutStatus = "processing" // 网关处理中
	PayoutStatusCompleted  PayoutStatus = "completed"  // 成功
	PayoutStatusFailed     PayoutStatus = "failed"     // 失败
)

// ValidatePayout 校验打款数据
func ValidatePayout(p *CreatorPayout) error {
	if p.CreatorId == 0 {
		return errs.Validation("创作者ID不能为空")
	}
	if p.ProjectId == 0 {
		return errs.Validation("项目ID不能为空")
	}
	if p.Amount <= 0 {
		return errs.Validation("打款金额必须大于0")
	}
	if p.BankAccount == "" {
		return errs.Validation("银行账户不能为空")
	}
	return nil
}

// ValidatePayoutRetry 校验打款重试条件：仅 failed 且未超过重试上限
func ValidatePayoutRetry(p *CreatorPayout) error {
	if p.Status != PayoutStatusFailed {
		return errs.Business("当前状态为 %s，只有 failed 状态的打款可以重试", p.Status)
	}
	if p.RetryCount >= MaxPayoutRetries {
		return errs.Business("打款重试次数已达上限 %d，需要管理员介入", MaxPayoutRetries)
	}
	return nil
}
