package model

import (
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
)

// Pledge 支持记录（单笔资金承诺）
type Pledge struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectId int64  `json:"project_id" gorm:"not null;index"`
	BackerId  int64  `json:"backer_id" gorm:"not null;index"`
	RewardId  *int64 `json:"reward_id"` // 选择的回报档位，可为空

	Amount        Money  `json:"amount" gorm:"not null"`
	PaymentMethod string `json:"payment_method"`
	PaymentId     string `json:"payment_id"`     // 网关授权后返回的支付流水号
	TransactionId string `json:"transaction_id"` // 网关扣款后返回的交易流水号

	// 幂等键，保证单次客户端提交只产生一次经济效果
	IdempotencyKey string `json:"idempotency_key" gorm:"uniqueIndex;not null"`

	Status PledgeStatus `json:"status" gorm:"default:'pending'"`

	// 退款信息
	RefundAmount *Money `json:"refund_amount"`
	RefundReason string `json:"refund_reason" gorm:"type:text"`
	RefundId     string `json:"refund_id"`

	CancelReason string `json:"cancel_reason" gorm:"type:text"`

	// 各状态转换时间
	AuthorizedAt *time.Time `json:"authorized_at"`
	CapturedAt   *time.Time `json:"captured_at"`
	RefundedAt   *time.Time `json:"refunded_at"`
	CancelledAt  *time.Time `json:"cancelled_at"`
}

// TableName 自定义表名
func (Pledge) TableName() string {
	return "pledge"
}

// PledgeStatus 支持记录状态
type PledgeStatus string

const (
	PledgeStatusPending    PledgeStatus = "pending"    // 待支付
	PledgeStatusAuthorized PledgeStatus = "authorized" // 已授权
	PledgeStatusCaptured   PledgeStatus = "captured"   // 已扣款
	PledgeStatusRefunded   PledgeStatus = "refunded"   // 已退款
	PledgeStatusCancelled  PledgeStatus = "cancelled"  // 已取消
	PledgeStatusFailed     PledgeStatus = "failed"     // 支付失败
)

// Terminal 判断是否为终态
func (s PledgeStatus) Terminal() bool {
	switch s {
	case PledgeStatusRefunded, PledgeStatusCancelled, PledgeStatusFailed:
		return true
	}
	return false
}

// PledgeChange 支持记录变更历史（不可变追加）
type PledgeChange struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	PledgeId int64  `json:"pledge_id" gorm:"not null;index"`
	Field    string `json:"field" gorm:"not null"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
	Actor    string `json:"actor"`
	Reason   string `json:"reason" gorm:"type:text"`
}

// TableName 自定义表名
func (PledgeChange) TableName() string {
	return "pledge_change"
}

// ValidatePledge 校验支持数据
func ValidatePledge(p *Pledge, minAmount Money) error {
	if p.ProjectId == 0 {
		return errs.Validation("项目ID不能为空")
	}
	if p.BackerId == 0 {
		return errs.Validation("支持者ID不能为空")
	}
	if p.IdempotencyKey == "" {
		return errs.Validation("幂等键不能为空")
	}
	if p.Amount <= 0 {
		return errs.Validation("支持金额必须大于0")
	}
	if p.Amount < minAmount {
		return errs.Validation("支持金额低于最小限制: %d < %d", p.Amount, minAmount)
	}
	return nil
}

// ValidateAuthorize 校验授权转换（pending -> authorized）
func ValidateAuthorize(p *Pledge) error {
	if p.Status != PledgeStatusPending {
		return errs.Business("当前状态为 %s，只有 pending 状态的支持可以授权", p.Status)
	}
	return nil
}

// ValidateCapture 校验扣款转换（authorized -> captured）
func ValidateCapture(p *Pledge) error {
	if p.Status != PledgeStatusAuthorized {
		return errs.Business("当前状态为 %s，只有 authorized 状态的支持可以扣款", p.Status)
	}
	return nil
}

// ValidateRefund 校验退款转换（authorized/captured -> refunded）
func ValidateRefund(p *Pledge, amount Money) error {
	if p.Status != PledgeStatusAuthorized && p.Status != PledgeStatusCaptured {
		return errs.Business("当前状态为 %s，只有 authorized 或 captured 状态的支持可以退款", p.Status)
	}
	if p.RefundAmount != nil {
		return errs.Business("该支持已经退款")
	}
	if amount <= 0 {
		return errs.Validation("退款金额必须大于0")
	}
	if amount > p.Amount {
		return errs.Business("退款金额超过支持金额: %d > %d", amount, p.Amount)
	}
	return nil
}

// ValidateCancel 校验取消转换（pending/authorized -> cancelled）
func ValidateCancel(p *Pledge) error {
	if p.Status != PledgeStatusPending && p.Status != PledgeStatusAuthorized {
		return errs.Business("当前状态为 %s，只有 pending 或 authorized 状态的支持可以取消", p.Status)
	}
	return nil
}
