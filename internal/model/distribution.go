package model

import (
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
)

// Distribution 项目收益分配计划
type Distribution struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectId   int64              `json:"project_id" gorm:"not null;index"`
	TotalAmount Money              `json:"total_amount" gorm:"not null"`
	Status      DistributionStatus `json:"status" gorm:"default:'pending'"`
	ExecutedAt  *time.Time         `json:"executed_at"`

	// 关联
	Items []DistributionItem `json:"items,omitempty" gorm:"foreignKey:DistributionId"`
}

// TableName 自定义表名
func (Distribution) TableName() string {
	return "distribution"
}

// DistributionStatus 分配计划整体状态
type DistributionStatus string

const (
	DistributionStatusPending           DistributionStatus = "pending"            // 待执行
	DistributionStatusExecuted          DistributionStatus = "executed"           // 全部成功
	DistributionStatusPartiallyExecuted DistributionStatus = "partially_executed" // 部分成功
	DistributionStatusFailed            DistributionStatus = "failed"             // 全部失败
)

// Active 判断分配计划是否仍在进行（未全部完成）
func (s DistributionStatus) Active() bool {
	return s == DistributionStatusPending || s == DistributionStatusPartiallyExecuted || s == DistributionStatusFailed
}

// DistributionItem 单个受益方的分配项
type DistributionItem struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DistributionId int64  `json:"distribution_id" gorm:"not null;index"`
	RuleName       string `json:"rule_name" gorm:"not null"` // 来源规则
	RuleType       string `json:"rule_type" gorm:"not null"` // percentage / fixed
	RecipientId    int64  `json:"recipient_id" gorm:"not null"`
	BankAccount    string `json:"bank_account"`

	Amount Money                  `json:"amount" gorm:"not null"`
	Status DistributionItemStatus `json:"status" gorm:"default:'pending'"`

	TransactionId string     `json:"transaction_id"` // 网关返回的打款流水号
	Error         string     `json:"error" gorm:"type:text"`
	CompletedAt   *time.Time `json:"completed_at"`
	FailedAt      *time.Time `json:"failed_at"`
}

// TableName 自定义表名
func (DistributionItem) TableName() string {
	return "distribution_item"
}

// DistributionItemStatus 分配项状态
type DistributionItemStatus string

const (
	DistributionItemStatusPending   DistributionItemStatus = "pending"   // 待打款
	DistributionItemStatusCompleted DistributionItemStatus = "completed" // 打款成功
	DistributionItemStatusFailed    DistributionItemStatus = "failed"    // 打款失败
)

// 分配规则类型
const (
	RuleTypePercentage = "percentage"
	RuleTypeFixed      = "fixed"
)

// DistributionRule 分配规则（计算输入）
type DistributionRule struct {
	Name        string
	Type        string // percentage / fixed
	Percentage  int64  // Type 为 percentage 时生效，单位 %
	Amount      Money  // Type 为 fixed 时生效
	RecipientId int64
	BankAccount string
}

// CalculateDistribution 根据规则计算分配项。
// 百分比规则向下取整，取整产生的余数全部加到金额最大的分配项上，
// 保证所有分配项金额之和恰好等于总金额。
func CalculateDistribution(totalAmount Money, rules []DistributionRule, minAmount Money) ([]DistributionItem, error) {
	if totalAmount <= 0 {
		return nil, errs.Validation("分配总金额必须大于0")
	}
	if len(rules) == 0 {
		return nil, errs.Validation("分配规则不能为空")
	}

	items := make([]DistributionItem, 0, len(rules))
	var sum Money

	for _, rule := range rules {
		var amount Money
		switch rule.Type {
		case RuleTypePercentage:
			if rule.Percentage <= 0 || rule.Percentage > 100 {
				return nil, errs.Validation("规则 %s 的百分比非法: %d", rule.Name, rule.Percentage)
			}
			amount = PercentOf(totalAmount, rule.Percentage)
		case RuleTypeFixed:
			amount = rule.Amount
		default:
			return nil, errs.Validation("未知的规则类型: %s", rule.Type)
		}

		if amount < minAmount {
			return nil, errs.Business("规则 %s 的分配金额低于最小限制: %d < %d", rule.Name, amount, minAmount)
		}

		sum += amount
		items = append(items, DistributionItem{
			RuleName:    rule.Name,
			RuleType:    rule.Type,
			RecipientId: rule.RecipientId,
			BankAccount: rule.BankAccount,
			Amount:      amount,
			Status:      DistributionItemStatusPending,
		})
	}

	if sum > totalAmount {
		return nil, errs.Business("分配金额之和超过总金额: %d > %d", sum, totalAmount)
	}

	// 余数补偿：加到金额最大的分配项，不允许丢失任何货币单位
	if remainder := totalAmount - sum; remainder > 0 {
		largest := 0
		for i := range items {
			if items[i].Amount > items[largest].Amount {
				largest = i
			}
		}
		items[largest].Amount += remainder
	}

	return items, nil
}

// AggregateDistributionStatus 根据分配项结果计算整体状态：
// 全部成功为 executed，全部失败为 failed，其余为 partially_executed
func AggregateDistributionStatus(items []DistributionItem) DistributionStatus {
	completed := 0
	for _, item := range items {
		if item.Status == DistributionItemStatusCompleted {
			completed++
		}
	}
	switch {
	case completed == len(items):
		return DistributionStatusExecuted
	case completed == 0:
		return DistributionStatusFailed
	default:
		return DistributionStatusPartiallyExecuted
	}
}
