package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// 领域事件类型（封闭枚举）
const (
	EventProjectStatusChanged = "PROJECT_STATUS_CHANGED"
	EventPledgeCaptured       = "PLEDGE_CAPTURED"
	EventPledgeRefunded       = "PLEDGE_REFUNDED"
	EventDistributionCreated  = "DISTRIBUTION_CREATED"
	EventDistributionExecuted = "DISTRIBUTION_EXECUTED"
	EventPayoutCompleted      = "PAYOUT_COMPLETED"
	EventPayoutFailed         = "PAYOUT_FAILED"
)

// 聚合类型
const (
	AggregateProject      = "funding_project"
	AggregatePledge       = "pledge"
	AggregateDistribution = "distribution"
	AggregatePayout       = "creator_payout"
)

// EventStatus 事件派发状态
type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"    // 待派发
	EventStatusProcessing EventStatus = "processing" // 派发中
	EventStatusCompleted  EventStatus = "completed"  // 派发成功
	EventStatusFailed     EventStatus = "failed"     // 超过重试上限，需人工干预
	EventStatusCancelled  EventStatus = "cancelled"  // 人工取消
)

// Terminal 判断是否为终态
func (s EventStatus) Terminal() bool {
	switch s {
	case EventStatusCompleted, EventStatusFailed, EventStatusCancelled:
		return true
	}
	return false
}

// DefaultMaxRetries 默认自动重试次数上限
const DefaultMaxRetries = 3

// retryBackoff 固定退避表，下标为 min(retryCount-1, len-1)，末项对后续重试重复生效
var retryBackoff = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
	300 * time.Second,
}

// BackoffDelay 根据已重试次数计算下一次派发的退避时长
func BackoffDelay(retryCount int) time.Duration {
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retryBackoff) {
		idx = len(retryBackoff) - 1
	}
	return retryBackoff[idx]
}

// EventLogEntry 事件发件箱记录。与触发它的状态变更在同一事务内写入，
// 之后仅由派发器修改状态字段。
type EventLogEntry struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	EventType     string `json:"event_type" gorm:"not null;index"`
	AggregateId   int64  `json:"aggregate_id" gorm:"not null;index"`
	AggregateType string `json:"aggregate_type" gorm:"not null"`

	Payload  datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	Metadata datatypes.JSON `json:"metadata" gorm:"type:jsonb"`

	Status        EventStatus `json:"status" gorm:"default:'pending';index"`
	RetryCount    int         `json:"retry_count" gorm:"default:0"`
	MaxRetries    int         `json:"max_retries" gorm:"default:3"`
	NextAttemptAt time.Time   `json:"next_attempt_at" gorm:"index"`
	LastError     string      `json:"last_error" gorm:"type:text"`
	ProcessedAt   *time.Time  `json:"processed_at"`
}

// TableName 自定义表名
func (EventLogEntry) TableName() string {
	return "event_log"
}

// NewEventLogEntry 构建一条待派发的发件箱记录，payload 序列化为 JSON
func NewEventLogEntry(eventType string, aggregateId int64, aggregateType string, payload interface{}, metadata map[string]string, maxRetries int, now time.Time) (*EventLogEntry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	entry := &EventLogEntry{
		EventType:     eventType,
		AggregateId:   aggregateId,
		AggregateType: aggregateType,
		Payload:       datatypes.JSON(data),
		Status:        EventStatusPending,
		MaxRetries:    maxRetries,
		NextAttemptAt: now,
	}

	if len(metadata) > 0 {
		meta, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event metadata: %w", err)
		}
		entry.Metadata = datatypes.JSON(meta)
	}

	if entry.MaxRetries <= 0 {
		entry.MaxRetries = DefaultMaxRetries
	}

	return entry, nil
}

// Complete 标记派发成功
func (e *EventLogEntry) Complete(now time.Time) {
	e.Status = EventStatusCompleted
	e.ProcessedAt = &now
}

// Fail 记录一次派发失败：递增重试计数并按退避表重排下次尝试时间，
// 超过重试上限则进入终态 failed
func (e *EventLogEntry) Fail(errMsg string, now time.Time) {
	e.RetryCount++
	e.LastError = errMsg
	if e.RetryCount >= e.MaxRetries {
		e.Status = EventStatusFailed
		return
	}
	e.Status = EventStatusPending
	e.NextAttemptAt = now.Add(BackoffDelay(e.RetryCount))
}

// Rearm 人工重试：重置为 pending 并立即可派发
func (e *EventLogEntry) Rearm(now time.Time) {
	e.Status = EventStatusPending
	e.RetryCount = 0
	e.LastError = ""
	e.ProcessedAt = nil
	e.NextAttemptAt = now
}
