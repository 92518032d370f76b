package event

import (
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/messaging"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
)

// NatsHandler 将事件发布到 NATS，供下游订阅方消费
type NatsHandler struct {
	publisher *messaging.Publisher
}

// NewNatsHandler 创建 NATS 事件处理器
func NewNatsHandler(publisher *messaging.Publisher) *NatsHandler {
	return &NatsHandler{publisher: publisher}
}

// Handle 发布事件负载
func (h *NatsHandler) Handle(entry *model.EventLogEntry) error {
	return h.publisher.Publish(entry.EventType, entry.Payload)
}

// LogHandler 只记录日志的处理器，用于未接入消息总线的环境
type LogHandler struct{}

// Handle 记录事件内容
func (h *LogHandler) Handle(entry *model.EventLogEntry) error {
	logger.Info("Dispatched event %d: type=%s aggregate=%s/%d",
		entry.Id, entry.EventType, entry.AggregateType, entry.AggregateId)
	return nil
}
