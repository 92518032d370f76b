package messaging

import (
	"fmt"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/nats-io/nats.go"
)

// Publisher 将发件箱事件发布到 NATS，供下游订阅方（通知、统计等）消费
type Publisher struct {
	conn          *nats.Conn
	subjectPrefix string
}

// NewPublisher 建立 NATS 连接并创建发布器
func NewPublisher(cfg config.NatsConfig) (*Publisher, error) {
	conn, err := nats.Connect(
		cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	logger.Info("Connected to NATS at %s", cfg.URL)
	return &Publisher{
		conn:          conn,
		subjectPrefix: cfg.SubjectPrefix,
	}, nil
}

// Publish 按事件类型拼接主题并发布
func (p *Publisher) Publish(eventType string, payload []byte) error {
	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, eventType)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close 关闭连接，等待缓冲区刷出
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}
