package event

import (
	"context"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/repository"
)

// Handler 事件处理器，按事件类型注册到派发器
type Handler interface {
	Handle(entry *model.EventLogEntry) error
}

// HandlerFunc 函数适配器
type HandlerFunc func(entry *model.EventLogEntry) error

// Handle 实现 Handler 接口
func (f HandlerFunc) Handle(entry *model.EventLogEntry) error {
	return f(entry)
}

// Dispatcher 发件箱派发器。周期性认领待派发事件并交给对应处理器，
// 失败按退避表自动重试，超过上限进入终态等待人工干预。
// 单线程顺序处理，保证同一聚合内事件按创建顺序送达。
type Dispatcher struct {
	store     repository.EventLogRepository
	handlers  map[string]Handler
	fallback  Handler
	batchSize int
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewDispatcher 创建派发器
func NewDispatcher(store repository.EventLogRepository, cfg config.OutboxConfig) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	interval := time.Duration(cfg.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Dispatcher{
		store:     store,
		handlers:  make(map[string]Handler),
		batchSize: cfg.BatchSize,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register 注册事件类型对应的处理器
func (d *Dispatcher) Register(eventType string, handler Handler) {
	d.handlers[eventType] = handler
}

// SetFallback 设置未注册事件类型的兜底处理器
func (d *Dispatcher) SetFallback(handler Handler) {
	d.fallback = handler
}

// Start 启动派发循环
func (d *Dispatcher) Start() {
	logger.Info("Starting outbox dispatcher with interval %s", d.interval)
	go d.loop()
}

// Stop 停止派发循环
func (d *Dispatcher) Stop() {
	d.cancel()
	logger.Info("Outbox dispatcher stopped")
}

// loop 派发循环
func (d *Dispatcher) loop() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if err := d.dispatchOnce(); err != nil {
				logger.Error("Outbox dispatch error: %v", err)
			}
		}
	}
}

// dispatchOnce 处理一批待派发事件
func (d *Dispatcher) dispatchOnce() error {
	entries, err := d.store.FindPending(d.batchSize)
	if err != nil {
		return err
	}

	for i := range entries {
		entry := &entries[i]

		// CAS 认领，认领失败说明已被其他实例处理
		claimed, err := d.store.MarkProcessing(entry.Id)
		if err != nil {
			logger.Error("Failed to claim event %d: %v", entry.Id, err)
			continue
		}
		if !claimed {
			continue
		}

		d.process(entry)
	}

	return nil
}

// process 处理单条事件并持久化结果
func (d *Dispatcher) process(entry *model.EventLogEntry) {
	handler, ok := d.handlers[entry.EventType]
	if !ok {
		handler = d.fallback
	}

	now := time.Now()
	if handler == nil {
		// 没有处理器的事件类型无事可做，直接完成
		logger.Warn("No handler registered for event type %s", entry.EventType)
		entry.Complete(now)
	} else if err := handler.Handle(entry); err != nil {
		entry.Fail(err.Error(), now)
		if entry.Status == model.EventStatusFailed {
			logger.Error("Event %d (%s) exceeded max retries, manual retry required: %v",
				entry.Id, entry.EventType, err)
		} else {
			logger.Warn("Event %d (%s) dispatch failed, retry %d scheduled at %s: %v",
				entry.Id, entry.EventType, entry.RetryCount, entry.NextAttemptAt.Format(time.RFC3339), err)
		}
	} else {
		entry.Complete(now)
	}

	if err := d.store.Save(entry); err != nil {
		logger.Error("Failed to persist event %d result: %v", entry.Id, err)
	}
}
