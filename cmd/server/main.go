package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/event"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/gateway"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logic"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/messaging"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/repository"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/scheduler"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/task"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := repository.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 初始化支付网关
	gw, err := gateway.New(cfg.Gateway.Provider)
	if err != nil {
		logger.Fatal("Failed to initialize payment gateway: %v", err)
	}

	// 仓储层
	projectRepo := repository.NewProjectRepository(db)
	pledgeRepo := repository.NewPledgeRepository(db, cfg.Funding.HistoryLimit)
	eventRepo := repository.NewEventLogRepository(db)
	distributionRepo := repository.NewDistributionRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)

	// 业务逻辑层
	projectLogic := logic.NewProjectLogic(projectRepo, pledgeRepo, distributionRepo, cfg)
	pledgeLogic := logic.NewPledgeLogic(pledgeRepo, projectRepo, gw, cfg)
	distributionLogic := logic.NewDistributionLogic(distributionRepo, projectRepo, gw, cfg)
	payoutLogic := logic.NewPayoutLogic(payoutRepo, gw, cfg)

	// 事件派发器，优先发布到 NATS，未启用时降级为日志输出
	dispatcher := event.NewDispatcher(eventRepo, cfg.Outbox)
	if cfg.Nats.Enabled {
		publisher, err := messaging.NewPublisher(cfg.Nats)
		if err != nil {
			logger.Fatal("Failed to connect to NATS: %v", err)
		}
		defer publisher.Close()
		dispatcher.SetFallback(event.NewNatsHandler(publisher))
	} else {
		dispatcher.SetFallback(&event.LogHandler{})
	}
	dispatcher.Start()

	// 启动定时任务
	manager := scheduler.NewManager(
		task.NewProjectStatusJob(projectLogic, cfg),
		task.NewProjectRefundJob(projectRepo, pledgeRepo, pledgeLogic, projectLogic, cfg),
		task.NewSettlementRetryJob(distributionRepo, payoutRepo, distributionLogic, payoutLogic, cfg),
		task.NewEventCleanupJob(eventRepo, cfg),
	)
	manager.Start()

	logger.Info("Funding engine started in %s mode", cfg.Server.Mode)

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	manager.Stop()
	dispatcher.Stop()
}
