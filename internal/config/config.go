package config

import (
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Funding  FundingConfig  `mapstructure:"funding"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Nats     NatsConfig     `mapstructure:"nats"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// FundingConfig 众筹业务参数
type FundingConfig struct {
	MinPledgeAmount       int64 `mapstructure:"min_pledge_amount"`       // 单笔支持最小金额（最小货币单位）
	MinTargetAmount       int64 `mapstructure:"min_target_amount"`       // 项目目标最小金额
	MinDistributionAmount int64 `mapstructure:"min_distribution_amount"` // 单项分配最小金额
	MaxDurationDays       int   `mapstructure:"max_duration_days"`       // 众筹最长天数
	HistoryLimit          int   `mapstructure:"history_limit"`           // 单笔支持保留的变更历史条数
}

// OutboxConfig 事件发件箱配置
type OutboxConfig struct {
	MaxRetries    int `mapstructure:"max_retries"`    // 自动重试次数上限
	BatchSize     int `mapstructure:"batch_size"`     // 单次派发批量
	Interval      int `mapstructure:"interval"`       // 派发轮询间隔（秒）
	RetentionDays int `mapstructure:"retention_days"` // 终态事件保留天数
}

// GatewayConfig 支付网关配置
type GatewayConfig struct {
	Provider string `mapstructure:"provider"` // 网关实现 (mock, ...)
	Timeout  int    `mapstructure:"timeout"`  // 单次调用超时（秒）
}

// NatsConfig 下游事件总线配置
type NatsConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	Enabled       bool   `mapstructure:"enabled"`
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
	PoolSize int `mapstructure:"pool_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/collaboreum")

	// 设置默认值
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "collaboreum")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("funding.min_pledge_amount", 1000)
	viper.SetDefault("funding.min_target_amount", 100000)
	viper.SetDefault("funding.min_distribution_amount", 1000)
	viper.SetDefault("funding.max_duration_days", 90)
	viper.SetDefault("funding.history_limit", 50)
	viper.SetDefault("outbox.max_retries", 3)
	viper.SetDefault("outbox.batch_size", 100)
	viper.SetDefault("outbox.interval", 5)
	viper.SetDefault("outbox.retention_days", 30)
	viper.SetDefault("gateway.provider", "mock")
	viper.SetDefault("gateway.timeout", 30)
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.subject_prefix", "collaboreum.events")
	viper.SetDefault("nats.enabled", false)
	viper.SetDefault("task.interval", 60)
	viper.SetDefault("task.pool_size", 8)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
