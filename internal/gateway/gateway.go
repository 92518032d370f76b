package gateway

import (
	"context"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
)

// PaymentResult 支付结果
type PaymentResult struct {
	TransactionId string
	ApprovedAt    time.Time
}

// RefundResult 退款结果
type RefundResult struct {
	RefundId   string
	RefundedAt time.Time
}

// PayoutResult 打款结果
type PayoutResult struct {
	PayoutId    string
	ProcessedAt time.Time
}

// PaymentGateway 支付网关抽象。所有实现都必须遵守调用方通过 context 传入的超时。
type PaymentGateway interface {
	// ProcessPayment 对一笔支持执行扣款
	ProcessPayment(ctx context.Context, pledge *model.Pledge) (*PaymentResult, error)
	// ProcessRefund 对一笔支持执行退款
	ProcessRefund(ctx context.Context, pledge *model.Pledge, amount model.Money, reason string) (*RefundResult, error)
	// ProcessPayout 向受益方打款
	ProcessPayout(ctx context.Context, recipientId int64, amount model.Money, bankAccount string) (*PayoutResult, error)
}

// New 根据配置的 provider 创建网关实现
func New(provider string) (PaymentGateway, error) {
	switch provider {
	case "mock", "":
		return NewMockGateway(), nil
	default:
		return nil, errs.Validation("未知的网关实现: %s", provider)
	}
}
