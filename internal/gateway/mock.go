package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/logger"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"github.com/google/uuid"
)

// MockGateway 模拟网关，用于本地开发和测试环境。
// 记录所有调用并返回生成的流水号。
type MockGateway struct {
	mu       sync.Mutex
	payments int
	refunds  int
	payouts  int
}

// NewMockGateway 创建模拟网关
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// ProcessPayment 模拟扣款
func (g *MockGateway) ProcessPayment(ctx context.Context, pledge *model.Pledge) (*PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.payments++
	g.mu.Unlock()

	logger.Info("Mock gateway: processed payment for pledge %d, amount: %d", pledge.Id, pledge.Amount)
	return &PaymentResult{
		TransactionId: "pay_" + uuid.NewString(),
		ApprovedAt:    time.Now(),
	}, nil
}

// ProcessRefund 模拟退款
func (g *MockGateway) ProcessRefund(ctx context.Context, pledge *model.Pledge, amount model.Money, reason string) (*RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.refunds++
	g.mu.Unlock()

	logger.Info("Mock gateway: processed refund for pledge %d, amount: %d", pledge.Id, amount)
	return &RefundResult{
		RefundId:   "ref_" + uuid.NewString(),
		RefundedAt: time.Now(),
	}, nil
}

// ProcessPayout 模拟打款
func (g *MockGateway) ProcessPayout(ctx context.Context, recipientId int64, amount model.Money, bankAccount string) (*PayoutResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.payouts++
	g.mu.Unlock()

	logger.Info("Mock gateway: processed payout to recipient %d, amount: %d", recipientId, amount)
	return &PayoutResult{
		PayoutId:    "po_" + uuid.NewString(),
		ProcessedAt: time.Now(),
	}, nil
}
