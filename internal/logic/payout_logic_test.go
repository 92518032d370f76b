package logic

import (
	"testing"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/errs"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
)

func newPayoutLogicForTest(payouts *stubPayoutRepo, gw *stubGateway) *PayoutLogic {
	return NewPayoutLogic(payouts, gw, testConfig())
}

func TestProcessPayoutSuccess(t *testing.T) {
	payouts := newStubPayoutRepo()
	gw := &stubGateway{}
	l := newPayoutLogicForTest(payouts, gw)

	result, err := l.ProcessPayout(&model.CreatorPayout{
		CreatorId: 1, ProjectId: 2, Amount: 85000, BankAccount: "acc-1",
	})
	if err != nil {
		t.Fatalf("ProcessPayout: %v", err)
	}
	if result.Status != model.PayoutStatusCompleted {
		t.Errorf("status = %s, want completed", result.Status)
	}
	if result.PayoutId == "" {
		t.Error("gateway payout id should be recorded")
	}
	if result.ProcessedAt == nil {
		t.Error("processedAt should be recorded")
	}
	if len(payouts.events) != 1 || payouts.events[0].EventType != model.EventPayoutCompleted {
		t.Error("success should append a PAYOUT_COMPLETED event")
	}
}

func TestProcessPayoutGatewayFailure(t *testing.T) {
	payouts := newStubPayoutRepo()
	gw := &stubGateway{payoutErr: errGatewayDown}
	l := newPayoutLogicForTest(payouts, gw)

	// 网关失败记录在打款单上，不作为错误返回
	result, err := l.ProcessPayout(&model.CreatorPayout{
		CreatorId: 1, ProjectId: 2, Amount: 85000, BankAccount: "acc-1",
	})
	if err != nil {
		t.Fatalf("ProcessPayout: %v", err)
	}
	if result.Status != model.PayoutStatusFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
	if result.FailureReason == "" {
		t.Error("failure reason should be recorded")
	}
	if len(payouts.events) != 1 || payouts.events[0].EventType != model.EventPayoutFailed {
		t.Error("failure should append a PAYOUT_FAILED event")
	}
}

func TestProcessPayoutValidation(t *testing.T) {
	l := newPayoutLogicForTest(newStubPayoutRepo(), &stubGateway{})

	_, err := l.ProcessPayout(&model.CreatorPayout{
		CreatorId: 1, ProjectId: 2, Amount: 85000, // 缺少银行账户
	})
	if !errs.IsValidation(err) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestRetryPayout(t *testing.T) {
	payouts := newStubPayoutRepo()
	gw := &stubGateway{}
	l := newPayoutLogicForTest(payouts, gw)

	payouts.payouts[1] = model.CreatorPayout{
		Id: 1, CreatorId: 1, ProjectId: 2, Amount: 85000, BankAccount: "acc-1",
		Status: model.PayoutStatusFailed, FailureReason: "timeout", RetryCount: 1,
	}
	payouts.nextId = 1

	result, err := l.RetryPayout(1)
	if err != nil {
		t.Fatalf("RetryPayout: %v", err)
	}
	if result.Status != model.PayoutStatusCompleted {
		t.Errorf("status = %s, want completed", result.Status)
	}
	if result.RetryCount != 2 {
		t.Errorf("retryCount = %d, want 2", result.RetryCount)
	}
	if result.LastRetryAt == nil {
		t.Error("lastRetryAt should be recorded")
	}
}

func TestRetryPayoutRejections(t *testing.T) {
	payouts := newStubPayoutRepo()
	l := newPayoutLogicForTest(payouts, &stubGateway{})

	now := time.Now()
	payouts.payouts[1] = model.CreatorPayout{
		Id: 1, CreatorId: 1, ProjectId: 2, Amount: 85000, BankAccount: "acc-1",
		Status: model.PayoutStatusFailed, RetryCount: model.MaxPayoutRetries,
	}
	payouts.payouts[2] = model.CreatorPayout{
		Id: 2, CreatorId: 1, ProjectId: 2, Amount: 85000, BankAccount: "acc-1",
		Status: model.PayoutStatusCompleted, ProcessedAt: &now,
	}
	payouts.nextId = 2

	// 达到重试上限后需要管理员介入
	if _, err := l.RetryPayout(1); !errs.IsBusiness(err) {
		t.Errorf("retry cap: got %v, want business error", err)
	}
	// 非 failed 状态不允许重试
	if _, err := l.RetryPayout(2); !errs.IsBusiness(err) {
		t.Errorf("wrong status: got %v, want business error", err)
	}
}
