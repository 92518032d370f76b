package event

import (
	"errors"
	"testing"
	"time"

	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/config"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/model"
	"github.com/LaSeunghyun/CollaboreumPlatform-sub003/internal/repository"
)

// stubEventStore EventLogRepository 的内存实现
type stubEventStore struct {
	entries map[int64]model.EventLogEntry

	claimDenied map[int64]bool // 模拟被其他实例抢先认领
}

var _ repository.EventLogRepository = (*stubEventStore)(nil)

func newStubEventStore() *stubEventStore {
	return &stubEventStore{
		entries:     make(map[int64]model.EventLogEntry),
		claimDenied: make(map[int64]bool),
	}
}

func (s *stubEventStore) Append(entry *model.EventLogEntry) error {
	s.entries[entry.Id] = *entry
	return nil
}

func (s *stubEventStore) FindPending(limit int) ([]model.EventLogEntry, error) {
	now := time.Now()
	var out []model.EventLogEntry
	for _, e := range s.entries {
		if e.Status == model.EventStatusPending && !e.NextAttemptAt.After(now) && e.RetryCount < e.MaxRetries {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubEventStore) MarkProcessing(id int64) (bool, error) {
	if s.claimDenied[id] {
		return false, nil
	}
	e, ok := s.entries[id]
	if !ok || e.Status != model.EventStatusPending {
		return false, nil
	}
	e.Status = model.EventStatusProcessing
	s.entries[id] = e
	return true, nil
}

func (s *stubEventStore) Save(entry *model.EventLogEntry) error {
	s.entries[entry.Id] = *entry
	return nil
}

func (s *stubEventStore) Retry(id int64) error {
	e := s.entries[id]
	e.Rearm(time.Now())
	s.entries[id] = e
	return nil
}

func (s *stubEventStore) DeleteTerminalBefore(cutoff time.Time) (int64, error) {
	var n int64
	for id, e := range s.entries {
		if e.Status.Terminal() && e.CreatedAt.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

func pendingEntry(id int64, eventType string) model.EventLogEntry {
	return model.EventLogEntry{
		Id:            id,
		EventType:     eventType,
		AggregateId:   1,
		AggregateType: model.AggregatePledge,
		Status:        model.EventStatusPending,
		MaxRetries:    3,
		NextAttemptAt: time.Now().Add(-time.Second),
	}
}

func newTestDispatcher(store *stubEventStore) *Dispatcher {
	return NewDispatcher(store, config.OutboxConfig{MaxRetries: 3, BatchSize: 100, Interval: 1})
}

func TestDispatchSuccess(t *testing.T) {
	store := newStubEventStore()
	store.entries[1] = pendingEntry(1, model.EventPledgeCaptured)

	var handled []int64
	d := newTestDispatcher(store)
	d.Register(model.EventPledgeCaptured, HandlerFunc(func(entry *model.EventLogEntry) error {
		handled = append(handled, entry.Id)
		return nil
	}))

	if err := d.dispatchOnce(); err != nil {
		t.Fatalf("dispatchOnce: %v", err)
	}
	if len(handled) != 1 || handled[0] != 1 {
		t.Fatalf("handled = %v, want [1]", handled)
	}

	stored := store.entries[1]
	if stored.Status != model.EventStatusCompleted {
		t.Errorf("status = %s, want completed", stored.Status)
	}
	if stored.ProcessedAt == nil {
		t.Error("processedAt should be recorded")
	}
}

func TestDispatchFailureSchedulesRetry(t *testing.T) {
	store := newStubEventStore()
	store.entries[1] = pendingEntry(1, model.EventPledgeCaptured)

	d := newTestDispatcher(store)
	d.Register(model.EventPledgeCaptured, HandlerFunc(func(entry *model.EventLogEntry) error {
		return errors.New("broker unavailable")
	}))

	if err := d.dispatchOnce(); err != nil {
		t.Fatalf("dispatchOnce: %v", err)
	}

	stored := store.entries[1]
	if stored.Status != model.EventStatusPending {
		t.Errorf("status = %s, want pending for retry", stored.Status)
	}
	if stored.RetryCount != 1 {
		t.Errorf("retryCount = %d, want 1", stored.RetryCount)
	}
	if stored.LastError != "broker unavailable" {
		t.Errorf("lastError = %q", stored.LastError)
	}
	if !stored.NextAttemptAt.After(time.Now()) {
		t.Error("next attempt should be pushed into the future")
	}
}

func TestDispatchExhaustsRetries(t *testing.T) {
	store := newStubEventStore()
	store.entries[1] = pendingEntry(1, model.EventPledgeCaptured)

	d := newTestDispatcher(store)
	d.Register(model.EventPledgeCaptured, HandlerFunc(func(entry *model.EventLogEntry) error {
		return errors.New("broker unavailable")
	}))

	// 三次失败后进入终态，等待人工干预
	for i := 0; i < 3; i++ {
		e := store.entries[1]
		e.NextAttemptAt = time.Now().Add(-time.Second)
		store.entries[1] = e
		if err := d.dispatchOnce(); err != nil {
			t.Fatalf("dispatchOnce %d: %v", i, err)
		}
	}

	stored := store.entries[1]
	if stored.Status != model.EventStatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}

	// 终态事件不再被自动派发
	if err := d.dispatchOnce(); err != nil {
		t.Fatalf("dispatchOnce: %v", err)
	}
	if store.entries[1].RetryCount != 3 {
		t.Error("failed entry must not be retried automatically")
	}

	// 人工重试后恢复派发
	if err := store.Retry(1); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if store.entries[1].Status != model.EventStatusPending || store.entries[1].RetryCount != 0 {
		t.Error("manual retry should rearm the entry")
	}
}

func TestDispatchSkipsClaimedEntries(t *testing.T) {
	store := newStubEventStore()
	store.entries[1] = pendingEntry(1, model.EventPledgeCaptured)
	store.claimDenied[1] = true

	var handled int
	d := newTestDispatcher(store)
	d.SetFallback(HandlerFunc(func(entry *model.EventLogEntry) error {
		handled++
		return nil
	}))

	if err := d.dispatchOnce(); err != nil {
		t.Fatalf("dispatchOnce: %v", err)
	}
	if handled != 0 {
		t.Error("entry claimed by another instance must be skipped")
	}
	if store.entries[1].Status != model.EventStatusPending {
		t.Error("skipped entry must stay pending")
	}
}

func TestDispatchFallbackHandler(t *testing.T) {
	store := newStubEventStore()
	store.entries[1] = pendingEntry(1, "SOMETHING_ELSE")

	var fallbackHits int
	d := newTestDispatcher(store)
	d.Register(model.EventPledgeCaptured, HandlerFunc(func(entry *model.EventLogEntry) error {
		t.Error("typed handler must not receive other event types")
		return nil
	}))
	d.SetFallback(HandlerFunc(func(entry *model.EventLogEntry) error {
		fallbackHits++
		return nil
	}))

	if err := d.dispatchOnce(); err != nil {
		t.Fatalf("dispatchOnce: %v", err)
	}
	if fallbackHits != 1 {
		t.Errorf("fallback hits = %d, want 1", fallbackHits)
	}
}

func TestDispatchWithoutHandlerCompletes(t *testing.T) {
	store := newStubEventStore()
	store.entries[1] = pendingEntry(1, "UNROUTED")

	d := newTestDispatcher(store)
	if err := d.dispatchOnce(); err != nil {
		t.Fatalf("dispatchOnce: %v", err)
	}
	if store.entries[1].Status != model.EventStatusCompleted {
		t.Error("entry without any handler should complete instead of looping forever")
	}
}
