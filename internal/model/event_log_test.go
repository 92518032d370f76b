package model

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 5 * time.Second},
		{3, 15 * time.Second},
		{4, 60 * time.Second},
		{5, 300 * time.Second},
		{6, 300 * time.Second}, // 末项对后续重试重复生效
		{100, 300 * time.Second},
	}
	for _, c := range cases {
		if got := BackoffDelay(c.retryCount); got != c.want {
			t.Errorf("BackoffDelay(%d) = %v, want %v", c.retryCount, got, c.want)
		}
	}
}

func TestNewEventLogEntry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	entry, err := NewEventLogEntry(EventPledgeCaptured, 42, AggregatePledge,
		map[string]interface{}{"amount": 1000}, map[string]string{"actor": "backer"}, 0, now)
	if err != nil {
		t.Fatalf("NewEventLogEntry: %v", err)
	}

	if entry.Status != EventStatusPending {
		t.Errorf("status = %s, want pending", entry.Status)
	}
	if entry.MaxRetries != DefaultMaxRetries {
		t.Errorf("maxRetries = %d, want default %d", entry.MaxRetries, DefaultMaxRetries)
	}
	if !entry.NextAttemptAt.Equal(now) {
		t.Errorf("nextAttemptAt = %v, want immediately dispatchable", entry.NextAttemptAt)
	}
	if len(entry.Payload) == 0 || len(entry.Metadata) == 0 {
		t.Error("payload and metadata should be serialized")
	}
}

func TestEventLogEntryFailBacksOffThenTerminates(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := &EventLogEntry{Status: EventStatusProcessing, MaxRetries: 3, NextAttemptAt: now}

	// 第一次失败：回到 pending，按退避表推迟
	entry.Fail("connection refused", now)
	if entry.Status != EventStatusPending {
		t.Fatalf("status after 1st failure = %s, want pending", entry.Status)
	}
	if entry.RetryCount != 1 {
		t.Errorf("retryCount = %d, want 1", entry.RetryCount)
	}
	if want := now.Add(1 * time.Second); !entry.NextAttemptAt.Equal(want) {
		t.Errorf("nextAttemptAt = %v, want %v", entry.NextAttemptAt, want)
	}

	// 第二次失败：退避加长
	entry.Fail("connection refused", now)
	if want := now.Add(5 * time.Second); !entry.NextAttemptAt.Equal(want) {
		t.Errorf("nextAttemptAt = %v, want %v", entry.NextAttemptAt, want)
	}

	// 第三次失败：达到上限，进入终态等待人工干预
	entry.Fail("connection refused", now)
	if entry.Status != EventStatusFailed {
		t.Fatalf("status after 3rd failure = %s, want failed", entry.Status)
	}
	if !entry.Status.Terminal() {
		t.Error("failed should be terminal")
	}
	if entry.LastError != "connection refused" {
		t.Errorf("lastError = %q", entry.LastError)
	}
}

func TestEventLogEntryRearm(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := &EventLogEntry{
		Status:     EventStatusFailed,
		RetryCount: 3,
		MaxRetries: 3,
		LastError:  "boom",
	}

	later := now.Add(time.Hour)
	entry.Rearm(later)

	if entry.Status != EventStatusPending {
		t.Errorf("status = %s, want pending", entry.Status)
	}
	if entry.RetryCount != 0 {
		t.Errorf("retryCount = %d, want reset to 0", entry.RetryCount)
	}
	if entry.LastError != "" {
		t.Errorf("lastError = %q, want cleared", entry.LastError)
	}
	if !entry.NextAttemptAt.Equal(later) {
		t.Errorf("nextAttemptAt = %v, want immediately dispatchable", entry.NextAttemptAt)
	}
}

func TestEventLogEntryComplete(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := &EventLogEntry{Status: EventStatusProcessing}

	entry.Complete(now)
	if entry.Status != EventStatusCompleted {
		t.Errorf("status = %s, want completed", entry.Status)
	}
	if entry.ProcessedAt == nil || !entry.ProcessedAt.Equal(now) {
		t.Error("processedAt should record the completion time")
	}
}
