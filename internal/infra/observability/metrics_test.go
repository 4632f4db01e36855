package observability_test

import (
	"testing"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/observability"
)

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()

	a.IncrChatSend(observability.SendCompleted)

	if got := b.GetChatSnapshot().TotalSends; got != 0 {
		t.Fatalf("expected isolated registries, got %d sends", got)
	}
}

func TestGetChatSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrChatSend(observability.SendCompleted)
	m.IncrChatSend(observability.SendCompleted)
	m.IncrChatSend(observability.SendFailed)
	m.IncrChatSend(observability.SendCancelled)
	for i := 0; i < 6; i++ {
		m.IncrStreamChunk("stream")
	}
	m.IncrStreamChunk("buffered")
	m.IncrStreamChunk("buffered")
	m.IncrCacheHit("dashboard")
	m.IncrCacheMiss("dashboard")

	snap := m.GetChatSnapshot()

	if snap.TotalSends != 4 || snap.Completed != 2 || snap.Failed != 1 || snap.Cancelled != 1 {
		t.Fatalf("unexpected counts: %+v", snap)
	}
	if snap.ErrorRate != 0.25 {
		t.Errorf("expected error rate 0.25, got %v", snap.ErrorRate)
	}
	if snap.ChunksReceived != 8 || snap.AvgChunksPerSend != 2 {
		t.Errorf("unexpected chunk stats: %+v", snap)
	}
	if snap.CacheHitRate != 0.5 {
		t.Errorf("expected cache hit rate 0.5, got %v", snap.CacheHitRate)
	}
}

func TestStorageFailures(t *testing.T) {
	m := observability.NewMetrics()
	m.IncrStorageFailure("save")
	m.IncrStorageFailure("save")

	if got := m.StorageFailures("save"); got != 2 {
		t.Errorf("expected 2 save failures, got %v", got)
	}
	if got := m.StorageFailures("load"); got != 0 {
		t.Errorf("expected 0 load failures, got %v", got)
	}
}
