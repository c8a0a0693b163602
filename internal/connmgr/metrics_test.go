package connmgr

import (
	"context"
	"testing"
	"time"
)

func TestMetricsRecordRTTAppliesEWMA(t *testing.T) {
	m := NewMetrics("binance", "test-metrics")
	ctx := context.Background()

	m.recordRTT(ctx, 100*time.Millisecond)
	snap := m.Snapshot(0)
	if snap.AverageRTTms != 100 {
		t.Fatalf("expected first sample to seed the average, got %v", snap.AverageRTTms)
	}

	m.recordRTT(ctx, 200*time.Millisecond)
	snap = m.Snapshot(0)
	want := 0.2*200 + 0.8*100 // alpha=0.2
	if snap.AverageRTTms != want {
		t.Fatalf("recordRTT EWMA = %v, want %v", snap.AverageRTTms, want)
	}
}

func TestMetricsSnapshotCountersAdvance(t *testing.T) {
	m := NewMetrics("binance", "test-metrics-2")
	ctx := context.Background()

	m.recordSend(10)
	m.recordReceive(ctx, 20)
	m.recordError(ctx)
	m.recordReconnectAttempt(ctx, time.Second)
	m.recordStreamAdd()
	m.recordStreamRemove()
	m.recordStreamBatch()

	snap := m.Snapshot(3)
	if snap.MessagesSent != 1 || snap.BytesSent != 10 {
		t.Errorf("unexpected send counters: %+v", snap)
	}
	if snap.MessagesReceived != 1 || snap.BytesReceived != 20 {
		t.Errorf("unexpected receive counters: %+v", snap)
	}
	if snap.ErrorCount != 1 {
		t.Errorf("expected ErrorCount 1, got %d", snap.ErrorCount)
	}
	if snap.ReconnectCount != 1 {
		t.Errorf("expected ReconnectCount 1, got %d", snap.ReconnectCount)
	}
	if snap.StreamAdditions != 1 || snap.StreamRemovals != 1 || snap.StreamMods != 1 {
		t.Errorf("unexpected stream counters: %+v", snap)
	}
	if snap.StreamChanges != 2 {
		t.Errorf("expected StreamChanges 2 (one add, one remove), got %d", snap.StreamChanges)
	}
	if snap.ActiveStreams != 3 {
		t.Errorf("expected ActiveStreams 3, got %d", snap.ActiveStreams)
	}
}
