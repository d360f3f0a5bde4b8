package syncer

import (
	"context"
	"testing"

	"github.com/mjasion/greenhouse-gateway/buffer"
	"github.com/mjasion/greenhouse-gateway/types"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// fakeDelivery records sends and fails on command.
type fakeDelivery struct {
	sent      []types.Reading
	statuses  []types.GatewayStatusPayload
	failAfter int // fail all sends once len(sent) reaches this; -1 never
	reachable bool
}

func (f *fakeDelivery) SendReading(_ context.Context, r types.Reading) bool {
	if f.failAfter >= 0 && len(f.sent) >= f.failAfter {
		return false
	}
	f.sent = append(f.sent, r)
	return true
}

func (f *fakeDelivery) SendStatus(_ context.Context, s types.GatewayStatusPayload) bool {
	f.statuses = append(f.statuses, s)
	return true
}

func (f *fakeDelivery) Reachable() bool { return f.reachable }

type fakeNetwork struct{ mode string }

func (f *fakeNetwork) ModeString() string { return f.mode }

func reading(nodeID string, ts uint64) types.Reading {
	return types.Reading{NodeID: nodeID, Timestamp: ts}
}

func TestSync_DrainsOldestFirst(t *testing.T) {
	buf := buffer.New("gateway-01", testLogger())
	delivery := &fakeDelivery{failAfter: -1}
	d := New(buf, delivery, &fakeNetwork{mode: "ONLINE"}, "gateway-01", testLogger())

	buf.Add(reading("node-a", 1))
	buf.Add(reading("node-b", 2))
	buf.Add(reading("node-c", 3))

	n := d.Sync(context.Background())

	if n != 3 {
		t.Fatalf("expected 3 synced, got %d", n)
	}
	if len(delivery.sent) != 3 {
		t.Fatalf("expected 3 sends, got %d", len(delivery.sent))
	}
	for i, want := range []string{"node-a", "node-b", "node-c"} {
		if delivery.sent[i].NodeID != want {
			t.Errorf("send %d: expected %s, got %s", i, want, delivery.sent[i].NodeID)
		}
	}
	if buf.UnsyncedCount() != 0 {
		t.Errorf("expected buffer drained, %d unsynced left", buf.UnsyncedCount())
	}
}

func TestSync_StopsOnFirstFailure(t *testing.T) {
	buf := buffer.New("gateway-01", testLogger())
	delivery := &fakeDelivery{failAfter: 1}
	d := New(buf, delivery, &fakeNetwork{mode: "ONLINE"}, "gateway-01", testLogger())

	buf.Add(reading("node-a", 1))
	buf.Add(reading("node-b", 2))

	n := d.Sync(context.Background())

	if n != 1 {
		t.Fatalf("expected 1 synced before failure, got %d", n)
	}
	if buf.UnsyncedCount() != 1 {
		t.Errorf("expected 1 entry left unsynced, got %d", buf.UnsyncedCount())
	}

	// The failed entry stays oldest-unsynced and is retried next pass.
	delivery.failAfter = -1
	if d.Sync(context.Background()) != 1 {
		t.Error("expected the remaining entry to sync on the next pass")
	}
	if delivery.sent[len(delivery.sent)-1].NodeID != "node-b" {
		t.Error("expected node-b delivered on the second pass")
	}
}

func TestSync_CapsWorkPerTick(t *testing.T) {
	buf := buffer.New("gateway-01", testLogger())
	delivery := &fakeDelivery{failAfter: -1}
	d := New(buf, delivery, &fakeNetwork{mode: "ONLINE"}, "gateway-01", testLogger())

	for i := 0; i < maxPerTick+5; i++ {
		buf.Add(reading("node-a", uint64(i)))
	}

	if n := d.Sync(context.Background()); n != maxPerTick {
		t.Errorf("expected %d synced in one pass, got %d", maxPerTick, n)
	}
	if buf.UnsyncedCount() != 5 {
		t.Errorf("expected 5 left for the next pass, got %d", buf.UnsyncedCount())
	}
}

func TestSync_EmptyBuffer(t *testing.T) {
	buf := buffer.New("gateway-01", testLogger())
	delivery := &fakeDelivery{failAfter: -1}
	d := New(buf, delivery, &fakeNetwork{mode: "ONLINE"}, "gateway-01", testLogger())

	if n := d.Sync(context.Background()); n != 0 {
		t.Errorf("expected 0 synced on empty buffer, got %d", n)
	}
	if len(delivery.sent) != 0 {
		t.Errorf("expected no sends, got %d", len(delivery.sent))
	}
}

func TestReportStatus_BuildsPayload(t *testing.T) {
	buf := buffer.New("gateway-01", testLogger())
	delivery := &fakeDelivery{failAfter: -1, reachable: true}
	d := New(buf, delivery, &fakeNetwork{mode: "AP"}, "gateway-01", testLogger())

	buf.Add(reading("node-a", types.UptimeMillis()))

	if !d.ReportStatus(context.Background()) {
		t.Fatal("expected status report to succeed")
	}
	if len(delivery.statuses) != 1 {
		t.Fatalf("expected 1 status report, got %d", len(delivery.statuses))
	}

	s := delivery.statuses[0]
	if s.GatewayID != "gateway-01" {
		t.Errorf("unexpected gateway id %s", s.GatewayID)
	}
	if s.NetworkMode != "AP" {
		t.Errorf("unexpected network mode %s", s.NetworkMode)
	}
	if !s.BackendReachable {
		t.Error("expected backendReachable true")
	}
	if s.ActiveNodeCount != 1 {
		t.Errorf("expected 1 active node, got %d", s.ActiveNodeCount)
	}
}
