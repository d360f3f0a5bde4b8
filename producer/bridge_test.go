package producer

import (
	"strings"
	"testing"

	"github.com/mjasion/greenhouse-gateway/types"
)

func TestDecodeReading_Valid(t *testing.T) {
	payload := []byte(`{
		"nodeId": "lora-node-03",
		"temperature": 24.5,
		"humidity": 61.2,
		"soilMoisture": 38.0,
		"batteryLevel": 77,
		"rssi": -72,
		"timestamp": 123456
	}`)

	r, err := decodeReading(payload)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if r.NodeID != "lora-node-03" {
		t.Errorf("unexpected node id %s", r.NodeID)
	}
	if r.Temperature != 24.5 || r.BatteryLevel != 77 || r.RSSI != -72 {
		t.Errorf("unexpected field values: %+v", r)
	}
	if r.Timestamp != 123456 {
		t.Errorf("expected wire timestamp preserved, got %d", r.Timestamp)
	}
}

func TestDecodeReading_SuppliesTimestampWhenMissing(t *testing.T) {
	payload := []byte(`{"nodeId": "espnow-node-01", "temperature": 20.0}`)

	r, err := decodeReading(payload)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if r.Timestamp == 0 {
		t.Error("expected a monotonic timestamp to be supplied")
	}
}

func TestDecodeReading_Malformed(t *testing.T) {
	cases := map[string]string{
		"invalid json":     `{"nodeId": `,
		"missing node id":  `{"temperature": 20.0}`,
		"blank node id":    `{"nodeId": "   "}`,
		"node id too long": `{"nodeId": "` + strings.Repeat("x", types.MaxNodeIDLength+1) + `"}`,
	}

	for name, payload := range cases {
		if _, err := decodeReading([]byte(payload)); err == nil {
			t.Errorf("%s: expected decode error", name)
		}
	}
}

func TestNewBridge_SingleInstancePerProcess(t *testing.T) {
	sink := func(types.Reading) {}

	b1, err := NewBridge("tcp://localhost:1883", "test-bridge", "greenhouse/readings", sink, testLogger())
	if err != nil {
		t.Fatalf("unexpected error creating first bridge: %v", err)
	}
	defer func() {
		bridgeActive.Store(false)
	}()

	if _, err := NewBridge("tcp://localhost:1883", "test-bridge-2", "greenhouse/readings", sink, testLogger()); err == nil {
		t.Error("expected second bridge creation to fail")
	}
	_ = b1
}
