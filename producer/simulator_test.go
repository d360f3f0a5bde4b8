package producer

import (
	"testing"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestSimulator_ValuesStayInRange(t *testing.T) {
	sim := NewSimulator("sim-node-01", 1, testLogger())

	for i := 0; i < 500; i++ {
		r := sim.Next()
		if r.NodeID != "sim-node-01" {
			t.Fatalf("unexpected node id %s", r.NodeID)
		}
		if r.Temperature < tempMin || r.Temperature > tempMax {
			t.Fatalf("temperature %f out of range", r.Temperature)
		}
		if r.Humidity < humidityMin || r.Humidity > humidityMax {
			t.Fatalf("humidity %f out of range", r.Humidity)
		}
		if r.SoilMoisture < soilMin || r.SoilMoisture > soilMax {
			t.Fatalf("soil moisture %f out of range", r.SoilMoisture)
		}
		if r.BatteryLevel < batteryMin || r.BatteryLevel > batteryMax {
			t.Fatalf("battery %d out of range", r.BatteryLevel)
		}
		if r.RSSI < rssiMin || r.RSSI > rssiMax {
			t.Fatalf("rssi %d out of range", r.RSSI)
		}
	}
}

func TestSimulator_DriftsGradually(t *testing.T) {
	sim := NewSimulator("sim-node-01", 42, testLogger())

	prev := sim.Next()
	for i := 0; i < 100; i++ {
		r := sim.Next()
		if diff := r.Temperature - prev.Temperature; diff > 2 || diff < -2 {
			t.Fatalf("temperature jumped %f in one step", diff)
		}
		if diff := r.Humidity - prev.Humidity; diff > 5 || diff < -5 {
			t.Fatalf("humidity jumped %f in one step", diff)
		}
		prev = r
	}
}

func TestSimulator_TimestampsMonotonic(t *testing.T) {
	sim := NewSimulator("sim-node-01", 7, testLogger())

	prev := sim.Next()
	for i := 0; i < 10; i++ {
		r := sim.Next()
		if r.Timestamp < prev.Timestamp {
			t.Fatalf("timestamp went backwards: %d -> %d", prev.Timestamp, r.Timestamp)
		}
		prev = r
	}
}
