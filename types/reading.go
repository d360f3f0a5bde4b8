package types

import "time"

// MaxNodeIDLength bounds node identifiers supplied by producers. Longer
// identifiers are rejected at the producer boundary.
const MaxNodeIDLength = 32

// Reading is a single timestamped measurement sample from a sensor node.
// Immutable once created; the offline buffer keeps the only durable copy.
type Reading struct {
	NodeID       string
	Temperature  float64 // Celsius
	Humidity     float64 // percentage (0-100)
	SoilMoisture float64 // percentage (0-100)
	BatteryLevel int     // percentage (0-100)
	RSSI         int     // dBm
	Timestamp    uint64  // monotonic milliseconds since gateway boot
}

// SensorDataPayload is the flat document POSTed to the backend data-ingest path.
type SensorDataPayload struct {
	NodeID       string  `json:"nodeId"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	SoilMoisture float64 `json:"soilMoisture"`
	BatteryLevel int     `json:"batteryLevel"`
	RSSI         int     `json:"rssi"`
	Timestamp    uint64  `json:"timestamp"`
}

// GatewayStatusPayload is the flat document POSTed to the backend status-report path.
type GatewayStatusPayload struct {
	GatewayID        string `json:"gatewayId"`
	ActiveNodeCount  int    `json:"activeNodeCount"`
	NetworkMode      string `json:"networkMode"`
	BackendReachable bool   `json:"backendReachable"`
	Timestamp        uint64 `json:"timestamp"`
}

// Payload converts a reading into its backend wire shape.
func (r Reading) Payload() SensorDataPayload {
	return SensorDataPayload{
		NodeID:       r.NodeID,
		Temperature:  r.Temperature,
		Humidity:     r.Humidity,
		SoilMoisture: r.SoilMoisture,
		BatteryLevel: r.BatteryLevel,
		RSSI:         r.RSSI,
		Timestamp:    r.Timestamp,
	}
}

var bootTime = time.Now()

// UptimeMillis returns monotonic milliseconds since process start. Producers
// stamp readings with it when their wire format carries no timestamp, mirroring
// the device's millis-since-boot clock.
func UptimeMillis() uint64 {
	return uint64(time.Since(bootTime) / time.Millisecond)
}
