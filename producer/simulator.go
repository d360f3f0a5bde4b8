package producer

import (
	"math/rand"

	"github.com/mjasion/greenhouse-gateway/types"
	"go.uber.org/zap"
)

// Realistic greenhouse ranges; samples drift inside them instead of jumping.
const (
	tempMin, tempMax         = 18.0, 32.0
	humidityMin, humidityMax = 40.0, 85.0
	soilMin, soilMax         = 20.0, 80.0
	batteryMin, batteryMax   = 20, 100
	rssiMin, rssiMax         = -90, -40
)

// Simulator generates readings for a simulated local sensor node: each sample
// is a bounded random walk from the previous one, mimicking gradual
// environmental change.
type Simulator struct {
	nodeID string
	rng    *rand.Rand
	logger *zap.Logger

	hasLast bool
	last    types.Reading
}

// NewSimulator creates a simulator producing readings under the given node
// identifier.
func NewSimulator(nodeID string, seed int64, logger *zap.Logger) *Simulator {
	return &Simulator{
		nodeID: nodeID,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// Next generates one reading stamped with the gateway's monotonic clock.
func (s *Simulator) Next() types.Reading {
	r := types.Reading{
		NodeID:    s.nodeID,
		Timestamp: types.UptimeMillis(),
	}

	if !s.hasLast {
		r.Temperature = s.randomFloat(tempMin, tempMax)
		r.Humidity = s.randomFloat(humidityMin, humidityMax)
		r.SoilMoisture = s.randomFloat(soilMin, soilMax)
		r.BatteryLevel = batteryMin + s.rng.Intn(batteryMax-batteryMin+1)
		r.RSSI = rssiMin + s.rng.Intn(rssiMax-rssiMin+1)
	} else {
		r.Temperature = clampFloat(s.last.Temperature+s.randomFloat(-2, 2), tempMin, tempMax)
		r.Humidity = clampFloat(s.last.Humidity+s.randomFloat(-5, 5), humidityMin, humidityMax)
		r.SoilMoisture = clampFloat(s.last.SoilMoisture+s.randomFloat(-3, 3), soilMin, soilMax)
		// Battery drains slowly, with the occasional small recovery.
		r.BatteryLevel = clampInt(s.last.BatteryLevel+s.rng.Intn(3)-1, batteryMin, batteryMax)
		r.RSSI = clampInt(s.last.RSSI+s.rng.Intn(11)-5, rssiMin, rssiMax)
	}

	s.last = r
	s.hasLast = true

	s.logger.Debug("generated simulated reading",
		zap.String("node_id", r.NodeID),
		zap.Float64("temperature", r.Temperature),
		zap.Float64("humidity", r.Humidity),
		zap.Float64("soil_moisture", r.SoilMoisture),
		zap.Int("battery_level", r.BatteryLevel),
		zap.Int("rssi", r.RSSI),
	)
	return r
}

func (s *Simulator) randomFloat(min, max float64) float64 {
	return min + (max-min)*s.rng.Float64()
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
