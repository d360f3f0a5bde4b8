package producer

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/mjasion/greenhouse-gateway/types"
	"go.uber.org/zap"
)

const connectTimeout = 5 * time.Second

// Only one radio bridge may exist per process; the radio hardware feeding the
// broker topic is a singleton on the device.
var bridgeActive atomic.Bool

// wireReading is the JSON shape radio receiver hardware publishes on the
// bridge topic.
type wireReading struct {
	NodeID       string  `json:"nodeId"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	SoilMoisture float64 `json:"soilMoisture"`
	BatteryLevel int     `json:"batteryLevel"`
	RSSI         int     `json:"rssi"`
	Timestamp    uint64  `json:"timestamp"`
}

// Bridge subscribes to the radio receivers' MQTT topic and hands decoded
// readings to the sink. Decode failures are logged and dropped here; malformed
// data never reaches the buffer. The sink must return quickly and do no
// network I/O.
type Bridge struct {
	client mqtt.Client
	topic  string
	sink   func(types.Reading)
	logger *zap.Logger
}

// NewBridge creates the process's radio bridge. Returns an error if one is
// already active.
func NewBridge(brokerURL, clientID, topic string, sink func(types.Reading), logger *zap.Logger) (*Bridge, error) {
	if !bridgeActive.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("a radio bridge is already active in this process")
	}

	b := &Bridge{
		topic:  topic,
		sink:   sink,
		logger: logger,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			logger.Info("radio bridge connected to broker", zap.String("topic", topic))
			token := c.Subscribe(topic, 1, b.handleMessage)
			token.Wait()
			if token.Error() != nil {
				logger.Error("failed to subscribe to radio topic", zap.Error(token.Error()))
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("radio bridge lost broker connection", zap.Error(err))
		})

	b.client = mqtt.NewClient(opts)
	return b, nil
}

// Start connects to the broker. Reconnection and resubscription are handled by
// the client afterwards.
func (b *Bridge) Start() error {
	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// AutoReconnect keeps trying in the background; the bridge simply
		// delivers nothing until the broker appears.
		b.logger.Warn("broker connection still pending after timeout")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	return nil
}

// Stop disconnects from the broker and releases the process's bridge slot.
func (b *Bridge) Stop() {
	b.client.Disconnect(250)
	bridgeActive.Store(false)
	b.logger.Info("radio bridge stopped")
}

func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	r, err := decodeReading(msg.Payload())
	if err != nil {
		b.logger.Warn("dropping malformed radio payload",
			zap.String("topic", msg.Topic()),
			zap.Error(err))
		return
	}

	b.logger.Debug("radio reading received",
		zap.String("node_id", r.NodeID),
		zap.Int("rssi", r.RSSI))
	b.sink(r)
}

// decodeReading validates a radio payload's structural integrity and supplies
// a monotonic timestamp when the wire format carries none.
func decodeReading(payload []byte) (types.Reading, error) {
	var w wireReading
	if err := json.Unmarshal(payload, &w); err != nil {
		return types.Reading{}, fmt.Errorf("invalid JSON: %w", err)
	}

	nodeID := strings.TrimSpace(w.NodeID)
	if nodeID == "" {
		return types.Reading{}, fmt.Errorf("missing nodeId")
	}
	if len(nodeID) > types.MaxNodeIDLength {
		return types.Reading{}, fmt.Errorf("nodeId longer than %d characters", types.MaxNodeIDLength)
	}

	ts := w.Timestamp
	if ts == 0 {
		ts = types.UptimeMillis()
	}

	return types.Reading{
		NodeID:       nodeID,
		Temperature:  w.Temperature,
		Humidity:     w.Humidity,
		SoilMoisture: w.SoilMoisture,
		BatteryLevel: w.BatteryLevel,
		RSSI:         w.RSSI,
		Timestamp:    ts,
	}, nil
}
