package syncer

import (
	"context"

	"github.com/mjasion/greenhouse-gateway/buffer"
	"github.com/mjasion/greenhouse-gateway/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// maxPerTick caps how many readings a single Sync call drains, bounding the
// scheduler tick's wall-clock time when the backend is slow.
const maxPerTick = 10

var (
	readingsSynced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_readings_synced_total",
		Help: "Total number of buffered readings confirmed delivered to the backend.",
	})
	syncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_sync_failures_total",
		Help: "Total number of sync passes aborted by a delivery failure.",
	})
	statusReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_status_reports_total",
		Help: "Total number of gateway status reports delivered to the backend.",
	})
)

// Delivery is the slice of the delivery client the driver needs.
type Delivery interface {
	SendReading(ctx context.Context, r types.Reading) bool
	SendStatus(ctx context.Context, s types.GatewayStatusPayload) bool
	Reachable() bool
}

// NetworkStatus exposes the connectivity mode for status reports.
type NetworkStatus interface {
	ModeString() string
}

// Driver drains the offline buffer through the delivery client: oldest
// unsynced reading first, marked synced only on confirmed delivery.
type Driver struct {
	buf       *buffer.Buffer
	delivery  Delivery
	net       NetworkStatus
	gatewayID string
	logger    *zap.Logger
}

// New creates a sync driver.
func New(buf *buffer.Buffer, delivery Delivery, net NetworkStatus, gatewayID string, logger *zap.Logger) *Driver {
	return &Driver{
		buf:       buf,
		delivery:  delivery,
		net:       net,
		gatewayID: gatewayID,
		logger:    logger,
	}
}

// Sync delivers buffered readings until the buffer has no unsynced entries,
// the per-tick cap is reached, or a delivery fails. Returns how many readings
// were confirmed delivered. MarkSynced follows each NextUnsynced immediately,
// with no inserts by this goroutine in between; an entry overwritten by a
// concurrent producer is protected by the token's generation check.
func (d *Driver) Sync(ctx context.Context) int {
	synced := 0
	for synced < maxPerTick {
		if ctx.Err() != nil {
			return synced
		}

		r, token, ok := d.buf.NextUnsynced()
		if !ok {
			return synced
		}

		if !d.delivery.SendReading(ctx, r) {
			syncFailures.Inc()
			d.logger.Warn("sync pass aborted, backend delivery failed",
				zap.String("node_id", r.NodeID),
				zap.Int("synced_this_pass", synced),
				zap.Int("remaining", d.buf.UnsyncedCount()))
			return synced
		}

		if d.buf.MarkSynced(token) {
			readingsSynced.Inc()
			synced++
			d.logger.Debug("reading synced",
				zap.String("node_id", r.NodeID),
				zap.Uint64("timestamp", r.Timestamp))
		} else {
			// The slot was overwritten while the send was in flight;
			// the delivered copy is gone from the buffer and the new
			// occupant stays unsynced.
			d.logger.Warn("synced reading was overwritten during delivery",
				zap.String("node_id", r.NodeID))
		}
	}
	return synced
}

// ReportStatus builds and delivers the gateway status document.
func (d *Driver) ReportStatus(ctx context.Context) bool {
	payload := types.GatewayStatusPayload{
		GatewayID:        d.gatewayID,
		ActiveNodeCount:  d.buf.ActiveNodeCount(buffer.DefaultActiveWindow),
		NetworkMode:      d.net.ModeString(),
		BackendReachable: d.delivery.Reachable(),
		Timestamp:        types.UptimeMillis(),
	}

	ok := d.delivery.SendStatus(ctx, payload)
	if ok {
		statusReports.Inc()
	} else {
		d.logger.Warn("failed to deliver gateway status report")
	}
	return ok
}
