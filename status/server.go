package status

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mjasion/greenhouse-gateway/backend"
	"github.com/mjasion/greenhouse-gateway/buffer"
	"github.com/mjasion/greenhouse-gateway/network"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Snapshot is the read-only state exposed to display consumers. It replaces
// the device's local status screen.
type Snapshot struct {
	GatewayID        string `json:"gatewayId"`
	NetworkMode      string `json:"networkMode"`
	SSID             string `json:"ssid"`
	IP               string `json:"ip"`
	BackendReachable bool   `json:"backendReachable"`
	BufferCount      int    `json:"bufferCount"`
	BufferFull       bool   `json:"bufferFull"`
	UnsyncedCount    int    `json:"unsyncedCount"`
	UniqueNodeCount  int    `json:"uniqueNodeCount"`
	ActiveNodeCount  int    `json:"activeNodeCount"`
	LastReadingAt    uint64 `json:"lastReadingAt,omitempty"`
}

// Server serves the gateway's status snapshot, a liveness endpoint, and
// Prometheus metrics.
type Server struct {
	gatewayID string
	buf       *buffer.Buffer
	net       *network.Manager
	client    *backend.Client
	srv       *http.Server
	logger    *zap.Logger
}

// NewServer creates the status server on the given port.
func NewServer(port int, gatewayID string, buf *buffer.Buffer, net *network.Manager, client *backend.Client, logger *zap.Logger) *Server {
	s := &Server{
		gatewayID: gatewayID,
		buf:       buf,
		net:       net,
		client:    client,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	return s
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting status server", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server error: %w", err)
	}
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	return s.srv.Close()
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := Snapshot{
		GatewayID:        s.gatewayID,
		NetworkMode:      s.net.ModeString(),
		SSID:             s.net.SSID(),
		IP:               s.net.IP(),
		BackendReachable: s.client.Reachable(),
		BufferCount:      s.buf.Count(),
		BufferFull:       s.buf.IsFull(),
		UnsyncedCount:    s.buf.UnsyncedCount(),
		UniqueNodeCount:  s.buf.UniqueNodeCount(),
		ActiveNodeCount:  s.buf.ActiveNodeCount(buffer.DefaultActiveWindow),
	}
	if latest, ok := s.buf.Latest(); ok {
		snap.LastReadingAt = latest.Timestamp
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(snap)
}

// handleHealth reports the gateway process itself as alive. Degraded
// connectivity is status information, not a liveness failure: the gateway is
// designed to keep buffering through outages.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]interface{}{
		"status":           "ok",
		"networkMode":      s.net.ModeString(),
		"backendReachable": s.client.Reachable(),
		"bufferedReadings": s.buf.Count(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
