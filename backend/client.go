package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mjasion/greenhouse-gateway/types"
	"go.uber.org/zap"
)

const (
	// maxAttempts is the total delivery attempts per message, retryDelay
	// the fixed wait between them. Every attempt is a fresh request; none
	// is skipped or coalesced.
	maxAttempts = 3
	retryDelay  = 200 * time.Millisecond

	// dataTimeout bounds each data-path request, healthTimeout each
	// liveness probe. healthInterval rate-limits the probe.
	dataTimeout    = 5 * time.Second
	healthTimeout  = 3 * time.Second
	healthInterval = 5 * time.Second

	sensorDataPath    = "/api/sensors/data"
	gatewayStatusPath = "/api/gateway/status"
	healthPath        = "/health"
)

// Client delivers readings and status reports to the backend over HTTP with
// bounded retries, and tracks backend reachability: the data path's outcome
// and the rate-limited health probe both update one shared flag,
// last-writer-wins.
type Client struct {
	baseURL     string
	dataClient  *http.Client
	probeClient *http.Client
	logger      *zap.Logger

	retryDelay time.Duration
	now        func() time.Time

	mu              sync.Mutex
	reachable       bool
	lastHealthCheck time.Time
}

// New creates a delivery client for the given backend base URL.
func New(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		dataClient:  &http.Client{Timeout: dataTimeout},
		probeClient: &http.Client{Timeout: healthTimeout},
		logger:      logger,
		retryDelay:  retryDelay,
		now:         time.Now,
	}
}

// SendReading delivers one sensor reading. Reports true only on a confirmed
// successful response; never partially delivers.
func (c *Client) SendReading(ctx context.Context, r types.Reading) bool {
	return c.send(ctx, sensorDataPath, r.Payload())
}

// SendStatus delivers one gateway status report.
func (c *Client) SendStatus(ctx context.Context, s types.GatewayStatusPayload) bool {
	return c.send(ctx, gatewayStatusPath, s)
}

func (c *Client) send(ctx context.Context, path string, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		// Payloads are flat value documents; this cannot happen with
		// well-formed readings.
		c.logger.Error("failed to marshal payload", zap.Error(err))
		return false
	}

	attempt := 0
	operation := func() error {
		attempt++
		return c.post(ctx, path, body)
	}
	notify := func(err error, _ time.Duration) {
		c.logger.Warn("delivery attempt failed, will retry",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), maxAttempts-1),
		ctx,
	)
	err = backoff.RetryNotify(operation, bo, notify)

	ok := err == nil
	c.setReachable(ok)
	if ok {
		c.logger.Debug("delivered",
			zap.String("path", path),
			zap.Int("attempt", attempt))
	} else {
		c.logger.Warn("delivery failed after all retries",
			zap.String("path", path),
			zap.Int("attempts", attempt),
			zap.Error(err))
	}
	return ok
}

// post performs one fresh request attempt. Any response with an error-class
// status and any transport failure count the same: a failed attempt.
func (c *Client) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.dataClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("backend status %d", resp.StatusCode)
	}
	return nil
}

// CheckHealth refreshes the reachability flag with a lightweight probe against
// the backend's liveness path, at most once per healthInterval. Returns the
// current flag either way.
func (c *Client) CheckHealth(ctx context.Context) bool {
	c.mu.Lock()
	if c.now().Sub(c.lastHealthCheck) < healthInterval {
		reachable := c.reachable
		c.mu.Unlock()
		return reachable
	}
	c.lastHealthCheck = c.now()
	c.mu.Unlock()

	reachable := false
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err == nil {
		resp, err := c.probeClient.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			reachable = resp.StatusCode == http.StatusOK
		} else {
			c.logger.Debug("health probe failed", zap.Error(err))
		}
	}

	c.setReachable(reachable)
	return reachable
}

// Reachable returns the cached backend reachability flag.
func (c *Client) Reachable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reachable
}

func (c *Client) setReachable(v bool) {
	c.mu.Lock()
	prev := c.reachable
	c.reachable = v
	c.mu.Unlock()

	if prev != v {
		c.logger.Info("backend reachability changed", zap.Bool("reachable", v))
	}
}
