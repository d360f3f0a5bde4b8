package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mjasion/greenhouse-gateway/backend"
	"github.com/mjasion/greenhouse-gateway/buffer"
	"github.com/mjasion/greenhouse-gateway/config"
	"github.com/mjasion/greenhouse-gateway/network"
	"github.com/mjasion/greenhouse-gateway/producer"
	"github.com/mjasion/greenhouse-gateway/status"
	"github.com/mjasion/greenhouse-gateway/syncer"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("c", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting greenhouse gateway", zap.String("gateway_id", cfg.GatewayID))
	logger.Info("configuration loaded", zap.Any("config", cfg.Redacted()))

	// Core components
	buf := buffer.New(cfg.GatewayID, logger)
	client := backend.New(cfg.BackendURL, logger)
	netMgr := network.NewManager(network.NewHostRadio(logger), logger)
	netMgr.SetCredentials(cfg.Wifi.SSID, cfg.Wifi.Password)
	driver := syncer.New(buf, client, netMgr, cfg.GatewayID, logger)

	statusSrv := status.NewServer(cfg.StatusPort, cfg.GatewayID, buf, netMgr, client, logger)
	go func() {
		if err := statusSrv.Start(); err != nil {
			logger.Error("status server error", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Producers hand readings to the buffer; they do no network I/O of
	// their own beyond the broker subscription.
	if cfg.Radio.Enabled {
		bridge, err := producer.NewBridge(cfg.Radio.BrokerURL, cfg.Radio.ClientID, cfg.Radio.Topic, buf.Add, logger)
		if err != nil {
			logger.Fatal("failed to create radio bridge", zap.Error(err))
		}
		if err := bridge.Start(); err != nil {
			logger.Fatal("failed to start radio bridge", zap.Error(err))
		}
		defer bridge.Stop()
	}

	var simTicker *time.Ticker
	var simC <-chan time.Time
	var sim *producer.Simulator
	if cfg.Simulator.Enabled {
		sim = producer.NewSimulator(cfg.Simulator.NodeID, time.Now().UnixNano(), logger)
		simTicker = time.NewTicker(time.Duration(cfg.Simulator.IntervalSeconds) * time.Second)
		defer simTicker.Stop()
		simC = simTicker.C
	}

	// Periodic gateway status report, gated on connectivity.
	c := cron.New()
	if _, err := c.AddFunc(cfg.StatusReportSchedule, func() {
		if netMgr.IsOnline() {
			driver.ReportStatus(ctx)
		}
	}); err != nil {
		logger.Fatal("invalid status report schedule", zap.Error(err))
	}
	c.Start()
	defer c.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	netMgr.Begin()

	tick := time.NewTicker(time.Duration(cfg.TickMillis) * time.Millisecond)
	defer tick.Stop()

	logger.Info("gateway started",
		zap.Int("tick_millis", cfg.TickMillis),
		zap.String("status_report_schedule", cfg.StatusReportSchedule))

	for {
		select {
		case <-tick.C:
			netMgr.Update()
			if netMgr.IsOnline() {
				// Refresh backend reachability (rate-limited inside
				// the client) and drain buffered readings.
				client.CheckHealth(ctx)
				driver.Sync(ctx)
			}

		case <-simC:
			buf.Add(sim.Next())

		case sig := <-sigChan:
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
			cancel()
			statusSrv.Stop()
			logger.Info("shutdown complete")
			return
		}
	}
}
