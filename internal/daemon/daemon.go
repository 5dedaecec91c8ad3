// Package daemon implements the daemon lifecycle manager.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc"

	"firestige.xyz/pktlive/internal/capture"
	"firestige.xyz/pktlive/internal/capture/source"
	"firestige.xyz/pktlive/internal/command"
	"firestige.xyz/pktlive/internal/config"
	"firestige.xyz/pktlive/internal/core"
	"firestige.xyz/pktlive/internal/eventbus"
	"firestige.xyz/pktlive/internal/log"
	"firestige.xyz/pktlive/internal/metrics"
	"firestige.xyz/pktlive/internal/server"
)

// Daemon manages the pktlive process lifecycle.
type Daemon struct {
	// Configuration
	config     *config.GlobalConfig
	configPath string
	socketPath string
	pidFile    string

	// Core components
	bus           *eventbus.Bus
	hub           *server.Hub
	controller    *capture.Controller
	httpServer    *server.Server
	cmdHandler    *command.CommandHandler
	udsServer     *command.UDSServer
	kafkaConsumer *command.KafkaCommandConsumer // nil if command channel disabled
	metricsServer *metrics.Server               // nil if metrics disabled

	// Lifecycle management
	ctx          context.Context
	cancel       context.CancelFunc
	wg           conc.WaitGroup
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
	sigChan      chan os.Signal
}

// New creates a new Daemon instance. Empty socketPath and pidFile fall back
// to the configured values.
func New(configPath, socketPath, pidFile string) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if socketPath == "" {
		socketPath = cfg.Control.Socket
	}
	if pidFile == "" {
		pidFile = cfg.Control.PIDFile
	}

	d := &Daemon{
		config:       cfg,
		configPath:   configPath,
		socketPath:   socketPath,
		pidFile:      pidFile,
		shutdownChan: make(chan struct{}),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Start initializes and starts all daemon components.
func (d *Daemon) Start() error {
	// 1. Logging
	if err := log.Init(&d.config.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := log.Component("daemon")
	logger.Infof("starting pktlive %s (config=%q, socket=%s)", command.Version, d.configPath, d.socketPath)

	// 2. PID file
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	// 3. Event delivery: the bus feeds the websocket hub, metrics and the event log.
	d.bus = eventbus.New(d.config.Events.QueueSize)
	d.hub = server.NewHub(d.config.Events.ClientBuffer)
	d.bus.Subscribe(d.hub.Broadcast)
	d.bus.Subscribe(metrics.Observe)
	d.bus.Subscribe(logEvent)

	// 4. Capture controller
	capCfg := d.config.Capture
	iface := capCfg.Interface
	if iface == "" {
		if name, err := source.DefaultInterface(); err != nil {
			logger.Warnf("no default interface, capture will fail until one is configured: %v", err)
		} else {
			iface = name
			logger.Infof("selected interface %s", iface)
		}
	}
	d.controller = capture.NewController(capture.Options{
		Opener: source.NewOpener(source.Config{
			Interface:    iface,
			Backend:      capCfg.Backend,
			SnapLen:      capCfg.SnapLen,
			Promiscuous:  capCfg.Promiscuous,
			ReadTimeout:  capCfg.ReadTimeout,
			BufferSizeMB: capCfg.BufferSizeMB,
		}),
		Sink:                d.bus,
		Clock:               core.NewClock(capCfg.TimezoneOffset.Location),
		Interface:           iface,
		MaxPacketsPerSecond: capCfg.MaxPacketsPerSecond,
	})

	// 5. Metrics
	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 6. HTTP + websocket
	d.httpServer = server.New(d.controller, d.hub, server.Options{
		Addr:              d.config.Server.Listen,
		ReadHeaderTimeout: d.config.Server.ReadHeaderTimeout,
		ShutdownTimeout:   d.config.Server.ShutdownTimeout,
		AllowedOrigins:    d.config.Server.AllowedOrigins,
	})
	if err := d.httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	// 7. Command handler, shared by UDS and Kafka
	d.cmdHandler = command.NewCommandHandler(d.controller)
	d.cmdHandler.SetClientCounter(d.hub.Len)
	d.cmdHandler.SetShutdownFunc(func() {
		log.Component("daemon").Info("shutdown triggered via daemon_shutdown command")
		d.TriggerShutdown()
	})

	// 8. UDS server for CLI control
	d.udsServer = command.NewUDSServer(d.socketPath, d.cmdHandler)
	d.wg.Go(func() {
		if err := d.udsServer.Start(d.ctx); err != nil && err != context.Canceled {
			log.Component("daemon").Errorf("uds server failed: %v", err)
		}
	})

	// 9. Kafka command consumer (if enabled)
	if d.config.CommandChannel.Enabled {
		if err := d.startKafkaConsumer(); err != nil {
			// Non-fatal: the daemon still runs with UDS and websocket control
			logger.Errorf("failed to start kafka consumer: %v", err)
		}
	}

	logger.Info("daemon started successfully")
	return nil
}

// Stop performs graceful shutdown of all daemon components. Safe to call
// more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(d.stop)
}

func (d *Daemon) stop() {
	logger := log.Component("daemon")
	logger.Info("initiating graceful shutdown")

	// 1. No new commands: cancel UDS and Kafka loops
	d.cancel()
	d.wg.Wait()
	if d.kafkaConsumer != nil {
		if err := d.kafkaConsumer.Stop(); err != nil {
			logger.Errorf("error stopping kafka consumer: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 2. Stop capture and wait for the loop to release the source
	if d.controller != nil {
		if err := d.controller.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("capture loop did not exit: %v", err)
		}
	}

	// 3. Disconnect clients, then drain the bus
	if d.httpServer != nil {
		if err := d.httpServer.Stop(shutdownCtx); err != nil {
			logger.Errorf("error stopping http server: %v", err)
		}
	}
	if d.bus != nil {
		_ = d.bus.Close()
	}

	// 4. Metrics
	if d.metricsServer != nil {
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			logger.Errorf("error stopping metrics server: %v", err)
		}
	}

	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}
	if err := d.removePIDFile(); err != nil {
		logger.Errorf("error removing PID file: %v", err)
	}

	logger.Info("daemon stopped gracefully")
}

// Run blocks until shutdown is triggered by SIGTERM/SIGINT, the
// daemon_shutdown command or ctx. SIGHUP reloads the configuration.
func (d *Daemon) Run(ctx context.Context) error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	logger := log.Component("daemon")
	logger.Info("daemon running, waiting for signals or commands")

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				logger.Infof("received shutdown signal %s", sig)
				d.Stop()
				return nil
			case syscall.SIGHUP:
				logger.Info("received reload signal")
				if err := d.Reload(); err != nil {
					logger.Errorf("failed to reload config: %v", err)
				}
			}

		case <-d.shutdownChan:
			logger.Info("shutdown triggered by command")
			d.Stop()
			return nil

		case <-ctx.Done():
			logger.Infof("context cancelled: %v", ctx.Err())
			d.Stop()
			return ctx.Err()
		}
	}
}

// Reload re-reads the configuration file.
// Hot-reloadable: log level/format/outputs. Everything else requires a restart.
func (d *Daemon) Reload() error {
	logger := log.Component("daemon")
	logger.Infof("reloading configuration from %q", d.configPath)

	newConfig, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}
	if err := log.Reconfigure(&newConfig.Log); err != nil {
		return fmt.Errorf("failed to reconfigure logging: %w", err)
	}

	var requiresRestart []string
	if newConfig.Server.Listen != d.config.Server.Listen {
		requiresRestart = append(requiresRestart, "server.listen")
	}
	if captureChanged(d.config.Capture, newConfig.Capture) {
		requiresRestart = append(requiresRestart, "capture")
	}
	if newConfig.Metrics != d.config.Metrics {
		requiresRestart = append(requiresRestart, "metrics")
	}
	d.config.Log = newConfig.Log

	log.Component("daemon").Infof("configuration reloaded (hot: log, requires restart: %v)", requiresRestart)
	return nil
}

// TriggerShutdown asks Run to stop the daemon.
func (d *Daemon) TriggerShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownChan) })
}

// Controller exposes the capture controller.
func (d *Daemon) Controller() *capture.Controller {
	return d.controller
}

func (d *Daemon) startKafkaConsumer() error {
	target := d.config.CommandChannel.Target
	if target == "" {
		target, _ = os.Hostname()
	}
	consumer, err := command.NewKafkaCommandConsumer(d.config.CommandChannel, target, d.cmdHandler)
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	d.kafkaConsumer = consumer

	d.wg.Go(func() {
		if err := consumer.Start(d.ctx); err != nil && err != context.Canceled {
			log.Component("daemon").Errorf("kafka consumer stopped with error: %v", err)
		}
	})
	return nil
}

func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		log.Component("daemon").Info("metrics server disabled")
		return nil
	}

	err := metrics.RegisterRuntime(prometheus.DefaultRegisterer, d.bus.Stats, func() (int64, int64, int64) {
		snap := d.controller.Status()
		return snap.PacketsPublished, snap.PacketsSkipped, snap.PacketsDropped
	})
	if err != nil {
		return err
	}

	d.metricsServer = metrics.NewServer(metrics.Options{
		Addr: d.config.Metrics.Listen,
		Path: d.config.Metrics.Path,
		CaptureState: func() string {
			return string(d.controller.Status().State)
		},
	})
	return d.metricsServer.Start(d.ctx)
}

// writePIDFile writes the current process ID to the PID file.
func (d *Daemon) writePIDFile() error {
	if d.pidFile == "" {
		return nil
	}
	pid := os.Getpid()
	if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", d.pidFile, err)
	}
	log.Component("daemon").Debugf("PID file %s written (pid=%d)", d.pidFile, pid)
	return nil
}

func (d *Daemon) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", d.pidFile, err)
	}
	return nil
}

func captureChanged(a, b config.CaptureConfig) bool {
	// Zones parse to distinct *time.Location values, compare by name.
	a.TimezoneOffset.Location, b.TimezoneOffset.Location = nil, nil
	return a != b
}

// logEvent writes lifecycle events to the log and packets at trace level.
func logEvent(event eventbus.Event) error {
	logger := log.Component("events")
	switch p := event.Payload.(type) {
	case core.StatusEvent:
		if p.Error != "" {
			logger.Warnf("%s %s: %s", event.Name, p.Status, p.Error)
			return nil
		}
		logger.Infof("%s %s", event.Name, p.Status)
	case core.PacketRecord:
		if logger.IsTraceEnabled() {
			logger.Tracef("%s %s -> %s len=%d", event.Name, p.SourceIP, p.DestIP, p.Length)
		}
	}
	return nil
}
