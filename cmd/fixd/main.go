// fixd is the FIX session-layer daemon: it holds one session.Session per
// configured counterparty, services initiator reconnects and acceptor
// dispatch, and exposes an admin JSON API and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/trace"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/gofix/internal/app"
	"github.com/dantte-lp/gofix/internal/config"
	fixmetrics "github.com/dantte-lp/gofix/internal/metrics"
	"github.com/dantte-lp/gofix/internal/registry"
	"github.com/dantte-lp/gofix/internal/server"
	"github.com/dantte-lp/gofix/internal/session"
	"github.com/dantte-lp/gofix/internal/transport"
	appversion "github.com/dantte-lp/gofix/internal/version"
)

// shutdownTimeout is the maximum time to wait for HTTP servers to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// flightRecorderMinAge is the minimum window age for the flight recorder.
// Captures the last 500ms of execution traces for post-mortem debugging of
// session failures (gap servicing, resend storms, unexpected disconnects).
const flightRecorderMinAge = 500 * time.Millisecond

// flightRecorderMaxBytes is the upper bound on flight recorder window size.
const flightRecorderMaxBytes = 2 * 1024 * 1024 // 2 MiB

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Parse flags.
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	// 2. Load config.
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	// 3. Set up logger with dynamic level support for SIGHUP reload.
	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("fixd starting",
		slog.String("version", appversion.Version),
		slog.String("admin_addr", cfg.Admin.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("acceptor_addr", cfg.Acceptor.Addr),
	)

	// 4. Create Prometheus metrics collector.
	promReg := prometheus.NewRegistry()
	collector := fixmetrics.NewCollector(promReg)

	// 5. Start flight recorder for post-mortem debugging of session failures.
	fr := startFlightRecorder(logger)

	// 6. Create the session registry every configured session lives in.
	sessions := registry.New(logger)

	// 7. Run servers.
	if err := runServers(cfg, sessions, collector, promReg, logger, *configPath, logLevel, fr); err != nil {
		logger.Error("fixd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("fixd stopped")
	return 0
}

// runServers sets up and runs the admin and metrics HTTP servers, the
// acceptor listener, and the background daemon goroutines, using an
// errgroup with a signal-aware context for graceful shutdown.
func runServers(
	cfg *config.Config,
	sessions *registry.Registry,
	collector *fixmetrics.Collector,
	promReg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
	fr *trace.FlightRecorder,
) error {
	adminSrv := newAdminServer(cfg.Admin, sessions, logger)
	metricsSrv := newMetricsServer(cfg.Metrics, promReg)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	acceptor, err := maybeStartAcceptor(gCtx, g, cfg, sessions, logger)
	if err != nil {
		return fmt.Errorf("start acceptor: %w", err)
	}
	defer closeAcceptor(acceptor, logger)

	// Register every declarative session from config at startup.
	reconcileSessions(gCtx, cfg, sessions, collector, logger)

	startHTTPServers(gCtx, g, cfg, adminSrv, metricsSrv, logger)
	startDaemonGoroutines(gCtx, g, configPath, logLevel, cfg, sessions, collector, logger)

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, sessions, logger, fr, adminSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// startHTTPServers registers the admin and metrics HTTP server goroutines.
func startHTTPServers(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	adminSrv *http.Server,
	metricsSrv *http.Server,
	logger *slog.Logger,
) {
	lc := net.ListenConfig{}

	g.Go(func() error {
		logger.Info("admin server listening", slog.String("addr", cfg.Admin.Addr))
		return listenAndServe(ctx, &lc, adminSrv, cfg.Admin.Addr)
	})

	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(ctx, &lc, metricsSrv, cfg.Metrics.Addr)
	})
}

// startDaemonGoroutines registers the watchdog and SIGHUP reload goroutines.
func startDaemonGoroutines(
	ctx context.Context,
	g *errgroup.Group,
	configPath string,
	logLevel *slog.LevelVar,
	cfg *config.Config,
	sessions *registry.Registry,
	collector *fixmetrics.Collector,
	logger *slog.Logger,
) {
	g.Go(func() error {
		return runWatchdog(ctx, logger)
	})

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(ctx, sigHUP, configPath, logLevel, sessions, collector, logger)
		return nil
	})
}

// -------------------------------------------------------------------------
// Systemd Integration -- sd_notify + watchdog
// -------------------------------------------------------------------------

// notifyReady sends READY=1 to systemd, indicating the daemon has
// completed initialization and is ready to serve.
func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

// notifyStopping sends STOPPING=1 to systemd, indicating the daemon is
// beginning graceful shutdown.
func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

// runWatchdog sends periodic watchdog keepalives to systemd. The interval
// is WatchdogSec/2 as recommended by the systemd documentation. If the
// watchdog is not configured, the goroutine exits immediately.
func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// -------------------------------------------------------------------------
// SIGHUP Reload -- log level + session reconciliation
// -------------------------------------------------------------------------

// handleSIGHUP listens for SIGHUP signals and reloads configuration. On
// reload, the log level is updated dynamically via the shared LevelVar, and
// declarative sessions are reconciled (new sessions created, removed
// sessions destroyed). Blocks until the context is cancelled.
func handleSIGHUP(
	ctx context.Context,
	sigHUP <-chan os.Signal,
	configPath string,
	logLevel *slog.LevelVar,
	sessions *registry.Registry,
	collector *fixmetrics.Collector,
	logger *slog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading configuration")
			reloadConfig(ctx, configPath, logLevel, sessions, collector, logger)
		}
	}
}

// reloadConfig loads a fresh configuration from the given path, updates
// the dynamic log level, and reconciles declarative sessions. Errors
// during reload are logged but do not stop the daemon; the previous
// configuration remains in effect for anything not re-read here.
func reloadConfig(
	ctx context.Context,
	configPath string,
	logLevel *slog.LevelVar,
	sessions *registry.Registry,
	collector *fixmetrics.Collector,
	logger *slog.Logger,
) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings", slog.String("error", err.Error()))
		return
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
	)

	reconcileSessions(ctx, newCfg, sessions, collector, logger)
}

// -------------------------------------------------------------------------
// Session Reconciliation
// -------------------------------------------------------------------------

// reconcileSessions diffs the declarative sessions from cfg against the
// registry's current contents: sessions no longer present are removed,
// new ones are created and registered. Sessions present in both are left
// untouched -- changing a live session's parameters requires a restart.
func reconcileSessions(
	ctx context.Context,
	cfg *config.Config,
	sessions *registry.Registry,
	collector *fixmetrics.Collector,
	logger *slog.Logger,
) {
	if len(cfg.Sessions) == 0 {
		logger.Debug("no declarative sessions in config, skipping reconciliation")
		return
	}

	desired := make(map[session.ID]config.SessionEntry, len(cfg.Sessions))
	for _, e := range cfg.Sessions {
		desired[buildSessionID(e)] = e
	}

	destroyed := 0
	for _, sess := range sessions.All() {
		if _, ok := desired[sess.ID()]; ok {
			continue
		}
		if err := sessions.Remove(ctx, sess.ID()); err != nil {
			logger.Warn("failed to remove stale session", slog.String("session", sess.ID().String()), slog.String("error", err.Error()))
			continue
		}
		destroyed++
	}

	created := 0
	for id, e := range desired {
		if _, ok := sessions.Lookup(id); ok {
			continue
		}
		if err := registerEntry(ctx, sessions, cfg, e, collector, logger); err != nil {
			logger.Error("invalid session config, skipping", slog.String("session", id.String()), slog.String("error", err.Error()))
			continue
		}
		created++
	}

	logger.Info("session reconciliation complete",
		slog.Int("created", created),
		slog.Int("destroyed", destroyed),
		slog.Int("total", len(desired)),
	)
}

// registerEntry builds a Session from a declarative SessionEntry and
// registers it, starting its Tick loop and, for initiators, its reconnect
// loop.
func registerEntry(
	ctx context.Context,
	sessions *registry.Registry,
	cfg *config.Config,
	e config.SessionEntry,
	collector *fixmetrics.Collector,
	logger *slog.Logger,
) error {
	settings := buildSettings(cfg, e)
	store := session.NewMemoryStore(session.RealClock)
	sess := session.NewSession(settings, app.NewLoggingApplication(logger), store, logger, session.WithMetrics(collector))

	var run func(context.Context)
	switch e.ConnectionType {
	case "initiator":
		dialer := transport.NewInitiator(e.TargetAddr, logger)
		run = func(ctx context.Context) {
			go registry.TickLoop(ctx, sess, settings.HeartBtInt, logger)
			registry.ReconnectLoop(ctx, sess, dialer, settings.ReconnectInterval, logger)
		}
	case "acceptor":
		run = func(ctx context.Context) {
			registry.TickLoop(ctx, sess, settings.HeartBtInt, logger)
		}
	default:
		return fmt.Errorf("unknown connection_type %q", e.ConnectionType)
	}

	return sessions.Add(ctx, sess, run)
}

// buildSessionID derives the session.ID a config.SessionEntry registers
// under.
func buildSessionID(e config.SessionEntry) session.ID {
	return session.ID{
		BeginString:  e.BeginString,
		SenderCompID: e.SenderCompID,
		SenderSubID:  e.SenderSubID,
		TargetCompID: e.TargetCompID,
		TargetSubID:  e.TargetSubID,
	}
}

// buildSettings maps a SessionEntry onto session.Settings, applying
// cfg.Defaults and then the entry's own overrides.
func buildSettings(cfg *config.Config, e config.SessionEntry) session.Settings {
	connType := session.ConnectionTypeAcceptor
	if e.ConnectionType == "initiator" {
		connType = session.ConnectionTypeInitiator
	}

	s := session.DefaultSettings(buildSessionID(e), connType)

	d := cfg.Defaults
	s.HeartBtInt = d.HeartBtInt
	s.ReconnectInterval = d.ReconnectInterval
	s.LogonTimeout = d.LogonTimeout
	s.LogoutTimeout = d.LogoutTimeout
	s.CheckLatency = d.CheckLatency
	s.MaxLatency = d.MaxLatency
	s.PersistMessages = d.PersistMessages
	s.CheckCompID = d.CheckCompID
	s.ResetOnLogon = d.ResetOnLogon
	s.ResetOnLogout = d.ResetOnLogout
	s.ResetOnDisconnect = d.ResetOnDisconnect

	if e.HeartBtInt > 0 {
		s.HeartBtInt = e.HeartBtInt
	}
	if e.ResetOnLogon != nil {
		s.ResetOnLogon = *e.ResetOnLogon
	}

	return s
}

// -------------------------------------------------------------------------
// Acceptor Listener
// -------------------------------------------------------------------------

// maybeStartAcceptor starts the single shared acceptor listener if any
// configured session is acceptor-typed; otherwise it returns a nil
// *transport.Acceptor and no error.
func maybeStartAcceptor(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	sessions *registry.Registry,
	logger *slog.Logger,
) (*transport.Acceptor, error) {
	needsAcceptor := false
	for _, e := range cfg.Sessions {
		if e.ConnectionType == "acceptor" {
			needsAcceptor = true
			break
		}
	}
	if !needsAcceptor {
		return nil, nil
	}

	acc, err := transport.NewAcceptor(cfg.Acceptor.Addr, sessions, logger)
	if err != nil {
		return nil, fmt.Errorf("start acceptor on %s: %w", cfg.Acceptor.Addr, err)
	}

	g.Go(func() error {
		return acc.Run(ctx)
	})

	logger.Info("fix acceptor listening", slog.String("addr", cfg.Acceptor.Addr))
	return acc, nil
}

// closeAcceptor closes acc if non-nil, logging any error.
func closeAcceptor(acc *transport.Acceptor, logger *slog.Logger) {
	if acc == nil {
		return
	}
	if err := acc.Close(); err != nil {
		logger.Warn("failed to close acceptor listener", slog.String("error", err.Error()))
	}
}

// -------------------------------------------------------------------------
// Graceful Shutdown
// -------------------------------------------------------------------------

// gracefulShutdown performs an orderly shutdown: signals systemd,
// disconnects every session (sequence numbers are reset only where
// ResetOnDisconnect is set; they live in an in-memory store, so they do not
// survive a restart), then shuts down the HTTP servers.
//
// The parent context is already cancelled when this function is called; a
// fresh timeout context is derived internally for server drain.
func gracefulShutdown(
	ctx context.Context,
	sessions *registry.Registry,
	logger *slog.Logger,
	fr *trace.FlightRecorder,
	servers ...*http.Server,
) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	sessions.Close(context.WithoutCancel(ctx))
	if fr != nil {
		fr.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Server Setup
// -------------------------------------------------------------------------

// listenAndServe creates a TCP listener using the ListenConfig and serves
// HTTP requests until the server is shut down.
func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// newAdminServer creates an HTTP server for the admin JSON API.
func newAdminServer(cfg config.AdminConfig, sessions *registry.Registry, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(sessions, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newMetricsServer creates an HTTP server for the Prometheus metrics
// endpoint.
func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// startFlightRecorder initializes and starts the Go runtime/trace
// FlightRecorder for post-mortem debugging of session failures. The
// recorder maintains a rolling window of execution trace data that can be
// written out on demand; fixd does not expose that dump over HTTP today,
// so retrieving it currently requires attaching to the process directly.
// A failure to start is non-fatal: fixd runs without a recorder rather
// than refuse to start over a debugging aid.
func startFlightRecorder(logger *slog.Logger) *trace.FlightRecorder {
	fr := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   flightRecorderMinAge,
		MaxBytes: flightRecorderMaxBytes,
	})

	if err := fr.Start(); err != nil {
		logger.Warn("failed to start flight recorder", slog.String("error", err.Error()))
		return nil
	}

	logger.Info("flight recorder started",
		slog.Duration("min_age", flightRecorderMinAge),
		slog.Uint64("max_bytes", flightRecorderMaxBytes),
	)
	return fr
}

// loadConfig loads configuration from a file path or returns defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

// newLoggerWithLevel creates a structured logger using a shared LevelVar
// for dynamic log level changes via SIGHUP reload.
func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
