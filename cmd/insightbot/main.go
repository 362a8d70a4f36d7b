// Package main implements the entry point for the Market Insight Bot. The
// bot ingests chat news streams and exchange market data over an in-process
// bus, summarizes and assesses them with an LLM, and dispatches email alerts
// when the market signals fire.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ZhuYizhou2333/Market-insight-bot/alert"
	"github.com/ZhuYizhou2333/Market-insight-bot/analyzer"
	"github.com/ZhuYizhou2333/Market-insight-bot/bus"
	"github.com/ZhuYizhou2333/Market-insight-bot/component"
	"github.com/ZhuYizhou2333/Market-insight-bot/config"
	"github.com/ZhuYizhou2333/Market-insight-bot/event"
	"github.com/ZhuYizhou2333/Market-insight-bot/ingest"
	"github.com/ZhuYizhou2333/Market-insight-bot/input/chat"
	"github.com/ZhuYizhou2333/Market-insight-bot/input/marketws"
	"github.com/ZhuYizhou2333/Market-insight-bot/llm"
	"github.com/ZhuYizhou2333/Market-insight-bot/metric"
	"github.com/ZhuYizhou2333/Market-insight-bot/pkg/backoff"
	"github.com/ZhuYizhou2333/Market-insight-bot/pkg/cache"
	"github.com/ZhuYizhou2333/Market-insight-bot/processor/marketdata"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "insightbot"
)

// newChatClient builds the chat-platform binding. The platform SDK is wired
// in by build-specific code assigning this hook; when it stays nil, chat
// ingestion is skipped even if enabled in config.
var newChatClient func(cfg config.ChatConfig, logger *slog.Logger) (chat.Client, error)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load configuration, then bring the logger up with the effective
	// level and format
	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := configureLogging(cliCfg, cfg)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	// Setup core infrastructure
	metricsRegistry, metricsServer, err := setupMetrics(cfg)
	if err != nil {
		return err
	}
	if metricsServer != nil {
		defer func() { _ = metricsServer.Stop(5 * time.Second) }()
	}

	b := bus.New(
		bus.WithLogger(logger),
		bus.WithQueueSize(cfg.Bus.QueueSize),
		bus.WithMetrics(metricsRegistry.Metrics),
	)
	defer b.Close()

	// Assemble components behind the lifecycle manager
	manager := component.NewManager(logger)
	if err := assembleComponents(cfg, b, metricsRegistry, logger, manager); err != nil {
		return err
	}

	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("initialize components: %w", err)
	}

	// Run application with signal handling
	return runWithSignalHandling(manager, cfg.Ingest.StopGrace.Std(), cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and handles version/help requests
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printHelp()
		return nil, true, nil
	}

	return cliCfg, false, nil
}

// setupMetrics creates the registry and, when enabled, the HTTP endpoint
func setupMetrics(cfg *config.Config) (*metric.MetricsRegistry, *metric.Server, error) {
	metricsRegistry := metric.NewMetricsRegistry()

	if !cfg.Metrics.Enabled {
		return metricsRegistry, nil, nil
	}

	metricsServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
	if err := metricsServer.Start(); err != nil {
		return nil, nil, fmt.Errorf("start metrics server: %w", err)
	}
	slog.Info("Metrics endpoint listening", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)

	return metricsRegistry, metricsServer, nil
}

// assembleComponents builds every pipeline component and registers it with
// the manager. Registration order is consumers first so that reverse-order
// shutdown stops producers before the components they feed.
func assembleComponents(
	cfg *config.Config,
	b *bus.Bus,
	metricsRegistry *metric.MetricsRegistry,
	logger *slog.Logger,
	manager *component.Manager,
) error {
	metrics := metricsRegistry.Metrics

	// Market-data store
	processor := marketdata.New("market-processor", b, marketdata.Config{
		Address:    cfg.Bus.MarketAddress,
		TradeTopic: cfg.Bus.TradeTopic,
		DepthTopic: cfg.Bus.DepthTopic,
		Symbols:    cfg.Market.Symbols,
		TTL:        cfg.Cache.TTL.Std(),
		MaxEntries: cfg.Cache.MaxEntries,
	}, logger, cache.WithSweepInterval[event.StreamEvent](cfg.Cache.Sweep.Std()))

	storeSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "insightbot",
		Subsystem: "market_processor",
		Name:      "store_entries",
		Help:      "Market data entries currently retained in the expiring store.",
	})
	if err := metricsRegistry.RegisterGauge("market-processor", "store_entries", storeSize); err != nil {
		return fmt.Errorf("register store gauge: %w", err)
	}
	processor.TrackStoreSize(storeSize)
	manager.Add(processor)

	// Analysis engine and its news listener
	listener, err := setupAnalyzer(cfg, b, metrics, logger)
	if err != nil {
		return err
	}
	manager.Add(listener)

	// Stream ingestors
	runnerOpts := []ingest.RunnerOption{
		ingest.WithBackoff(backoff.Policy{
			BaseDelay:   cfg.Ingest.BaseDelay.Std(),
			MaxDelay:    cfg.Ingest.MaxDelay.Std(),
			MaxAttempts: cfg.Ingest.MaxAttempts,
		}),
		ingest.WithStableReset(cfg.Ingest.StableReset.Std()),
		ingest.WithMetrics(metrics),
	}
	topics := ingest.TopicMap{
		News:  cfg.Bus.NewsTopic,
		Trade: cfg.Bus.TradeTopic,
		Depth: cfg.Bus.DepthTopic,
	}

	if cfg.Market.Enabled {
		marketIngestor := ingest.NewIngestor(
			"market-ingestor", b, cfg.Bus.MarketAddress, topics, logger, runnerOpts...)
		marketIngestor.AddSource(marketws.New(marketws.Config{
			Endpoint: cfg.Market.Endpoint,
			Symbols:  cfg.Market.Symbols,
			Channels: cfg.Market.Channels,
		}, logger))
		manager.Add(marketIngestor)
	}

	if cfg.Chat.Enabled {
		if newChatClient == nil {
			slog.Warn("Chat ingestion enabled but no platform client is linked, skipping")
		} else {
			client, err := newChatClient(cfg.Chat, logger)
			if err != nil {
				return fmt.Errorf("create chat client: %w", err)
			}
			chatIngestor := ingest.NewIngestor(
				"chat-ingestor", b, cfg.Bus.NewsAddress, topics, logger, runnerOpts...)
			chatIngestor.AddSource(chat.NewSource(client))
			manager.Add(chatIngestor)
		}
	}

	return nil
}

// setupAnalyzer wires the LLM collaborators and alert dispatcher into the
// trigger engine and returns its bus listener.
func setupAnalyzer(
	cfg *config.Config,
	b *bus.Bus,
	metrics *metric.Metrics,
	logger *slog.Logger,
) (*analyzer.Listener, error) {
	client, err := llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout.Std(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	dispatcher, err := setupDispatcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	engine := analyzer.NewEngine(analyzer.Config{
		BufferSize:       cfg.Analyzer.BufferSize,
		AnalysisInterval: cfg.Analyzer.AnalysisInterval,
		CategoryIntervals: map[event.Category]int{
			event.CategoryChannel: cfg.Analyzer.SummaryIntervalChannel,
			event.CategoryGroup:   cfg.Analyzer.SummaryIntervalGroup,
		},
		SummarySampleSize:    cfg.Analyzer.SummarySampleSize,
		AssessmentSampleSize: cfg.Analyzer.AssessmentSampleSize,
	}, client, client, dispatcher,
		analyzer.WithLogger(logger),
		analyzer.WithMetrics(metrics))

	listener := analyzer.NewListener(
		"news-analyzer", b, cfg.Bus.NewsAddress, []string{cfg.Bus.NewsTopic}, engine, logger)
	return listener, nil
}

// setupDispatcher returns the email dispatcher, or a log-only fallback when
// email delivery is disabled.
func setupDispatcher(cfg *config.Config, logger *slog.Logger) (analyzer.AlertDispatcher, error) {
	if !cfg.Email.Enabled {
		slog.Info("Email alerts disabled, reports will be logged only")
		return &logDispatcher{logger: logger}, nil
	}

	dispatcher, err := alert.NewEmailDispatcher(alert.EmailConfig{
		Host:       cfg.Email.Host,
		Port:       cfg.Email.Port,
		Sender:     cfg.Email.Sender,
		Password:   cfg.Email.Password,
		Recipients: cfg.Email.Recipients,
		UseTLS:     cfg.Email.UseTLS,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create email dispatcher: %w", err)
	}
	return dispatcher, nil
}

// logDispatcher records signaled reports without sending anything.
type logDispatcher struct {
	logger *slog.Logger
}

func (d *logDispatcher) Dispatch(_ context.Context, report analyzer.Report) error {
	d.logger.Info("market alert (email disabled)",
		"volatility_increased", report.Assessment.VolatilityIncreased,
		"activity_increased", report.Assessment.ActivityIncreased,
		"confidence", report.Assessment.Confidence,
		"summary", report.Assessment.Summary)
	return nil
}

// runWithSignalHandling starts components and handles shutdown signals.
// stopGrace bounds the unwind of partially started components; the full
// shutdown timeout applies on signal.
func runWithSignalHandling(manager *component.Manager, stopGrace, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if stopGrace <= 0 {
		stopGrace = shutdownTimeout
	}
	if err := manager.Start(signalCtx, stopGrace); err != nil {
		return fmt.Errorf("start components: %w", err)
	}
	slog.Info("Market Insight Bot started")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := manager.Stop(shutdownTimeout); err != nil {
		slog.Error("Error stopping components", "error", err)
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Market Insight Bot shutdown complete")
	return nil
}

// printHelp prints help information
func printHelp() {
	printDetailedHelp()
}

// loadConfig loads configuration layered from defaults, the optional file,
// and INSIGHTBOT_* environment overrides
func loadConfig(path string) (*config.Config, error) {
	return config.NewLoader(path).Load()
}
