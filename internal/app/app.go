// Package app wires configuration, storage, clients, and services into the
// running stockboard process. It is the shared core used by cmd/stockboard.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcurrie/stockboard/internal/clients/discord"
	"github.com/mcurrie/stockboard/internal/clients/marketdata"
	"github.com/mcurrie/stockboard/internal/common"
	"github.com/mcurrie/stockboard/internal/interfaces"
	"github.com/mcurrie/stockboard/internal/scheduler"
	"github.com/mcurrie/stockboard/internal/services/performance"
	"github.com/mcurrie/stockboard/internal/services/ranking"
	"github.com/mcurrie/stockboard/internal/services/report"
	"github.com/mcurrie/stockboard/internal/storage"
)

// App holds all initialized services and clients.
type App struct {
	Config             *common.Config
	Logger             *common.Logger
	Store              interfaces.SnapshotStore
	MarketDataClient   interfaces.MarketDataSource
	Notifier           interfaces.Notifier
	RankingService     interfaces.RankingService
	PerformanceService interfaces.PerformanceService
	ReportService      interfaces.ReportService
	Scheduler          *scheduler.Scheduler
	StartupTime        time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	// Config resolution: explicit path, STOCKBOARD_CONFIG, binary dir, dev fallback
	if configPath == "" {
		configPath = os.Getenv("STOCKBOARD_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "stockboard.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/stockboard.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.Data.SnapshotPath != "" && !filepath.IsAbs(config.Data.SnapshotPath) {
		config.Data.SnapshotPath = filepath.Join(binDir, config.Data.SnapshotPath)
	}

	logger := common.NewLogger(config.Logging.Level)

	store, err := storage.NewFileStore(logger, &config.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var marketDataClient interfaces.MarketDataSource
	if config.MarketData.APIKey != "" {
		marketDataClient = marketdata.NewClient(config.MarketData.APIKey,
			marketdata.WithBaseURL(config.MarketData.BaseURL),
			marketdata.WithLogger(logger),
			marketdata.WithRateLimit(config.MarketData.RateLimit),
			marketdata.WithTimeout(config.MarketData.GetTimeout()),
			marketdata.WithCacheTTL(config.MarketData.GetCacheTTL()),
		)
	} else {
		logger.Warn().Msg("Market data API key not configured - benchmark overlay will be unavailable")
	}

	webhooks := map[string]string{
		report.ChannelLeaderboard: config.Discord.LeaderboardWebhookURL,
		report.ChannelStocks:      config.Discord.StocksWebhook(),
	}
	notifier := discord.NewClient(webhooks,
		discord.WithLogger(logger),
		discord.WithTimeout(config.Discord.GetTimeout()),
		discord.WithTestingColors(!config.IsProduction()),
	)

	rankingService := ranking.NewService(logger)
	performanceService := performance.NewService(logger)
	reportService := report.NewService(store, rankingService, performanceService,
		notifier, report.NewChartRenderer(), marketDataClient, logger,
		config.TopN, config.MarketData.BenchmarkSymbol)

	sched, err := scheduler.NewScheduler(store, rankingService, reportService, logger, &config.Schedule, config.TopN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	a := &App{
		Config:             config,
		Logger:             logger,
		Store:              store,
		MarketDataClient:   marketDataClient,
		Notifier:           notifier,
		RankingService:     rankingService,
		PerformanceService: performanceService,
		ReportService:      reportService,
		Scheduler:          sched,
		StartupTime:        startupStart,
	}

	logger.Info().
		Str("version", common.GetFullVersion()).
		Str("environment", config.Environment).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// Start launches the scheduler.
func (a *App) Start(ctx context.Context) error {
	return a.Scheduler.Start(ctx)
}

// Close releases all resources. Shutdown order: scheduler first so no tick
// races the teardown.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
		a.Scheduler = nil
	}
}
