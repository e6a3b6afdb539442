package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shiv7/trading-dashboard-sub004/internal/config"
	"github.com/Shiv7/trading-dashboard-sub004/internal/infrastructure/feed"
	"github.com/Shiv7/trading-dashboard-sub004/internal/infrastructure/logger"
	"github.com/Shiv7/trading-dashboard-sub004/internal/infrastructure/storage"
	"github.com/Shiv7/trading-dashboard-sub004/internal/usecase"
	"github.com/Shiv7/trading-dashboard-sub004/internal/web"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage (snapshot sources + decision log)
	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath, storage.MaxAge{
		Pivots:  cfg.PivotsMaxAge,
		OI:      cfg.OIMaxAge,
		Candles: cfg.CandlesMaxAge,
	})
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Engine
	collectorCfg := usecase.DefaultCollectorConfig()
	collectorCfg.DefaultDelta = cfg.Engine.DefaultDelta
	collectorCfg.MinSwingCandles = cfg.Engine.MinSwingCandles
	collectorCfg.MaxSwingCandles = cfg.Engine.CandleLimit

	scorerCfg := usecase.DefaultScorerConfig()
	scorerCfg.ClusterPct = cfg.Engine.ClusterPct
	scorerCfg.PivotPct = cfg.Engine.PivotPct
	scorerCfg.SwingPct = cfg.Engine.SwingPct
	scorerCfg.RoundPct = cfg.Engine.RoundPct

	coordinator := usecase.NewExitCoordinator(
		usecase.CoordinatorConfig{
			SourceTimeout:   cfg.SourceTimeout,
			CandleTimeframe: cfg.Engine.CandleTimeframe,
			CandleLimit:     cfg.Engine.CandleLimit,
		},
		store, store, store,
		usecase.NewLevelCollector(collectorCfg),
		usecase.NewConfluenceScorer(scorerCfg),
		usecase.NewLotAllocator(cfg.Engine.AllocationWeights),
		log.Named("coordinator"),
	)

	tracker := usecase.NewOiTracker(usecase.TrackerConfig{
		MinConfidence: cfg.Engine.MinOiConfidence,
		ReadTimeout:   cfg.SourceTimeout,
	}, store, coordinator, log.Named("oi"))
	scheduler := usecase.NewOiScheduler(tracker, coordinator, cfg.OiPollInterval, log.Named("scheduler"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	scheduler.Start(ctx)

	// 5. Price Feed
	if cfg.Feed.WSEndpoint != "" {
		go runPriceFeed(ctx, cfg.Feed.WSEndpoint, coordinator, log.Named("feed"))
	} else {
		log.Info("No price feed configured, targets resolve via API only")
	}

	// 6. Start Web Server
	server := web.NewServer(cfg.Server.Port, coordinator, store, cfg.SnapshotPushInterval, log.Named("web"))
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Web server failed", zap.Error(err))
		}
	}()

	log.Info("Exit engine started")
	<-stop
	log.Info("Shutting down...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Web server shutdown failed", zap.Error(err))
	}
}

// runPriceFeed keeps the feed connected and subscribed to every open position,
// reconnecting after the stream drops.
func runPriceFeed(ctx context.Context, endpoint string, coordinator *usecase.ExitCoordinator, log *zap.Logger) {
	for ctx.Err() == nil {
		priceFeed := feed.NewPriceFeed(endpoint, log)
		priceFeed.OnPriceUpdate(func(scripCode string, price decimal.Decimal) {
			if _, err := coordinator.OnPrice(ctx, scripCode, price); err != nil {
				log.Debug("Price ignored", zap.String("scrip", scripCode), zap.Error(err))
			}
		})

		if err := priceFeed.Connect(coordinator.OpenScripCodes()); err != nil {
			log.Error("Failed to connect price feed", zap.Error(err))
			if !sleepCtx(ctx, 5*time.Second) {
				return
			}
			continue
		}

		subscribed := make(map[string]bool)
		for _, code := range coordinator.OpenScripCodes() {
			subscribed[code] = true
		}

		ticker := time.NewTicker(5 * time.Second)
	loop:
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				priceFeed.Close()
				return
			case <-priceFeed.Done():
				log.Warn("Price feed disconnected, reconnecting")
				break loop
			case <-ticker.C:
				var toSubscribe []string
				for _, code := range coordinator.OpenScripCodes() {
					if !subscribed[code] {
						subscribed[code] = true
						toSubscribe = append(toSubscribe, code)
					}
				}
				if len(toSubscribe) == 0 {
					continue
				}
				log.Info("Subscribing to new positions", zap.Strings("scrips", toSubscribe))
				if err := priceFeed.Subscribe(toSubscribe); err != nil {
					log.Error("Failed to subscribe", zap.Error(err))
				}
			}
		}
		ticker.Stop()
		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
