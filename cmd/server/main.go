// Package main is the entry point for the ETF recommendation engine.
// The service loads a two-market ETF universe, computes risk metrics over
// cached price history, clusters the universe, and serves personalized
// recommendations over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ever-flow/ETF/internal/config"
	"github.com/ever-flow/ETF/internal/database"
	"github.com/ever-flow/ETF/internal/marketdata"
	"github.com/ever-flow/ETF/internal/recommend"
	"github.com/ever-flow/ETF/internal/scheduler"
	"github.com/ever-flow/ETF/internal/server"
	"github.com/ever-flow/ETF/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use a fallback logger so the configuration error is still visible.
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Msg("Starting ETF recommendation engine")

	db, err := database.New(database.Config{Path: cfg.DatabasePath()})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	hub := server.NewProgressHub(log)

	snapshots := marketdata.NewSnapshotStore(cfg.SnapshotPath(), cfg.CacheExpiry, log)
	gateway, err := marketdata.NewGateway(marketdata.GatewayConfig{
		Provider:   marketdata.NewYahooProvider(log),
		Snapshots:  snapshots,
		History:    marketdata.NewHistoryStore(db, log),
		MaxRetries: cfg.MaxFetchRetries,
		MinUsable:  cfg.MinUsableTickers,
		OnProgress: hub.OnProgress,
		Log:        log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build market data gateway")
	}

	// Collaborative filtering reads the CSV seed and everything users have
	// submitted since.
	peerStore := recommend.NewPeerStore(db)
	peers := combinedPeerSource{
		csv:   recommend.NewCSVPeerSource(cfg.PeerPreferencesPath),
		store: peerStore,
	}

	pipeline, err := recommend.NewPipeline(recommend.PipelineConfig{
		Gateway: gateway,
		Peers:   peers,
		Seed:    cfg.ClusterSeed,
		TopN:    cfg.DefaultTopN,
		Log:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build recommendation pipeline")
	}

	sched := scheduler.New(log)
	refreshJob := scheduler.NewSnapshotRefreshJob(gateway, log)
	if err := sched.AddJob(cfg.RefreshCronSpec, refreshJob); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.RefreshCronSpec).Msg("Failed to register snapshot refresh job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:       log,
		Cfg:       cfg,
		Pipeline:  pipeline,
		PeerStore: peerStore,
		Hub:       hub,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}

// combinedPeerSource merges the seed CSV with preferences stored at runtime.
type combinedPeerSource struct {
	csv   recommend.PeerSource
	store *recommend.PeerStore
}

func (s combinedPeerSource) All() ([]recommend.PeerPreference, error) {
	fromCSV, err := s.csv.All()
	if err != nil {
		return nil, err
	}
	fromStore, err := s.store.All()
	if err != nil {
		return fromCSV, nil
	}
	return append(fromCSV, fromStore...), nil
}
