package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"StokVault/internal/config"
	"StokVault/internal/core"
	"StokVault/internal/event"
	"StokVault/internal/ingestion"
	"StokVault/internal/ledger"
	"StokVault/internal/observability"
	"StokVault/internal/persistence"
	"StokVault/internal/query"
	"StokVault/internal/server"
	"StokVault/internal/state"
)

func main() {
	log := observability.NewLogger("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	observability.SetLogLevel(cfg.LogLevel)
	log = observability.NewLogger("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	log.Info().Msg("postgres connected")

	migrator := persistence.NewMigrator(db, cfg.MigrationsDir)
	if err := migrator.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}
	log.Info().Msg("migrations applied")

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()
	log.Info().Msg("nats connected")

	if err := ingestion.EnsureOutboundStream(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure outbound stream")
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- Vault core ---
	params := core.Params{
		RoundDuration:  time.Duration(cfg.RoundDurationSeconds) * time.Second,
		ThresholdBps:   cfg.HealthFactorThresholdBps,
		PenaltyRateBps: cfg.PenaltyRateBps,
		MinStake:       cfg.MinStake,
	}
	scoring := state.DefaultScoringPolicy()
	if cfg.PenaltyMode == "fixed" {
		scoring.Mode = state.PenaltyModeFixed
	}

	assetLedger := ledger.NewMemoryLedger()
	engine := core.NewRoundEngine(assetLedger, params, scoring)

	// Vault emits onto one channel; a fan-out loop feeds persistence
	// (blocking, records are never lost) and the outbound publisher
	// (best-effort, drops when full).
	eventChan := make(chan event.Record, cfg.EventBufferSize)
	persistChan := make(chan event.Record, cfg.EventBufferSize)
	publishChan := make(chan event.Record, cfg.EventBufferSize)

	vault := core.NewVault(engine, eventChan, metrics)
	queries := query.NewService(vault, db)

	// --- Workers ---
	errChan := make(chan error, 8)

	persistWorker := persistence.NewWorker(db, persistChan, cfg.PersistBatchSize, 100*time.Millisecond, metrics)
	go func() {
		errChan <- persistWorker.Run(ctx)
	}()

	publisher := ingestion.NewOutboundPublisher(js, publishChan, metrics)
	go func() {
		errChan <- publisher.Run(ctx)
	}()

	go fanOutEvents(ctx, eventChan, persistChan, publishChan, metrics)

	// --- HTTP API ---
	api := server.NewHTTPServer(vault, queries, healthChecker)
	apiServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Router(),
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http api listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// --- Metrics + probes ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", healthChecker.LivenessHandler)
	metricsMux.HandleFunc("/readyz", healthChecker.ReadinessHandler)
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	healthChecker.SetReady(true)
	log.Info().Str("http", cfg.HTTPAddr).Str("metrics", cfg.MetricsAddr).Msg("stokvault ready")

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		log.Error().Err(err).Msg("worker failed, shutting down")
	}

	healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	apiServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	// Stop producing, then let the persistence worker drain its channel.
	cancel()
	close(persistChan)
	close(publishChan)

	log.Info().Msg("stokvault shutdown complete")
}

// fanOutEvents copies vault records to both downstream channels. The
// persistence send blocks so the event log stays complete; the publish
// send drops when the broker side lags.
func fanOutEvents(
	ctx context.Context,
	in <-chan event.Record,
	persist chan<- event.Record,
	publish chan<- event.Record,
	metrics *observability.Metrics,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-in:
			if !ok {
				return
			}

			select {
			case persist <- rec:
			case <-ctx.Done():
				return
			}

			select {
			case publish <- rec:
			default:
				if metrics != nil {
					metrics.PublishErrors.Inc()
				}
			}
		}
	}
}
