package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/couchcryptid/seedtime-etl/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/seedtime-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/seedtime-etl/internal/adapter/kafka"
	"github.com/couchcryptid/seedtime-etl/internal/adapter/oracle"
	"github.com/couchcryptid/seedtime-etl/internal/adapter/postgres"
	"github.com/couchcryptid/seedtime-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/seedtime-etl/internal/config"
	"github.com/couchcryptid/seedtime-etl/internal/observability"
	"github.com/couchcryptid/seedtime-etl/internal/pipeline"
	"github.com/couchcryptid/seedtime-etl/internal/publish"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("seedtime failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	client := oracle.NewClient(cfg.OracleBaseURL, cfg.OracleTimeout, cfg.OracleSettleDelay, metrics, logger)
	conv := oracle.NewCachedOracle(client, cfg.OracleCacheSize, metrics)
	logger.Info("conversion oracle configured",
		"base_url", cfg.OracleBaseURL,
		"timeout", cfg.OracleTimeout,
		"settle_delay", cfg.OracleSettleDelay,
		"cache_size", cfg.OracleCacheSize,
	)

	sinks, closers, err := openSinks(ctx, cfg, logger)
	defer closeAll(closers, logger)
	if err != nil {
		return err
	}

	p := pipeline.New(
		csvfile.NewStore(),
		pipeline.NewOrchestrator(conv, logger, metrics),
		publish.NewMultiSink(metrics, logger, sinks...),
		pipeline.Options{
			InputFile:     cfg.InputFile,
			InputDir:      cfg.InputDir,
			InputSuffix:   cfg.InputSuffix,
			OutputDir:     cfg.OutputDir,
			DropColumns:   cfg.DropColumns,
			Workers:       cfg.WorkerCount,
			SkipUnchanged: cfg.Daemon(),
		},
		logger,
		metrics,
	)

	if !cfg.Daemon() {
		_, err := p.Run(ctx)
		return err
	}
	return serve(ctx, cfg, p, logger)
}

// openSinks opens every configured publish target. The workbook is always
// present; Kafka and Postgres are enabled by their settings.
func openSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]publish.Named, []io.Closer, error) {
	var (
		sinks   []publish.Named
		closers []io.Closer
	)

	wb, err := sqlite.Open(cfg.WorkbookPath, cfg.PublishBatchSize)
	if err != nil {
		return nil, closers, err
	}
	sinks = append(sinks, publish.Named{Name: "workbook", Sink: wb})
	closers = append(closers, wb)
	logger.Info("workbook sink enabled", "path", cfg.WorkbookPath)

	if cfg.KafkaEnabled() {
		w := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		sinks = append(sinks, publish.Named{Name: "kafka", Sink: w})
		closers = append(closers, w)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if cfg.PostgresEnabled() {
		pg, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.PublishBatchSize)
		if err != nil {
			return nil, closers, fmt.Errorf("postgres sink: %w", err)
		}
		sinks = append(sinks, publish.Named{Name: "postgres", Sink: pg})
		closers = append(closers, pg)
		logger.Info("postgres sink enabled")
	}

	return sinks, closers, nil
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}
}

// serve runs the pipeline on a schedule or on input changes, alongside the
// health server, until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) error {
	var (
		trigger interface{ Run(context.Context) error }
		initial sync.WaitGroup
	)
	if cfg.Schedule != "" {
		s, err := pipeline.NewScheduler(cfg.Schedule, p, logger)
		if err != nil {
			return err
		}
		trigger = s
	} else {
		dir := cfg.InputDir
		if cfg.InputFile != "" {
			dir = filepath.Dir(cfg.InputFile)
		}
		w, err := pipeline.NewWatcher(dir, pipeline.MatchInput(p.InputPath), p, cfg.WatchDebounce, logger)
		if err != nil {
			return err
		}
		logger.Info("watching input directory", "dir", dir, "debounce", cfg.WatchDebounce)
		// The watcher only reacts to changes, so pick up whatever is already there.
		initial.Add(1)
		go func() {
			defer initial.Done()
			_, _ = p.Run(ctx)
		}()
		trigger = w
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	err := trigger.Run(ctx)
	logger.Info("shutting down")
	initial.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return err
}
