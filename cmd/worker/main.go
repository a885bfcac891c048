package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/smukkama/coverage-server/internal/analysis"
	"github.com/smukkama/coverage-server/internal/coverage"
	"github.com/smukkama/coverage-server/internal/ephemeris"
	"github.com/smukkama/coverage-server/internal/metrics"
	"github.com/smukkama/coverage-server/internal/ops"
	"github.com/smukkama/coverage-server/internal/queue"
	"github.com/smukkama/coverage-server/internal/results"
	"github.com/smukkama/coverage-server/internal/tasks"
	"github.com/smukkama/coverage-server/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	fmt.Println("Starting Coverage Worker...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to the result backend
	backend, err := results.Open(ctx, cfg, "migrations", logger)
	if err != nil {
		log.Fatalf("Failed to open result backend: %v", err)
	}
	defer backend.Close()
	fmt.Printf("Connected to %s result backend\n", backend.Name)

	// Load the ephemeris once; it is shared read-only by every task
	eph, err := loadEphemeris(cfg.Ephemeris, logger)
	if err != nil {
		log.Fatalf("Failed to load ephemeris: %v", err)
	}
	fmt.Printf("Ephemeris ready (%s to %s)\n", eph.Start().Format("2006-01-02"), eph.End().Format("2006-01-02"))

	analyzer := analysis.New(eph, cfg.Worker.CoarseStep, cfg.Worker.FineStep, logger)
	registry := tasks.NewRegistry()
	coverage.Register(registry, coverage.New(analyzer, logger))

	// Create Kafka topic
	if err := queue.CreateTopic(
		cfg.Kafka.Brokers,
		cfg.Kafka.TopicTasks,
		cfg.Kafka.NumPartitions,
		1, // replication factor
	); err != nil {
		fmt.Printf("Note: Topic creation failed: %v\n", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hostname, _ := os.Hostname()
	worker := tasks.NewWorker(tasks.WorkerConfig{
		Name:        fmt.Sprintf("%s@%d", hostname, os.Getpid()),
		Concurrency: cfg.Worker.Concurrency,
		Registry:    registry,
		Store:       backend.Store,
		NewSource: func() tasks.Source {
			return queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicTasks, cfg.Kafka.GroupID)
		},
		Recorder: m,
		Classify: coverage.Kind,
		Logger:   logger,
	})

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(ctx); err != nil {
			logger.Error("worker stopped", "error", err)
			stop()
		}
	}()

	// Health and metrics endpoints
	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           ops.NewRouter(m, reg, map[string]ops.Check{backend.Name: backend.Ping}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := ops.Serve(ctx, srv); err != nil {
			logger.Error("ops server failed", "addr", cfg.Metrics.Addr, "error", err)
		}
	}()

	if backend.Purge != nil {
		go purgeLoop(ctx, backend.Purge, cfg.Results.PurgeInterval, logger)
	}

	fmt.Println("\n✓ Coverage Worker is running")
	fmt.Printf("✓ Consuming %s as %s (%d slots)\n", cfg.Kafka.TopicTasks, cfg.Kafka.GroupID, cfg.Worker.Concurrency)
	fmt.Printf("✓ Tasks: %v\n", registry.Names())
	fmt.Printf("✓ Health and metrics on %s\n", cfg.Metrics.Addr)
	fmt.Println("✓ Press Ctrl+C to stop")

	<-ctx.Done()
	fmt.Println("\nShutting down gracefully (finishing in-flight tasks)...")
	<-workerDone
	fmt.Println("Coverage Worker stopped")
}

// loadEphemeris loads the configured table, building it when no file is
// configured, or when saving is enabled and the file does not exist yet.
func loadEphemeris(cfg config.EphemerisConfig, logger *slog.Logger) (*ephemeris.Dataset, error) {
	if cfg.Path != "" && cfg.Save {
		if _, err := os.Stat(cfg.Path); errors.Is(err, fs.ErrNotExist) {
			ds, err := ephemeris.BuildYears(cfg.StartYear, cfg.EndYear, ephemeris.DefaultStep)
			if err != nil {
				return nil, err
			}
			if err := ds.Save(cfg.Path); err != nil {
				return nil, err
			}
			logger.Info("ephemeris built and saved", "path", cfg.Path)
			return ds, nil
		}
	}
	return ephemeris.LoadOrBuild(cfg.Path, cfg.StartYear, cfg.EndYear, logger)
}

func purgeLoop(ctx context.Context, purge func(context.Context) (int64, error), every time.Duration, logger *slog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purge(ctx)
			if err != nil {
				logger.Error("failed to purge expired results", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired results", "rows", n)
			}
		}
	}
}
