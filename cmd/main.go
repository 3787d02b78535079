package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/citruscircuits/calcserver/internal/adapters/http/api"
	"github.com/citruscircuits/calcserver/internal/adapters/repository"
	service "github.com/citruscircuits/calcserver/internal/app"
	"github.com/citruscircuits/calcserver/internal/config"
	"github.com/citruscircuits/calcserver/internal/domain/calculation"
	"github.com/citruscircuits/calcserver/internal/domain/model"
	"github.com/citruscircuits/calcserver/internal/domain/predictedaim"
	"github.com/citruscircuits/calcserver/internal/domain/scoring"
	"github.com/citruscircuits/calcserver/pkg/logger"
	"github.com/citruscircuits/calcserver/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 3 * time.Minute // POST /run waits for the calculator
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to open store", logger.String("backend", cfg.StoreBackend), logger.Error(err))
		return
	}
	defer closeStore()

	svc, err := newService(cfg, store)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return
	}
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	if cfg.RunOnStart {
		if err := svc.RunAll(ctx); err != nil {
			log.Warn(ctx, "initial run failed", logger.Error(err))
		}
	}

	go startSystemMetricsUpdater(ctx)

	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// openStore returns the configured document store and its release func.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return repository.NewMemoryStore(), func() {}, nil
	case config.BackendMongo:
		store, err := repository.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase,
			repository.WithOperationTimeout(cfg.MongoTimeout()),
		)
		if err != nil {
			return nil, nil, err
		}
		closeStore := releaseStore(store, logger.Get())
		if err := store.EnsureUniqueIndex(ctx, model.CollectionPredictedAim,
			model.FieldMatchNumber, model.FieldAllianceColorIsRed,
		); err != nil {
			closeStore()
			return nil, nil, err
		}
		return store, closeStore, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.StoreBackend)
}

// releaseStore returns a func closing store within shutdownTimeout. Close
// failures are logged.
func releaseStore(store interface{ Close(context.Context) error }, log logger.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			log.Warn(ctx, "failed to close store", logger.Error(err))
		}
	}
}

// newService registers the calculators and configures the runtime from cfg.
func newService(cfg *config.Config, store repository.Store) (*service.Service, error) {
	rules, err := scoring.PresetRules(cfg.RulesPreset)
	if err != nil {
		return nil, err
	}
	pipeline := scoring.NewPipelineWithRules(rules.With(
		scoring.WithPointValues(cfg.PointValues),
		scoring.WithThresholds(cfg.Thresholds),
	))
	predictor := predictedaim.New(store,
		predictedaim.WithPipeline(pipeline),
		predictedaim.WithScheduleCollection(cfg.ScheduleCollection),
	)
	registry, err := calculation.NewRegistry(predictor)
	if err != nil {
		return nil, err
	}
	return service.New(store, registry,
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithPendingSize(cfg.PendingSize),
		service.WithRetryPolicy(cfg.RetryInitial(), cfg.RetryMaxElapsed()),
		service.WithRunTimeout(cfg.RunTimeout()),
	), nil
}

// startSystemMetricsUpdater updates process metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
