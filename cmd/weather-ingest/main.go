package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-ingest/internal/api/http"
	"github.com/i474232898/weather-ingest/internal/config"
	"github.com/i474232898/weather-ingest/internal/ingest"
	"github.com/i474232898/weather-ingest/internal/logging"
	"github.com/i474232898/weather-ingest/internal/scheduler"
	"github.com/i474232898/weather-ingest/internal/store"
	"github.com/i474232898/weather-ingest/internal/store/clarify"
	"github.com/i474232898/weather-ingest/internal/store/influx"
	"github.com/i474232898/weather-ingest/internal/weather"
	"github.com/i474232898/weather-ingest/internal/weather/providers"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	logLevel := flag.String("log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	flag.Parse()

	if err := run(*envFile, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "weather-ingest: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile, logLevel string) error {
	loaded, err := config.LoadEnvFile(envFile)
	if err != nil {
		return err
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Bool("env_file_loaded", loaded),
		zap.String("location", cfg.Location),
		zap.Strings("signals", cfg.SignalIDs),
		zap.String("store", cfg.StoreKind),
		zap.String("timestamp_mode", cfg.TimestampMode),
	)

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.store.Close()

	// Scheduler that periodically runs the ingestion pipeline.
	if err := svc.start(cfg.RunOnStart); err != nil {
		return err
	}
	defer svc.scheduler.Stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("liveness server listening", zap.String("port", cfg.Port))
		serverErr <- svc.app.Listen(":" + cfg.Port)
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("liveness server stopped: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := svc.app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	return nil
}

// service holds everything the process runs. Nothing is started by newService.
type service struct {
	pipeline  *ingest.Pipeline
	scheduler *scheduler.Scheduler
	store     ingest.Store
	app       *fiber.App
}

func newService(cfg *config.AppConfig, logger *zap.Logger) (*service, error) {
	// Shared HTTP client for outbound provider and store calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	provider := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey,
		providers.WithBaseURL(cfg.OpenWeatherURL),
		providers.WithBreaker(cfg.ProviderBreaker),
		providers.WithLimiter(providers.NewLimiter(cfg.ProviderRate)),
	)

	st, err := openStore(cfg, httpClient)
	if err != nil {
		return nil, err
	}

	clock, err := ingest.NewTimestampSource(cfg.TimestampMode)
	if err != nil {
		st.Close()
		return nil, err
	}
	normalizer, err := ingest.NewNormalizer(cfg.SignalIDs, clock)
	if err != nil {
		st.Close()
		return nil, err
	}

	var metadata *ingest.MetadataSynchronizer
	if cfg.MetadataSync {
		metadata, err = ingest.NewMetadataSynchronizer(st, cfg.EnumSignalID, cfg.MetadataInputKey)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	pipeline := ingest.NewPipeline(provider, weather.Location(cfg.Location), normalizer, st, metadata, logger)

	sched, err := scheduler.New(scheduler.Options{
		Interval:    cfg.FetchInterval(),
		Cron:        cfg.FetchCron,
		Overlap:     cfg.TickOverlap,
		TickTimeout: cfg.TickTimeout,
	}, pipeline.Run, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &service{
		pipeline:  pipeline,
		scheduler: sched,
		store:     st,
		app:       httpapi.NewApp(httpapi.EnvName(cfg.GreetingEnv)),
	}, nil
}

// start begins scheduling. With runOnStart the first tick fires immediately
// instead of one interval later.
func (s *service) start(runOnStart bool) error {
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	if runOnStart {
		s.scheduler.RunNow()
	}
	return nil
}

func openStore(cfg *config.AppConfig, httpClient *http.Client) (ingest.Store, error) {
	switch cfg.StoreKind {
	case "clarify":
		creds, err := clarify.LoadCredentials(cfg.ClarifyCredentials)
		if err != nil {
			return nil, err
		}
		return clarify.New(creds,
			clarify.WithTokenURL(cfg.ClarifyTokenURL),
			clarify.WithHTTPClient(httpClient),
		)
	case "influx":
		return influx.New(influx.Config{
			Addr:        cfg.InfluxAddr,
			Username:    cfg.InfluxUser,
			Password:    cfg.InfluxPassword,
			Database:    cfg.InfluxDatabase,
			Measurement: cfg.InfluxMeasurement,
			Tags:        map[string]string{"location": cfg.Location},
			Timeout:     cfg.HTTPTimeout,
		})
	case "memory":
		return store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.StoreKind)
	}
}
