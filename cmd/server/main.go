// @title           lepakmasjid API
// @version         1.0.0
// @description     Mosque directory backend: listings, amenities, activities, community submissions and moderation.
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  Bearer
// @in                          header
// @name                         Authorization
// @description                  "Session token: 'Bearer {token}'"
//
// @tag.name         System
// @tag.description  Health, readiness and version endpoints. Prometheus metrics are served on a separate port (LM_TELEMETRY_METRICS_PROMETHEUS_PORT, default 9090) at GET /metrics.

// Package main is the entry point for the lepakmasjid server binary.
// It dispatches three subcommands (serve, migrate and version) via a simple
// switch on os.Args. With the postgres record source, serve runs migrations on
// startup so freshly deployed containers never need a separate step.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108 -- pprof is only served on the dedicated profiling port.
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/muazhazali/lepakmasjid/internal/api"
	"github.com/muazhazali/lepakmasjid/internal/audit"
	"github.com/muazhazali/lepakmasjid/internal/auth"
	"github.com/muazhazali/lepakmasjid/internal/config"
	"github.com/muazhazali/lepakmasjid/internal/db"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
	"github.com/muazhazali/lepakmasjid/internal/recordsource/pocketbase"
	"github.com/muazhazali/lepakmasjid/internal/recordsource/postgres"
	"github.com/muazhazali/lepakmasjid/internal/storage"
	"github.com/muazhazali/lepakmasjid/internal/telemetry"

	// Import storage backends to register them
	_ "github.com/muazhazali/lepakmasjid/internal/storage/azure"
	_ "github.com/muazhazali/lepakmasjid/internal/storage/gcs"
	_ "github.com/muazhazali/lepakmasjid/internal/storage/local"
	_ "github.com/muazhazali/lepakmasjid/internal/storage/s3"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		return serve(os.Getenv("CONFIG_PATH"))
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down|fix>", os.Args[0])
		}
		cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return runMigrations(cfg, os.Args[2])
	case "version":
		fmt.Printf("lepakmasjid v%s\n", version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(configPath string) error {
	var level *slog.LevelVar
	cfg, err := config.Watch(configPath, func(next *config.Config) {
		if level != nil {
			level.Set(telemetry.ParseLevel(next.Logging.Level))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialise structured logger as early as possible so all subsequent log
	// output uses the configured format and level.
	level = telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)
	logger := slog.Default()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	src, closeSource, err := openRecordSource(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	store, err := storage.NewStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	logger.Info("storage backend initialized", "backend", cfg.Storage.DefaultBackend)

	rdb := openRedis(cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	var shipper audit.Shipper
	if configs := audit.ShipperConfigs(cfg.Audit); len(configs) > 0 {
		ms, err := audit.NewMultiShipper(configs, logger.With("component", "audit"))
		if err != nil {
			return fmt.Errorf("failed to initialize audit shippers: %w", err)
		}
		shipper = ms
	}

	startSideServers(cfg)

	router, bgServices := api.NewRouter(cfg, api.Deps{
		Source:  src,
		Storage: store,
		Redis:   rdb,
		Shipper: shipper,
		Logger:  logger,
		Version: version,
	})

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.Server.GetAddress(),
			"base_url", cfg.Server.BaseURL,
			"record_source", cfg.RecordSource.Driver,
			"redis", rdb != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		bgServices.Shutdown()
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Stop rate limiter sweepers and flush audit shippers
	bgServices.Shutdown()

	logger.Info("server stopped gracefully")
	return nil
}

// openRecordSource builds the configured Record Source. The returned func
// releases it.
func openRecordSource(cfg *config.Config, logger *slog.Logger) (recordsource.Source, func(), error) {
	switch cfg.RecordSource.Driver {
	case "postgres":
		database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		telemetry.StartDBStatsCollector(database.DB)

		logger.Info("running database migrations")
		if err := db.RunMigrations(database.DB, "up"); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if v, dirty, err := db.GetMigrationVersion(database.DB); err != nil {
			logger.Warn("failed to get migration version", "error", err)
		} else {
			logger.Info("database schema version", "version", v, "dirty", dirty)
		}

		return postgres.New(database, logger.With("component", "postgres")), func() { database.Close() }, nil

	default:
		var opts []pocketbase.Option
		if cfg.RecordSource.AdminEmail != "" {
			opts = append(opts, pocketbase.WithSuperuser(cfg.RecordSource.AdminEmail, cfg.RecordSource.AdminPassword))
		}
		client := pocketbase.New(cfg.RecordSource.URL, cfg.RecordSource.Timeout, opts...)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			// The store may come up after us; /ready reports it until then.
			logger.Warn("record source not reachable at startup", "url", cfg.RecordSource.URL, "error", err)
		}
		return client, func() {}, nil
	}
}

// openRedis returns nil when Redis is disabled or unreachable; the cache and
// rate limiters then run in-process.
func openRedis(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.Redis.Enabled {
		return nil
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable, falling back to in-process cache and rate limits",
			"addr", cfg.Redis.Addr, "error", err)
		rdb.Close()
		return nil
	}
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	return rdb
}

// startSideServers serves Prometheus metrics and pprof on their own ports so
// they are not reachable through the public ingress path.
func startSideServers(cfg *config.Config) {
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	if cfg.Telemetry.Profiling.Enabled {
		pprofAddr := fmt.Sprintf(":%d", cfg.Telemetry.Profiling.Port)
		go func() {
			slog.Info("starting pprof server", "addr", pprofAddr)
			srv := &http.Server{ //nolint:gosec // #nosec G112 -- internal-only pprof port
				Addr:         pprofAddr,
				Handler:      http.DefaultServeMux, // #nosec G108 -- pprof-only internal port
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("pprof server error", "error", err)
			}
		}()
	}
}

func runMigrations(cfg *config.Config, direction string) error {
	if cfg.RecordSource.Driver != "postgres" {
		return fmt.Errorf("migrations apply to the postgres record source only (driver is %q)", cfg.RecordSource.Driver)
	}
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if direction == "fix" {
		changed, err := db.ClearDirty(database.DB)
		if err != nil {
			return err
		}
		if changed {
			log.Println("Dirty migration state cleared; run 'migrate up' to retry")
		} else {
			log.Println("Migration state is already clean")
		}
		return nil
	}

	log.Printf("Running migrations: %s", direction)

	if err := db.RunMigrations(database.DB, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	v, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	log.Printf("Migration completed successfully. Current version: %d (dirty: %v)", v, dirty)
	return nil
}
