// Package main seeds a fresh Record Source with the amenity catalog and sample
// mosques, or verifies that every collection is reachable.
//
// Usage:
//
//	seed [run|verify]
//
// Connection settings come from the same configuration as the server
// (CONFIG_PATH, LM_* environment variables, .env).
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"github.com/muazhazali/lepakmasjid/internal/config"
	"github.com/muazhazali/lepakmasjid/internal/db"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
	"github.com/muazhazali/lepakmasjid/internal/recordsource/pocketbase"
	"github.com/muazhazali/lepakmasjid/internal/recordsource/postgres"
	"github.com/muazhazali/lepakmasjid/internal/seed"
	"github.com/muazhazali/lepakmasjid/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	_ = godotenv.Load()

	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)
	logger := slog.Default()

	src, closeSource, err := open(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s := seed.New(src, logger)
	switch command {
	case "run":
		res, err := s.Run(ctx)
		if err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
		logger.Info("seeding finished",
			"mosques_created", res.MosquesCreated,
			"mosques_skipped", res.MosquesSkipped,
			"amenities_created", res.AmenitiesCreated,
			"amenities_total", res.AmenitiesTotal,
			"link_failures", res.LinkFailures,
			"created_by", res.CreatedBy)
		return nil
	case "verify":
		failures := s.Verify(ctx)
		if len(failures) == 0 {
			logger.Info("all collections reachable", "collections", len(seed.Collections))
			return nil
		}
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			logger.Error("collection check failed", "collection", name, "error", failures[name])
		}
		return fmt.Errorf("%d of %d collections failed verification", len(failures), len(seed.Collections))
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: run, verify", command)
	}
}

func open(cfg *config.Config, logger *slog.Logger) (recordsource.Source, func(), error) {
	if cfg.RecordSource.Driver == "postgres" {
		database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.RunMigrations(database.DB, "up"); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return postgres.New(database, logger), func() { database.Close() }, nil
	}

	if cfg.RecordSource.AdminEmail == "" {
		return nil, nil, fmt.Errorf("seeding PocketBase requires record_source.admin_email and admin_password")
	}
	client := pocketbase.New(cfg.RecordSource.URL, cfg.RecordSource.Timeout,
		pocketbase.WithSuperuser(cfg.RecordSource.AdminEmail, cfg.RecordSource.AdminPassword))
	return client, func() {}, nil
}
