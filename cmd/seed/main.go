package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"

	"medical-triage/internal/catalog"
	"medical-triage/internal/config"
	"medical-triage/internal/platform/database"
	"medical-triage/internal/platform/logging"
)

func main() {
	if err := run(); err != nil {
		logging.Logger().Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.Setup(os.Stdout, cfg.LogLevel)

	file := flag.String("file", cfg.CatalogSeedPath, "catalog JSON file")
	flag.Parse()

	snap, err := catalog.LoadSnapshotFile(*file)
	if err != nil {
		return err
	}
	valid, verr := catalog.Validate(snap)
	var merr *multierror.Error
	if errors.As(verr, &merr) {
		for _, e := range merr.Errors {
			log.Warn("skipping invalid catalog entry", "error", e)
		}
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(cfg.MigrationsPath, cfg.DatabaseURL, log); err != nil {
		return err
	}

	repo := catalog.NewRepository(db)
	for i := range valid.Symptoms {
		if err := repo.UpsertSymptom(ctx, &valid.Symptoms[i]); err != nil {
			return fmt.Errorf("symptom %q: %w", valid.Symptoms[i].Key, err)
		}
	}
	for i := range valid.Conditions {
		if err := repo.UpsertCondition(ctx, &valid.Conditions[i]); err != nil {
			return fmt.Errorf("condition %q: %w", valid.Conditions[i].Name, err)
		}
	}
	for i := range valid.Scenarios {
		if err := repo.UpsertScenario(ctx, &valid.Scenarios[i]); err != nil {
			return fmt.Errorf("scenario %q: %w", valid.Scenarios[i].Name, err)
		}
	}

	log.Info("catalog seeded",
		"file", *file,
		"symptoms", len(valid.Symptoms),
		"conditions", len(valid.Conditions),
		"scenarios", len(valid.Scenarios),
	)
	return nil
}
