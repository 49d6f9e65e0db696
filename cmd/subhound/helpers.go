package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"github.com/subhound/subhound/internal/config"
	"github.com/subhound/subhound/internal/detect"
	"github.com/subhound/subhound/internal/storage"
)

// openStorage opens the configured database and brings the schema current.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(config.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// detectConfig builds the pipeline configuration, starting from the legacy
// defaults and applying any overrides from the config file. The tolerance
// constants are configurable but their defaults are never silently altered.
func detectConfig() detect.Config {
	cfg := detect.DefaultConfig()

	if viper.IsSet("detect.amount_tolerance") {
		cfg.AmountTolerance = viper.GetFloat64("detect.amount_tolerance")
	}
	if viper.IsSet("detect.wide_spread_tolerance") {
		cfg.WideSpreadTolerance = viper.GetFloat64("detect.wide_spread_tolerance")
	}
	if viper.IsSet("detect.name_match_threshold") {
		cfg.NameMatchThreshold = viper.GetFloat64("detect.name_match_threshold")
	}
	if viper.IsSet("detect.max_batch_size") {
		cfg.MaxBatchSize = viper.GetInt("detect.max_batch_size")
	}

	return cfg
}

// requireUser reads the --user flag shared by most commands.
func requireUser(getFlag func(string) (string, error)) (string, error) {
	user, err := getFlag("user")
	if err != nil {
		return "", err
	}
	if user == "" {
		return "", fmt.Errorf("--user is required")
	}
	return user, nil
}
