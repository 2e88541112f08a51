package commands

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/teranos/iiify/config"
	"github.com/teranos/iiify/db"
	"github.com/teranos/iiify/errors"
	"github.com/teranos/iiify/logger"
)

// loadConfig resolves the configuration, honoring the global --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	return cfg, nil
}

// openDatabase opens and migrates the database at the configured path.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	database, err := db.Open(cfg.DB.Path, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", cfg.DB.Path)
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "failed to run migrations on %s", cfg.DB.Path)
	}
	return database, nil
}
