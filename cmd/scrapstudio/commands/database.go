package commands

import (
	"database/sql"

	"github.com/teranos/scrapstudio/am"
	"github.com/teranos/scrapstudio/db"
	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/logger"
	"github.com/teranos/scrapstudio/scripts"
)

// loadConfig loads and validates the configuration cascade
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// openDatabase opens and migrates the results database
func openDatabase(cfg *am.Config) (*sql.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		path = "scrapmaster.db"
	}

	database, err := db.OpenWithMigrations(path, logger.ComponentLogger("db"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}
	return database, nil
}

// openRepository builds the script repository from configuration
func openRepository(cfg *am.Config) (*scripts.Repository, error) {
	return scripts.NewFromConfig(cfg.Scripts, logger.ComponentLogger("scripts"))
}
