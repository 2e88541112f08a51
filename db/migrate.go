package db

import (
	"database/sql"
	"embed"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/iiify/errors"
)

//go:embed sqlite/migrations/*.sql
var migrationFS embed.FS

const migrationDir = "sqlite/migrations"

// Migrate applies all pending schema migrations in version order. Each
// migration runs in its own transaction together with its
// schema_migrations record. Migration 000 bootstraps the
// schema_migrations table itself.
func Migrate(db *sql.DB, logger *zap.SugaredLogger) error {
	files, err := migrationFiles()
	if err != nil {
		return err
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	pending := 0
	for _, filename := range files {
		version := strings.SplitN(filename, "_", 2)[0]
		if applied[version] {
			if logger != nil {
				logger.Debugw("Skipping migration (already applied)", "migration", filename)
			}
			continue
		}
		if len(applied) == 0 && version != "000" && pending == 0 {
			return errors.Newf("schema_migrations table missing, but first pending migration is %s", filename)
		}

		if err := applyMigration(db, filename, version, logger); err != nil {
			return err
		}
		pending++
	}

	if logger != nil {
		logger.Infow("Migrations complete", "applied", pending, "total", len(files))
	}
	return nil
}

// migrationFiles lists the embedded migration scripts in version order
func migrationFiles() ([]string, error) {
	entries, err := migrationFS.ReadDir(migrationDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// appliedVersions returns the set of recorded migration versions. An
// empty set with no error means the schema_migrations table does not
// exist yet, which is the state migration 000 resolves.
func appliedVersions(db *sql.DB) (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		// Fresh database, table appears with migration 000
		return applied, nil
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, errors.Wrap(err, "scan migration version")
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(db *sql.DB, filename, version string, logger *zap.SugaredLogger) error {
	script, err := migrationFS.ReadFile(filepath.Join(migrationDir, filename))
	if err != nil {
		return errors.Wrapf(err, "read %s", filename)
	}

	if logger != nil {
		logger.Infow("Applying migration", "migration", filename, "version", version)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", filename)
	}
	if _, err := tx.Exec(string(script)); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "execute %s", filename)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "record %s", filename)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", filename)
}
