// Package db opens the iiify SQLite database and keeps its schema
// current through embedded migrations.
package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/iiify/errors"
)

// pragmas applied to every connection. WAL keeps manifest reads working
// while import workers write; the busy timeout covers writer contention
// between the HTTP handlers and the worker pool.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// Open opens the SQLite database at path and applies the connection
// pragmas. Callers run Migrate before using the schema.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database", "path", path)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path)
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "apply %q", pragma)
		}
	}

	if logger != nil {
		logger.Infow("Database opened", "path", path)
	}
	return conn, nil
}
