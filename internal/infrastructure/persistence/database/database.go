// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner. Local SQLite files and
// remote libsql/Turso databases are both supported; the driver is selected
// from the URL shape.
package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
}

// ResolveDriver picks the SQL driver and DSN for a database URL. Remote
// libsql URLs carry the auth token as a query parameter; anything else is
// treated as a local SQLite file path.
func ResolveDriver(databaseURL, authToken string) (driverName, dsn string) {
	if strings.HasPrefix(databaseURL, "libsql://") || strings.HasPrefix(databaseURL, "wss://") || strings.HasPrefix(databaseURL, "https://") {
		dsn = databaseURL
		if authToken != "" {
			dsn = fmt.Sprintf("%s?authToken=%s", databaseURL, authToken)
		}
		return "libsql", dsn
	}
	return "sqlite3", databaseURL
}

// NewConnection establishes a new database connection for the specified driver.
func NewConnection(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// NewConnectionFromURL establishes a connection from a database URL with
// driver selection, pool configuration, and logging.
func NewConnectionFromURL(databaseURL, authToken string, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	driverName, dsn := ResolveDriver(databaseURL, authToken)
	logger.Database().Debug("Creating new database connection", "driverName", driverName)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", driverName)
		return nil, err
	}

	db.SetMaxOpenConns(config.DBMaxOpenConns)
	db.SetMaxIdleConns(config.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute)

	if err = db.Ping(); err != nil {
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", driverName)
		return nil, err
	}

	logger.Database().Info("Database connection established", "driverName", driverName, "duration", time.Since(start))
	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		logger.LogSlowQuery("DATABASE_CONNECTION", duration, "system")
	}

	return &DB{db}, nil
}
