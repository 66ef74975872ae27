package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sat-telemetry/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrUnsupportedDSN is returned when the DSN names no known backend.
var ErrUnsupportedDSN = errors.New("unsupported database URL")

// Dialector picks the gorm driver for dsn. postgres:// and postgresql:// URLs
// and key=value DSNs go to Postgres; sqlite://path and file: URIs go to SQLite.
func Dialector(dsn string) (gorm.Dialector, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), nil
	case strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname="):
		return postgres.Open(dsn), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("%w: %q has no path", ErrUnsupportedDSN, dsn)
		}
		return sqlite.Open(path), nil
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, dsn)
}

// Connect opens dsn, verifies it with a ping and, when migrate is set,
// creates the telemetry table and its indices.
func Connect(dsn string, migrate bool) (*gorm.DB, error) {
	dialector, err := Dialector(dsn)
	if err != nil {
		return nil, err
	}

	// The timed ping below is the only connectivity check.
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Warn),
		DisableAutomaticPing: true,
	})
	if err != nil {
		if db != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
		}
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if migrate {
		if err := bootstrap(db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return db, nil
}

// ConnectWithRetry calls Connect until it succeeds or attempts run out.
// A DSN naming no known backend fails immediately.
func ConnectWithRetry(dsn string, migrate bool, attempts int, delay time.Duration) (*gorm.DB, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := Connect(dsn, migrate)
		if err == nil {
			return db, nil
		}
		if errors.Is(err, ErrUnsupportedDSN) {
			return nil, err
		}

		lastErr = err
		if i < attempts {
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("db connect failed after %d attempts: %w", attempts, lastErr)
}

func bootstrap(db *gorm.DB) error {
	return db.AutoMigrate(&models.TelemetryRecord{})
}
