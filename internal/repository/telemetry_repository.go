package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"sat-telemetry/internal/models"
	"sat-telemetry/internal/telemetry"
)

type TelemetryRepository struct {
	db *gorm.DB
}

func NewTelemetryRepository(db *gorm.DB) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

// Insert stores f in its own transaction and returns the assigned id.
// Nothing is visible unless the commit succeeds.
func (r *TelemetryRepository) Insert(ctx context.Context, f telemetry.Flat) (uint64, error) {
	rec, err := models.NewTelemetryRecord(f)
	if err != nil {
		return 0, fmt.Errorf("encode metrics: %w", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if err != nil {
		return 0, fmt.Errorf("insert telemetry: %w", err)
	}
	return rec.ID, nil
}

// FindByID returns the record with id, or nil if there is none.
func (r *TelemetryRepository) FindByID(ctx context.Context, id uint64) (*models.TelemetryRecord, error) {
	var rec models.TelemetryRecord
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Ping checks that a pooled connection is alive without running a query.
func (r *TelemetryRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
