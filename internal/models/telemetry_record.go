package models

import (
	"bytes"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"sat-telemetry/internal/telemetry"
)

// TelemetryRecord stores a single satellite telemetry report. Records are
// append-only: the id is assigned on insert and rows are never updated.
type TelemetryRecord struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	SatID     string    `gorm:"column:sat_id;size:128;not null;index:idx_telemetry_sat_id"`
	Timestamp time.Time `gorm:"column:timestamp;not null;index:idx_telemetry_timestamp"`

	Lat float64  `gorm:"column:lat;not null"`
	Lon float64  `gorm:"column:lon;not null"`
	Alt *float64 `gorm:"column:alt"`

	VX *float64 `gorm:"column:vx"`
	VY *float64 `gorm:"column:vy"`
	VZ *float64 `gorm:"column:vz"`

	Status *string `gorm:"column:status;size:128"`
	// Metrics is opaque JSON: JSONB on Postgres, JSON on SQLite.
	Metrics datatypes.JSON `gorm:"column:metrics"`
}

func (TelemetryRecord) TableName() string {
	return "telemetry"
}

// NewTelemetryRecord builds an unsaved record from a validated report.
func NewTelemetryRecord(f telemetry.Flat) (*TelemetryRecord, error) {
	rec := &TelemetryRecord{
		SatID:     f.SatID,
		Timestamp: f.Timestamp.UTC(),
		Lat:       f.Lat,
		Lon:       f.Lon,
		Alt:       f.Alt,
		VX:        f.VX,
		VY:        f.VY,
		VZ:        f.VZ,
		Status:    f.Status,
	}
	if f.Metrics != nil {
		b, err := json.Marshal(f.Metrics)
		if err != nil {
			return nil, err
		}
		rec.Metrics = datatypes.JSON(b)
	}
	return rec, nil
}

// Flat returns the record's fields as a telemetry.Flat. Metrics numbers
// decode as json.Number.
func (r *TelemetryRecord) Flat() (telemetry.Flat, error) {
	f := telemetry.Flat{
		SatID:     r.SatID,
		Timestamp: r.Timestamp.UTC(),
		Lat:       r.Lat,
		Lon:       r.Lon,
		Alt:       r.Alt,
		VX:        r.VX,
		VY:        r.VY,
		VZ:        r.VZ,
		Status:    r.Status,
	}
	metrics, err := r.metricsMap()
	if err != nil {
		return telemetry.Flat{}, err
	}
	f.Metrics = metrics
	return f, nil
}

func (r *TelemetryRecord) metricsMap() (map[string]any, error) {
	if len(r.Metrics) == 0 || string(r.Metrics) == "null" {
		return nil, nil
	}
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(r.Metrics))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// TelemetryView is the nested wire representation of a stored record.
type TelemetryView struct {
	ID        uint64          `json:"id"`
	SatID     string          `json:"sat_id"`
	Timestamp string          `json:"timestamp"`
	Position  PositionView    `json:"position"`
	Velocity  VelocityView    `json:"velocity"`
	Status    *string         `json:"status"`
	Metrics   json.RawMessage `json:"metrics"`
}

type PositionView struct {
	Lat float64  `json:"lat"`
	Lon float64  `json:"lon"`
	Alt *float64 `json:"alt"`
}

type VelocityView struct {
	VX *float64 `json:"vx"`
	VY *float64 `json:"vy"`
	VZ *float64 `json:"vz"`
}

// View re-nests position and velocity for output.
func (r *TelemetryRecord) View() TelemetryView {
	metrics := json.RawMessage("null")
	if len(r.Metrics) > 0 {
		metrics = json.RawMessage(r.Metrics)
	}
	return TelemetryView{
		ID:        r.ID,
		SatID:     r.SatID,
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
		Position:  PositionView{Lat: r.Lat, Lon: r.Lon, Alt: r.Alt},
		Velocity:  VelocityView{VX: r.VX, VY: r.VY, VZ: r.VZ},
		Status:    r.Status,
		Metrics:   metrics,
	}
}
