// Package telemetry holds the store-agnostic shape of a validated report.
package telemetry

import "time"

// Flat is a validated telemetry report with position and velocity lifted
// to top-level fields. Nil pointers mean the field was absent or null.
type Flat struct {
	SatID     string
	Timestamp time.Time

	Lat float64
	Lon float64
	Alt *float64

	VX *float64
	VY *float64
	VZ *float64

	Status  *string
	Metrics map[string]any
}
