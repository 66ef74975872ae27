// Package validation turns an untrusted telemetry payload into a telemetry.Flat.
//
// Every problem found in a payload is collected into a FieldErrors tree that
// mirrors the input shape, so a client can fix all of them in one round trip.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"sat-telemetry/internal/telemetry"
)

// MaxStringLength bounds sat_id and status to the width of their columns.
const MaxStringLength = 128

// Reasons reported for field errors.
const (
	ReasonRequired    = "Missing data for required field."
	ReasonNull        = "Field may not be null."
	ReasonEmpty       = "Field may not be empty."
	ReasonUnknown     = "Unknown field."
	ReasonString      = "Not a valid string."
	ReasonNumber      = "Not a valid number."
	ReasonSpecial     = "Special numeric values (nan or infinity) are not permitted."
	ReasonDateTime    = "Not a valid datetime."
	ReasonInputType   = "Invalid input type."
	ReasonMappingType = "Not a valid mapping type."
)

// ErrMalformedPayload means the body is not JSON or not a JSON object.
var ErrMalformedPayload = errors.New("malformed payload: JSON object required")

// FieldErrors maps a field name to either a []string of reasons or a nested
// FieldErrors for object-valued fields.
type FieldErrors map[string]any

func (fe FieldErrors) add(field, reason string) {
	reasons, _ := fe[field].([]string)
	fe[field] = append(reasons, reason)
}

// ValidationError carries every field error found in one payload.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid telemetry: " + strings.Join(names, ", ")
}

var (
	topLevelFields = map[string]bool{
		"sat_id": true, "timestamp": true, "position": true,
		"velocity": true, "status": true, "metrics": true,
	}
	positionFields = map[string]bool{"lat": true, "lon": true, "alt": true}
	velocityFields = map[string]bool{"vx": true, "vy": true, "vz": true}
)

// DecodeObject parses body as a single JSON object. Numbers are kept as
// json.Number so metrics round-trip without losing precision.
func DecodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrMalformedPayload)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrMalformedPayload
	}
	return obj, nil
}

// Validate checks raw against the telemetry rules and flattens it.
// A non-object raw yields ErrMalformedPayload; field problems yield *ValidationError.
func Validate(raw any) (telemetry.Flat, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return telemetry.Flat{}, ErrMalformedPayload
	}

	var out telemetry.Flat
	errs := FieldErrors{}

	rejectUnknown(obj, topLevelFields, errs)

	if satID, ok := requiredString(obj, "sat_id", errs); ok {
		out.SatID = satID
	}

	if ts, ok := requiredTimestamp(obj, "timestamp", errs); ok {
		out.Timestamp = ts
	}

	if pos, ok := nestedObject(obj, "position", true, errs); ok {
		posErrs := FieldErrors{}
		rejectUnknown(pos, positionFields, posErrs)
		if lat, ok := requiredNumber(pos, "lat", posErrs); ok {
			out.Lat = lat
		}
		if lon, ok := requiredNumber(pos, "lon", posErrs); ok {
			out.Lon = lon
		}
		out.Alt = optionalNumber(pos, "alt", posErrs)
		if len(posErrs) > 0 {
			errs["position"] = posErrs
		}
	}

	if vel, ok := nestedObject(obj, "velocity", false, errs); ok {
		velErrs := FieldErrors{}
		rejectUnknown(vel, velocityFields, velErrs)
		out.VX = optionalNumber(vel, "vx", velErrs)
		out.VY = optionalNumber(vel, "vy", velErrs)
		out.VZ = optionalNumber(vel, "vz", velErrs)
		if len(velErrs) > 0 {
			errs["velocity"] = velErrs
		}
	}

	out.Status = optionalString(obj, "status", errs)
	out.Metrics = optionalMapping(obj, "metrics", errs)

	if len(errs) > 0 {
		return telemetry.Flat{}, &ValidationError{Fields: errs}
	}
	return out, nil
}

func rejectUnknown(obj map[string]any, known map[string]bool, errs FieldErrors) {
	for key := range obj {
		if !known[key] {
			errs.add(key, ReasonUnknown)
		}
	}
}

func requiredString(obj map[string]any, key string, errs FieldErrors) (string, bool) {
	v, present := obj[key]
	switch {
	case !present:
		errs.add(key, ReasonRequired)
		return "", false
	case v == nil:
		errs.add(key, ReasonNull)
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		errs.add(key, ReasonString)
		return "", false
	}
	if s == "" {
		errs.add(key, ReasonEmpty)
		return "", false
	}
	if !checkLength(key, s, errs) {
		return "", false
	}
	return s, true
}

func optionalString(obj map[string]any, key string, errs FieldErrors) *string {
	v, present := obj[key]
	if !present || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		errs.add(key, ReasonString)
		return nil
	}
	if !checkLength(key, s, errs) {
		return nil
	}
	return &s
}

func checkLength(key, s string, errs FieldErrors) bool {
	if utf8.RuneCountInString(s) > MaxStringLength {
		errs.add(key, fmt.Sprintf("Longer than maximum length %d.", MaxStringLength))
		return false
	}
	return true
}

func requiredTimestamp(obj map[string]any, key string, errs FieldErrors) (time.Time, bool) {
	v, present := obj[key]
	switch {
	case !present:
		errs.add(key, ReasonRequired)
		return time.Time{}, false
	case v == nil:
		errs.add(key, ReasonNull)
		return time.Time{}, false
	}
	s, ok := v.(string)
	if !ok {
		errs.add(key, ReasonDateTime)
		return time.Time{}, false
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		errs.add(key, ReasonDateTime)
		return time.Time{}, false
	}
	return ts, true
}

// Accepted timestamp layouts. Fractional seconds are accepted by time.Parse
// after the seconds field even though the layouts omit them.
var timestampLayouts = func() []string {
	var layouts []string
	for _, sep := range []string{"T", " "} {
		for _, clock := range []string{"15:04:05", "15:04"} {
			base := "2006-01-02" + sep + clock
			for _, zone := range []string{"Z07:00", "-0700", "-07", ""} {
				layouts = append(layouts, base+zone)
			}
		}
	}
	return layouts
}()

// ParseTimestamp parses an ISO-8601 date-time. Values without a zone offset
// are read as UTC. The result is always in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// nestedObject returns obj[key] as an object. An absent optional object
// returns ok=false without an error; null is never accepted.
func nestedObject(obj map[string]any, key string, required bool, errs FieldErrors) (map[string]any, bool) {
	v, present := obj[key]
	if !present {
		if required {
			errs.add(key, ReasonRequired)
		}
		return nil, false
	}
	if v == nil {
		errs.add(key, ReasonNull)
		return nil, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		errs.add(key, ReasonInputType)
		return nil, false
	}
	return m, true
}

func requiredNumber(obj map[string]any, key string, errs FieldErrors) (float64, bool) {
	v, present := obj[key]
	switch {
	case !present:
		errs.add(key, ReasonRequired)
		return 0, false
	case v == nil:
		errs.add(key, ReasonNull)
		return 0, false
	}
	f, reason := toFloat(v)
	if reason != "" {
		errs.add(key, reason)
		return 0, false
	}
	return f, true
}

func optionalNumber(obj map[string]any, key string, errs FieldErrors) *float64 {
	v, present := obj[key]
	if !present || v == nil {
		return nil
	}
	f, reason := toFloat(v)
	if reason != "" {
		errs.add(key, reason)
		return nil
	}
	return &f
}

// toFloat converts a decoded JSON value to float64. Numeric strings are
// accepted; booleans are not numbers.
func toFloat(v any) (float64, string) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, ReasonNumber
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			if math.IsInf(parsed, 0) {
				return 0, ReasonSpecial
			}
			return 0, ReasonNumber
		}
		f = parsed
	default:
		return 0, ReasonNumber
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ReasonSpecial
	}
	return f, ""
}

func optionalMapping(obj map[string]any, key string, errs FieldErrors) map[string]any {
	v, present := obj[key]
	if !present || v == nil {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		errs.add(key, ReasonMappingType)
		return nil
	}
	return m
}
