// Package feed reads snapshot and quote exports into domain values.
// Malformed records are skipped and counted; they never fail a read.
package feed

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedRecord marks a single record that could not be parsed.
var ErrMalformedRecord = errors.New("malformed record")

// ErrUnknownFormat is returned for files with an unrecognized extension.
var ErrUnknownFormat = errors.New("unknown feed format")

// Format is the encoding of a feed file.
type Format string

// Supported formats
const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Stats counts the outcome of one read.
type Stats struct {
	Records int // data records seen (header excluded)
	Rows    int // domain values produced
	Skipped int // malformed records
}

// timestampLayouts are tried in order. Fractional seconds are accepted by
// every layout with a seconds field.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTimestamp parses an ISO-8601 timestamp.
// The wall clock is kept as written and returned in UTC; a zone offset,
// when present, is dropped rather than applied.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(),
				t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrMalformedRecord, s)
}

// parseFloat parses a required number.
func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedRecord, field, s)
	}
	return v, nil
}

// parseOptionalFloat treats empty, "null" and "NaN" as absent.
func parseOptionalFloat(field, s string) (*float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "none", "nan":
		return nil, nil
	}
	v, err := parseFloat(field, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
