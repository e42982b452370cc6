package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// platformLayouts lists the timestamp shapes the platform API emits. Zone-less values are read as UTC.
var platformLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp decodes the platform's loosely formatted date-times.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.UTC()}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if raw == "" {
		return nil
	}
	for _, layout := range platformLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// Before reports whether t is earlier than other. Nil values sort first.
func (t *Timestamp) Before(other *Timestamp) bool {
	switch {
	case t == nil:
		return other != nil
	case other == nil:
		return false
	default:
		return t.Time.Before(other.Time)
	}
}

// Equal reports whether both timestamps denote the same instant. Two nil values are equal.
func (t *Timestamp) Equal(other *Timestamp) bool {
	if t == nil || other == nil {
		return t == nil && other == nil
	}
	return t.Time.Equal(other.Time)
}
