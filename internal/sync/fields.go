// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package sync

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Remote payloads are decoded into map[string]interface{}; these helpers read
// them without trusting the JSON types.

// stringField returns the first key holding a non-empty string.
func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func boolField(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// mapField returns m[key] when it is a non-nil object.
func mapField(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	v, ok := m[key].(map[string]interface{})
	return v, ok && v != nil
}

func listField(m map[string]interface{}, key string) ([]interface{}, bool) {
	v, ok := m[key].([]interface{})
	return v, ok
}

var errEmptyTimestamp = errors.New("empty timestamp")

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts a Unix seconds number or an ISO-8601 string.
func parseTimestamp(v interface{}) (time.Time, error) {
	switch ts := v.(type) {
	case nil:
		return time.Time{}, errEmptyTimestamp
	case float64:
		if math.IsNaN(ts) || math.IsInf(ts, 0) {
			return time.Time{}, fmt.Errorf("invalid unix timestamp %v", ts)
		}
		sec, frac := math.Modf(ts)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	case int64:
		return time.Unix(ts, 0).UTC(), nil
	case int:
		return time.Unix(int64(ts), 0).UTC(), nil
	case string:
		s := strings.TrimSpace(ts)
		if s == "" {
			return time.Time{}, errEmptyTimestamp
		}
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(sec, 0).UTC(), nil
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}
