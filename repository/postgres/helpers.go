package postgres

import (
	"time"
)

const defaultLimit = 500

func clampLimit(limit int) int {
	if limit <= 0 || limit > defaultLimit {
		return defaultLimit
	}
	return limit
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
