package model

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate accepts a calendar date ("2025-06-01") or an RFC 3339 timestamp
// and returns midnight UTC of that calendar day.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
