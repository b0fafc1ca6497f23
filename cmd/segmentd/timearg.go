package main

import (
	"fmt"
	"time"

	coreagg "github.com/aevon-lab/segmentd/internal/core/aggregation"
)

// parseTimeArg accepts an RFC3339 timestamp or a duration ago ("15m", "2d").
func parseTimeArg(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	d, err := coreagg.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or a duration ago", s)
	}
	return now.UTC().Add(-d), nil
}
