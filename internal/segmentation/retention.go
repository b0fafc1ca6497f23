package segmentation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/segmentd/internal/core/storage"
)

// DefaultMarkerRetention is how long staleness markers are kept.
const DefaultMarkerRetention = 100 * 24 * time.Hour

// Retention expires staleness markers that no resolve horizon can reach.
type Retention struct {
	index     storage.StalenessIndex
	retention time.Duration
	now       func() time.Time
}

func NewRetention(index storage.StalenessIndex, retention time.Duration) *Retention {
	if retention <= 0 {
		retention = DefaultMarkerRetention
	}
	return &Retention{index: index, retention: retention, now: time.Now}
}

// Sweep deletes markers older than now - retention and returns how many were removed.
func (r *Retention) Sweep(ctx context.Context) (int64, error) {
	cutoff := r.now().UTC().Add(-r.retention)
	n, err := r.index.ExpireMarkers(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention: expire markers before %s: %w", cutoff, err)
	}
	markersExpired.Add(float64(n))

	slog.Info("[Retention] Sweep complete", "cutoff", cutoff, "expired", n)
	return n, nil
}
