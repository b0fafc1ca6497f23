package storage

import (
	"context"
	"iter"
	"time"

	v1 "github.com/aevon-lab/segmentd/internal/api/v1"
	"github.com/aevon-lab/segmentd/internal/core/aggregation"
)

// TimeRange bounds a scan by processing time: [Start, End).
// A zero End means unbounded.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if t.Before(r.Start) {
		return false
	}
	return r.End.IsZero() || t.Before(r.End)
}

// EventLog is the append-only store of raw events.
type EventLog interface {
	// Append validates every event and writes the batch. Nothing is written if
	// any event fails validation. Duplicates (same message_id) are stored as-is.
	Append(ctx context.Context, events []*v1.Event) error

	// Scan yields events for eventName whose processing_time is in r.
	// The sequence is lazy; stopping early releases the underlying cursor.
	Scan(ctx context.Context, eventName string, r TimeRange) iter.Seq2[*v1.Event, error]
}

// PartialStateStore holds append-only partial aggregates.
type PartialStateStore interface {
	// WritePartialStates appends each state together with its staleness marker,
	// atomically for the whole slice.
	WritePartialStates(ctx context.Context, states []aggregation.PartialState) error

	// LoadPartialStates returns the full partial-state history of each user.
	// Users without rows are absent from the map.
	LoadPartialStates(ctx context.Context, eventName string, userIDs []string) (map[string][]aggregation.PartialState, error)
}

// StalenessIndex answers which users have new partial state.
type StalenessIndex interface {
	// UsersChangedSince returns the distinct users with a marker at or after since.
	UsersChangedSince(ctx context.Context, eventName string, since time.Time) ([]string, error)

	// ExpireMarkers deletes markers computed before the cutoff and returns how many were removed.
	ExpireMarkers(ctx context.Context, before time.Time) (int64, error)
}

// AssignmentStore holds the multi-version segment assignment history.
type AssignmentStore interface {
	// AppendAssignments appends new versions. Seq is assigned by the store.
	AppendAssignments(ctx context.Context, assignments []aggregation.SegmentAssignment) error

	// LatestAssignment returns the current version for one user, or nil if none exists.
	LatestAssignment(ctx context.Context, segment, userID string) (*aggregation.SegmentAssignment, error)

	// LatestAssignments returns the current version for every user of a segment.
	LatestAssignments(ctx context.Context, segment string) ([]aggregation.SegmentAssignment, error)
}

// CheckpointStore persists per-job watermarks for the scheduler.
type CheckpointStore interface {
	// ReadWatermark returns the last successful watermark for job.
	// ok is false when the job has never completed.
	ReadWatermark(ctx context.Context, job string) (watermark time.Time, ok bool, err error)

	// WriteWatermark records a successful run. Watermarks never move backwards.
	WriteWatermark(ctx context.Context, job string, watermark time.Time) error
}

// Store bundles every contract an engine provides.
type Store interface {
	EventLog
	PartialStateStore
	StalenessIndex
	AssignmentStore
	CheckpointStore

	// Ping checks that the engine is reachable.
	Ping(ctx context.Context) error

	Close() error
}
