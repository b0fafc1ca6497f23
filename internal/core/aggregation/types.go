package aggregation

import (
	"time"
)

// PartialState is one mini-batch's partial aggregate for a user.
// Rows are append-only: several rows per (EventName, UserID) are expected and
// combined at read time with MergePartialStates.
type PartialState struct {
	EventName      string
	UserID         string
	DistinctEvents DistinctSketch // distinct message IDs in this batch
	MaxEventTime   MaxTime        // latest event_time in this batch
	ComputedAt     time.Time      // also the computed_at of the paired StalenessMarker
}

// StalenessMarker records that a user's partial state changed at ComputedAt.
// Written in the same transaction as the PartialState it indexes.
type StalenessMarker struct {
	EventName  string
	UserID     string
	ComputedAt time.Time
}

// Marker returns the staleness marker paired with this partial state.
func (p PartialState) Marker() StalenessMarker {
	return StalenessMarker{
		EventName:  p.EventName,
		UserID:     p.UserID,
		ComputedAt: p.ComputedAt,
	}
}

// MergedState is the result of merging every partial state of one user.
type MergedState struct {
	Count         uint64
	LastEventTime MaxTime
}

// MergePartialStates merges the full partial-state history of one user.
// Returns false when rows is empty.
func MergePartialStates(rows []PartialState) (MergedState, bool) {
	if len(rows) == 0 {
		return MergedState{}, false
	}
	sketches := make([]DistinctSketch, len(rows))
	times := make([]MaxTime, len(rows))
	for i, row := range rows {
		sketches[i] = row.DistinctEvents
		times[i] = row.MaxEventTime
	}

	sketch, _ := MergeAll(DistinctEvents, sketches)
	last, _ := MergeAll(LastEventTime, times)
	return MergedState{
		Count:         DistinctEvents.Extract(sketch),
		LastEventTime: LastEventTime.Extract(last),
	}, true
}

// SegmentAssignment is one version of a user's membership in a segment.
// The current version is the one with the greatest (AssignedAt, Seq).
type SegmentAssignment struct {
	Segment       string
	UserID        string
	Value         bool
	LastEventTime *time.Time
	AssignedAt    time.Time
	// Seq is assigned by the store in insertion order and breaks AssignedAt ties.
	Seq int64
}

// NewerThan reports whether a supersedes b under latest-wins resolution.
func (a SegmentAssignment) NewerThan(b SegmentAssignment) bool {
	if !a.AssignedAt.Equal(b.AssignedAt) {
		return a.AssignedAt.After(b.AssignedAt)
	}
	return a.Seq > b.Seq
}

// LatestPerUser reduces a multi-version assignment history to the current
// version per user. It never assumes rows were compacted beforehand.
func LatestPerUser(rows []SegmentAssignment) map[string]SegmentAssignment {
	latest := make(map[string]SegmentAssignment, len(rows))
	for _, row := range rows {
		cur, ok := latest[row.UserID]
		if !ok || row.NewerThan(cur) {
			latest[row.UserID] = row
		}
	}
	return latest
}
