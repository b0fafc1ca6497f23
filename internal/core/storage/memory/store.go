// Package memory is an in-process storage engine for tests and local runs.
// It implements every storage contract with mutex-guarded slices and keeps
// the same append-only semantics as the Postgres engine.
package memory

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	v1 "github.com/aevon-lab/segmentd/internal/api/v1"
	"github.com/aevon-lab/segmentd/internal/core/aggregation"
	"github.com/aevon-lab/segmentd/internal/core/storage"
)

var _ storage.Store = (*Store)(nil)

// Store is a storage.Store held entirely in memory.
type Store struct {
	mu sync.RWMutex

	events      []v1.Event
	eventSeq    int64
	states      []aggregation.PartialState
	markers     []aggregation.StalenessMarker
	assignments []aggregation.SegmentAssignment
	assignSeq   int64
	watermarks  map[string]time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{watermarks: make(map[string]time.Time)}
}

// Append validates the batch and appends every event, populating IngestSeq.
func (s *Store) Append(ctx context.Context, events []*v1.Event) error {
	if err := v1.ValidateBatch(events); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range events {
		s.eventSeq++
		evt.IngestSeq = s.eventSeq
		s.events = append(s.events, *evt)
	}
	return nil
}

// Scan yields a snapshot of matching events taken when iteration starts.
func (s *Store) Scan(ctx context.Context, eventName string, r storage.TimeRange) iter.Seq2[*v1.Event, error] {
	return func(yield func(*v1.Event, error) bool) {
		s.mu.RLock()
		var matched []v1.Event
		for _, evt := range s.events {
			if evt.EventName == eventName && r.Contains(evt.ProcessingTime) {
				matched = append(matched, evt)
			}
		}
		s.mu.RUnlock()

		for i := range matched {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(&matched[i], nil) {
				return
			}
		}
	}
}

// WritePartialStates appends states and their markers under one lock,
// so readers never see one without the other.
func (s *Store) WritePartialStates(ctx context.Context, states []aggregation.PartialState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range states {
		s.states = append(s.states, st)
		s.markers = append(s.markers, st.Marker())
	}
	return nil
}

func (s *Store) LoadPartialStates(ctx context.Context, eventName string, userIDs []string) (map[string][]aggregation.PartialState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]aggregation.PartialState)
	for _, st := range s.states {
		if st.EventName != eventName {
			continue
		}
		if _, ok := wanted[st.UserID]; ok {
			out[st.UserID] = append(out[st.UserID], st)
		}
	}
	return out, nil
}

// UsersChangedSince returns matching users sorted by id.
func (s *Store) UsersChangedSince(ctx context.Context, eventName string, since time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var users []string
	for _, m := range s.markers {
		if m.EventName != eventName || m.ComputedAt.Before(since) {
			continue
		}
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		users = append(users, m.UserID)
	}
	slices.Sort(users)
	return users, nil
}

func (s *Store) ExpireMarkers(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.markers[:0]
	var removed int64
	for _, m := range s.markers {
		if m.ComputedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	s.markers = kept
	return removed, nil
}

func (s *Store) AppendAssignments(ctx context.Context, assignments []aggregation.SegmentAssignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range assignments {
		s.assignSeq++
		a.Seq = s.assignSeq
		s.assignments = append(s.assignments, a)
	}
	return nil
}

func (s *Store) LatestAssignment(ctx context.Context, segment, userID string) (*aggregation.SegmentAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var rows []aggregation.SegmentAssignment
	for _, a := range s.assignments {
		if a.Segment == segment && a.UserID == userID {
			rows = append(rows, a)
		}
	}
	s.mu.RUnlock()

	latest, ok := aggregation.LatestPerUser(rows)[userID]
	if !ok {
		return nil, nil
	}
	return &latest, nil
}

// LatestAssignments returns the current version per user, sorted by user id.
func (s *Store) LatestAssignments(ctx context.Context, segment string) ([]aggregation.SegmentAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var rows []aggregation.SegmentAssignment
	for _, a := range s.assignments {
		if a.Segment == segment {
			rows = append(rows, a)
		}
	}
	s.mu.RUnlock()

	latest := aggregation.LatestPerUser(rows)
	out := make([]aggregation.SegmentAssignment, 0, len(latest))
	for _, a := range latest {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b aggregation.SegmentAssignment) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out, nil
}

func (s *Store) ReadWatermark(ctx context.Context, job string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	wm, ok := s.watermarks[job]
	return wm, ok, nil
}

// WriteWatermark ignores writes older than the stored watermark.
func (s *Store) WriteWatermark(ctx context.Context, job string, watermark time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.watermarks[job]; ok && !watermark.After(cur) {
		return nil
	}
	s.watermarks[job] = watermark
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}
