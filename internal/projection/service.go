package projection

import (
	"context"
	"errors"
	"fmt"
	"slices"

	coreagg "github.com/aevon-lab/segmentd/internal/core/aggregation"
	"github.com/aevon-lab/segmentd/internal/core/storage"
)

// ErrUnknownSegment marks a query for a segment that is not configured.
var ErrUnknownSegment = errors.New("unknown segment")

// Service is the read side of segment membership. Every read resolves the
// multi-version assignment history to the latest version per user.
type Service struct {
	assignments storage.AssignmentStore
	segments    map[string]coreagg.Segment
	order       []string
}

// NewService creates a new projection service over the configured segments.
func NewService(assignments storage.AssignmentStore, segments []coreagg.Segment) *Service {
	segmentMap := make(map[string]coreagg.Segment, len(segments))
	order := make([]string, 0, len(segments))
	for _, seg := range segments {
		segmentMap[seg.Name] = seg
		order = append(order, seg.Name)
	}
	slices.Sort(order)

	return &Service{
		assignments: assignments,
		segments:    segmentMap,
		order:       order,
	}
}

// Segments returns the configured segments sorted by name.
func (s *Service) Segments() []coreagg.Segment {
	out := make([]coreagg.Segment, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.segments[name])
	}
	return out
}

// Current returns the latest assignment of a user, or nil if the user was never assigned.
func (s *Service) Current(ctx context.Context, segment, userID string) (*coreagg.SegmentAssignment, error) {
	if err := s.checkSegment(segment); err != nil {
		return nil, err
	}
	a, err := s.assignments.LatestAssignment(ctx, segment, userID)
	if err != nil {
		return nil, fmt.Errorf("read assignment %s/%s: %w", segment, userID, err)
	}
	return a, nil
}

// CurrentValue reports the user's latest membership value.
// found is false when the user has no assignment yet.
func (s *Service) CurrentValue(ctx context.Context, segment, userID string) (value bool, found bool, err error) {
	a, err := s.Current(ctx, segment, userID)
	if err != nil || a == nil {
		return false, false, err
	}
	return a.Value, true, nil
}

// ListMembers returns every user whose latest assignment is true, sorted by user id.
func (s *Service) ListMembers(ctx context.Context, segment string) ([]string, error) {
	if err := s.checkSegment(segment); err != nil {
		return nil, err
	}
	rows, err := s.assignments.LatestAssignments(ctx, segment)
	if err != nil {
		return nil, fmt.Errorf("read assignments %s: %w", segment, err)
	}

	members := make([]string, 0, len(rows))
	for _, row := range coreagg.LatestPerUser(rows) {
		if row.Value {
			members = append(members, row.UserID)
		}
	}
	slices.Sort(members)
	return members, nil
}

func (s *Service) checkSegment(segment string) error {
	if _, ok := s.segments[segment]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSegment, segment)
	}
	return nil
}
