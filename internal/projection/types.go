package projection

import (
	"time"

	coreagg "github.com/aevon-lab/segmentd/internal/core/aggregation"
)

// SegmentView is the public shape of a configured segment.
type SegmentView struct {
	Name      string `json:"name"`
	EventName string `json:"event_name"`
	Threshold int    `json:"threshold"`
}

// SegmentListResponse represents the response for GET /v1/segments.
type SegmentListResponse struct {
	Segments []SegmentView `json:"segments"`
}

// MembersResponse represents the response for a member listing.
type MembersResponse struct {
	Segment string   `json:"segment"`
	Members []string `json:"members"`
	Count   int      `json:"count"`
}

// AssignmentResponse represents the current assignment of one user.
type AssignmentResponse struct {
	Segment       string     `json:"segment"`
	UserID        string     `json:"user_id"`
	Value         bool       `json:"value"`
	LastEventTime *time.Time `json:"last_event_time"`
	AssignedAt    time.Time  `json:"assigned_at"`
}

func newAssignmentResponse(a *coreagg.SegmentAssignment) AssignmentResponse {
	return AssignmentResponse{
		Segment:       a.Segment,
		UserID:        a.UserID,
		Value:         a.Value,
		LastEventTime: a.LastEventTime,
		AssignedAt:    a.AssignedAt,
	}
}
