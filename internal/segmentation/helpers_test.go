package segmentation

import (
	"context"
	"testing"
	"time"

	v1 "github.com/aevon-lab/segmentd/internal/api/v1"
	"github.com/aevon-lab/segmentd/internal/core/aggregation"
	"github.com/aevon-lab/segmentd/internal/core/storage/memory"
	"github.com/stretchr/testify/require"
)

const buttonClick = "BUTTON_CLICK"

var (
	t0       = time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	clickers = aggregation.Segment{Name: "frequent_clickers", EventName: buttonClick, Threshold: 2}
)

type harness struct {
	store       *memory.Store
	accumulator *Accumulator
	resolver    *Resolver
}

func newHarness(opts JobParameter) *harness {
	store := memory.NewStore()
	return &harness{
		store:       store,
		accumulator: NewAccumulator(store, store, opts),
		resolver:    NewResolver(store, store, store, opts),
	}
}

func click(user, messageID string, eventTime, processingTime time.Time) *v1.Event {
	return &v1.Event{
		UserID:         user,
		EventName:      buttonClick,
		EventTime:      eventTime,
		ProcessingTime: processingTime,
		MessageID:      messageID,
	}
}

func (h *harness) append(t *testing.T, events ...*v1.Event) {
	t.Helper()
	require.NoError(t, h.store.Append(context.Background(), events))
}

// cycle accumulates from lower and resolves from the same instant it accumulated at.
func (h *harness) cycle(t *testing.T, seg aggregation.Segment, lower, at time.Time) ResolveResult {
	t.Helper()
	_, err := h.accumulator.Accumulate(context.Background(), AccumulateRequest{
		EventName:  seg.EventName,
		LowerBound: lower,
		ComputedAt: at,
	})
	require.NoError(t, err)

	res, err := h.resolver.Resolve(context.Background(), ResolveRequest{
		Segment:    seg,
		Horizon:    at,
		AssignedAt: at,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) members(t *testing.T, segment string) []string {
	t.Helper()
	rows, err := h.store.LatestAssignments(context.Background(), segment)
	require.NoError(t, err)
	var out []string
	for _, r := range rows {
		if r.Value {
			out = append(out, r.UserID)
		}
	}
	return out
}

func (h *harness) current(t *testing.T, segment, user string) *aggregation.SegmentAssignment {
	t.Helper()
	a, err := h.store.LatestAssignment(context.Background(), segment, user)
	require.NoError(t, err)
	return a
}
