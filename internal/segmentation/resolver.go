package segmentation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aevon-lab/segmentd/internal/core/aggregation"
	domainerr "github.com/aevon-lab/segmentd/internal/core/errors"
	"github.com/aevon-lab/segmentd/internal/core/partition"
	"github.com/aevon-lab/segmentd/internal/core/storage"
	"golang.org/x/sync/errgroup"
)

// ResolveRequest selects the users whose membership is recomputed.
type ResolveRequest struct {
	Segment aggregation.Segment
	// Horizon is inclusive: users with a marker at or after it are recomputed.
	Horizon time.Time
	// AssignedAt stamps every written assignment. Zero means now.
	AssignedAt time.Time
}

type ResolveResult struct {
	Affected int
	Assigned int
	Members  int
	Skipped  int
}

func (r *ResolveResult) add(o ResolveResult) {
	r.Affected += o.Affected
	r.Assigned += o.Assigned
	r.Members += o.Members
	r.Skipped += o.Skipped
}

// Resolver recomputes segment membership for users with new partial state.
type Resolver struct {
	index       storage.StalenessIndex
	states      storage.PartialStateStore
	assignments storage.AssignmentStore
	opts        JobParameter
	now         func() time.Time
}

func NewResolver(
	index storage.StalenessIndex,
	states storage.PartialStateStore,
	assignments storage.AssignmentStore,
	opts JobParameter,
) *Resolver {
	return &Resolver{
		index:       index,
		states:      states,
		assignments: assignments,
		opts:        opts.normalized(),
		now:         time.Now,
	}
}

// Resolve merges the full partial-state history of every affected user,
// evaluates the segment predicate and appends one assignment per user.
// Users are sharded by partition across WorkerCount workers; the first
// error cancels the remaining shards.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	var result ResolveResult
	seg := req.Segment
	if seg.Name == "" || seg.EventName == "" {
		return result, fmt.Errorf("resolve: segment name and event name are required")
	}
	if seg.Threshold < 1 {
		return result, fmt.Errorf("resolve: segment %q: threshold must be >= 1", seg.Name)
	}

	assignedAt := req.AssignedAt
	if assignedAt.IsZero() {
		assignedAt = r.now()
	}
	assignedAt = assignedAt.UTC()

	affected, err := r.index.UsersChangedSince(ctx, seg.EventName, req.Horizon)
	if err != nil {
		return result, fmt.Errorf("resolve %s: users changed since %s: %w", seg.Name, req.Horizon, err)
	}
	if len(affected) == 0 {
		slog.Debug("[Resolver] No affected users", "segment", seg.Name, "horizon", req.Horizon)
		return result, nil
	}

	shards := make([][]string, r.opts.WorkerCount)
	for _, userID := range affected {
		i := partition.Shard(userID, r.opts.WorkerCount)
		shards[i] = append(shards[i], userID)
	}

	shardResults := make([]ResolveResult, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, users := range shards {
		if len(users) == 0 {
			continue
		}
		g.Go(func() error {
			res, err := r.resolveShard(gctx, seg, users, assignedAt)
			shardResults[i] = res
			return err
		})
	}
	err = g.Wait()
	for _, res := range shardResults {
		result.add(res)
	}
	if err != nil {
		return result, fmt.Errorf("resolve %s: %w", seg.Name, err)
	}

	slog.Info("[Resolver] Resolve complete",
		"segment", seg.Name,
		"event_name", seg.EventName,
		"horizon", req.Horizon,
		"assigned_at", assignedAt,
		"affected", result.Affected,
		"assigned", result.Assigned,
		"members", result.Members,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (r *Resolver) resolveShard(ctx context.Context, seg aggregation.Segment, users []string, assignedAt time.Time) (ResolveResult, error) {
	var result ResolveResult
	for start := 0; start < len(users); start += r.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		chunk := users[start:min(start+r.opts.BatchSize, len(users))]
		result.Affected += len(chunk)

		history, err := r.states.LoadPartialStates(ctx, seg.EventName, chunk)
		if err != nil {
			return result, fmt.Errorf("load partial states: %w", err)
		}

		assignments := make([]aggregation.SegmentAssignment, 0, len(chunk))
		for _, userID := range chunk {
			merged, ok := aggregation.MergePartialStates(history[userID])
			if !ok {
				warning := domainerr.SkippedUserWarning{Segment: seg.Name, UserID: userID}
				slog.Warn("[Resolver] Skipping user", "segment", seg.Name, "user_id", userID, "warning", warning.Error())
				usersSkipped.WithLabelValues(seg.Name).Inc()
				result.Skipped++
				continue
			}
			assignments = append(assignments, r.assignmentFor(seg, userID, merged, assignedAt))
		}

		if err := r.assignments.AppendAssignments(ctx, assignments); err != nil {
			return result, fmt.Errorf("append assignments: %w", err)
		}
		for _, a := range assignments {
			assignmentsWritten.WithLabelValues(seg.Name, strconv.FormatBool(a.Value)).Inc()
			if a.Value {
				result.Members++
			}
		}
		result.Assigned += len(assignments)
	}
	return result, nil
}

func (r *Resolver) assignmentFor(seg aggregation.Segment, userID string, merged aggregation.MergedState, assignedAt time.Time) aggregation.SegmentAssignment {
	a := aggregation.SegmentAssignment{
		Segment:    seg.Name,
		UserID:     userID,
		Value:      seg.Evaluate(merged.Count),
		AssignedAt: assignedAt,
	}
	if merged.LastEventTime.Valid {
		t := aggregation.TruncateTime(merged.LastEventTime.Time, r.opts.EventTimePrecision).UTC()
		a.LastEventTime = &t
	}
	return a
}
