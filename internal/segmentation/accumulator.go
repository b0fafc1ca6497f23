package segmentation

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aevon-lab/segmentd/internal/core/aggregation"
	"github.com/aevon-lab/segmentd/internal/core/storage"
)

const (
	defaultBatchSize   = 1000
	defaultWorkerCount = 4
)

// JobParameter controls throughput of accumulate and resolve runs.
type JobParameter struct {
	// BatchSize is the number of users per store transaction.
	BatchSize int
	// WorkerCount bounds concurrent state building and resolve shards.
	WorkerCount int
	// EventTimePrecision truncates last_event_time on assignments. Zero keeps full precision.
	EventTimePrecision time.Duration
}

// DefaultJobParameter returns safe defaults for scheduled runs.
func DefaultJobParameter() JobParameter {
	return JobParameter{
		BatchSize:          defaultBatchSize,
		WorkerCount:        defaultWorkerCount,
		EventTimePrecision: time.Second,
	}
}

func (o JobParameter) normalized() JobParameter {
	n := o
	if n.BatchSize <= 0 {
		n.BatchSize = defaultBatchSize
	}
	if n.WorkerCount <= 0 {
		n.WorkerCount = defaultWorkerCount
	}
	if n.EventTimePrecision < 0 {
		n.EventTimePrecision = 0
	}
	return n
}

// AccumulateRequest selects the events folded into new partial states.
type AccumulateRequest struct {
	EventName string
	// LowerBound is inclusive, on processing time.
	LowerBound time.Time
	// ComputedAt stamps every written state and marker. Zero means now.
	ComputedAt time.Time
}

type AccumulateResult struct {
	EventsScanned    int
	UsersWritten     int
	BatchesCommitted int
}

// Accumulator folds newly arrived events into append-only partial states.
type Accumulator struct {
	events storage.EventLog
	states storage.PartialStateStore
	opts   JobParameter
	now    func() time.Time
}

func NewAccumulator(events storage.EventLog, states storage.PartialStateStore, opts JobParameter) *Accumulator {
	return &Accumulator{
		events: events,
		states: states,
		opts:   opts.normalized(),
		now:    time.Now,
	}
}

type userEvents struct {
	messageIDs []string
	eventTimes []time.Time
}

// Accumulate scans events with processing_time >= LowerBound, builds one
// partial state per user and writes them in batches of BatchSize users.
// Batches committed before an error or cancellation stay committed.
func (a *Accumulator) Accumulate(ctx context.Context, req AccumulateRequest) (AccumulateResult, error) {
	var result AccumulateResult
	if req.EventName == "" {
		return result, fmt.Errorf("accumulate: event name is required")
	}

	computedAt := req.ComputedAt
	if computedAt.IsZero() {
		computedAt = a.now()
	}
	computedAt = computedAt.UTC()

	groups := make(map[string]*userEvents)
	for evt, err := range a.events.Scan(ctx, req.EventName, storage.TimeRange{Start: req.LowerBound}) {
		if err != nil {
			return result, fmt.Errorf("accumulate: scan %s: %w", req.EventName, err)
		}
		result.EventsScanned++
		g, ok := groups[evt.UserID]
		if !ok {
			g = &userEvents{}
			groups[evt.UserID] = g
		}
		g.messageIDs = append(g.messageIDs, evt.MessageID)
		g.eventTimes = append(g.eventTimes, evt.EventTime)
	}
	eventsScanned.WithLabelValues(req.EventName).Add(float64(result.EventsScanned))

	if len(groups) == 0 {
		slog.Debug("[Accumulator] No new events", "event_name", req.EventName, "lower_bound", req.LowerBound)
		return result, nil
	}

	states := buildPartialStatesConcurrently(req.EventName, groups, computedAt, a.opts.WorkerCount)

	for start := 0; start < len(states); start += a.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("accumulate: %w", err)
		}
		end := min(start+a.opts.BatchSize, len(states))
		if err := a.states.WritePartialStates(ctx, states[start:end]); err != nil {
			return result, fmt.Errorf("accumulate: write batch %d: %w", result.BatchesCommitted+1, err)
		}
		result.UsersWritten += end - start
		result.BatchesCommitted++
		partialStatesWritten.WithLabelValues(req.EventName).Add(float64(end - start))
	}

	slog.Info("[Accumulator] Accumulate complete",
		"event_name", req.EventName,
		"lower_bound", req.LowerBound,
		"computed_at", computedAt,
		"events_scanned", result.EventsScanned,
		"users_written", result.UsersWritten,
		"batches", result.BatchesCommitted,
	)
	return result, nil
}

// buildPartialStatesConcurrently builds one state per user on a bounded
// worker pool. The result is sorted by user id.
func buildPartialStatesConcurrently(
	eventName string,
	groups map[string]*userEvents,
	computedAt time.Time,
	workers int,
) []aggregation.PartialState {
	workerCount := min(workers, len(groups))

	type job struct {
		userID string
		events *userEvents
	}
	jobs := make(chan job, len(groups))
	results := make(chan aggregation.PartialState, len(groups))

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- aggregation.PartialState{
					EventName:      eventName,
					UserID:         j.userID,
					DistinctEvents: aggregation.DistinctEvents.Initial(j.events.messageIDs),
					MaxEventTime:   aggregation.LastEventTime.Initial(j.events.eventTimes),
					ComputedAt:     computedAt,
				}
			}
		}()
	}

	for userID, g := range groups {
		jobs <- job{userID: userID, events: g}
	}
	close(jobs)

	wg.Wait()
	close(results)

	states := make([]aggregation.PartialState, 0, len(groups))
	for st := range results {
		states = append(states, st)
	}
	slices.SortFunc(states, func(x, y aggregation.PartialState) int {
		return cmp.Compare(x.UserID, y.UserID)
	})
	return states
}
