package aggregation

import "time"

// Aggregate defines a mergeable partial aggregate over items of type T.
// S is the partial state written once per mini-batch, R is the final result.
//
// Merge must be associative and commutative so partial states written by
// overlapping or concurrent batches can be combined in any order. Merge is not
// required to be idempotent on whole states; deduplication of redelivered
// items happens inside the state (see DistinctCount).
//
// To add a new aggregate kind: implement this interface and add a column for
// its state to PartialState.
type Aggregate[T, S, R any] interface {
	// Initial builds the partial state for one batch of items.
	Initial(items []T) S

	// Merge combines two partial states.
	Merge(a, b S) S

	// Extract returns the final result of a (merged) state.
	Extract(s S) R
}

// MergeAll folds states left to right with agg.Merge.
// Returns false when states is empty; callers treat that as "no data".
func MergeAll[T, S, R any](agg Aggregate[T, S, R], states []S) (S, bool) {
	var acc S
	if len(states) == 0 {
		return acc, false
	}
	acc = states[0]
	for _, s := range states[1:] {
		acc = agg.Merge(acc, s)
	}
	return acc, true
}

var (
	// DistinctEvents counts distinct message IDs.
	DistinctEvents Aggregate[string, DistinctSketch, uint64] = DistinctCount{}

	// LastEventTime tracks the latest event time.
	LastEventTime Aggregate[time.Time, MaxTime, MaxTime] = MaxEventTime{}
)
