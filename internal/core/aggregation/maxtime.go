package aggregation

import "time"

// MaxTime is the partial state of a max-timestamp aggregate.
// Valid is false for a state built from no items.
type MaxTime struct {
	Time  time.Time
	Valid bool
}

// MaxEventTime is the Aggregate tracking the latest event time.
// It compares instants, so out-of-order arrival does not matter.
type MaxEventTime struct{}

func (MaxEventTime) Initial(times []time.Time) MaxTime {
	var out MaxTime
	for _, t := range times {
		out = maxOf(out, MaxTime{Time: t, Valid: true})
	}
	return out
}

func (MaxEventTime) Merge(a, b MaxTime) MaxTime {
	return maxOf(a, b)
}

func (MaxEventTime) Extract(s MaxTime) MaxTime {
	return s
}

func maxOf(a, b MaxTime) MaxTime {
	switch {
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	case b.Time.After(a.Time):
		return b
	default:
		return a
	}
}
