package segmentation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelEventName = "event_name"
	LabelSegment   = "segment"
	LabelValue     = "value"
	LabelJob       = "job"
	LabelKind      = "kind"

	jobAccumulate = "accumulate"
	jobResolve    = "resolve"
	jobRetention  = "retention"

	kindTransient = "transient"
	kindFatal     = "fatal"
)

// eventsScanned counts events read from the log by accumulate
var eventsScanned = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "segmentd",
	Subsystem: "segmentation",
	Name:      "events_scanned_total",
	Help:      "Total number of events scanned by accumulate",
}, []string{LabelEventName})

// partialStatesWritten counts partial state rows (and their markers) committed
var partialStatesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "segmentd",
	Subsystem: "segmentation",
	Name:      "partial_states_written_total",
	Help:      "Total number of partial state rows written",
}, []string{LabelEventName})

// assignmentsWritten counts segment assignment versions appended
var assignmentsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "segmentd",
	Subsystem: "segmentation",
	Name:      "assignments_written_total",
	Help:      "Total number of segment assignments written",
}, []string{LabelSegment, LabelValue})

// usersSkipped counts users in the staleness index without partial state
var usersSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "segmentd",
	Subsystem: "segmentation",
	Name:      "users_skipped_total",
	Help:      "Total number of users skipped during resolve",
}, []string{LabelSegment})

// jobDuration tracks scheduler job latency
var jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "segmentd",
	Subsystem: "segmentation",
	Name:      "job_duration_seconds",
	Help:      "Duration of segmentation jobs",
	Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
}, []string{LabelJob})

// jobErrors counts failed jobs by kind (transient or fatal)
var jobErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "segmentd",
	Subsystem: "segmentation",
	Name:      "job_errors_total",
	Help:      "Total number of failed segmentation jobs",
}, []string{LabelJob, LabelKind})

// markersExpired counts staleness markers removed by retention
var markersExpired = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "segmentd",
	Subsystem: "segmentation",
	Name:      "markers_expired_total",
	Help:      "Total number of staleness markers expired",
})
