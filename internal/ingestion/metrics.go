package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelReason = "reason"

	reasonTooLarge         = "too_large"
	reasonInvalidJSON      = "invalid_json"
	reasonValidation       = "validation"
	reasonStoreUnavailable = "store_unavailable"
	reasonStoreError       = "store_error"
)

// eventsAccepted counts events appended to the log
var eventsAccepted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "segmentd",
	Subsystem: "ingestion",
	Name:      "events_accepted_total",
	Help:      "Total number of events appended to the event log",
})

// eventsRejected counts rejected requests by reason
var eventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "segmentd",
	Subsystem: "ingestion",
	Name:      "events_rejected_total",
	Help:      "Total number of rejected ingestion requests",
}, []string{LabelReason})
