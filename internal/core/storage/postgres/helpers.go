package postgres

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	v1 "github.com/aevon-lab/segmentd/internal/api/v1"
	"github.com/aevon-lab/segmentd/internal/core/aggregation"
	domainerr "github.com/aevon-lab/segmentd/internal/core/errors"
	"github.com/lib/pq"
)

// SQLSTATE classes worth retrying: connection exceptions, transaction
// rollbacks (serialization, deadlock), insufficient resources, operator intervention.
var transientClasses = map[pq.ErrorClass]struct{}{
	"08": {},
	"40": {},
	"53": {},
	"57": {},
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		_, ok := transientClasses[pqErr.Code.Class()]
		return ok
	}
	return false
}

// wrapErr annotates err with op, marking retryable failures as transient.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return domainerr.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEventRow(row scanner) (*v1.Event, error) {
	var evt v1.Event
	err := row.Scan(
		&evt.UserID,
		&evt.EventName,
		&evt.EventTime,
		&evt.ProcessingTime,
		&evt.MessageID,
		&evt.IngestSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}
	return &evt, nil
}

func scanAssignmentRow(row scanner) (aggregation.SegmentAssignment, error) {
	var a aggregation.SegmentAssignment
	var lastEventTime sql.NullTime
	if err := row.Scan(
		&a.Segment,
		&a.UserID,
		&a.Value,
		&lastEventTime,
		&a.AssignedAt,
		&a.Seq,
	); err != nil {
		return a, err
	}
	if lastEventTime.Valid {
		t := lastEventTime.Time
		a.LastEventTime = &t
	}
	return a, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func maxTimeToNull(m aggregation.MaxTime) sql.NullTime {
	return sql.NullTime{Time: m.Time, Valid: m.Valid}
}
