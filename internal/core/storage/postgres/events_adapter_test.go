package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	v1 "github.com/aevon-lab/segmentd/internal/api/v1"
	domainerr "github.com/aevon-lab/segmentd/internal/core/errors"
	"github.com/aevon-lab/segmentd/internal/core/storage"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestEventAdapter_Append(t *testing.T) {
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

	newEvents := func() []*v1.Event {
		return []*v1.Event{
			{UserID: "user-1", EventName: "BUTTON_CLICK", EventTime: now.Add(-time.Second), ProcessingTime: now, MessageID: "m1"},
			{UserID: "user-1", EventName: "BUTTON_CLICK", EventTime: now.Add(-time.Second), ProcessingTime: now, MessageID: "m1"},
		}
	}

	tests := []struct {
		name       string
		events     []*v1.Event
		mockResult func(mock sqlmock.Sqlmock, events []*v1.Event)
		assertions func(t *testing.T, events []*v1.Event, err error)
	}{
		{
			name:   "success stores duplicates and sets ingest seq",
			events: newEvents(),
			mockResult: func(mock sqlmock.Sqlmock, events []*v1.Event) {
				mock.ExpectBegin()
				mock.ExpectPrepare(regexp.QuoteMeta(queryAppendEvent))
				for i, evt := range events {
					mock.ExpectQuery(regexp.QuoteMeta(queryAppendEvent)).
						WithArgs(evt.UserID, evt.EventName, evt.EventTime, evt.ProcessingTime, evt.MessageID).
						WillReturnRows(sqlmock.NewRows([]string{"ingest_seq"}).AddRow(int64(41 + i)))
				}
				mock.ExpectCommit()
			},
			assertions: func(t *testing.T, events []*v1.Event, err error) {
				require.NoError(t, err)
				require.Equal(t, int64(41), events[0].IngestSeq)
				require.Equal(t, int64(42), events[1].IngestSeq)
			},
		},
		{
			name: "validation failure writes nothing",
			events: []*v1.Event{
				{UserID: "user-1", EventName: "BUTTON_CLICK", EventTime: now},
				{UserID: "", EventName: "BUTTON_CLICK", EventTime: now},
			},
			assertions: func(t *testing.T, events []*v1.Event, err error) {
				require.ErrorIs(t, err, domainerr.ErrValidation)
				var vErr *domainerr.ValidationError
				require.True(t, errors.As(err, &vErr))
				require.Equal(t, 1, vErr.Index)
				require.Equal(t, "user_id", vErr.Field)
			},
		},
		{
			name:   "serialization failure is transient and rolls back",
			events: newEvents(),
			mockResult: func(mock sqlmock.Sqlmock, events []*v1.Event) {
				mock.ExpectBegin()
				mock.ExpectPrepare(regexp.QuoteMeta(queryAppendEvent))
				mock.ExpectQuery(regexp.QuoteMeta(queryAppendEvent)).
					WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
				mock.ExpectRollback()
			},
			assertions: func(t *testing.T, events []*v1.Event, err error) {
				require.Error(t, err)
				require.True(t, domainerr.IsTransient(err))
				require.Zero(t, events[0].IngestSeq)
			},
		},
		{
			name:   "constraint violation is not transient",
			events: newEvents(),
			mockResult: func(mock sqlmock.Sqlmock, events []*v1.Event) {
				mock.ExpectBegin()
				mock.ExpectPrepare(regexp.QuoteMeta(queryAppendEvent))
				mock.ExpectQuery(regexp.QuoteMeta(queryAppendEvent)).
					WillReturnError(&pq.Error{Code: "23502", Message: "null value"})
				mock.ExpectRollback()
			},
			assertions: func(t *testing.T, events []*v1.Event, err error) {
				require.Error(t, err)
				require.False(t, domainerr.IsTransient(err))
				require.ErrorContains(t, err, "append events: insert")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockEventAdapter(t, 10)
			defer db.Close()

			if tc.mockResult != nil {
				tc.mockResult(mock, tc.events)
			}

			err := adapter.Append(context.Background(), tc.events)
			tc.assertions(t, tc.events, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEventAdapter_ScanPagesByKeyset(t *testing.T) {
	adapter, mock, db := newMockEventAdapter(t, 2)
	defer db.Close()

	start := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	eventTime := start.Add(-time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(queryScanEvents)).
		WithArgs("BUTTON_CLICK", start, int64(0), sql.NullTime{}, 2).
		WillReturnRows(sqlmock.NewRows(eventRowColumns()).
			AddRow("user-1", "BUTTON_CLICK", eventTime, start, "m1", int64(10)).
			AddRow("user-2", "BUTTON_CLICK", eventTime, start, "m2", int64(11)),
		).RowsWillBeClosed()
	mock.ExpectQuery(regexp.QuoteMeta(queryScanEvents)).
		WithArgs("BUTTON_CLICK", start, int64(11), sql.NullTime{}, 2).
		WillReturnRows(sqlmock.NewRows(eventRowColumns()).
			AddRow("user-1", "BUTTON_CLICK", eventTime, start.Add(time.Second), "m3", int64(12)),
		).RowsWillBeClosed()

	var ids []string
	for evt, err := range adapter.Scan(context.Background(), "BUTTON_CLICK", storage.TimeRange{Start: start}) {
		require.NoError(t, err)
		ids = append(ids, evt.MessageID)
	}

	require.Equal(t, []string{"m1", "m2", "m3"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventAdapter_ScanBoundedRangeStopsEarly(t *testing.T) {
	adapter, mock, db := newMockEventAdapter(t, 2)
	defer db.Close()

	start := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(queryScanEvents)).
		WithArgs("BUTTON_CLICK", start, int64(0), sql.NullTime{Time: end, Valid: true}, 2).
		WillReturnRows(sqlmock.NewRows(eventRowColumns()).
			AddRow("user-1", "BUTTON_CLICK", start, start, "m1", int64(10)).
			AddRow("user-2", "BUTTON_CLICK", start, start, "m2", int64(11)),
		)

	n := 0
	for _, err := range adapter.Scan(context.Background(), "BUTTON_CLICK", storage.TimeRange{Start: start, End: end}) {
		require.NoError(t, err)
		n++
		break
	}

	require.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventAdapter_ScanYieldsTransientError(t *testing.T) {
	adapter, mock, db := newMockEventAdapter(t, 2)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryScanEvents)).
		WillReturnError(&pq.Error{Code: "57P01", Message: "terminating connection"})

	var gotErr error
	for _, err := range adapter.Scan(context.Background(), "BUTTON_CLICK", storage.TimeRange{}) {
		gotErr = err
	}

	require.Error(t, gotErr)
	require.True(t, domainerr.IsTransient(gotErr))
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockEventAdapter(t *testing.T, pageSize int) (*EventAdapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectPrepare(regexp.QuoteMeta(queryScanEvents))
	adapter, err := NewEventAdapter(db, pageSize)
	require.NoError(t, err)

	return adapter, mock, db
}

func eventRowColumns() []string {
	return []string{
		"user_id",
		"event_name",
		"event_time",
		"processing_time",
		"message_id",
		"ingest_seq",
	}
}
