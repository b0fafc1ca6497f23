package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/segmentd/internal/core/aggregation"
	"github.com/lib/pq"
)

// PartialStateAdapter implements storage.PartialStateStore and
// storage.StalenessIndex. A partial state and its marker are written in the
// same transaction.
type PartialStateAdapter struct {
	db *sql.DB
}

// NewPartialStateAdapter creates a PartialStateAdapter sharing the given connection.
func NewPartialStateAdapter(db *sql.DB) *PartialStateAdapter {
	return &PartialStateAdapter{db: db}
}

// WritePartialStates appends every state and its staleness marker in one transaction.
func (a *PartialStateAdapter) WritePartialStates(ctx context.Context, states []aggregation.PartialState) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("partial_states write: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stateStmt, err := tx.PrepareContext(ctx, queryInsertPartialState)
	if err != nil {
		return wrapErr("partial_states write: prepare state insert", err)
	}
	defer stateStmt.Close()

	markerStmt, err := tx.PrepareContext(ctx, queryInsertMarker)
	if err != nil {
		return wrapErr("partial_states write: prepare marker insert", err)
	}
	defer markerStmt.Close()

	for _, st := range states {
		sketch, err := st.DistinctEvents.MarshalBinary()
		if err != nil {
			return fmt.Errorf("partial_states write: encode sketch for user %s: %w", st.UserID, err)
		}
		if _, err := stateStmt.ExecContext(ctx,
			st.EventName,
			st.UserID,
			sketch,
			maxTimeToNull(st.MaxEventTime),
			st.ComputedAt,
		); err != nil {
			return wrapErr("partial_states write: insert state", err)
		}

		m := st.Marker()
		if _, err := markerStmt.ExecContext(ctx, m.EventName, m.UserID, m.ComputedAt); err != nil {
			return wrapErr("partial_states write: insert marker", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("partial_states write: commit", err)
	}

	slog.Debug("[PartialStateAdapter] Wrote partial states", "count", len(states))
	return nil
}

// LoadPartialStates returns every partial state row of the given users.
func (a *PartialStateAdapter) LoadPartialStates(ctx context.Context, eventName string, userIDs []string) (map[string][]aggregation.PartialState, error) {
	out := make(map[string][]aggregation.PartialState)
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := a.db.QueryContext(ctx, queryLoadPartialStates, eventName, pq.Array(userIDs))
	if err != nil {
		return nil, wrapErr("partial_states load", err)
	}
	defer rows.Close()

	for rows.Next() {
		st := aggregation.PartialState{EventName: eventName}
		var sketch []byte
		var maxEventTime sql.NullTime
		if err := rows.Scan(&st.UserID, &sketch, &maxEventTime, &st.ComputedAt); err != nil {
			return nil, fmt.Errorf("partial_states load: scan row: %w", err)
		}
		if err := st.DistinctEvents.UnmarshalBinary(sketch); err != nil {
			return nil, fmt.Errorf("partial_states load: user %s: %w", st.UserID, err)
		}
		st.MaxEventTime = aggregation.MaxTime{Time: maxEventTime.Time, Valid: maxEventTime.Valid}
		out[st.UserID] = append(out[st.UserID], st)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("partial_states load: iterate rows", err)
	}
	return out, nil
}

// UsersChangedSince returns the distinct users with a marker at or after since.
func (a *PartialStateAdapter) UsersChangedSince(ctx context.Context, eventName string, since time.Time) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, queryUsersChangedSince, eventName, since)
	if err != nil {
		return nil, wrapErr("staleness_markers query", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("staleness_markers query: scan row: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("staleness_markers query: iterate rows", err)
	}
	return users, nil
}

// ExpireMarkers deletes markers computed before the cutoff.
// Partial states are never deleted.
func (a *PartialStateAdapter) ExpireMarkers(ctx context.Context, before time.Time) (int64, error) {
	result, err := a.db.ExecContext(ctx, queryExpireMarkers, before)
	if err != nil {
		return 0, wrapErr("staleness_markers expire", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("staleness_markers expire: rows affected: %w", err)
	}
	return n, nil
}
