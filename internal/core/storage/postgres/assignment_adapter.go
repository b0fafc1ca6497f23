package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/segmentd/internal/core/aggregation"
)

// AssignmentAdapter implements storage.AssignmentStore.
// seq comes from a BIGSERIAL and breaks assigned_at ties.
type AssignmentAdapter struct {
	db *sql.DB
}

func NewAssignmentAdapter(db *sql.DB) *AssignmentAdapter {
	return &AssignmentAdapter{db: db}
}

func (a *AssignmentAdapter) AppendAssignments(ctx context.Context, assignments []aggregation.SegmentAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("segment_assignments append: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, queryAppendAssignment)
	if err != nil {
		return wrapErr("segment_assignments append: prepare", err)
	}
	defer stmt.Close()

	for _, as := range assignments {
		if _, err := stmt.ExecContext(ctx,
			as.Segment,
			as.UserID,
			as.Value,
			nullTime(as.LastEventTime),
			as.AssignedAt,
		); err != nil {
			return wrapErr("segment_assignments append: insert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("segment_assignments append: commit", err)
	}

	slog.Debug("[AssignmentAdapter] Appended assignments", "count", len(assignments))
	return nil
}

// LatestAssignment returns nil when the user has no assignment in segment.
func (a *AssignmentAdapter) LatestAssignment(ctx context.Context, segment, userID string) (*aggregation.SegmentAssignment, error) {
	row := a.db.QueryRowContext(ctx, queryLatestAssignment, segment, userID)
	as, err := scanAssignmentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("segment_assignments latest", err)
	}
	return &as, nil
}

// LatestAssignments returns the current version per user, ordered by user id.
func (a *AssignmentAdapter) LatestAssignments(ctx context.Context, segment string) ([]aggregation.SegmentAssignment, error) {
	rows, err := a.db.QueryContext(ctx, queryLatestAssignments, segment)
	if err != nil {
		return nil, wrapErr("segment_assignments latest per user", err)
	}
	defer rows.Close()

	var out []aggregation.SegmentAssignment
	for rows.Next() {
		as, err := scanAssignmentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("segment_assignments latest per user: scan row: %w", err)
		}
		out = append(out, as)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("segment_assignments latest per user: iterate rows", err)
	}
	return out, nil
}
