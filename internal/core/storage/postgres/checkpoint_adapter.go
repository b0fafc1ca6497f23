package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CheckpointAdapter implements storage.CheckpointStore on job_watermarks.
type CheckpointAdapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewCheckpointAdapter(db *sql.DB) *CheckpointAdapter {
	return &CheckpointAdapter{db: db, now: time.Now}
}

// ReadWatermark returns ok=false if the job never completed.
func (a *CheckpointAdapter) ReadWatermark(ctx context.Context, job string) (time.Time, bool, error) {
	var wm time.Time
	err := a.db.QueryRowContext(ctx, queryReadWatermark, job).Scan(&wm)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, wrapErr("read watermark", err)
	}
	return wm, true, nil
}

func (a *CheckpointAdapter) WriteWatermark(ctx context.Context, job string, watermark time.Time) error {
	if _, err := a.db.ExecContext(ctx, queryWriteWatermark, job, watermark, a.now().UTC()); err != nil {
		return wrapErr("write watermark", err)
	}
	return nil
}
