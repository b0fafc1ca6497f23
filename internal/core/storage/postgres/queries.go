package postgres

// SQL for the event log, partial states, staleness markers, assignments and watermarks.

const (
	// queryAppendEvent inserts one event. Redeliveries are stored as-is;
	// RETURNING ingest_seq gives the scan cursor its tiebreak.
	queryAppendEvent = `
		INSERT INTO events (
			user_id, event_name, event_time, processing_time, message_id
		)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ingest_seq
	`

	// queryScanEvents pages through one event name by keyset
	// (processing_time, ingest_seq). $4 is NULL for an unbounded range.
	queryScanEvents = `
		SELECT
			user_id, event_name, event_time, processing_time, message_id, ingest_seq
		FROM events
		WHERE event_name = $1
		  AND (processing_time, ingest_seq) > ($2, $3)
		  AND ($4::timestamptz IS NULL OR processing_time < $4)
		ORDER BY processing_time ASC, ingest_seq ASC
		LIMIT $5
	`

	queryInsertPartialState = `
		INSERT INTO partial_states (
			event_name, user_id, distinct_events, max_event_time, computed_at
		)
		VALUES ($1, $2, $3, $4, $5)
	`

	queryInsertMarker = `
		INSERT INTO staleness_markers (event_name, user_id, computed_at)
		VALUES ($1, $2, $3)
	`

	queryLoadPartialStates = `
		SELECT user_id, distinct_events, max_event_time, computed_at
		FROM partial_states
		WHERE event_name = $1
		  AND user_id = ANY($2)
		ORDER BY user_id ASC, id ASC
	`

	queryUsersChangedSince = `
		SELECT DISTINCT user_id
		FROM staleness_markers
		WHERE event_name = $1
		  AND computed_at >= $2
		ORDER BY user_id ASC
	`

	queryExpireMarkers = `DELETE FROM staleness_markers WHERE computed_at < $1`

	queryAppendAssignment = `
		INSERT INTO segment_assignments (
			segment, user_id, value, last_event_time, assigned_at
		)
		VALUES ($1, $2, $3, $4, $5)
	`

	queryLatestAssignment = `
		SELECT segment, user_id, value, last_event_time, assigned_at, seq
		FROM segment_assignments
		WHERE segment = $1
		  AND user_id = $2
		ORDER BY assigned_at DESC, seq DESC
		LIMIT 1
	`

	// queryLatestAssignments picks the latest version per user in one pass.
	queryLatestAssignments = `
		SELECT DISTINCT ON (user_id)
			segment, user_id, value, last_event_time, assigned_at, seq
		FROM segment_assignments
		WHERE segment = $1
		ORDER BY user_id ASC, assigned_at DESC, seq DESC
	`

	queryReadWatermark = `SELECT watermark FROM job_watermarks WHERE job = $1`

	// queryWriteWatermark never moves a watermark backwards.
	queryWriteWatermark = `
		INSERT INTO job_watermarks (job, watermark, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job) DO UPDATE SET
			watermark  = GREATEST(job_watermarks.watermark, EXCLUDED.watermark),
			updated_at = EXCLUDED.updated_at
	`

	querySchemaTables = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_name = ANY($1)
	`
)
