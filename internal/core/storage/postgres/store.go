package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aevon-lab/segmentd/internal/core/storage"
	"github.com/lib/pq"
	"go.uber.org/multierr"
)

var _ storage.Store = (*Store)(nil)

var requiredTables = []string{
	"events",
	"partial_states",
	"staleness_markers",
	"segment_assignments",
	"job_watermarks",
}

// Store is the PostgreSQL storage engine. All adapters share one *sql.DB.
type Store struct {
	*EventAdapter
	*PartialStateAdapter
	*AssignmentAdapter
	*CheckpointAdapter

	db *sql.DB
}

// NewStore validates the schema and builds every adapter on db.
// Run migrations before calling NewStore. The Store takes ownership of db.
func NewStore(db *sql.DB, scanPageSize int) (*Store, error) {
	if err := validateSchema(db); err != nil {
		return nil, fmt.Errorf("schema validation failed - did you run migrations?: %w", err)
	}

	events, err := NewEventAdapter(db, scanPageSize)
	if err != nil {
		return nil, err
	}

	slog.Info("[Postgres] Store initialized", "scan_page_size", events.pageSize)

	return &Store{
		EventAdapter:        events,
		PartialStateAdapter: NewPartialStateAdapter(db),
		AssignmentAdapter:   NewAssignmentAdapter(db),
		CheckpointAdapter:   NewCheckpointAdapter(db),
		db:                  db,
	}, nil
}

// validateSchema checks that every segmentd table exists.
func validateSchema(db *sql.DB) error {
	rows, err := db.Query(querySchemaTables, pq.Array(requiredTables))
	if err != nil {
		return fmt.Errorf("failed to check schema: %w", err)
	}
	defer rows.Close()

	var found []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to check schema: %w", err)
		}
		found = append(found, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to check schema: %w", err)
	}

	for _, table := range requiredTables {
		if !slices.Contains(found, table) {
			return fmt.Errorf("%s table does not exist", table)
		}
	}
	return nil
}

// DB returns the shared connection, used by the health check.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases prepared statements and the connection pool.
func (s *Store) Close() error {
	err := multierr.Combine(
		s.EventAdapter.Close(),
		s.db.Close(),
	)
	if err != nil {
		return fmt.Errorf("failed to close postgres store: %w", err)
	}
	slog.Info("[Postgres] Store closed gracefully")
	return nil
}
