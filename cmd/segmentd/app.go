package main

import (
	"context"
	"fmt"
	"log/slog"

	coreagg "github.com/aevon-lab/segmentd/internal/core/aggregation"
	corecfg "github.com/aevon-lab/segmentd/internal/core/config"
	"github.com/aevon-lab/segmentd/internal/core/storage"
	"github.com/aevon-lab/segmentd/internal/core/storage/memory"
	"github.com/aevon-lab/segmentd/internal/core/storage/postgres"
	"github.com/aevon-lab/segmentd/internal/migrations"
	"github.com/aevon-lab/segmentd/internal/segmentation"
)

// app wires the store and batch jobs from configuration.
type app struct {
	cfg         *corecfg.Config
	store       storage.Store
	accumulator *segmentation.Accumulator
	resolver    *segmentation.Resolver
	retention   *segmentation.Retention
}

func newApp(cfg *corecfg.Config) (*app, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	params := segmentation.JobParameter{
		BatchSize:          cfg.Segmentation.BatchSize,
		WorkerCount:        cfg.Segmentation.WorkerCount,
		EventTimePrecision: cfg.Timing.EventTimePrecision,
	}

	return &app{
		cfg:         cfg,
		store:       store,
		accumulator: segmentation.NewAccumulator(store, store, params),
		resolver:    segmentation.NewResolver(store, store, store, params),
		retention:   segmentation.NewRetention(store, cfg.Timing.MarkerRetention),
	}, nil
}

// openStore connects the configured engine. For postgres, migrations run
// before the schema is validated.
func openStore(cfg *corecfg.Config) (storage.Store, error) {
	switch cfg.Database.Type {
	case "memory":
		slog.Warn("[Storage] Using in-memory store, state is lost on exit")
		return memory.NewStore(), nil
	case "postgres":
		db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		store, err := postgres.NewStore(db, cfg.Segmentation.ScanPageSize)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database.type %q", cfg.Database.Type)
	}
}

func (a *app) scheduler() *segmentation.Scheduler {
	t := a.cfg.Timing
	return segmentation.NewScheduler(
		segmentation.SchedulerOptions{
			Interval:          t.CronInterval,
			WindowOverlap:     t.WindowOverlap,
			InitialLookback:   t.InitialLookback,
			RetentionInterval: t.RetentionInterval,
		},
		a.cfg.Segments,
		a.accumulator,
		a.resolver,
		a.retention,
		a.store,
	)
}

func (a *app) segment(name string) (coreagg.Segment, error) {
	for _, seg := range a.cfg.Segments {
		if seg.Name == name {
			return seg, nil
		}
	}
	return coreagg.Segment{}, fmt.Errorf("unknown segment %q", name)
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		slog.Error("[Storage] Failed to close store", "error", err)
	}
}

// withApp builds the app, runs fn and always closes the store.
func withApp(ctx context.Context, cfg *corecfg.Config, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}
