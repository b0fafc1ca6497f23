package segmentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/aevon-lab/segmentd/internal/core/aggregation"
	domainerr "github.com/aevon-lab/segmentd/internal/core/errors"
	"github.com/aevon-lab/segmentd/internal/core/storage"
	"go.uber.org/multierr"
)

const finalCycleTimeout = 30 * time.Second

// AccumulateJob is the checkpoint key of the accumulate job for an event name.
func AccumulateJob(eventName string) string { return jobAccumulate + ":" + eventName }

// ResolveJob is the checkpoint key of the resolve job for a segment.
func ResolveJob(segment string) string { return jobResolve + ":" + segment }

// SchedulerOptions sets the cadence of the periodic jobs.
type SchedulerOptions struct {
	Interval time.Duration
	// WindowOverlap is subtracted from the last watermark. Must be >= Interval.
	WindowOverlap time.Duration
	// InitialLookback is used when a job has no watermark yet.
	InitialLookback   time.Duration
	RetentionInterval time.Duration
}

// Scheduler runs accumulate and resolve for every configured segment on a
// fixed interval, and retention on its own interval. Per-job watermarks are
// persisted, so a restarted scheduler resumes where it stopped.
type Scheduler struct {
	opts        SchedulerOptions
	segments    []aggregation.Segment
	accumulator *Accumulator
	resolver    *Resolver
	retention   *Retention
	checkpoints storage.CheckpointStore
	now         func() time.Time
}

func NewScheduler(
	opts SchedulerOptions,
	segments []aggregation.Segment,
	accumulator *Accumulator,
	resolver *Resolver,
	retention *Retention,
	checkpoints storage.CheckpointStore,
) *Scheduler {
	if opts.WindowOverlap < opts.Interval {
		opts.WindowOverlap = opts.Interval
	}
	return &Scheduler{
		opts:        opts,
		segments:    segments,
		accumulator: accumulator,
		resolver:    resolver,
		retention:   retention,
		checkpoints: checkpoints,
		now:         time.Now,
	}
}

// Start runs cycles until ctx is cancelled, then runs one final cycle.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	var retentionC <-chan time.Time
	if s.retention != nil && s.opts.RetentionInterval > 0 {
		retentionTicker := time.NewTicker(s.opts.RetentionInterval)
		defer retentionTicker.Stop()
		retentionC = retentionTicker.C
	}

	slog.Info("[Scheduler] Starting segmentation scheduler",
		"interval", s.opts.Interval,
		"window_overlap", s.opts.WindowOverlap,
		"initial_lookback", s.opts.InitialLookback,
		"retention_interval", s.opts.RetentionInterval,
		"segments", len(s.segments),
	)

	// Run an initial cycle to catch up with any backlog
	s.RunCycle(ctx) //nolint:errcheck

	for {
		select {
		case <-ticker.C:
			s.RunCycle(ctx) //nolint:errcheck
		case <-retentionC:
			s.runRetention(ctx) //nolint:errcheck
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), finalCycleTimeout)
			defer cancel()

			slog.Info("[Scheduler] Running final cycle before shutdown...")
			s.RunCycle(shutdownCtx) //nolint:errcheck
			slog.Info("[Scheduler] Final cycle complete")

			return nil
		}
	}
}

// RunCycle accumulates every event name used by a segment, then resolves
// every segment. A failed job keeps its watermark and is retried next cycle;
// other jobs still run. The returned error combines every job failure.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	cycleStart := s.now().UTC()
	var errs error

	for _, eventName := range aggregation.EventNames(s.segments) {
		job := AccumulateJob(eventName)
		errs = multierr.Append(errs, s.runJob(ctx, jobAccumulate, job, cycleStart, func(lower time.Time) error {
			_, err := s.accumulator.Accumulate(ctx, AccumulateRequest{
				EventName:  eventName,
				LowerBound: lower,
				ComputedAt: cycleStart,
			})
			return err
		}))
	}

	for _, seg := range s.segments {
		job := ResolveJob(seg.Name)
		errs = multierr.Append(errs, s.runJob(ctx, jobResolve, job, cycleStart, func(horizon time.Time) error {
			_, err := s.resolver.Resolve(ctx, ResolveRequest{
				Segment:    seg,
				Horizon:    horizon,
				AssignedAt: cycleStart,
			})
			return err
		}))
	}

	return errs
}

// runJob derives the job's lower bound from its watermark, runs fn and
// advances the watermark to cycleStart on success.
func (s *Scheduler) runJob(ctx context.Context, kind, job string, cycleStart time.Time, fn func(bound time.Time) error) error {
	start := time.Now()
	defer func() {
		jobDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	bound, err := s.lowerBound(ctx, job, cycleStart)
	if err == nil {
		err = fn(bound)
	}
	if err == nil {
		err = s.checkpoints.WriteWatermark(ctx, job, cycleStart)
	}
	if err != nil {
		s.reportFailure(kind, job, err)
		return err
	}
	return nil
}

func (s *Scheduler) lowerBound(ctx context.Context, job string, cycleStart time.Time) (time.Time, error) {
	wm, ok, err := s.checkpoints.ReadWatermark(ctx, job)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return cycleStart.Add(-s.opts.InitialLookback), nil
	}
	return wm.Add(-s.opts.WindowOverlap), nil
}

func (s *Scheduler) runRetention(ctx context.Context) error {
	start := time.Now()
	defer func() {
		jobDuration.WithLabelValues(jobRetention).Observe(time.Since(start).Seconds())
	}()

	if _, err := s.retention.Sweep(ctx); err != nil {
		s.reportFailure(jobRetention, jobRetention, err)
		return err
	}
	return nil
}

func (s *Scheduler) reportFailure(kind, job string, err error) {
	if domainerr.IsTransient(err) {
		jobErrors.WithLabelValues(kind, kindTransient).Inc()
		slog.Warn("[Scheduler] Job failed, will retry next cycle", "job", job, "error", err)
		return
	}
	jobErrors.WithLabelValues(kind, kindFatal).Inc()
	slog.Error("[Scheduler] Job failed", "job", job, "error", err)
}
