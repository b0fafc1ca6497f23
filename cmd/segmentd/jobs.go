package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/segmentd/internal/segmentation"
	"github.com/spf13/cobra"
)

func newAccumulateCommand(opts *rootOptions) *cobra.Command {
	var (
		eventName  string
		lowerBound string
	)

	command := &cobra.Command{
		Use:   "accumulate",
		Short: "Fold events received since the lower bound into partial states",
		RunE: func(cmd *cobra.Command, args []string) error {
			if eventName == "" {
				return fmt.Errorf("--event is required")
			}
			now := time.Now().UTC()
			lower, err := parseTimeArg(lowerBound, now)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts.cfg, func(ctx context.Context, a *app) error {
				res, err := a.accumulator.Accumulate(ctx, segmentation.AccumulateRequest{
					EventName:  eventName,
					LowerBound: lower,
					ComputedAt: now,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "events_scanned=%d users_written=%d batches=%d\n",
					res.EventsScanned, res.UsersWritten, res.BatchesCommitted)
				return nil
			})
		},
	}
	command.Flags().StringVar(&eventName, "event", "", "Event name to accumulate")
	command.Flags().StringVar(&lowerBound, "lower-bound", "15m", "Inclusive processing-time lower bound (RFC3339 or duration ago)")
	return command
}

func newResolveCommand(opts *rootOptions) *cobra.Command {
	var (
		segmentName string
		horizon     string
	)

	command := &cobra.Command{
		Use:   "resolve",
		Short: "Recompute assignments for users with partial states newer than the horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if segmentName == "" {
				return fmt.Errorf("--segment is required")
			}
			now := time.Now().UTC()
			h, err := parseTimeArg(horizon, now)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts.cfg, func(ctx context.Context, a *app) error {
				seg, err := a.segment(segmentName)
				if err != nil {
					return err
				}
				res, err := a.resolver.Resolve(ctx, segmentation.ResolveRequest{
					Segment:    seg,
					Horizon:    h,
					AssignedAt: now,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "affected=%d assigned=%d members=%d skipped=%d\n",
					res.Affected, res.Assigned, res.Members, res.Skipped)
				return nil
			})
		},
	}
	command.Flags().StringVar(&segmentName, "segment", "", "Segment name to resolve")
	command.Flags().StringVar(&horizon, "horizon", "15m", "Staleness horizon (RFC3339 or duration ago)")
	return command
}

func newExpireCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Delete staleness markers older than the marker retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts.cfg, func(ctx context.Context, a *app) error {
				n, err := a.retention.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired=%d\n", n)
				return nil
			})
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *opts.cfg
			if cfg.Database.Type != "postgres" {
				slog.Info("[Migrations] Nothing to migrate", "database_type", cfg.Database.Type)
				return nil
			}
			// Force migrations even when auto_migrate is off.
			cfg.Database.AutoMigrate = true
			return withApp(cmd.Context(), &cfg, func(context.Context, *app) error {
				return nil
			})
		},
	}
}
