package main

import (
	"context"
	"fmt"
	"time"

	"github.com/railzwaylabs/paycore/internal/app"
	"github.com/railzwaylabs/paycore/internal/migration"
	"github.com/railzwaylabs/paycore/internal/scheduler"
	"github.com/railzwaylabs/paycore/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func runApp(opts fx.Option) error {
	fxApp := fx.New(opts)
	if err := fxApp.Err(); err != nil {
		return err
	}
	fxApp.Run()
	return nil
}

func serveOptions() fx.Option {
	return fx.Options(app.Core, server.Module)
}

func schedulerOptions() fx.Option {
	return fx.Options(app.Core, scheduler.Module)
}

func allOptions() fx.Option {
	return fx.Options(app.Core, migration.Module, server.Module, scheduler.Module)
}

func newSchedulerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the cron jobs that charge, settle and reconcile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(schedulerOptions())
		},
	}

	var timeout time.Duration
	run := &cobra.Command{
		Use:       "run <job>",
		Short:     "Run one job now and exit",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{scheduler.JobCharge, scheduler.JobSettle, scheduler.JobReconcile, scheduler.JobFees},
		RunE: func(cmd *cobra.Command, args []string) error {
			var s *scheduler.Scheduler
			fxApp := fx.New(app.Core, fx.Provide(scheduler.New), fx.Populate(&s))
			if err := fxApp.Err(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := fxApp.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = fxApp.Stop(context.Background()) }()
			if err := s.Run(ctx, args[0]); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return nil
		},
	}
	run.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "abort the job after this long")
	cmd.AddCommand(run)
	return cmd
}
