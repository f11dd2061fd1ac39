package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flemzord/ctxprune/internal/cron"
)

func janitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Periodically delete pruned tool-call records from the store",
		Long: `Runs the TTL cleanup job on janitor.schedule until interrupted. Pruned
records whose call is older than ttl.cleanup_after are deleted from every
session. With --once the job runs a single time and exits.`,
		Args: cobra.NoArgs,
		RunE: runJanitor,
	}
	cmd.Flags().String("db", "", "Tool-call store path (overrides store.path)")
	cmd.Flags().Bool("once", false, "Run the cleanup once and exit")
	return cmd
}

func runJanitor(cmd *cobra.Command, _ []string) (err error) {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPath, _ := cmd.Flags().GetString("db")
	store, err := rt.openStore(ctx, dbPath)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("janitor needs a store: set store.path or --db")
	}
	defer func() { _ = store.Close() }()

	job := &cron.TTLCleanupJob{
		Store:        store,
		MaxAge:       rt.cfg.EngineConfig().CleanupAfter,
		Logger:       rt.logger,
		ScheduleExpr: rt.cfg.JanitorSchedule(),
	}
	sched := cron.NewScheduler(rt.logger)
	if err := sched.RegisterJob(job); err != nil {
		return err
	}

	if once, _ := cmd.Flags().GetBool("once"); once {
		return sched.RunNow(ctx, job.Name())
	}

	if err := sched.Start(); err != nil {
		return err
	}
	rt.logger.Info("janitor running", "store", store.Path(), "schedule", job.Schedule(), "max_age", job.MaxAge)
	<-ctx.Done()
	return sched.Stop(context.WithoutCancel(ctx))
}
