package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pasan-pramu/remind/workflow"
)

// Command returns the root reminderd command.
func Command() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "reminderd",
		Short:         "Durable subscription renewal reminders",
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("REMIND_CONFIG"), "path to the YAML config file")

	root.AddCommand(
		serveCommand(&configPath),
		triggerCommand(&configPath),
		migrateCommand(&configPath),
		runsCommand(&configPath),
	)
	return root
}

func serveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Process timer jobs and maintenance tasks until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if err := a.engine.Start(ctx); err != nil {
				return err
			}
			a.logger.Info("reminderd started",
				slog.String("store", a.cfg.Store.Backend),
				slog.String("sender", a.cfg.Sender.Kind),
			)

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Engine.ShutdownTimeout)
			defer cancel()
			if err := a.engine.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			a.logger.Info("reminderd stopped")
			return nil
		},
	}
}

func triggerCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <subscription-id>...",
		Short: "Start a reminder campaign for each subscription",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			a, err := setup(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close(ctx)

			var errs []error
			for _, subID := range args {
				run, err := a.engine.Trigger(ctx, subID)
				if err != nil {
					errs = append(errs, fmt.Errorf("trigger %s: %w", subID, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", subID, run.ID, run.State)
			}
			return errors.Join(errs...)
		},
	}
}

func migrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply store schema migrations and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			a, err := setup(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if err := a.store.Migrate(ctx); err != nil {
				return err
			}
			if a.subs != nil {
				if err := a.subs.Migrate(ctx); err != nil {
					return err
				}
			}
			a.logger.Info("migrations applied", slog.String("store", a.cfg.Store.Backend))
			return nil
		},
	}
}

func runsCommand(configPath *string) *cobra.Command {
	var (
		state string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List reminder campaign runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			a, err := setup(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close(ctx)

			runs, err := a.engine.Runs(ctx, workflow.ListOpts{
				State: workflow.RunState(state),
				Limit: limit,
			})
			if err != nil {
				return err
			}
			return printRuns(cmd, runs)
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "filter by state (running, sleeping, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of runs to list")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []*workflow.Run) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tSLEEP STEP\tWAKE AT\tACTIVATIONS\tERROR")
	for _, r := range runs {
		wake := "-"
		if r.WakeAt != nil {
			wake = r.WakeAt.UTC().Format(time.RFC3339)
		}
		sleep := r.SleepStep
		if sleep == "" {
			sleep = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", r.ID, r.State, sleep, wake, r.Activations, r.Error)
	}
	return tw.Flush()
}
