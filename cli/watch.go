package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/retrofit/llmprovider"
	"github.com/petal-labs/retrofit/registry"
	"github.com/petal-labs/retrofit/runtime"
	"github.com/petal-labs/retrofit/schedule"
)

// NewWatchCmd creates the "watch" subcommand, which executes a crew on a
// recurring cron cadence until interrupted.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Run a crew on a cron schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}

	cmd.Flags().String("cron", "", "Five-field UTC cron expression (required)")
	cmd.Flags().StringArrayP("input", "i", nil, "Run input as KEY=VALUE (repeatable)")
	cmd.Flags().StringArray("provider-key", nil, "Set provider API key (repeatable)")
	cmd.Flags().String("history-db", "", "Record each run in a SQLite history database at this path")
	_ = cmd.MarkFlagRequired("cron")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	cronExpr, _ := cmd.Flags().GetString("cron")

	c, err := loadValidatedCrew(cmd, filePath)
	if err != nil {
		return err
	}

	providers, err := resolveRunProviders(cmd)
	if err != nil {
		return err
	}

	opts, err := buildRunOptions(cmd)
	if err != nil {
		return err
	}

	runner := runtime.NewRunner(registry.Global(), llmprovider.NewClientFactory(providers))

	sched, err := schedule.NewScheduler(schedule.SchedulerConfig{
		Cron: cronExpr,
		Run: func(ctx context.Context) error {
			result, runErr := runner.Run(ctx, c, opts)
			if result != nil {
				if err := persistRunResult(cmd, filePath, result, runErr); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "persisting run: %v\n", err)
				}
			}
			if runErr != nil {
				return runErr
			}
			printRunSummary(cmd.OutOrStdout(), result)
			return nil
		},
	})
	if err != nil {
		return exitError(exitInputParse, "%v", err)
	}

	next, err := schedule.NextRun(cronExpr, time.Now())
	if err != nil {
		return exitError(exitInputParse, "%v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (next run %s)\n", filePath, next.Format(time.RFC3339))

	sched.Start()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigs:
	case <-cmd.Context().Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		return exitError(exitRuntime, "stopping scheduler: %v", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Stopped.")
	return nil
}
