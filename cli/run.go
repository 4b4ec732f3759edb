package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/petal-labs/retrofit/config"
	"github.com/petal-labs/retrofit/llmprovider"
	"github.com/petal-labs/retrofit/otel"
	"github.com/petal-labs/retrofit/registry"
	"github.com/petal-labs/retrofit/report"
	"github.com/petal-labs/retrofit/runtime"
)

// NewRunCmd creates the "run" subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a crew file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}

	cmd.Flags().StringArrayP("input", "i", nil, "Run input as KEY=VALUE (repeatable)")
	cmd.Flags().StringArray("provider-key", nil, "Set provider API key (repeatable, e.g. --provider-key anthropic=sk-...)")
	cmd.Flags().String("report", "", "Write a Markdown run report to this path")
	cmd.Flags().String("history-db", "", "Record the run in a SQLite history database at this path")
	cmd.Flags().String("output-dir", "", "Directory for task output files (default: crew file directory)")
	cmd.Flags().Duration("timeout", 10*time.Minute, "Execution timeout")
	cmd.Flags().Bool("continue-on-error", false, "Record task failures and keep executing instead of aborting")
	cmd.Flags().String("otlp-endpoint", "", "Export traces over OTLP HTTP to this endpoint (host:port)")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	filePath := args[0]

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

	shutdown, handler, err := setupRunObservability(cmd, opts.EventHandler)
	if err != nil {
		return err
	}
	opts.EventHandler = handler
	if shutdown != nil {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(flushCtx)
		}()
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	runner := runtime.NewRunner(registry.Global(), llmprovider.NewClientFactory(providers))
	result, runErr := runner.Run(ctx, c, opts)
	if result != nil {
		if persistErr := persistRunResult(cmd, filePath, result, runErr); persistErr != nil {
			return persistErr
		}
	}
	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return exitError(exitTimeout, "execution timed out after %s", timeout)
		}
		return exitError(exitRuntime, "execution failed: %v", runErr)
	}

	printRunSummary(cmd.OutOrStdout(), result)
	if len(result.Errors) > 0 {
		return exitError(exitRuntime, "%d %s failed", len(result.Errors), pluralize("task", len(result.Errors)))
	}
	return nil
}

func resolveRunProviders(cmd *cobra.Command) (config.ProviderMap, error) {
	providerFlags, _ := cmd.Flags().GetStringArray("provider-key")
	flagMap, err := config.ParseProviderFlags(providerFlags)
	if err != nil {
		return nil, exitError(exitProvider, "invalid provider flag: %v", err)
	}
	providers, err := config.ResolveProviders(flagMap)
	if err != nil {
		return nil, exitError(exitProvider, "resolving providers: %v", err)
	}
	return providers, nil
}

func buildRunOptions(cmd *cobra.Command) (runtime.RunOptions, error) {
	opts := runtime.DefaultRunOptions()
	opts.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")

	inputFlags, _ := cmd.Flags().GetStringArray("input")
	if len(inputFlags) > 0 {
		inputs := make(map[string]string, len(inputFlags))
		for _, pair := range inputFlags {
			key, value, err := parseKeyValue(pair)
			if err != nil {
				return opts, exitError(exitInputParse, "invalid --input %q: %v", pair, err)
			}
			inputs[key] = value
		}
		opts.Inputs = inputs
	}

	opts.EventHandler = runProgressHandler(cmd.ErrOrStderr())
	return opts, nil
}

// setupRunObservability attaches tracing and metrics handlers when an OTLP
// endpoint is configured. The base handler keeps printing progress either way.
func setupRunObservability(cmd *cobra.Command, base runtime.EventHandler) (func(context.Context) error, runtime.EventHandler, error) {
	endpoint, _ := cmd.Flags().GetString("otlp-endpoint")
	if endpoint == "" {
		return nil, base, nil
	}

	shutdown, err := otel.SetupTracing(cmd.Context(), endpoint)
	if err != nil {
		return nil, nil, exitError(exitRuntime, "setting up tracing: %v", err)
	}

	tracing := otel.NewTracingHandler(otelapi.Tracer("retrofit"))
	metrics, err := otel.NewMetricsHandler(otelapi.GetMeterProvider().Meter("retrofit"))
	if err != nil {
		return nil, nil, exitError(exitRuntime, "setting up metrics: %v", err)
	}

	return shutdown, runtime.MultiEventHandler(base, tracing.Handle, metrics.Handle), nil
}

// runProgressHandler prints one line per task lifecycle event.
func runProgressHandler(w io.Writer) runtime.EventHandler {
	return func(e runtime.Event) {
		switch e.Kind {
		case runtime.EventTaskStarted:
			fmt.Fprintf(w, "task %s (%s) started\n", e.TaskID, e.Agent)
		case runtime.EventTaskFinished:
			fmt.Fprintf(w, "task %s finished in %s\n", e.TaskID, e.Elapsed.Round(time.Millisecond))
		case runtime.EventTaskFailed:
			if msg, ok := e.Payload["error"].(string); ok {
				fmt.Fprintf(w, "task %s failed: %s\n", e.TaskID, msg)
			} else {
				fmt.Fprintf(w, "task %s failed\n", e.TaskID)
			}
		case runtime.EventToolCall:
			if name, ok := e.Payload["tool"].(string); ok {
				fmt.Fprintf(w, "  tool %s called\n", name)
			}
		}
	}
}

// persistRunResult writes task output files, the Markdown report, and the
// history record for whatever portion of the run completed.
func persistRunResult(cmd *cobra.Command, filePath string, result *runtime.RunResult, runErr error) error {
	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		outputDir = filepath.Dir(filePath)
	}
	if err := report.WriteTaskOutputs(result, outputDir); err != nil {
		return exitError(exitRuntime, "writing task outputs: %v", err)
	}

	if reportPath, _ := cmd.Flags().GetString("report"); reportPath != "" {
		rendered, err := report.Render(result)
		if err != nil {
			return exitError(exitRuntime, "rendering report: %v", err)
		}
		if err := os.WriteFile(reportPath, rendered, 0o644); err != nil {
			return exitError(exitRuntime, "writing report: %v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", reportPath)
	}

	if historyDB, _ := cmd.Flags().GetString("history-db"); historyDB != "" {
		status := "completed"
		if runErr != nil || len(result.Errors) > 0 {
			status = "failed"
		}
		store, err := report.NewSQLiteStore(report.SQLiteStoreConfig{DSN: historyDB})
		if err != nil {
			return exitError(exitRuntime, "opening history database: %v", err)
		}
		defer func() { _ = store.Close() }()
		if err := store.SaveRun(cmd.Context(), result, status); err != nil {
			return exitError(exitRuntime, "recording run history: %v", err)
		}
	}

	return nil
}

func printRunSummary(w io.Writer, result *runtime.RunResult) {
	fmt.Fprintf(w, "Run %s finished in %s (%d %s, %d tokens)\n",
		result.RunID,
		result.Elapsed.Round(time.Millisecond),
		len(result.Outputs), pluralize("task", len(result.Outputs)),
		result.Usage.TotalTokens,
	)
	for _, id := range result.Order {
		tr, ok := result.Outputs[id]
		if !ok {
			continue
		}
		if tr.OutputFile != "" {
			fmt.Fprintf(w, "  %s -> %s\n", id, tr.OutputFile)
		}
	}
}
