package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/retrofit/core"
	"github.com/petal-labs/retrofit/registry"
	"github.com/petal-labs/retrofit/tool"
)

// NewToolsCmd creates the "tools" command group.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the built-in tool registry",
	}

	cmd.AddCommand(newToolsListCmd())
	cmd.AddCommand(newToolsDescribeCmd())
	cmd.AddCommand(newToolsInvokeCmd())

	return cmd
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tools and their availability",
		RunE:  runToolsList,
	}
}

func runToolsList(cmd *cobra.Command, args []string) error {
	reg := registry.Global()

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tSTATUS")
	for _, name := range reg.Names() {
		status := "ready"
		if reg.IsStub(name) {
			status = "unavailable"
		}
		fmt.Fprintf(writer, "%s\t%s\n", name, status)
	}
	return writer.Flush()
}

func newToolsDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <name>",
		Short: "Print a tool's manifest",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsDescribe,
	}
}

func runToolsDescribe(cmd *cobra.Command, args []string) error {
	t, err := resolveTool(args[0])
	if err != nil {
		return err
	}

	described, ok := t.(tool.Described)
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (no manifest)\n", t.Name())
		return nil
	}

	data, err := json.MarshalIndent(described.Manifest(), "", "  ")
	if err != nil {
		return exitError(exitRuntime, "encoding manifest: %v", err)
	}
	_, _ = cmd.OutOrStdout().Write(append(data, '\n'))
	return nil
}

func newToolsInvokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke <name>",
		Short: "Invoke a tool directly with the given arguments",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsInvoke,
	}
	cmd.Flags().StringArray("arg", nil, "Tool argument KEY=VALUE (repeatable)")
	return cmd
}

func runToolsInvoke(cmd *cobra.Command, args []string) error {
	t, err := resolveTool(args[0])
	if err != nil {
		return err
	}

	toolArgs, err := parseToolArgs(cmd)
	if err != nil {
		return err
	}

	out, err := t.Invoke(cmd.Context(), toolArgs)
	if err != nil {
		return exitError(exitRuntime, "invoking %s: %v", t.Name(), err)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return exitError(exitRuntime, "encoding tool output: %v", err)
	}
	_, _ = cmd.OutOrStdout().Write(append(data, '\n'))
	return nil
}

// resolveTool looks up a tool through the registry's tolerant path, so
// users get the same suggestion-bearing errors the runtime produces.
func resolveTool(name string) (core.Tool, error) {
	factory, err := registry.Global().Resolve(name)
	if err != nil {
		return nil, exitError(exitValidation, "%v", err)
	}
	return factory(), nil
}

func parseToolArgs(cmd *cobra.Command) (map[string]any, error) {
	pairs, _ := cmd.Flags().GetStringArray("arg")
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, err := parseKeyValue(pair)
		if err != nil {
			return nil, exitError(exitInputParse, "invalid --arg %q: %v", pair, err)
		}
		args[key] = parsePrimitiveValue(value)
	}
	return args, nil
}

// parsePrimitiveValue interprets booleans, numbers, and JSON literals so
// flag values arrive typed where the tool expects them.
func parsePrimitiveValue(value string) any {
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "\"") {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed
		}
	}
	return value
}
