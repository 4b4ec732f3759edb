package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/retrofit/crew"
	"github.com/petal-labs/retrofit/loader"
	"github.com/petal-labs/retrofit/registry"
)

// loadValidatedCrew loads and validates a crew file, mapping loader
// failures to exit codes. Validation diagnostics are printed to the
// command's error stream before returning.
func loadValidatedCrew(cmd *cobra.Command, path string) (*crew.Crew, error) {
	c, err := loader.LoadCrew(path, registry.Global())
	if err != nil {
		var diagErr *loader.DiagnosticError
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil, exitError(exitFileNotFound, "file not found: %s", path)
		case errors.As(err, &diagErr):
			printDiagnosticsText(cmd.ErrOrStderr(), diagErr.Diagnostics)
			return nil, exitError(exitValidation, "validation failed")
		default:
			return nil, exitError(exitValidation, "%v", err)
		}
	}
	return c, nil
}

// printDiagnosticsText writes diagnostics as formatted text lines followed by
// a summary. Used by both the validate and run commands.
func printDiagnosticsText(w io.Writer, diags []crew.Diagnostic) {
	for _, d := range diags {
		sev := strings.ToUpper(d.Severity)
		if d.Path != "" {
			fmt.Fprintf(w, "%s [%s]: %s (at %s)\n", sev, d.Code, d.Message, d.Path)
		} else {
			fmt.Fprintf(w, "%s [%s]: %s\n", sev, d.Code, d.Message)
		}
	}

	errs := crew.Errors(diags)
	warns := crew.Warnings(diags)

	switch {
	case len(errs) == 0 && len(warns) == 0:
		fmt.Fprintln(w, "Valid!")
	case len(errs) == 0 && len(warns) > 0:
		fmt.Fprintf(w, "\nValid! (%d %s)\n", len(warns), pluralize("warning", len(warns)))
	default:
		fmt.Fprintf(w, "\n%d %s, %d %s\n",
			len(errs), pluralize("error", len(errs)),
			len(warns), pluralize("warning", len(warns)))
	}
}

func printDiagnosticsJSON(w io.Writer, diags []crew.Diagnostic) {
	// Output an empty array rather than null when there are no diagnostics.
	if diags == nil {
		diags = []crew.Diagnostic{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(diags)
}

// parseKeyValue splits a KEY=VALUE pair, requiring a non-empty key.
func parseKeyValue(value string) (string, string, error) {
	parts := strings.SplitN(value, "=", 2)
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return "", "", errors.New("key is required")
	}
	if len(parts) == 1 {
		return "", "", errors.New("value is required")
	}
	return key, parts[1], nil
}

// pluralize returns the singular or plural form of a word based on count.
func pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}
