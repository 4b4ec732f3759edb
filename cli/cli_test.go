package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

const validCrewYAML = `
version: "1"
kind: crew
name: modernization
agents:
  analyst:
    role: Code Analyst
    goal: Find legacy patterns
    provider: anthropic
    model: claude-sonnet-4-5
    tools:
      - Node Code Analyzer
tasks:
  analyze:
    description: Analyze the codebase
    agent: analyst
    expected_output: A findings summary
execution:
  strategy: sequential
  task_order:
    - analyze
`

func writeTempCrew(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing crew fixture: %v", err)
	}
	return path
}

func executeCommand(cmd *cobra.Command, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestValidate_ValidYAMLCrew(t *testing.T) {
	path := writeTempCrew(t, "crew.yaml", validCrewYAML)

	out, _, err := executeCommand(NewValidateCmd(), path)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "Valid!") {
		t.Errorf("output = %q, want Valid!", out)
	}
}

func TestValidate_InvalidCrewExitsWithValidationCode(t *testing.T) {
	broken := strings.Replace(validCrewYAML, "agent: analyst", "agent: nobody", 1)
	path := writeTempCrew(t, "crew.yaml", broken)

	out, _, err := executeCommand(NewValidateCmd(), path)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want ExitError", err)
	}
	if exitErr.Code != exitValidation {
		t.Errorf("exit code = %d, want %d", exitErr.Code, exitValidation)
	}
	if !strings.Contains(out, "nobody") {
		t.Errorf("diagnostics missing unknown agent reference:\n%s", out)
	}
}

func TestValidate_MissingFile(t *testing.T) {
	_, _, err := executeCommand(NewValidateCmd(), filepath.Join(t.TempDir(), "missing.yaml"))
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want ExitError", err)
	}
	if exitErr.Code != exitFileNotFound {
		t.Errorf("exit code = %d, want %d", exitErr.Code, exitFileNotFound)
	}
}

func TestValidate_JSONFormat(t *testing.T) {
	path := writeTempCrew(t, "crew.yaml", validCrewYAML)

	out, _, err := executeCommand(NewValidateCmd(), path, "--format", "json")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	var diags []map[string]any
	if err := json.Unmarshal([]byte(out), &diags); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, out)
	}
}

func TestValidate_StrictPassesCleanCrew(t *testing.T) {
	path := writeTempCrew(t, "crew.yaml", validCrewYAML)

	if _, _, err := executeCommand(NewValidateCmd(), path, "--strict"); err != nil {
		t.Fatalf("strict validate of clean crew failed: %v", err)
	}
}

func TestToolsList(t *testing.T) {
	out, _, err := executeCommand(NewToolsCmd(), "list")
	if err != nil {
		t.Fatalf("tools list failed: %v", err)
	}
	for _, want := range []string{"NAME", "STATUS", "Node Code Analyzer", "Dependency Analyzer"} {
		if !strings.Contains(out, want) {
			t.Errorf("tools list missing %q:\n%s", want, out)
		}
	}
}

func TestToolsDescribe_ToleratesNameVariation(t *testing.T) {
	out, _, err := executeCommand(NewToolsCmd(), "describe", "Node  Code   Analyzer")
	if err != nil {
		t.Fatalf("tools describe failed: %v", err)
	}
	if !strings.Contains(out, "directory_path") {
		t.Errorf("manifest missing directory_path input:\n%s", out)
	}
}

func TestToolsDescribe_UnknownNameSuggests(t *testing.T) {
	_, _, err := executeCommand(NewToolsCmd(), "describe", "Node Code Analyzr")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want ExitError", err)
	}
	if !strings.Contains(exitErr.Message, "closest") {
		t.Errorf("error missing suggestion: %s", exitErr.Message)
	}
}

func TestToolsInvoke_CodeAnalyzer(t *testing.T) {
	dir := t.TempDir()
	src := "var legacy = require('fs');\nfs.exists('/tmp', function(err, callback) {});\n"
	if err := os.WriteFile(filepath.Join(dir, "legacy.js"), []byte(src), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	out, _, err := executeCommand(NewToolsCmd(), "invoke", "Node Code Analyzer",
		"--arg", "directory_path="+dir)
	if err != nil {
		t.Fatalf("tools invoke failed: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if _, ok := result["var_declarations"]; !ok {
		t.Errorf("result missing var_declarations: %v", result)
	}
}

func TestParsePrimitiveValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"false", false},
		{"42", int64(42)},
		{"2.5", 2.5},
		{`["a","b"]`, []any{"a", "b"}},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parsePrimitiveValue(tt.in)
			switch want := tt.want.(type) {
			case []any:
				gotSlice, ok := got.([]any)
				if !ok || len(gotSlice) != len(want) {
					t.Fatalf("parsePrimitiveValue(%q) = %v", tt.in, got)
				}
			default:
				if got != tt.want {
					t.Errorf("parsePrimitiveValue(%q) = %v, want %v", tt.in, got, tt.want)
				}
			}
		})
	}
}

func TestParseKeyValue(t *testing.T) {
	key, value, err := parseKeyValue("path=/srv/app")
	if err != nil {
		t.Fatalf("parseKeyValue: %v", err)
	}
	if key != "path" || value != "/srv/app" {
		t.Errorf("got %q=%q", key, value)
	}

	if _, _, err := parseKeyValue("=oops"); err == nil {
		t.Error("expected error for empty key")
	}
	if _, _, err := parseKeyValue("bare"); err == nil {
		t.Error("expected error for missing value")
	}
}
