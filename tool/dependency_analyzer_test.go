package tool

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func fakeNPM(outdated, audit []byte, fail bool) npmRunner {
	return func(ctx context.Context, dir string, args ...string) ([]byte, error) {
		if fail {
			return nil, errors.New("npm not available")
		}
		switch args[0] {
		case "outdated":
			return outdated, nil
		case "audit":
			return audit, nil
		}
		return nil, errors.New("unexpected npm invocation")
	}
}

func TestDependencyAnalyzerFlagsProblematicPackages(t *testing.T) {
	dir := t.TempDir()
	pkgPath := writeFile(t, dir, "package.json", `{
  "dependencies": {
    "ffi-napi": "^4.0.3",
    "express": "^4.18.0",
    "node-sass": "^7.0.0"
  },
  "devDependencies": {
    "node-gyp": "^9.0.0"
  }
}`)

	a := &DependencyAnalyzer{npm: fakeNPM(
		[]byte(`{"express": {"current": "4.18.0", "wanted": "4.19.2", "latest": "5.0.0", "type": "dependencies"}}`),
		[]byte(`{"metadata": {"vulnerabilities": {"high": 2, "low": 0}}}`),
		false,
	)}
	out, err := a.Invoke(context.Background(), map[string]any{"package_json_path": pkgPath})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	compat := out["compatibility_issues"].([]map[string]any)
	if len(compat) != 2 {
		t.Fatalf("compatibility_issues = %d entries, want ffi-napi and node-sass", len(compat))
	}
	for _, issue := range compat {
		if issue["alternative"] == nil || issue["migration_complexity"] == nil {
			t.Errorf("issue %v missing alternative or complexity", issue["package"])
		}
	}

	native := out["native_modules"].([]map[string]any)
	nativeNames := map[string]bool{}
	for _, mod := range native {
		nativeNames[mod["package"].(string)] = true
	}
	for _, want := range []string{"node-sass", "node-gyp"} {
		if !nativeNames[want] {
			t.Errorf("native_modules missing %s", want)
		}
	}

	if updates := out["update_recommendations"].([]map[string]any); len(updates) != 1 {
		t.Errorf("update_recommendations = %d entries, want 1", len(updates))
	}

	vulns := out["security_vulnerabilities"].([]map[string]any)
	if len(vulns) != 1 || vulns[0]["severity"] != "high" {
		t.Errorf("security_vulnerabilities = %v, want one high entry", vulns)
	}

	summary := out["summary"].(map[string]any)
	if got := summary["total_dependencies"].(int); got != 4 {
		t.Errorf("total_dependencies = %d, want 4", got)
	}
	if got := summary["security_issues"].(int); got != 2 {
		t.Errorf("security_issues = %d, want 2", got)
	}
	if _, hasErrors := out["errors"]; hasErrors {
		t.Error("no errors expected when npm succeeds")
	}
}

func TestDependencyAnalyzerNPMFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	pkgPath := writeFile(t, dir, "package.json", `{"dependencies": {"fibers": "^5.0.0"}}`)

	a := &DependencyAnalyzer{npm: fakeNPM(nil, nil, true)}
	out, err := a.Invoke(context.Background(), map[string]any{"package_json_path": pkgPath})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if compat := out["compatibility_issues"].([]map[string]any); len(compat) != 1 {
		t.Errorf("static analysis should still flag fibers, got %d entries", len(compat))
	}
	npmErrors, ok := out["errors"].([]string)
	if !ok || len(npmErrors) != 2 {
		t.Errorf("errors = %v, want outdated and audit failures recorded", out["errors"])
	}
}

func TestDependencyAnalyzerSkipsAuditWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	pkgPath := writeFile(t, dir, "package.json", `{"dependencies": {}}`)

	calls := []string{}
	a := &DependencyAnalyzer{npm: func(ctx context.Context, dir string, args ...string) ([]byte, error) {
		calls = append(calls, args[0])
		return []byte(`{}`), nil
	}}
	if _, err := a.Invoke(context.Background(), map[string]any{
		"package_json_path": pkgPath,
		"check_security":    false,
	}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	for _, call := range calls {
		if call == "audit" {
			t.Error("audit should not run when check_security is false")
		}
	}
}

func TestDependencyAnalyzerMissingFile(t *testing.T) {
	a := NewDependencyAnalyzer()
	out, err := a.Invoke(context.Background(), map[string]any{
		"package_json_path": filepath.Join(t.TempDir(), "package.json"),
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if _, ok := out["error"]; !ok {
		t.Error("missing package.json should yield an error payload")
	}
}
