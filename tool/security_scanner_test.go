package tool

import (
	"context"
	"testing"
)

func TestSecurityScannerFindsInsecurePatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.js", `const data = eval(userInput);
element.innerHTML = data;
const cipher = crypto.createCipher('aes192', key);
const token = Math.random();
`)

	s := NewSecurityScanner()
	out, err := s.Invoke(context.Background(), map[string]any{"project_path": dir})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	insecure := out["insecure_patterns"].([]map[string]any)
	bySeverity := map[string]int{}
	for _, finding := range insecure {
		bySeverity[finding["severity"].(string)]++
	}
	if bySeverity[SeverityHigh] != 3 {
		t.Errorf("high severity findings = %d, want eval, innerHTML and createCipher", bySeverity[SeverityHigh])
	}

	compliance := out["compliance"].(map[string]any)
	if got := compliance["high_severity"].(int); got != 3 {
		t.Errorf("compliance high_severity = %d, want 3", got)
	}
	if got := compliance["electron_secure"].(bool); !got {
		t.Error("electron_secure should be true without Electron findings")
	}
}

func TestSecurityScannerCredentialsAndElectron(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.js", `const config = {
    "password": "hunter2",
    "api_key": "sk-123456"
};
`)
	writeFile(t, dir, "main.js", `const { app, BrowserWindow } = require('electron');
new BrowserWindow({
    webPreferences: {
        nodeIntegration: true,
        contextIsolation: false
    }
});
`)

	s := NewSecurityScanner()
	out, err := s.Invoke(context.Background(), map[string]any{"project_path": dir})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if creds := out["credential_exposure"].([]map[string]any); len(creds) != 2 {
		t.Errorf("credential_exposure = %d entries, want password and api_key", len(creds))
	}

	electron := out["electron_security"].([]map[string]any)
	if len(electron) != 1 {
		t.Fatalf("electron_security = %d entries, want 1", len(electron))
	}
	if issues := electron[0]["issues"].([]string); len(issues) != 2 {
		t.Errorf("electron issues = %v, want nodeIntegration and contextIsolation", issues)
	}
	compliance := out["compliance"].(map[string]any)
	if got := compliance["electron_secure"].(bool); got {
		t.Error("electron_secure should be false with misconfigured BrowserWindow")
	}
}

func TestSecurityScannerQuickDepthSkipsCredentials(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.js", `const cfg = { "password": "hunter2" };
`)

	s := NewSecurityScanner()
	out, err := s.Invoke(context.Background(), map[string]any{
		"project_path": dir,
		"scan_depth":   "quick",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if creds := out["credential_exposure"].([]map[string]any); len(creds) != 0 {
		t.Errorf("quick scan should skip credential checks, got %v", creds)
	}
}

func TestSecurityScannerSkipsNodeModules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "node_modules/dep/index.js", "eval(input);\n")

	s := NewSecurityScanner()
	out, err := s.Invoke(context.Background(), map[string]any{"project_path": dir})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if insecure := out["insecure_patterns"].([]map[string]any); len(insecure) != 0 {
		t.Errorf("node_modules should be skipped, got %v", insecure)
	}
}
