package tool

import (
	"context"
	"path/filepath"
	"testing"
)

func TestWatchdogAnalyzer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "monitor.js", `const fs = require('fs');
const io = require('socket.io');

fs.watch('/data', handleChange);
setInterval(poll, 500);
setInterval(flush, 5000);

function poll() {
    const buf = Buffer.alloc(1024);
    readState(buf, function(err, state) {
        callback(state);
    });
}
`)

	a := NewWatchdogAnalyzer()
	out, err := a.Invoke(context.Background(), map[string]any{"watchdog_path": dir})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	monitoring := out["file_monitoring"].([]map[string]any)
	if len(monitoring) != 1 {
		t.Fatalf("file_monitoring = %d entries, want 1", len(monitoring))
	}
	if monitoring[0]["method"] != "fs.watch" || monitoring[0]["can_optimize"] != true {
		t.Errorf("fs.watch should be reported as optimizable, got %v", monitoring[0])
	}

	if ws := out["websocket_usage"].([]map[string]any); len(ws) == 0 {
		t.Error("socket.io usage not reported")
	}

	realtime := out["real_time_operations"].([]map[string]any)
	foundInterval := false
	for _, op := range realtime {
		if op["operation"] == "setInterval" {
			foundInterval = true
			if op["count"] != 2 {
				t.Errorf("setInterval count = %v, want 2", op["count"])
			}
		}
	}
	if !foundInterval {
		t.Error("setInterval operations not reported")
	}

	perf := out["performance_metrics"].(map[string]any)
	if perf["buffer_usage"] != true {
		t.Error("buffer_usage not detected")
	}

	opportunities := out["modernization_opportunities"].([]map[string]any)
	if len(opportunities) == 0 {
		t.Fatal("callback-without-async file should yield an opportunity")
	}

	arch := out["architecture"].(map[string]any)
	if arch["uses_file_monitoring"] != true || arch["has_real_time_ops"] != true {
		t.Errorf("architecture flags wrong: %v", arch)
	}
	if arch["modernization_priority"] != "medium" {
		t.Errorf("modernization_priority = %v, want medium", arch["modernization_priority"])
	}
}

func TestWatchdogAnalyzerMissingDirectory(t *testing.T) {
	a := NewWatchdogAnalyzer()
	out, err := a.Invoke(context.Background(), map[string]any{
		"watchdog_path": filepath.Join(t.TempDir(), "missing"),
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if _, ok := out["error"]; !ok {
		t.Error("missing directory should yield an error payload")
	}
}
