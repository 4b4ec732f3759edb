package tool

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// fileWatchPatterns are the file-monitoring APIs the watchdog service
// may rely on. fs.watch/fs.watchFile can usually be replaced with a
// dedicated watcher library.
var fileWatchPatterns = []struct {
	Pattern     string
	CanOptimize bool
}{
	{"fs.watch", true},
	{"fs.watchFile", true},
	{"chokidar", false},
	{"FSWatcher", false},
	{"fileSystemWatcher", false},
}

var websocketPatterns = []string{"WebSocket", "socket.io", "ws.", "io("}

// realtimePatterns are scheduling primitives whose call counts indicate
// how timing-sensitive the service is.
var realtimePatterns = []struct {
	Operation   string
	Description string
}{
	{"setInterval", "Periodic operations"},
	{"setTimeout", "Delayed operations"},
	{"process.nextTick", "Immediate async"},
	{"setImmediate", "I/O callbacks"},
}

// WatchdogAnalyzer examines the watchdog service directory for
// real-time requirements, file monitoring, WebSocket usage, and
// performance-critical patterns that constrain its modernization.
type WatchdogAnalyzer struct{}

// NewWatchdogAnalyzer creates a Watchdog Service Analyzer.
func NewWatchdogAnalyzer() *WatchdogAnalyzer { return &WatchdogAnalyzer{} }

// Name returns the canonical tool name.
func (a *WatchdogAnalyzer) Name() string { return NameWatchdogAnalyzer }

// Manifest describes the analyzer's invocation shape.
func (a *WatchdogAnalyzer) Manifest() Manifest {
	return Manifest{
		Name:        NameWatchdogAnalyzer,
		Description: "Analyzes the watchdog service for real-time requirements and modernization",
		Inputs: map[string]FieldSpec{
			"watchdog_path": {Type: TypeString, Required: true, Description: "Path to watchdog service directory"},
		},
		Outputs: map[string]FieldSpec{
			"architecture":                {Type: TypeObject},
			"real_time_operations":        {Type: TypeArray},
			"file_monitoring":             {Type: TypeArray},
			"websocket_usage":             {Type: TypeArray},
			"performance_metrics":         {Type: TypeObject},
			"modernization_opportunities": {Type: TypeArray},
		},
	}
}

// Invoke scans every .js file under the watchdog directory.
func (a *WatchdogAnalyzer) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	dir, err := requiredString(NameWatchdogAnalyzer, args, "watchdog_path")
	if err != nil {
		return nil, err
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return map[string]any{
			"error": fmt.Sprintf("Watchdog directory not found at %s", dir),
		}, nil
	}

	monitoring := []map[string]any{}
	websockets := []map[string]any{}
	realtime := []map[string]any{}
	opportunities := []map[string]any{}
	perf := map[string]any{}
	scanErrors := []map[string]any{}

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".js") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			scanErrors = append(scanErrors, map[string]any{"file": path, "error": err.Error()})
			return nil
		}
		content := string(raw)

		for _, watch := range fileWatchPatterns {
			if strings.Contains(content, watch.Pattern) {
				monitoring = append(monitoring, map[string]any{
					"file":         path,
					"method":       watch.Pattern,
					"can_optimize": watch.CanOptimize,
				})
			}
		}

		for _, pattern := range websocketPatterns {
			if strings.Contains(content, pattern) {
				websockets = append(websockets, map[string]any{
					"file":    path,
					"pattern": pattern,
				})
			}
		}

		for _, rt := range realtimePatterns {
			if n := strings.Count(content, rt.Operation); n > 0 {
				realtime = append(realtime, map[string]any{
					"file":        path,
					"operation":   rt.Operation,
					"description": rt.Description,
					"count":       n,
				})
			}
		}

		if strings.Contains(content, "Buffer") {
			perf["buffer_usage"] = true
		}
		if strings.Contains(content, "Stream") {
			perf["stream_usage"] = true
		}
		if strings.Contains(content, "cluster") {
			perf["clustering"] = true
		}
		if strings.Contains(content, "worker_threads") {
			perf["worker_threads"] = true
		}

		if strings.Contains(content, "callback") && !strings.Contains(content, "async") {
			opportunities = append(opportunities, map[string]any{
				"file":        path,
				"opportunity": "Convert callbacks to async/await",
				"impact":      "high",
			})
		}
		if _, ok := perf["worker_threads"]; !ok && strings.Contains(content, "CPU") {
			opportunities = append(opportunities, map[string]any{
				"file":        path,
				"opportunity": "Implement worker threads for CPU-intensive tasks",
				"impact":      "medium",
			})
		}

		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	priority := "medium"
	if len(opportunities) > 3 {
		priority = "high"
	}
	_, workerThreads := perf["worker_threads"]

	results := map[string]any{
		"architecture": map[string]any{
			"uses_file_monitoring":   len(monitoring) > 0,
			"uses_websockets":        len(websockets) > 0,
			"has_real_time_ops":      len(realtime) > 0,
			"performance_optimized":  workerThreads,
			"modernization_priority": priority,
		},
		"real_time_operations":        realtime,
		"file_monitoring":             monitoring,
		"websocket_usage":             websockets,
		"performance_metrics":         perf,
		"modernization_opportunities": opportunities,
	}
	if len(scanErrors) > 0 {
		results["errors"] = scanErrors
	}
	return results, nil
}
