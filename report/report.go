// Package report renders crew run results as Markdown and persists run
// history in SQLite.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/petal-labs/retrofit/runtime"
)

const runReportTemplate = `# {{.CrewName}} run report

Run ` + "`{{.RunID}}`" + ` {{.Status}} in {{.Elapsed}} ({{.TaskCount}} task{{if ne .TaskCount 1}}s{{end}}, {{.TotalTokens}} tokens).
{{range .Tasks}}
## {{.TaskID}}

Agent: {{.Agent}}

{{.Output}}
{{end}}{{if .Errors}}
## Failures
{{range .Errors}}
- {{.TaskID}}: {{.Message}}
{{end}}{{end}}`

var reportTmpl = template.Must(template.New("report").Parse(runReportTemplate))

// reportData is the template context for a rendered run.
type reportData struct {
	RunID       string
	CrewName    string
	Status      string
	Elapsed     string
	TaskCount   int
	TotalTokens int
	Tasks       []runtime.TaskResult
	Errors      []runtime.TaskError
}

// Render produces the Markdown report for a completed run. Tasks appear
// in execution order.
func Render(result *runtime.RunResult) ([]byte, error) {
	status := "completed"
	if len(result.Errors) > 0 {
		status = "completed with failures"
	}

	tasks := make([]runtime.TaskResult, 0, len(result.Outputs))
	for _, id := range result.Order {
		if tr, ok := result.Outputs[id]; ok {
			tasks = append(tasks, tr)
		}
	}

	data := reportData{
		RunID:       result.RunID,
		CrewName:    result.CrewName,
		Status:      status,
		Elapsed:     result.Elapsed.String(),
		TaskCount:   len(tasks),
		TotalTokens: result.Usage.TotalTokens,
		Tasks:       tasks,
		Errors:      result.Errors,
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering run report: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTaskOutputs writes each task output that declares an output_file,
// resolved relative to baseDir. Parent directories are created as needed.
func WriteTaskOutputs(result *runtime.RunResult, baseDir string) error {
	for _, id := range result.Order {
		tr, ok := result.Outputs[id]
		if !ok || tr.OutputFile == "" {
			continue
		}
		path := tr.OutputFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating output directory for task %s: %w", id, err)
		}
		if err := os.WriteFile(path, []byte(tr.Output), 0o644); err != nil {
			return fmt.Errorf("writing output for task %s: %w", id, err)
		}
	}
	return nil
}
