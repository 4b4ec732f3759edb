package tool

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Severity levels for security findings.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// securityPatterns are regexes for insecure JavaScript constructs.
var securityPatterns = []struct {
	Re          *regexp.Regexp
	Description string
	Severity    string
}{
	{regexp.MustCompile(`eval\([^)]+\)`), "Use of eval - potential code injection", SeverityHigh},
	{regexp.MustCompile(`innerHTML\s*=`), "Direct innerHTML assignment - XSS risk", SeverityHigh},
	{regexp.MustCompile(`document\.write`), "document.write usage - XSS risk", SeverityMedium},
	{regexp.MustCompile(`require\([^'"]+\)`), "Dynamic require - potential security risk", SeverityMedium},
	{regexp.MustCompile(`child_process\.exec\(`), "exec without validation - command injection risk", SeverityHigh},
	{regexp.MustCompile(`fs\..*Sync\(`), "Synchronous file operations - DoS risk", SeverityLow},
	{regexp.MustCompile(`crypto\.createCipher\(`), "Deprecated cipher - use createCipheriv", SeverityHigh},
	{regexp.MustCompile(`Math\.random\(\)`), "Weak randomness for security", SeverityMedium},
}

// credentialPatterns spot hardcoded secrets in assignments.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)['"]password['"]\s*[:=]\s*['"][^'"]+['"]`),
	regexp.MustCompile(`(?i)['"]api[_-]?key['"]\s*[:=]\s*['"][^'"]+['"]`),
	regexp.MustCompile(`(?i)['"]secret['"]\s*[:=]\s*['"][^'"]+['"]`),
}

// electronChecks are main-process settings that disable Electron's
// security boundaries.
var electronChecks = []struct {
	Needle string
	Issue  string
}{
	{"nodeIntegration: true", "nodeIntegration enabled - security risk"},
	{"contextIsolation: false", "contextIsolation disabled - security risk"},
	{"webSecurity: false", "webSecurity disabled - security risk"},
}

// SecurityScanner scans a project for insecure code patterns, hardcoded
// credentials, and Electron misconfigurations.
type SecurityScanner struct{}

// NewSecurityScanner creates a Security Scanner.
func NewSecurityScanner() *SecurityScanner { return &SecurityScanner{} }

// Name returns the canonical tool name.
func (s *SecurityScanner) Name() string { return NameSecurityScanner }

// Manifest describes the scanner's invocation shape.
func (s *SecurityScanner) Manifest() Manifest {
	return Manifest{
		Name:        NameSecurityScanner,
		Description: "Scans codebase for security vulnerabilities and compliance issues",
		Inputs: map[string]FieldSpec{
			"project_path": {Type: TypeString, Required: true, Description: "Path to project to scan"},
			"scan_depth":   {Type: TypeString, Description: "Scan depth: quick or comprehensive", Default: "comprehensive"},
		},
		Outputs: map[string]FieldSpec{
			"insecure_patterns":   {Type: TypeArray},
			"credential_exposure": {Type: TypeArray},
			"electron_security":   {Type: TypeArray},
			"compliance":          {Type: TypeObject},
		},
	}
}

// Invoke scans every .js file under the project, skipping node_modules.
// A quick scan checks insecure patterns only; comprehensive adds
// credential and Electron checks.
func (s *SecurityScanner) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	dir, err := requiredString(NameSecurityScanner, args, "project_path")
	if err != nil {
		return nil, err
	}
	depth := stringArg(args, "scan_depth", "comprehensive")

	insecure := []map[string]any{}
	credentials := []map[string]any{}
	electron := []map[string]any{}
	scanErrors := []map[string]any{}

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".js") || strings.Contains(path, "node_modules") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			scanErrors = append(scanErrors, map[string]any{"file": path, "error": err.Error()})
			return nil
		}
		content := string(raw)

		for _, check := range securityPatterns {
			if n := len(check.Re.FindAllString(content, -1)); n > 0 {
				insecure = append(insecure, map[string]any{
					"file":        path,
					"pattern":     check.Re.String(),
					"description": check.Description,
					"severity":    check.Severity,
					"occurrences": n,
				})
			}
		}

		if depth == "comprehensive" {
			for _, re := range credentialPatterns {
				if re.MatchString(content) {
					credentials = append(credentials, map[string]any{
						"file": path,
						"type": "Potential hardcoded credential",
					})
				}
			}

			if strings.Contains(strings.ToLower(content), "electron") {
				var issues []string
				for _, check := range electronChecks {
					if strings.Contains(content, check.Needle) {
						issues = append(issues, check.Issue)
					}
				}
				if len(issues) > 0 {
					electron = append(electron, map[string]any{
						"file":   path,
						"issues": issues,
					})
				}
			}
		}

		return nil
	})
	if walkErr != nil {
		if os.IsNotExist(walkErr) {
			return map[string]any{
				"error": fmt.Sprintf("Project directory not found at %s", dir),
			}, nil
		}
		return nil, walkErr
	}

	highSeverity := 0
	for _, finding := range insecure {
		if finding["severity"] == SeverityHigh {
			highSeverity++
		}
	}

	results := map[string]any{
		"insecure_patterns":   insecure,
		"credential_exposure": credentials,
		"electron_security":   electron,
		"compliance": map[string]any{
			"total_issues":    len(insecure) + len(credentials),
			"high_severity":   highSeverity,
			"electron_secure": len(electron) == 0,
			"recommendation":  "Address high severity issues immediately",
		},
	}
	if len(scanErrors) > 0 {
		results["errors"] = scanErrors
	}
	return results, nil
}
