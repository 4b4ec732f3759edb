package tool

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// deprecatedAPIs maps Node.js 14-era APIs that need updating to their
// modern replacements.
var deprecatedAPIs = []struct {
	API         string
	Replacement string
}{
	{"fs.exists", "fs.access or fs.stat"},
	{"fs.existsSync", "fs.accessSync or fs.statSync"},
	{"crypto.createCredentials", "tls.createSecureContext"},
	{"crypto.Credentials", "tls.SecureContext"},
	{"domain", "async/await with try-catch"},
	{"sys", "util"},
	{"_writableState", "Use public APIs"},
	{"_readableState", "Use public APIs"},
	{"Buffer()", "Buffer.alloc() or Buffer.from()"},
	{"new Buffer", "Buffer.alloc() or Buffer.from()"},
	{"process.binding", "Use public APIs"},
	{"require.extensions", "Use transform hooks"},
}

// legacyChecks pairs a literal legacy construct with the recommended fix.
var legacyChecks = []struct {
	Pattern        string
	Recommendation string
}{
	{"arguments.callee", "Use named function expressions"},
	{"with(", "Avoid with statements"},
	{"eval(", "Avoid eval for security"},
	{"== null", "Use === for strict equality"},
	{"!= null", "Use !== for strict inequality"},
}

var (
	callbackSignatureRe = regexp.MustCompile(`function\s*\([^)]*callback[^)]*\)`)
	varDeclRe           = regexp.MustCompile(`\bvar\s+`)
)

// defaultExcludePatterns skips vendored and server-owned code by default.
var defaultExcludePatterns = []string{"/server/", "node_modules"}

// CodeAnalyzer scans a Node.js codebase for deprecated APIs, callback
// signatures, var declarations, CommonJS module syntax, and other legacy
// patterns, and scores how much modernization work remains.
type CodeAnalyzer struct{}

// NewCodeAnalyzer creates a Node Code Analyzer.
func NewCodeAnalyzer() *CodeAnalyzer { return &CodeAnalyzer{} }

// Name returns the canonical tool name.
func (a *CodeAnalyzer) Name() string { return NameCodeAnalyzer }

// Manifest describes the analyzer's invocation shape.
func (a *CodeAnalyzer) Manifest() Manifest {
	return Manifest{
		Name:        NameCodeAnalyzer,
		Description: "Analyzes Node.js codebase for legacy patterns and modernization opportunities",
		Inputs: map[string]FieldSpec{
			"directory_path": {Type: TypeString, Required: true, Description: "Path to the directory to analyze"},
			"exclude_patterns": {
				Type:        TypeArray,
				Description: "Path substrings to exclude",
				Default:     defaultExcludePatterns,
			},
		},
		Outputs: map[string]FieldSpec{
			"deprecated_apis":   {Type: TypeArray},
			"callback_patterns": {Type: TypeArray},
			"var_declarations":  {Type: TypeArray},
			"commonjs_modules":  {Type: TypeArray},
			"legacy_patterns":   {Type: TypeArray},
			"total_files":       {Type: TypeInteger},
			"analysis_summary":  {Type: TypeObject},
		},
	}
}

// Invoke walks the directory tree and accumulates findings per file.
// Unreadable files are recorded under "errors" without aborting the scan.
func (a *CodeAnalyzer) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	dir, err := requiredString(NameCodeAnalyzer, args, "directory_path")
	if err != nil {
		return nil, err
	}
	exclude := stringSliceArg(args, "exclude_patterns")
	if exclude == nil {
		exclude = defaultExcludePatterns
	}

	deprecated := []map[string]any{}
	callbacks := []map[string]any{}
	varDecls := []map[string]any{}
	commonjs := []string{}
	legacy := []map[string]any{}
	scanErrors := []map[string]any{}
	totalFiles := 0

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
		for _, pattern := range exclude {
			if strings.Contains(path, pattern) {
				return nil
			}
		}

		totalFiles++

		raw, err := os.ReadFile(path)
		if err != nil {
			scanErrors = append(scanErrors, map[string]any{"file": path, "error": err.Error()})
			return nil
		}
		content := string(raw)

		for _, dep := range deprecatedAPIs {
			if strings.Contains(content, dep.API) {
				deprecated = append(deprecated, map[string]any{
					"file":        path,
					"api":         dep.API,
					"replacement": dep.Replacement,
					"line":        findLine(content, dep.API),
				})
			}
		}

		if matches := callbackSignatureRe.FindAllString(content, -1); len(matches) > 0 {
			sample := matches
			if len(sample) > 5 {
				sample = sample[:5]
			}
			callbacks = append(callbacks, map[string]any{
				"file":     path,
				"count":    len(matches),
				"patterns": sample,
			})
		}

		if n := len(varDeclRe.FindAllString(content, -1)); n > 0 {
			varDecls = append(varDecls, map[string]any{"file": path, "count": n})
		}

		if strings.Contains(content, "module.exports") || strings.Contains(content, "require(") {
			commonjs = append(commonjs, path)
		}

		for _, check := range legacyChecks {
			if strings.Contains(content, check.Pattern) {
				legacy = append(legacy, map[string]any{
					"file":           path,
					"pattern":        check.Pattern,
					"recommendation": check.Recommendation,
				})
			}
		}

		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	filesWithDeprecated := map[string]bool{}
	for _, item := range deprecated {
		filesWithDeprecated[item["file"].(string)] = true
	}

	results := map[string]any{
		"deprecated_apis":   deprecated,
		"callback_patterns": callbacks,
		"var_declarations":  varDecls,
		"commonjs_modules":  commonjs,
		"legacy_patterns":   legacy,
		"total_files":       totalFiles,
		"analysis_summary": map[string]any{
			"total_files_analyzed":       totalFiles,
			"files_with_deprecated_apis": len(filesWithDeprecated),
			"files_with_callbacks":       len(callbacks),
			"files_with_var":             len(varDecls),
			"commonjs_files":             len(commonjs),
			"modernization_score": modernizationScore(
				totalFiles, len(deprecated), len(callbacks), len(varDecls), len(legacy)),
		},
	}
	if len(scanErrors) > 0 {
		results["errors"] = scanErrors
	}
	return results, nil
}

// findLine returns the 1-indexed line of the first occurrence of
// pattern, or 0 when absent.
func findLine(content, pattern string) int {
	for i, line := range strings.Split(content, "\n") {
		if strings.Contains(line, pattern) {
			return i + 1
		}
	}
	return 0
}

// modernizationScore weighs finding counts into a 0-100 score.
// An empty codebase is fully modern.
func modernizationScore(totalFiles, deprecated, callbacks, varDecls, legacy int) int {
	if totalFiles == 0 {
		return 100
	}
	issues := deprecated*3 + callbacks*2 + varDecls + legacy*2
	score := 100 - issues*2
	if score < 0 {
		score = 0
	}
	return score
}
