package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// problematicPackages lists npm packages known to break on Node.js 20,
// with suggested alternatives and an estimate of migration effort.
var problematicPackages = map[string]map[string]any{
	"ffi-napi": {
		"issue":                "Not compatible with Node.js 20",
		"alternative":          "koffi or Node-API",
		"migration_complexity": "high",
	},
	"ref-napi": {
		"issue":                "Deprecated, compatibility issues",
		"alternative":          "Built into koffi",
		"migration_complexity": "medium",
	},
	"node-sass": {
		"issue":                "Native bindings issues",
		"alternative":          "sass (Dart Sass)",
		"migration_complexity": "low",
	},
	"fibers": {
		"issue":                "Not supported in Node.js 16+",
		"alternative":          "async/await",
		"migration_complexity": "high",
	},
}

// nativeModuleKeywords are name fragments that usually indicate a
// package with native bindings needing a rebuild per Node version.
var nativeModuleKeywords = []string{"node-", "-native", "binding", "gyp"}

// packageJSON is the subset of package.json the analyzer reads.
type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// npmRunner executes an npm subcommand in a directory and returns its
// stdout. Swappable in tests so no npm install is required.
type npmRunner func(ctx context.Context, dir string, args ...string) ([]byte, error)

func defaultNPMRunner(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "npm", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	// npm outdated exits nonzero when updates exist; the JSON on stdout
	// is still valid, so only a missing stdout is treated as failure.
	if len(out) > 0 {
		return out, nil
	}
	return out, err
}

// DependencyAnalyzer inspects a package.json for Node.js 20
// compatibility problems, native modules, available updates, and
// security vulnerabilities.
type DependencyAnalyzer struct {
	npm npmRunner
}

// NewDependencyAnalyzer creates a Dependency Analyzer backed by the npm CLI.
func NewDependencyAnalyzer() *DependencyAnalyzer {
	return &DependencyAnalyzer{npm: defaultNPMRunner}
}

// Name returns the canonical tool name.
func (a *DependencyAnalyzer) Name() string { return NameDependencyAnalyzer }

// Manifest describes the analyzer's invocation shape.
func (a *DependencyAnalyzer) Manifest() Manifest {
	return Manifest{
		Name:        NameDependencyAnalyzer,
		Description: "Analyzes npm dependencies for Node.js 20 compatibility and security issues",
		Inputs: map[string]FieldSpec{
			"package_json_path": {Type: TypeString, Required: true, Description: "Path to package.json file"},
			"check_security":    {Type: TypeBool, Description: "Run security audit", Default: true},
		},
		Outputs: map[string]FieldSpec{
			"compatibility_issues":     {Type: TypeArray},
			"native_modules":           {Type: TypeArray},
			"update_recommendations":   {Type: TypeArray},
			"security_vulnerabilities": {Type: TypeArray},
			"summary":                  {Type: TypeObject},
		},
	}
}

// Invoke reads the package.json and combines static checks with npm
// outdated/audit results. npm failures are recorded, not fatal: the
// static analysis is still useful offline.
func (a *DependencyAnalyzer) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, err := requiredString(NameDependencyAnalyzer, args, "package_json_path")
	if err != nil {
		return nil, err
	}
	checkSecurity := boolArg(args, "check_security", true)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{
				"error": fmt.Sprintf("package.json not found at %s", path),
			}, nil
		}
		return nil, fmt.Errorf("%s: reading %s: %w", NameDependencyAnalyzer, path, err)
	}

	var pkg packageJSON
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("%s: parsing %s: %w", NameDependencyAnalyzer, path, err)
	}

	allDeps := make(map[string]string, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name, version := range pkg.Dependencies {
		allDeps[name] = version
	}
	for name, version := range pkg.DevDependencies {
		allDeps[name] = version
	}

	compatibility := []map[string]any{}
	native := []map[string]any{}
	var npmErrors []string

	for name, version := range allDeps {
		if info, ok := problematicPackages[name]; ok {
			issue := map[string]any{
				"package":         name,
				"current_version": version,
			}
			for k, v := range info {
				issue[k] = v
			}
			compatibility = append(compatibility, issue)
		}
		for _, keyword := range nativeModuleKeywords {
			if strings.Contains(name, keyword) {
				native = append(native, map[string]any{
					"package":          name,
					"version":          version,
					"rebuild_required": true,
				})
				break
			}
		}
	}

	dir := filepath.Dir(path)

	updates := []map[string]any{}
	if out, err := a.npm(ctx, dir, "outdated", "--json"); err != nil {
		npmErrors = append(npmErrors, fmt.Sprintf("Failed to check outdated packages: %v", err))
	} else if len(out) > 0 {
		var outdated map[string]struct {
			Current string `json:"current"`
			Wanted  string `json:"wanted"`
			Latest  string `json:"latest"`
			Type    string `json:"type"`
		}
		if err := json.Unmarshal(out, &outdated); err == nil {
			for name, info := range outdated {
				updates = append(updates, map[string]any{
					"package": name,
					"current": info.Current,
					"wanted":  info.Wanted,
					"latest":  info.Latest,
					"type":    info.Type,
				})
			}
		}
	}

	vulnerabilities := []map[string]any{}
	if checkSecurity {
		if out, err := a.npm(ctx, dir, "audit", "--json"); err != nil {
			npmErrors = append(npmErrors, fmt.Sprintf("Failed to run security audit: %v", err))
		} else if len(out) > 0 {
			var audit struct {
				Metadata struct {
					Vulnerabilities map[string]int `json:"vulnerabilities"`
				} `json:"metadata"`
			}
			if err := json.Unmarshal(out, &audit); err == nil {
				for severity, count := range audit.Metadata.Vulnerabilities {
					if count > 0 {
						vulnerabilities = append(vulnerabilities, map[string]any{
							"severity": severity,
							"count":    count,
						})
					}
				}
			}
		}
	}

	securityIssues := 0
	for _, v := range vulnerabilities {
		securityIssues += v["count"].(int)
	}

	results := map[string]any{
		"compatibility_issues":     compatibility,
		"native_modules":           native,
		"update_recommendations":   updates,
		"security_vulnerabilities": vulnerabilities,
		"summary": map[string]any{
			"total_dependencies":         len(allDeps),
			"compatibility_issues_count": len(compatibility),
			"native_modules_count":       len(native),
			"updates_available":          len(updates),
			"security_issues":            securityIssues,
		},
	}
	if len(npmErrors) > 0 {
		results["errors"] = npmErrors
	}
	return results, nil
}
