package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Migration strategies accepted by the ESM tool.
const (
	StrategyHybrid  = "hybrid"
	StrategyGradual = "gradual"
	StrategyFull    = "full"
)

var (
	importLineRe = regexp.MustCompile(`(?m)^import\s+`)
	exportLineRe = regexp.MustCompile(`(?m)^export\s+`)

	staticRequireRe  = regexp.MustCompile(`require\(['"]([^'"]+)['"]\)`)
	dynamicRequireRe = regexp.MustCompile(`require\([^'"]+\)`)

	constRequireRe       = regexp.MustCompile(`const\s+(\w+)\s*=\s*require\(['"]([^'"]+)['"]\);?`)
	destructureRequireRe = regexp.MustCompile(`const\s*\{([^}]+)\}\s*=\s*require\(['"]([^'"]+)['"]\);?`)
	bareRequireRe        = regexp.MustCompile(`require\(['"]([^'"]+)['"]\);?`)
	moduleExportsBraceRe = regexp.MustCompile(`module\.exports\s*=\s*{`)
	moduleExportsIdentRe = regexp.MustCompile(`module\.exports\s*=\s*(\w+);?`)
	exportsPropRe        = regexp.MustCompile(`exports\.(\w+)\s*=\s*`)
	anyRequireRe         = regexp.MustCompile(`require\(([^)]+)\)`)
	importCallRe         = regexp.MustCompile(`import\(([^)]+)\)`)
)

// esmProblematicPatterns complicate or block a mechanical CJS→ESM rewrite.
var esmProblematicPatterns = []struct {
	Name string
	Re   *regexp.Regexp
}{
	{"eval_require", regexp.MustCompile(`eval\([^)]*require[^)]*\)`)},
	{"conditional_require", regexp.MustCompile(`if\s*\([^)]+\)\s*{[^}]*require\(`)},
	{"try_require", regexp.MustCompile(`try\s*{[^}]*require\(`)},
	{"computed_require", dynamicRequireRe},
	{"global_assignment", regexp.MustCompile(`global\.\w+\s*=`)},
	{"this_exports", regexp.MustCompile(`this\.exports\s*=`)},
}

var esmNativeIndicators = []string{"ffi-napi", "ref-napi", "node-gyp", ".node"}

const dirnameShim = `import { fileURLToPath } from 'url';
import { dirname } from 'path';

const __filename = fileURLToPath(import.meta.url);
const __dirname = dirname(__filename);

`

// esmAnalysis is the structural picture of a project's module systems.
type esmAnalysis struct {
	TotalFiles      int
	CommonJSFiles   []string
	ESMFiles        []string
	MixedFiles      []string
	EntryPoints     []string
	Circular        []map[string]any
	Problematic     []map[string]any
	NativeModules   []map[string]any
	DynamicRequires []map[string]any

	// relative-require edges, file → resolved dependency files
	deps map[string][]string
	// files that must not be auto-migrated
	unsafe map[string]bool
}

func (a *esmAnalysis) payload() map[string]any {
	return map[string]any{
		"total_files":           a.TotalFiles,
		"commonjs_files":        a.CommonJSFiles,
		"esm_files":             a.ESMFiles,
		"mixed_files":           a.MixedFiles,
		"entry_points":          a.EntryPoints,
		"circular_dependencies": a.Circular,
		"problematic_patterns":  a.Problematic,
		"native_modules":        a.NativeModules,
		"dynamic_requires":      a.DynamicRequires,
	}
}

// ESMMigration converts a CommonJS project toward ESM, with hybrid and
// gradual strategies that keep legacy consumers working during the
// transition. Rewritten modules are syntax-checked with node --check.
type ESMMigration struct {
	nodePath string
}

// NewESMMigration creates the ESM Migration Tool. It requires a node
// executable on PATH to validate rewritten modules; without one the
// registry substitutes a placeholder.
func NewESMMigration() (*ESMMigration, error) {
	nodePath, err := exec.LookPath("node")
	if err != nil {
		return nil, fmt.Errorf("node executable not found in PATH")
	}
	return &ESMMigration{nodePath: nodePath}, nil
}

// Name returns the canonical tool name.
func (m *ESMMigration) Name() string { return NameESMMigration }

// Manifest describes the tool's invocation shape.
func (m *ESMMigration) Manifest() Manifest {
	return Manifest{
		Name:        NameESMMigration,
		Description: "Migrates CommonJS to ESM with support for legacy code",
		Inputs: map[string]FieldSpec{
			"project_path": {Type: TypeString, Required: true, Description: "Root path of the project"},
			"strategy":     {Type: TypeString, Description: "Migration strategy: full, hybrid, or gradual", Default: StrategyHybrid},
		},
		Outputs: map[string]FieldSpec{
			"status":              {Type: TypeString},
			"strategy":            {Type: TypeString},
			"analysis":            {Type: TypeObject},
			"migration_result":    {Type: TypeObject},
			"compatibility_shims": {Type: TypeObject},
			"report":              {Type: TypeObject},
			"next_steps":          {Type: TypeArray},
		},
	}
}

// Invoke analyzes the project, orders files leaf-first along the
// require graph, applies the chosen strategy, and reports.
func (m *ESMMigration) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	dir, err := requiredString(NameESMMigration, args, "project_path")
	if err != nil {
		return nil, err
	}
	strategy := stringArg(args, "strategy", StrategyHybrid)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return map[string]any{
			"error": fmt.Sprintf("Project path not found: %s", dir),
		}, nil
	}

	analysis, err := m.analyzeProject(ctx, dir)
	if err != nil {
		return nil, err
	}

	order := migrationOrder(analysis)

	var result map[string]any
	switch strategy {
	case StrategyHybrid, StrategyGradual:
		// gradual shares the hybrid mechanics but the unsafe set keeps
		// most files wrapped rather than rewritten
		result = m.applyHybrid(ctx, dir, analysis, order)
	case StrategyFull:
		result = m.applyFull(ctx, analysis)
	default:
		return map[string]any{
			"error": fmt.Sprintf("Unknown strategy: %s", strategy),
		}, nil
	}

	return map[string]any{
		"status":              "success",
		"strategy":            strategy,
		"analysis":            analysis.payload(),
		"migration_result":    result,
		"compatibility_shims": compatibilityShims(),
		"report":              migrationReport(result, analysis),
		"next_steps": []string{
			"Run comprehensive test suite",
			"Update CI/CD pipeline for Node.js 20",
			"Test native module compilation on all target platforms",
			"Update documentation with new import/export syntax",
			"Monitor for runtime issues in development environment",
			"Plan staged rollout to production",
		},
	}, nil
}

func (m *ESMMigration) analyzeProject(ctx context.Context, dir string) (*esmAnalysis, error) {
	analysis := &esmAnalysis{
		CommonJSFiles:   []string{},
		ESMFiles:        []string{},
		MixedFiles:      []string{},
		EntryPoints:     []string{},
		Circular:        []map[string]any{},
		Problematic:     []map[string]any{},
		NativeModules:   []map[string]any{},
		DynamicRequires: []map[string]any{},
		deps:            map[string][]string{},
		unsafe:          map[string]bool{},
	}

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
		if strings.Contains(path, "node_modules") || strings.Contains(path, "/server/") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		content := string(raw)
		analysis.TotalFiles++

		hasRequire := strings.Contains(content, "require(")
		hasModuleExports := strings.Contains(content, "module.exports") || strings.Contains(content, "exports.")
		hasImport := importLineRe.MatchString(content)
		hasExport := exportLineRe.MatchString(content)

		switch {
		case (hasRequire || hasModuleExports) && !(hasImport || hasExport):
			analysis.CommonJSFiles = append(analysis.CommonJSFiles, path)
		case (hasImport || hasExport) && !(hasRequire || hasModuleExports):
			analysis.ESMFiles = append(analysis.ESMFiles, path)
		case hasRequire || hasModuleExports || hasImport || hasExport:
			analysis.MixedFiles = append(analysis.MixedFiles, path)
		}

		m.checkProblematic(content, path, analysis)

		if dynamics := dynamicRequireRe.FindAllString(content, -1); len(dynamics) > 0 {
			analysis.DynamicRequires = append(analysis.DynamicRequires, map[string]any{
				"file":     path,
				"patterns": dynamics,
			})
			analysis.unsafe[path] = true
		}

		for _, indicator := range esmNativeIndicators {
			if strings.Contains(content, indicator) {
				analysis.NativeModules = append(analysis.NativeModules, map[string]any{
					"file":    path,
					"pattern": indicator,
				})
				analysis.unsafe[path] = true
			}
		}

		// record relative require edges for ordering and cycle checks
		for _, match := range staticRequireRe.FindAllStringSubmatch(content, -1) {
			spec := match[1]
			if !strings.HasPrefix(spec, ".") {
				continue
			}
			if resolved := resolveRelativeRequire(path, spec); resolved != "" {
				analysis.deps[path] = append(analysis.deps[path], resolved)
			}
		}

		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	analysis.detectCycles()
	analysis.readEntryPoints(dir)
	return analysis, nil
}

func (m *ESMMigration) checkProblematic(content, path string, analysis *esmAnalysis) {
	var problems []string
	for _, check := range esmProblematicPatterns {
		if check.Re.MatchString(content) {
			problems = append(problems, check.Name)
		}
	}
	if len(problems) > 0 {
		analysis.Problematic = append(analysis.Problematic, map[string]any{
			"file":     path,
			"patterns": problems,
		})
		analysis.unsafe[path] = true
	}
}

// resolveRelativeRequire maps a relative specifier to an existing .js
// file, or "" when it cannot be resolved statically.
func resolveRelativeRequire(from, spec string) string {
	candidate := filepath.Join(filepath.Dir(from), spec)
	if filepath.Ext(candidate) == "" {
		candidate += ".js"
	}
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// detectCycles flags mutually-requiring file pairs and marks both ends
// unsafe for automatic migration.
func (a *esmAnalysis) detectCycles() {
	depSet := make(map[string]map[string]bool, len(a.deps))
	for file, targets := range a.deps {
		set := make(map[string]bool, len(targets))
		for _, t := range targets {
			set[t] = true
		}
		depSet[file] = set
	}
	seen := map[string]bool{}
	for file, targets := range depSet {
		for target := range targets {
			if !depSet[target][file] {
				continue
			}
			key := file + "\x00" + target
			if file > target {
				key = target + "\x00" + file
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			a.Circular = append(a.Circular, map[string]any{
				"file1": file,
				"file2": target,
			})
			a.unsafe[file] = true
			a.unsafe[target] = true
		}
	}
	sort.Slice(a.Circular, func(i, j int) bool {
		return a.Circular[i]["file1"].(string) < a.Circular[j]["file1"].(string)
	})
}

func (a *esmAnalysis) readEntryPoints(dir string) {
	raw, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return
	}
	var pkg struct {
		Main string          `json:"main"`
		Bin  json.RawMessage `json:"bin"`
	}
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return
	}
	if pkg.Main != "" {
		a.EntryPoints = append(a.EntryPoints, pkg.Main)
	}
	if len(pkg.Bin) > 0 {
		var binMap map[string]string
		var binStr string
		if err := json.Unmarshal(pkg.Bin, &binMap); err == nil {
			keys := make([]string, 0, len(binMap))
			for k := range binMap {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				a.EntryPoints = append(a.EntryPoints, binMap[k])
			}
		} else if err := json.Unmarshal(pkg.Bin, &binStr); err == nil {
			a.EntryPoints = append(a.EntryPoints, binStr)
		}
	}
}

// migrationOrder returns project files leaf-first: a file appears only
// after every file it requires. Cycle members are appended last in
// stable order since no safe position exists for them.
func migrationOrder(a *esmAnalysis) []string {
	files := make([]string, 0, len(a.CommonJSFiles)+len(a.ESMFiles)+len(a.MixedFiles))
	files = append(files, a.CommonJSFiles...)
	files = append(files, a.ESMFiles...)
	files = append(files, a.MixedFiles...)
	sort.Strings(files)

	inProject := make(map[string]bool, len(files))
	for _, f := range files {
		inProject[f] = true
	}

	// outstanding counts unresolved dependencies per file
	outstanding := make(map[string]int, len(files))
	dependents := map[string][]string{}
	for _, f := range files {
		for _, dep := range a.deps[f] {
			if !inProject[dep] || dep == f {
				continue
			}
			outstanding[f]++
			dependents[dep] = append(dependents[dep], f)
		}
	}

	queue := []string{}
	for _, f := range files {
		if outstanding[f] == 0 {
			queue = append(queue, f)
		}
	}

	order := make([]string, 0, len(files))
	placed := make(map[string]bool, len(files))
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		order = append(order, f)
		placed[f] = true
		for _, dependent := range dependents[f] {
			outstanding[dependent]--
			if outstanding[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	for _, f := range files {
		if !placed[f] {
			order = append(order, f)
		}
	}
	return order
}

func (m *ESMMigration) applyHybrid(ctx context.Context, dir string, a *esmAnalysis, order []string) map[string]any {
	migrated := []string{}
	wrappers := []string{}
	unchanged := []string{}
	errs := []map[string]any{}

	for _, path := range order {
		raw, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, map[string]any{"file": path, "error": err.Error()})
			continue
		}
		content := string(raw)

		if a.unsafe[path] {
			if err := os.WriteFile(path, []byte(addESMCompatibility(content)), 0o644); err != nil {
				errs = append(errs, map[string]any{"file": path, "error": err.Error()})
				continue
			}
			unchanged = append(unchanged, path)
			continue
		}

		esmPath := strings.TrimSuffix(path, ".js") + ".mjs"
		if err := os.WriteFile(esmPath, []byte(migrateToESM(content)), 0o644); err != nil {
			errs = append(errs, map[string]any{"file": path, "error": err.Error()})
			continue
		}
		if err := m.syntaxCheck(ctx, esmPath); err != nil {
			errs = append(errs, map[string]any{"file": esmPath, "error": err.Error()})
		}
		if err := os.WriteFile(path, []byte(cjsWrapper(filepath.Base(esmPath))), 0o644); err != nil {
			errs = append(errs, map[string]any{"file": path, "error": err.Error()})
			continue
		}
		migrated = append(migrated, esmPath)
		wrappers = append(wrappers, path)
	}

	if err := updatePackageJSONHybrid(dir); err != nil {
		errs = append(errs, map[string]any{"file": filepath.Join(dir, "package.json"), "error": err.Error()})
	}

	return map[string]any{
		"migrated_files":  migrated,
		"wrapper_files":   wrappers,
		"unchanged_files": unchanged,
		"errors":          errs,
	}
}

func (m *ESMMigration) applyFull(ctx context.Context, a *esmAnalysis) map[string]any {
	migrated := []string{}
	errs := []map[string]any{}

	for _, path := range a.CommonJSFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, map[string]any{"file": path, "error": err.Error()})
			continue
		}
		if err := os.WriteFile(path, []byte(migrateToESM(string(raw))), 0o644); err != nil {
			errs = append(errs, map[string]any{"file": path, "error": err.Error()})
			continue
		}
		migrated = append(migrated, path)
	}

	return map[string]any{
		"migrated_files": migrated,
		"errors":         errs,
	}
}

// syntaxCheck runs node --check against a rewritten module.
func (m *ESMMigration) syntaxCheck(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, m.nodePath, "--check", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("syntax check failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// migrateToESM rewrites CommonJS syntax to ESM.
func migrateToESM(content string) string {
	migrated := content

	migrated = constRequireRe.ReplaceAllString(migrated, "import $1 from '$2';")
	// the captured group keeps its original inner spacing, so the braces
	// supply none of their own
	migrated = destructureRequireRe.ReplaceAllString(migrated, "import {$1} from '$2';")
	migrated = bareRequireRe.ReplaceAllString(migrated, "import '$1';")

	migrated = moduleExportsBraceRe.ReplaceAllString(migrated, "export {")
	migrated = moduleExportsIdentRe.ReplaceAllString(migrated, "export default $1;")
	migrated = exportsPropRe.ReplaceAllString(migrated, "export const $1 = ")

	if strings.Contains(migrated, "__dirname") || strings.Contains(migrated, "__filename") {
		migrated = dirnameShim + migrated
	}

	// whatever require() calls survive are dynamic; make them async imports
	migrated = anyRequireRe.ReplaceAllString(migrated, "await import($1)")

	return migrated
}

// cjsWrapper keeps the original .js path working for require() callers
// while the implementation lives in the .mjs module.
func cjsWrapper(esmName string) string {
	return fmt.Sprintf(`// CommonJS wrapper for ESM module
// Auto-generated - Do not edit

module.exports = (async () => {
    const esmModule = await import('./%s');
    return esmModule.default ?? esmModule;
})();

// Synchronous callers get a promise; update them to await it.
module.exports.__isEsmWrapper = true;
`, esmName)
}

// addESMCompatibility prefixes a CommonJS file with a dynamic-import
// helper so it can load ESM modules without being rewritten itself.
func addESMCompatibility(content string) string {
	const header = `// ESM compatibility layer
'use strict';

if (typeof globalThis.__import === 'undefined') {
    globalThis.__import = (id) => {
        try {
            return Promise.resolve(require(id));
        } catch (err) {
            return import(id);
        }
    };
}

`
	return header + importCallRe.ReplaceAllString(content, "globalThis.__import($1)")
}

// updatePackageJSONHybrid merges dual-mode package configuration into
// the project's package.json.
func updatePackageJSONHybrid(dir string) error {
	path := filepath.Join(dir, "package.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var pkg map[string]any
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return err
	}

	pkg["type"] = "commonjs"
	pkg["exports"] = map[string]any{
		".": map[string]any{
			"import":  "./dist/esm/index.mjs",
			"require": "./dist/cjs/index.js",
			"default": "./dist/cjs/index.js",
		},
	}
	scripts, _ := pkg["scripts"].(map[string]any)
	if scripts == nil {
		scripts = map[string]any{}
	}
	scripts["build:cjs"] = "tsc --module commonjs --outDir dist/cjs"
	scripts["build:esm"] = "tsc --module es2022 --outDir dist/esm && renamer --find .js --replace .mjs 'dist/esm/**/*.js'"
	scripts["build"] = "npm run build:cjs && npm run build:esm"
	pkg["scripts"] = scripts

	devDeps, _ := pkg["devDependencies"].(map[string]any)
	if devDeps == nil {
		devDeps = map[string]any{}
	}
	devDeps["renamer"] = "^4.0.0"
	devDeps["@types/node"] = "^20.0.0"
	devDeps["typescript"] = "^5.0.0"
	pkg["devDependencies"] = devDeps

	out, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(out, '\n'), 0o644)
}

// compatibilityShims are helper modules a hybrid project can drop in.
func compatibilityShims() map[string]string {
	return map[string]string{
		"require_shim.mjs": `// Shim to provide require() in ESM modules
import { createRequire } from 'module';
import { fileURLToPath } from 'url';
import { dirname } from 'path';

const __filename = fileURLToPath(import.meta.url);
const __dirname = dirname(__filename);
const require = createRequire(import.meta.url);

export { require, __filename, __dirname };
`,
		"import_shim.js": `// Shim to provide import() in CommonJS modules
module.exports.dynamicImport = async function(specifier) {
    if (specifier.endsWith('.mjs')) {
        return await import(specifier);
    }

    try {
        return require(specifier);
    } catch (err) {
        return await import(specifier);
    }
};
`,
		"loader.mjs": `// Custom loader for hybrid CommonJS/ESM resolution
export async function resolve(specifier, context, defaultResolve) {
    return defaultResolve(specifier, context, defaultResolve);
}

export async function load(url, context, defaultLoad) {
    return defaultLoad(url, context, defaultLoad);
}
`,
	}
}

func migrationReport(result map[string]any, a *esmAnalysis) map[string]any {
	count := func(key string) int {
		if v, ok := result[key].([]string); ok {
			return len(v)
		}
		return 0
	}
	errCount := 0
	if v, ok := result["errors"].([]map[string]any); ok {
		errCount = len(v)
	}

	riskScore := len(a.Circular)*3 +
		len(a.Problematic)*2 +
		len(a.DynamicRequires)*2 +
		len(a.NativeModules)*3 +
		len(a.MixedFiles)
	risk := "low"
	switch {
	case riskScore > 20:
		risk = "high"
	case riskScore > 10:
		risk = "medium"
	}

	recommendations := []string{}
	if len(a.Circular) > 0 {
		recommendations = append(recommendations, "Refactor circular dependencies before full migration")
	}
	if len(a.DynamicRequires) > 0 {
		recommendations = append(recommendations, "Replace dynamic requires with static imports or async imports")
	}
	if len(a.NativeModules) > 0 {
		recommendations = append(recommendations, "Update native modules to support Node.js 20 and ESM")
	}
	if errCount > 0 {
		recommendations = append(recommendations, "Review and fix migration errors before proceeding")
	}
	recommendations = append(recommendations,
		"Test thoroughly in development environment",
		"Consider using TypeScript for better type safety during migration",
	)

	breaking := []string{}
	if len(a.NativeModules) > 0 {
		breaking = append(breaking, "Native modules may require recompilation")
	}
	if len(a.DynamicRequires) > 0 {
		breaking = append(breaking, "Dynamic requires converted to async imports - may affect synchronous code flow")
	}
	breaking = append(breaking,
		"__dirname and __filename require special handling in ESM",
		"JSON imports require explicit assert { type: 'json' }",
	)

	return map[string]any{
		"summary": map[string]any{
			"total_files": a.TotalFiles,
			"migrated":    count("migrated_files"),
			"wrapped":     count("wrapper_files"),
			"unchanged":   count("unchanged_files"),
			"errors":      errCount,
		},
		"risk_assessment":  risk,
		"recommendations":  recommendations,
		"breaking_changes": breaking,
	}
}
