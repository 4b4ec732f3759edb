package tool

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrateToESM(t *testing.T) {
	in := `const fs = require('fs');
const { join, resolve } = require('path');
require('./side-effect');

exports.helper = function() {};
module.exports = mainThing;
`
	out := migrateToESM(in)

	for _, needle := range []string{
		"import fs from 'fs';",
		"import { join, resolve } from 'path';",
		"import './side-effect';",
		"export const helper = ",
		"export default mainThing;",
	} {
		if !strings.Contains(out, needle) {
			t.Errorf("migrated output missing %q\n%s", needle, out)
		}
	}
	if strings.Contains(out, "require(") {
		t.Errorf("require calls survived migration:\n%s", out)
	}
}

func TestMigrateToESMDirnameShim(t *testing.T) {
	out := migrateToESM("console.log(__dirname);\n")
	if !strings.Contains(out, "fileURLToPath(import.meta.url)") {
		t.Error("__dirname usage should pull in the fileURLToPath shim")
	}
	if !strings.HasPrefix(out, "import { fileURLToPath } from 'url';") {
		t.Error("shim should be prepended")
	}
}

func TestMigrateToESMDynamicRequire(t *testing.T) {
	out := migrateToESM("const mod = require(moduleName);\n")
	if !strings.Contains(out, "await import(moduleName)") {
		t.Errorf("dynamic require should become async import, got:\n%s", out)
	}
}

func TestMigrationOrderLeafFirst(t *testing.T) {
	dir := t.TempDir()
	// c depends on b depends on a
	a := writeFile(t, dir, "a.js", "module.exports = 1;\n")
	b := writeFile(t, dir, "b.js", "const a = require('./a');\nmodule.exports = a + 1;\n")
	c := writeFile(t, dir, "c.js", "const b = require('./b');\nmodule.exports = b + 1;\n")

	m := &ESMMigration{}
	analysis, err := m.analyzeProject(context.Background(), dir)
	if err != nil {
		t.Fatalf("analyzeProject: %v", err)
	}

	order := migrationOrder(analysis)
	pos := map[string]int{}
	for i, f := range order {
		pos[f] = i
	}
	if !(pos[a] < pos[b] && pos[b] < pos[c]) {
		t.Errorf("order %v, want a before b before c", order)
	}
}

func TestAnalyzeProjectClassification(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cjs.js", "const fs = require('fs');\nmodule.exports = {};\n")
	writeFile(t, dir, "esm.js", "import fs from 'fs';\nexport default {};\n")
	writeFile(t, dir, "mixed.js", "import fs from 'fs';\nmodule.exports = {};\n")
	writeFile(t, dir, "dynamic.js", "const mod = require(pickModule());\n")
	writeFile(t, dir, "package.json", `{"main": "cjs.js", "bin": {"run": "bin/run.js"}}`)

	m := &ESMMigration{}
	analysis, err := m.analyzeProject(context.Background(), dir)
	if err != nil {
		t.Fatalf("analyzeProject: %v", err)
	}

	if len(analysis.CommonJSFiles) != 2 {
		t.Errorf("CommonJSFiles = %v, want cjs.js and dynamic.js", analysis.CommonJSFiles)
	}
	if len(analysis.ESMFiles) != 1 {
		t.Errorf("ESMFiles = %v, want esm.js", analysis.ESMFiles)
	}
	if len(analysis.MixedFiles) != 1 {
		t.Errorf("MixedFiles = %v, want mixed.js", analysis.MixedFiles)
	}
	if len(analysis.DynamicRequires) != 1 {
		t.Errorf("DynamicRequires = %v, want dynamic.js", analysis.DynamicRequires)
	}
	if len(analysis.EntryPoints) != 2 {
		t.Errorf("EntryPoints = %v, want main and bin", analysis.EntryPoints)
	}
}

func TestAnalyzeProjectCircularDependencies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.js", "const y = require('./y');\nmodule.exports = { ref: 'y.js' };\n")
	writeFile(t, dir, "y.js", "const x = require('./x');\nmodule.exports = { ref: 'x.js' };\n")

	m := &ESMMigration{}
	analysis, err := m.analyzeProject(context.Background(), dir)
	if err != nil {
		t.Fatalf("analyzeProject: %v", err)
	}
	if len(analysis.Circular) != 1 {
		t.Fatalf("Circular = %v, want one pair", analysis.Circular)
	}
	if !analysis.unsafe[filepath.Join(dir, "x.js")] || !analysis.unsafe[filepath.Join(dir, "y.js")] {
		t.Error("cycle members should be marked unsafe for migration")
	}
}

func TestESMMigrationHybridInvoke(t *testing.T) {
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not installed")
	}

	dir := t.TempDir()
	writeFile(t, dir, "safe.js", "const path = require('path');\nmodule.exports = path.sep;\n")
	writeFile(t, dir, "unsafe.js", "const mod = require(dynamicName);\n")
	writeFile(t, dir, "package.json", `{"name": "fixture", "version": "1.0.0"}`)

	m, err := NewESMMigration()
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.Invoke(context.Background(), map[string]any{"project_path": dir})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if out["status"] != "success" || out["strategy"] != StrategyHybrid {
		t.Errorf("status/strategy = %v/%v", out["status"], out["strategy"])
	}

	result := out["migration_result"].(map[string]any)
	migrated := result["migrated_files"].([]string)
	if len(migrated) != 1 || !strings.HasSuffix(migrated[0], "safe.mjs") {
		t.Errorf("migrated_files = %v, want safe.mjs", migrated)
	}
	if unchanged := result["unchanged_files"].([]string); len(unchanged) != 1 {
		t.Errorf("unchanged_files = %v, want the dynamic-require file", unchanged)
	}

	// wrapper keeps the .js path require()-able
	wrapper, err := os.ReadFile(filepath.Join(dir, "safe.js"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(wrapper), "await import('./safe.mjs')") {
		t.Errorf("wrapper content:\n%s", wrapper)
	}

	// package.json gained dual-mode config
	pkg, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(pkg), `"exports"`) {
		t.Error("package.json missing dual-mode exports")
	}

	report := out["report"].(map[string]any)
	if _, ok := report["risk_assessment"].(string); !ok {
		t.Error("report missing risk_assessment")
	}
	shims := out["compatibility_shims"].(map[string]string)
	if _, ok := shims["require_shim.mjs"]; !ok {
		t.Error("compatibility_shims missing require_shim.mjs")
	}
}

func TestESMMigrationUnknownStrategy(t *testing.T) {
	m := &ESMMigration{}
	out, err := m.Invoke(context.Background(), map[string]any{
		"project_path": t.TempDir(),
		"strategy":     "yolo",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if _, ok := out["error"]; !ok {
		t.Error("unknown strategy should yield an error payload")
	}
}
