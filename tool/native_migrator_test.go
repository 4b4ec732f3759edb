package tool

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

const ffiFixture = `const ffi = require('ffi-napi');
const ref = require('ref-napi');

const user32 = ffi.Library('user32', {
    'ShowWindow': ['bool', ['int', 'int']],
    'GetForegroundWindow': ['int', []]
});

const kernel32 = ffi.Library('kernel32', {
    'OpenProcess': ['int', ['int', 'bool', 'int']]
});

const buf = ref.alloc(ref.types.int);
const value = ref.deref(buf);
`

func TestAnalyzeFFIUsage(t *testing.T) {
	analysis := analyzeFFIUsage(ffiFixture)

	if len(analysis.LibraryLoads) != 2 {
		t.Errorf("LibraryLoads = %v, want user32 and kernel32", analysis.LibraryLoads)
	}
	if len(analysis.FunctionBindings) != 3 {
		t.Errorf("FunctionBindings = %v, want 3 bound functions", analysis.FunctionBindings)
	}
	if len(analysis.StructDefs) != 1 || analysis.StructDefs[0] != "int" {
		t.Errorf("StructDefs = %v, want ref.types.int", analysis.StructDefs)
	}
	if len(analysis.PointerOps) != 1 {
		t.Errorf("PointerOps = %v, want deref", analysis.PointerOps)
	}

	user32 := analysis.WindowsAPIs["user32"]
	if len(user32) != 2 {
		t.Errorf("user32 APIs = %v, want ShowWindow and GetForegroundWindow", user32)
	}
	kernel32 := analysis.WindowsAPIs["kernel32"]
	if len(kernel32) != 1 || kernel32[0] != "OpenProcess" {
		t.Errorf("kernel32 APIs = %v, want OpenProcess only", kernel32)
	}

	// OpenProcess is a high risk API
	if analysis.Risk != "high" {
		t.Errorf("Risk = %q, want high with OpenProcess bound", analysis.Risk)
	}
}

func TestMigrateToKoffi(t *testing.T) {
	analysis := analyzeFFIUsage(ffiFixture)
	out := migrateToKoffi(ffiFixture, analysis)

	if !strings.Contains(out, "const koffi = require('koffi');") {
		t.Error("ffi-napi import not rewritten to koffi")
	}
	if strings.Contains(out, "require('ffi-napi')") {
		t.Error("ffi-napi import survived migration")
	}
	if !strings.Contains(out, "// ref-napi functionality integrated into koffi") {
		t.Error("ref-napi import not neutralized")
	}
	if !strings.Contains(out, "koffi.load('user32');") {
		t.Error("ffi.Library load not rewritten")
	}
	if !strings.Contains(out, "const koffiWrapper") {
		t.Error("error handling wrapper missing")
	}
}

func TestNativeMigratorNodeAPITarget(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "native.js", ffiFixture)

	m := &NativeMigrator{nodePath: "node"}
	out, err := m.Invoke(context.Background(), map[string]any{
		"file_path":       source,
		"target_solution": TargetNodeAPI,
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if out["status"] != "success" {
		t.Errorf("status = %v", out["status"])
	}
	migrated := out["migrated_code"].(map[string]any)
	js := migrated["js_wrapper"].(string)
	if !strings.Contains(js, "promisify(binding.ShowWindow)") {
		t.Errorf("js_wrapper missing ShowWindow binding:\n%s", js)
	}
	cpp := migrated["cpp_binding"].(string)
	if !strings.Contains(cpp, "NODE_API_MODULE(retrofit_native, Init)") {
		t.Error("cpp_binding missing module registration")
	}
	gyp := migrated["gyp_config"].(map[string]any)
	if _, ok := gyp["targets"]; !ok {
		t.Error("gyp_config missing targets")
	}
}

func TestNativeMigratorHybridTarget(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "native.js", ffiFixture)

	m := &NativeMigrator{nodePath: "node"}
	out, err := m.Invoke(context.Background(), map[string]any{
		"file_path":       source,
		"target_solution": TargetHybrid,
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	migrated := out["migrated_code"].(map[string]any)
	if !strings.Contains(migrated["hybrid_wrapper"].(string), "class NativeAPIWrapper") {
		t.Error("hybrid_wrapper missing NativeAPIWrapper")
	}
	if !strings.Contains(migrated["pure_js_alternatives"].(string), "enumProcesses") {
		t.Error("pure_js_alternatives missing enumProcesses")
	}

	tests := out["test_cases"].([]string)
	if len(tests) == 0 {
		t.Fatal("test_cases empty")
	}
	if !strings.Contains(tests[0], "describe(") {
		t.Errorf("test case is not a Jest suite:\n%s", tests[0])
	}

	fallback := out["fallback_strategy"].(map[string]any)
	critical := fallback["critical_functions"].([]string)
	if len(critical) != 1 || critical[0] != "OpenProcess" {
		t.Errorf("critical_functions = %v, want OpenProcess", critical)
	}
}

func TestNativeMigratorUnknownTarget(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "native.js", ffiFixture)

	m := &NativeMigrator{nodePath: "node"}
	out, err := m.Invoke(context.Background(), map[string]any{
		"file_path":       source,
		"target_solution": "wasm",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if _, ok := out["error"]; !ok {
		t.Error("unknown target should yield an error payload")
	}
}

func TestNativeMigratorMissingFile(t *testing.T) {
	m := &NativeMigrator{nodePath: "node"}
	out, err := m.Invoke(context.Background(), map[string]any{
		"file_path": filepath.Join(t.TempDir(), "gone.js"),
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if _, ok := out["error"]; !ok {
		t.Error("missing file should yield an error payload")
	}
}
