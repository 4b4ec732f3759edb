package tool

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Migration targets accepted by the native module migrator.
const (
	TargetKoffi   = "koffi"
	TargetNodeAPI = "node-api"
	TargetHybrid  = "hybrid"
)

var (
	ffiLibraryRe   = regexp.MustCompile(`ffi\.Library\(['"](.+?)['"]`)
	refTypeRe      = regexp.MustCompile(`ref\.types\.(\w+)`)
	ffiBindingRe   = regexp.MustCompile(`['"]([A-Za-z_]\w*)['"]:\s*\[[^\]]*\]`)
	ffiCallbackRe  = regexp.MustCompile(`(?s)ffi\.Callback\((.*?)\)`)
	refAllocRe     = regexp.MustCompile(`ref\.alloc\(([^)]*)\)`)
	refPointerOpRe = regexp.MustCompile(`ref\.(deref|readPointer|writePointer)`)
	ffiImportRe    = regexp.MustCompile(`const ffi = require\(['"]ffi-napi['"]\);?`)
	refImportRe    = regexp.MustCompile(`const ref = require\(['"]ref-napi['"]\);?`)
)

// windowsAPIFunctions maps the DLLs the legacy watchdog binds against
// to the API calls worth checking for.
var windowsAPIFunctions = map[string][]string{
	"user32":   {"ShowWindow", "SetWindowPos", "GetForegroundWindow"},
	"kernel32": {"GetCurrentProcess", "OpenProcess", "ReadProcessMemory"},
	"psapi":    {"EnumProcesses", "GetModuleFileNameEx"},
	"advapi32": {"OpenProcessToken", "GetTokenInformation"},
}

var highRiskAPIs = map[string]bool{
	"ReadProcessMemory":  true,
	"WriteProcessMemory": true,
	"OpenProcess":        true,
}

// ffiAnalysis captures how a file uses ffi-napi/ref-napi.
type ffiAnalysis struct {
	LibraryLoads     []string
	StructDefs       []string
	FunctionBindings []string
	Callbacks        []string
	BufferUsage      []string
	PointerOps       []string
	WindowsAPIs      map[string][]string
	Complexity       string
	Risk             string
}

func (a *ffiAnalysis) payload() map[string]any {
	return map[string]any{
		"patterns": map[string]any{
			"library_loads":      a.LibraryLoads,
			"struct_definitions": a.StructDefs,
			"function_bindings":  a.FunctionBindings,
			"callbacks":          a.Callbacks,
			"buffer_usage":       a.BufferUsage,
			"pointer_operations": a.PointerOps,
		},
		"windows_apis": a.WindowsAPIs,
		"complexity":   a.Complexity,
		"risk_level":   a.Risk,
	}
}

// NativeMigrator rewrites ffi-napi usage to koffi, a Node-API binding,
// or a hybrid child_process fallback, with a compatibility layer for
// gradual rollout.
type NativeMigrator struct {
	nodePath string
}

// NewNativeMigrator creates the Native Module Migrator. Like the ESM
// tool it needs a node executable to syntax-check generated code.
func NewNativeMigrator() (*NativeMigrator, error) {
	nodePath, err := exec.LookPath("node")
	if err != nil {
		return nil, fmt.Errorf("node executable not found in PATH")
	}
	return &NativeMigrator{nodePath: nodePath}, nil
}

// Name returns the canonical tool name.
func (m *NativeMigrator) Name() string { return NameNativeMigrator }

// Manifest describes the migrator's invocation shape.
func (m *NativeMigrator) Manifest() Manifest {
	return Manifest{
		Name:        NameNativeMigrator,
		Description: "Migrates ffi-napi code to modern alternatives with fallback strategies",
		Inputs: map[string]FieldSpec{
			"file_path":       {Type: TypeString, Required: true, Description: "Path to file using ffi-napi"},
			"target_solution": {Type: TypeString, Description: "Migration target: koffi, node-api, or hybrid", Default: TargetKoffi},
		},
		Outputs: map[string]FieldSpec{
			"status":              {Type: TypeString},
			"original_file":       {Type: TypeString},
			"analysis":            {Type: TypeObject},
			"migrated_code":       {Type: TypeObject},
			"test_cases":          {Type: TypeArray},
			"compatibility_notes": {Type: TypeArray},
			"fallback_strategy":   {Type: TypeObject},
		},
	}
}

// Invoke analyzes the file's ffi usage and produces the migration for
// the chosen target.
func (m *NativeMigrator) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, err := requiredString(NameNativeMigrator, args, "file_path")
	if err != nil {
		return nil, err
	}
	target := stringArg(args, "target_solution", TargetKoffi)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{
				"error": fmt.Sprintf("File not found: %s", path),
			}, nil
		}
		return nil, fmt.Errorf("%s: reading %s: %w", NameNativeMigrator, path, err)
	}
	content := string(raw)

	analysis := analyzeFFIUsage(content)

	var migrated any
	switch target {
	case TargetKoffi:
		code := compatibilityLayer() + "\n\n" + migrateToKoffi(content, analysis)
		if err := m.syntaxCheck(ctx, code); err != nil {
			// Generated code that fails node --check is still returned;
			// the caller decides whether to apply it.
			migrated = map[string]any{"code": code, "syntax_check": err.Error()}
		} else {
			migrated = code
		}
	case TargetNodeAPI:
		migrated = nodeAPIMigration(analysis)
	case TargetHybrid:
		migrated = hybridMigration(analysis)
	default:
		return map[string]any{
			"error": fmt.Sprintf("Unknown target solution: %s", target),
		}, nil
	}

	return map[string]any{
		"status":              "success",
		"original_file":       path,
		"analysis":            analysis.payload(),
		"migrated_code":       migrated,
		"test_cases":          migrationTests(analysis),
		"compatibility_notes": compatibilityNotes(analysis),
		"fallback_strategy":   fallbackStrategy(analysis),
	}, nil
}

// syntaxCheck writes the generated code to a temp file and runs
// node --check on it.
func (m *NativeMigrator) syntaxCheck(ctx context.Context, code string) error {
	f, err := os.CreateTemp("", "retrofit-native-*.js")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		return err
	}
	f.Close()

	cmd := exec.CommandContext(ctx, m.nodePath, "--check", f.Name())
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("syntax check failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

func analyzeFFIUsage(content string) *ffiAnalysis {
	analysis := &ffiAnalysis{
		LibraryLoads:     captureGroup(ffiLibraryRe, content),
		StructDefs:       captureGroup(refTypeRe, content),
		FunctionBindings: captureGroup(ffiBindingRe, content),
		Callbacks:        captureGroup(ffiCallbackRe, content),
		BufferUsage:      captureGroup(refAllocRe, content),
		PointerOps:       captureGroup(refPointerOpRe, content),
		WindowsAPIs:      map[string][]string{},
	}

	for _, lib := range analysis.LibraryLoads {
		stem := strings.ToLower(strings.TrimSuffix(filepath.Base(lib), filepath.Ext(lib)))
		known, ok := windowsAPIFunctions[stem]
		if !ok {
			continue
		}
		var used []string
		for _, api := range known {
			if strings.Contains(content, api) {
				used = append(used, api)
			}
		}
		if len(used) > 0 {
			analysis.WindowsAPIs[stem] = used
		}
	}

	analysis.Complexity = assessComplexity(analysis)
	analysis.Risk = assessRisk(analysis)
	return analysis
}

func captureGroup(re *regexp.Regexp, content string) []string {
	out := []string{}
	for _, match := range re.FindAllStringSubmatch(content, -1) {
		out = append(out, match[1])
	}
	return out
}

// assessComplexity weighs pattern counts; callbacks dominate because
// koffi registers them differently.
func assessComplexity(a *ffiAnalysis) string {
	score := len(a.Callbacks)*3 +
		len(a.StructDefs)*2 +
		len(a.PointerOps)*2 +
		len(a.FunctionBindings)
	switch {
	case score > 20:
		return "high"
	case score > 10:
		return "medium"
	}
	return "low"
}

func assessRisk(a *ffiAnalysis) string {
	for _, functions := range a.WindowsAPIs {
		for _, fn := range functions {
			if highRiskAPIs[fn] {
				return "high"
			}
		}
	}
	if len(a.Callbacks) > 2 {
		return "medium"
	}
	return "low"
}

// migrateToKoffi rewrites ffi-napi imports and library loads to koffi.
func migrateToKoffi(content string, a *ffiAnalysis) string {
	migrated := content

	migrated = ffiImportRe.ReplaceAllString(migrated, "const koffi = require('koffi');")
	migrated = refImportRe.ReplaceAllString(migrated, "// ref-napi functionality integrated into koffi")

	for _, lib := range a.LibraryLoads {
		old := fmt.Sprintf("ffi.Library('%s',", lib)
		replacement := fmt.Sprintf("koffi.load('%s');\n// Define functions after loading library", lib)
		migrated = strings.ReplaceAll(migrated, old, replacement)
	}

	const errorWrapper = `
// Koffi compatibility wrapper
const koffiWrapper = {
    call: async (func, ...args) => {
        try {
            return await func(...args);
        } catch (error) {
            console.error('Koffi call failed:', error);
            if (global.fallbackImplementation && global.fallbackImplementation[func.name]) {
                return global.fallbackImplementation[func.name](...args);
            }
            throw error;
        }
    }
};
`
	return errorWrapper + "\n" + migrated
}

// nodeAPIMigration emits a Node-API binding skeleton: JS wrapper, C++
// stub, and binding.gyp configuration.
func nodeAPIMigration(a *ffiAnalysis) map[string]any {
	functions := sortedAPIFunctions(a)

	var jsBindings strings.Builder
	for _, fn := range functions {
		fmt.Fprintf(&jsBindings, "    %s: promisify(binding.%s),\n", fn, fn)
	}

	jsWrapper := fmt.Sprintf(`// Node-API wrapper for native functionality
const { promisify } = require('util');
const binding = require('./build/Release/retrofit_native');

const nativeAPI = {
%s};

module.exports = nativeAPI;
`, jsBindings.String())

	var cpp strings.Builder
	cpp.WriteString("#include <napi.h>\n\n")
	for _, fn := range functions {
		fmt.Fprintf(&cpp, "Napi::Value %s(const Napi::CallbackInfo& info) {\n    // TODO: port the ffi-napi binding for %s\n    return info.Env().Undefined();\n}\n\n", fn, fn)
	}
	cpp.WriteString("Napi::Object Init(Napi::Env env, Napi::Object exports) {\n")
	for _, fn := range functions {
		fmt.Fprintf(&cpp, "    exports.Set(\"%s\", Napi::Function::New(env, %s));\n", fn, fn)
	}
	cpp.WriteString("    return exports;\n}\n\nNODE_API_MODULE(retrofit_native, Init)\n")

	return map[string]any{
		"js_wrapper":  jsWrapper,
		"cpp_binding": cpp.String(),
		"gyp_config": map[string]any{
			"targets": []map[string]any{{
				"target_name":  "retrofit_native",
				"sources":      []string{"src/native/binding.cc"},
				"include_dirs": []string{"<!@(node -p \"require('node-addon-api').include\")"},
				"defines":      []string{"NAPI_DISABLE_CPP_EXCEPTIONS"},
			}},
		},
	}
}

// hybridMigration emits a runtime-switching wrapper: koffi when
// available, child_process PowerShell calls otherwise, plus pure JS
// alternatives for operations that need no native code at all.
func hybridMigration(a *ffiAnalysis) map[string]any {
	const wrapper = `// Hybrid solution using child_process for simple Windows API calls
const { execSync } = require('child_process');

class NativeAPIWrapper {
    constructor() {
        this.useKoffi = false;

        try {
            this.koffi = require('koffi');
            this.useKoffi = true;
        } catch (error) {
            console.log('Koffi not available, using child_process fallback');
        }
    }

    async callWindowsAPI(dll, func, signature, args) {
        if (this.useKoffi) {
            const lib = this.koffi.load(dll + '.dll');
            return lib.func(func, ...signature)(...args);
        }
        return this._callViaChildProcess(dll, func, signature, args);
    }

    _callViaChildProcess(dll, func, signature, args) {
        const psCommand = 'Add-Type @"\n' +
            'using System;\n' +
            'using System.Runtime.InteropServices;\n' +
            'public class Win32 {\n' +
            '    [DllImport("' + dll + '.dll")]\n' +
            '    public static extern ' + signature.join(' ') + ';\n' +
            '}\n"@\n' +
            '[Win32]::' + func + '(' + args.join(',') + ')';

        const result = execSync('powershell -Command "' + psCommand + '"', {
            encoding: 'utf8',
            windowsHide: true
        });
        return result.trim();
    }
}

module.exports = NativeAPIWrapper;
`

	const pureJS = `// Pure JavaScript alternatives for common native operations
const pureJSAlternatives = {
    async enumProcesses() {
        const { exec } = require('child_process');
        const { promisify } = require('util');
        const execAsync = promisify(exec);

        if (process.platform === 'win32') {
            const { stdout } = await execAsync('wmic process get ProcessId,Name,ExecutablePath /FORMAT:CSV');
            return this._parseWmicOutput(stdout);
        }
        return [];
    },

    manipulateWindow(action) {
        const { BrowserWindow } = require('electron');
        const win = BrowserWindow.getFocusedWindow();

        if (win) {
            switch (action) {
                case 'show': win.show(); break;
                case 'hide': win.hide(); break;
                case 'minimize': win.minimize(); break;
                case 'maximize': win.maximize(); break;
            }
        }
    },

    _parseWmicOutput(output) {
        const lines = output.split('\n').filter(line => line.trim());
        const processes = [];

        for (let i = 2; i < lines.length; i++) {
            const parts = lines[i].split(',');
            if (parts.length >= 3) {
                processes.push({
                    pid: parseInt(parts[2]),
                    name: parts[1],
                    path: parts[0]
                });
            }
        }

        return processes;
    }
};

module.exports = pureJSAlternatives;
`

	notes := fmt.Sprintf(
		"Hybrid migration covers %d library loads and %d bound functions; complexity %s, risk %s",
		len(a.LibraryLoads), len(a.FunctionBindings), a.Complexity, a.Risk)

	return map[string]any{
		"hybrid_wrapper":       wrapper,
		"pure_js_alternatives": pureJS,
		"migration_notes":      notes,
	}
}

// compatibilityLayer lets migrated code fall back to ffi-napi via the
// USE_LEGACY_FFI environment flag during rollout.
func compatibilityLayer() string {
	return `// Compatibility layer for gradual migration
const compatibilityLayer = {
    isLegacyMode: process.env.USE_LEGACY_FFI === 'true',

    async loadLibrary(name, functions) {
        if (this.isLegacyMode) {
            const ffi = require('ffi-napi');
            return ffi.Library(name, functions);
        }
        return this.loadModernLibrary(name, functions);
    },

    loadModernLibrary(name, functions) {
        const lib = require('koffi').load(name);
        const wrappedFunctions = {};

        for (const [funcName, signature] of Object.entries(functions)) {
            wrappedFunctions[funcName] = lib.func(funcName, ...signature);
        }

        return wrappedFunctions;
    }
};

module.exports = compatibilityLayer;
`
}

// migrationTests emits a Jest parity suite per identified Windows API call.
func migrationTests(a *ffiAnalysis) []string {
	testParams := map[string]string{
		"ShowWindow":          "[handle, SW_SHOW]",
		"GetForegroundWindow": "[]",
		"OpenProcess":         "[PROCESS_ALL_ACCESS, false, pid]",
		"EnumProcesses":       "[buffer, size, bytesReturned]",
	}

	tests := []string{}
	libs := make([]string, 0, len(a.WindowsAPIs))
	for lib := range a.WindowsAPIs {
		libs = append(libs, lib)
	}
	sort.Strings(libs)

	for _, lib := range libs {
		for _, fn := range a.WindowsAPIs[lib] {
			params := testParams[fn]
			if params == "" {
				params = "[]"
			}
			tests = append(tests, fmt.Sprintf(`describe('%[1]s.%[2]s migration', () => {
    it('should maintain compatibility with original behavior', async () => {
        const original = require('./legacy/%[1]s');
        const migrated = require('./migrated/%[1]s');

        const testParams = %[3]s;

        const originalResult = await original.%[2]s(...testParams);
        const migratedResult = await migrated.%[2]s(...testParams);

        expect(migratedResult).toEqual(originalResult);
    });

    it('should handle errors gracefully', async () => {
        const migrated = require('./migrated/%[1]s');

        await expect(migrated.%[2]s(null)).rejects.toThrow();
    });
});
`, lib, fn, params))
		}
	}
	return tests
}

func compatibilityNotes(a *ffiAnalysis) []string {
	notes := []string{}
	if len(a.Callbacks) > 0 {
		notes = append(notes, "ffi.Callback handlers must be re-registered with koffi.register")
	}
	if len(a.StructDefs) > 0 {
		notes = append(notes, "ref-napi struct types map to koffi.struct definitions")
	}
	if len(a.PointerOps) > 0 {
		notes = append(notes, "Pointer dereferencing uses koffi.decode instead of ref.deref")
	}
	if len(a.BufferUsage) > 0 {
		notes = append(notes, "ref.alloc buffers become plain Buffer allocations with explicit sizes")
	}
	notes = append(notes, "Set USE_LEGACY_FFI=true to route through ffi-napi during rollout")
	return notes
}

func fallbackStrategy(a *ffiAnalysis) map[string]any {
	critical := []string{}
	for _, functions := range a.WindowsAPIs {
		for _, fn := range functions {
			if highRiskAPIs[fn] {
				critical = append(critical, fn)
			}
		}
	}
	sort.Strings(critical)
	return map[string]any{
		"strategy":           "Use child_process PowerShell wrapper for critical functions",
		"environment_flag":   "USE_LEGACY_FFI",
		"critical_functions": critical,
	}
}

func sortedAPIFunctions(a *ffiAnalysis) []string {
	var functions []string
	for _, fns := range a.WindowsAPIs {
		functions = append(functions, fns...)
	}
	sort.Strings(functions)
	return functions
}
