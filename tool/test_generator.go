package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
)

var functionDeclRe = regexp.MustCompile(`(?:async\s+)?function\s+(\w+)|(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?\([^)]*\)\s*=>`)

// jestSuiteTemplate renders a Jest skeleton suite covering each exported
// function found in the source file.
var jestSuiteTemplate = template.Must(template.New("jest").Parse(`// Test suite for {{.SourceName}}
// Generated by the modernization crew

const { {{.FunctionList}} } = require('../{{.Stem}}');

describe('{{.Stem}}', () => {
{{- range .Functions}}

    describe('{{.}}', () => {
        it('should execute without errors', async () => {
            expect({{.}}).toBeDefined();
            expect(typeof {{.}}).toBe('function');
        });

        it('should handle valid input', async () => {
            // TODO: call {{.}} with representative valid input
        });

        it('should handle invalid input', async () => {
            // TODO: assert {{.}} rejects or throws on invalid input
        });

        it('should handle edge cases', async () => {
            // TODO: add edge case tests
        });
    });
{{- end}}
});
`))

// TestGenerator produces a Jest test suite skeleton for a JavaScript
// source file by extracting its function declarations.
type TestGenerator struct{}

// NewTestGenerator creates a Test Generator.
func NewTestGenerator() *TestGenerator { return &TestGenerator{} }

// Name returns the canonical tool name.
func (g *TestGenerator) Name() string { return NameTestGenerator }

// Manifest describes the generator's invocation shape.
func (g *TestGenerator) Manifest() Manifest {
	return Manifest{
		Name:        NameTestGenerator,
		Description: "Generates unit and integration tests for modernized code",
		Inputs: map[string]FieldSpec{
			"source_file":    {Type: TypeString, Required: true, Description: "Source file to generate tests for"},
			"test_framework": {Type: TypeString, Description: "Test framework to use", Default: "jest"},
		},
		Outputs: map[string]FieldSpec{
			"test_file":         {Type: TypeString},
			"test_cases":        {Type: TypeArray},
			"coverage_estimate": {Type: TypeInteger},
			"test_code":         {Type: TypeString},
		},
	}
}

// Invoke parses function names out of the source file and renders the
// suite. Only Jest output is implemented; other frameworks fall back to
// the same skeleton shape.
func (g *TestGenerator) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	source, err := requiredString(NameTestGenerator, args, "source_file")
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(source)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{
				"error": fmt.Sprintf("Source file not found: %s", source),
			}, nil
		}
		return nil, fmt.Errorf("%s: reading %s: %w", NameTestGenerator, source, err)
	}

	var functions []string
	for _, match := range functionDeclRe.FindAllStringSubmatch(string(raw), -1) {
		name := match[1]
		if name == "" {
			name = match[2]
		}
		if name != "" {
			functions = append(functions, name)
		}
	}

	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	testFile := filepath.Join(filepath.Dir(source), "__tests__", stem+".test.js")

	var code strings.Builder
	renderErr := jestSuiteTemplate.Execute(&code, struct {
		SourceName   string
		Stem         string
		FunctionList string
		Functions    []string
	}{
		SourceName:   filepath.Base(source),
		Stem:         stem,
		FunctionList: strings.Join(functions, ", "),
		Functions:    functions,
	})
	if renderErr != nil {
		return nil, fmt.Errorf("%s: rendering suite: %w", NameTestGenerator, renderErr)
	}

	cases := make([]map[string]any, 0, len(functions))
	for _, fn := range functions {
		cases = append(cases, map[string]any{
			"function": fn,
			"tests":    []string{"basic", "valid_input", "invalid_input", "edge_cases"},
		})
	}

	coverage := len(functions) * 25
	if coverage > 100 {
		coverage = 100
	}

	return map[string]any{
		"test_file":         testFile,
		"test_cases":        cases,
		"coverage_estimate": coverage,
		"test_code":         code.String(),
	}, nil
}
