package tool

import (
	"context"
	"regexp"
	"strings"
)

// versionMigrations are regex rewrites applied in order when migrating
// source to Node.js 20. Replacement strings use Go's $n group syntax.
var versionMigrations = []struct {
	Re          *regexp.Regexp
	Replacement string
	Description string
}{
	{
		regexp.MustCompile(`(\w+)\((.*?),\s*function\s*\((?:err|error),\s*(\w+)\)\s*{`),
		"try {\n    const $3 = await $1($2);",
		"Convert callback to async/await",
	},
	{
		regexp.MustCompile(`\bvar\s+`),
		"let ",
		"Replace var with let",
	},
	{
		regexp.MustCompile(`new Buffer\(([^)]+)\)`),
		"Buffer.from($1)",
		"Update Buffer constructor",
	},
	{
		regexp.MustCompile(`fs\.exists\(([^,]+),`),
		"fs.access($1, fs.constants.F_OK,",
		"Replace deprecated fs.exists",
	},
	{
		regexp.MustCompile(`\.indexOf\(([^)]+)\)\s*!==?\s*-1`),
		".includes($1)",
		"Use includes() instead of indexOf()",
	},
}

// VersionMigrator rewrites legacy JavaScript patterns to their
// Node.js 20 equivalents.
type VersionMigrator struct{}

// NewVersionMigrator creates a Node Version Migrator.
func NewVersionMigrator() *VersionMigrator { return &VersionMigrator{} }

// Name returns the canonical tool name.
func (m *VersionMigrator) Name() string { return NameVersionMigrator }

// Manifest describes the migrator's invocation shape.
func (m *VersionMigrator) Manifest() Manifest {
	return Manifest{
		Name:        NameVersionMigrator,
		Description: "Automatically migrates code patterns to target Node.js version",
		Inputs: map[string]FieldSpec{
			"source_code":    {Type: TypeString, Required: true, Description: "Source code to migrate"},
			"target_version": {Type: TypeString, Description: "Target Node.js version", Default: "20"},
		},
		Outputs: map[string]FieldSpec{
			"migrated_code":     {Type: TypeString},
			"changes_made":      {Type: TypeArray},
			"migration_summary": {Type: TypeObject},
		},
	}
}

// Invoke applies the migration rewrites and reports what changed.
func (m *VersionMigrator) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	source, err := requiredString(NameVersionMigrator, args, "source_code")
	if err != nil {
		return nil, err
	}

	migrated := source
	changes := []map[string]any{}
	totalChanges := 0

	for _, migration := range versionMigrations {
		n := len(migration.Re.FindAllString(migrated, -1))
		if n == 0 {
			continue
		}
		migrated = migration.Re.ReplaceAllString(migrated, migration.Replacement)
		changes = append(changes, map[string]any{
			"type":        migration.Description,
			"occurrences": n,
		})
		totalChanges += n
	}

	// Node.js 20 ships fetch natively; flag HTTP client libraries it
	// can replace.
	if !strings.Contains(migrated, "fetch(") &&
		(strings.Contains(migrated, "axios") || strings.Contains(migrated, "request")) {
		changes = append(changes, map[string]any{
			"type":           "Consider using native fetch API",
			"recommendation": "Node.js 20 includes native fetch",
		})
	}

	return map[string]any{
		"migrated_code": migrated,
		"changes_made":  changes,
		"migration_summary": map[string]any{
			"total_changes": totalChanges,
			"change_types":  len(changes),
		},
	}, nil
}
