package tool

// Canonical display names for the built-in tools. These are the exact
// strings under which each factory is registered; lookups through the
// registry tolerate whitespace and Unicode variation around them.
const (
	NameCodeAnalyzer       = "Node Code Analyzer"
	NameDependencyAnalyzer = "Dependency Analyzer"
	NameWatchdogAnalyzer   = "Watchdog Service Analyzer"
	NameSecurityScanner    = "Security Scanner"
	NameTestGenerator      = "Test Generator"
	NameVersionMigrator    = "Node Version Migrator"
	NameESMMigration       = "ESM Migration Tool"
	NameNativeMigrator     = "Native Module Migrator"
)

// Field types used in manifests.
const (
	TypeString  = "string"
	TypeBool    = "boolean"
	TypeInteger = "integer"
	TypeObject  = "object"
	TypeArray   = "array"
)

// FieldSpec describes a single input or output field of a tool.
type FieldSpec struct {
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Manifest describes a tool: what it does and the shape of its
// invocation. Used by the CLI "tools describe" surface and by crew
// validation to report what a tool expects.
type Manifest struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Inputs      map[string]FieldSpec `json:"inputs,omitempty"`
	Outputs     map[string]FieldSpec `json:"outputs,omitempty"`
}

// Described is implemented by tools that publish a manifest.
// All built-in tools do; the placeholder substituted for an unavailable
// tool publishes a minimal one.
type Described interface {
	Manifest() Manifest
}
