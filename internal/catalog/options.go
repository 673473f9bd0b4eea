package catalog

import "github.com/toolbridge/odata-mcp/internal/constants"

// GenerationOptions is the policy half of the builder input. The zero
// value is NOT the default configuration; use DefaultGenerationOptions or
// pass nil to Build.
type GenerationOptions struct {
	GenerateCrudTools       bool
	GenerateQueryTools      bool
	GenerateNavigationTools bool

	// ExcludeBinaryFieldsByDefault enables default-select computation:
	// binary/stream properties (plus AlwaysExcludePropertyTypes) are left
	// out of the default projection attached to list/get tools.
	ExcludeBinaryFieldsByDefault bool
	AlwaysExcludePropertyTypes   []string

	// MaxToolCount caps the catalog length; zero or negative means no cap.
	MaxToolCount int

	ToolVersion     string
	IncludeExamples bool

	// IncludeEntityTypes is an allow-list of entity type names; nil means
	// every type is eligible. Types not listed produce no tools at all.
	IncludeEntityTypes []string

	// ReadOnly suppresses Create/Update/Delete generation entirely.
	ReadOnly bool

	// Naming selects the textual form of generated tokens. It never
	// changes which tools are generated.
	Naming NamingConvention
}

// DefaultGenerationOptions returns the documented defaults: all three
// generator families on, no binary exclusion, no cap, version "1.0.0",
// snake_case names.
func DefaultGenerationOptions() *GenerationOptions {
	return &GenerationOptions{
		GenerateCrudTools:       true,
		GenerateQueryTools:      true,
		GenerateNavigationTools: true,
		ToolVersion:             constants.DefaultToolVersion,
		Naming:                  SnakeCase,
	}
}

// normalized fills in defaults for a possibly-nil options value.
func (o *GenerationOptions) normalized() *GenerationOptions {
	if o == nil {
		return DefaultGenerationOptions()
	}
	out := *o
	if out.ToolVersion == "" {
		out.ToolVersion = constants.DefaultToolVersion
	}
	if out.Naming == "" {
		out.Naming = SnakeCase
	}
	return &out
}

func (o *GenerationOptions) includesEntityType(name string) bool {
	if o.IncludeEntityTypes == nil {
		return true
	}
	for _, t := range o.IncludeEntityTypes {
		if t == name {
			return true
		}
	}
	return false
}
