package catalog

// AccessRule is the scope/role requirement attached to one tool. Empty
// slices mean the tool is open to every caller.
type AccessRule struct {
	Scopes []string `json:"scopes,omitempty" mapstructure:"scopes"`
	Roles  []string `json:"roles,omitempty" mapstructure:"roles"`
}

// AccessPolicy supplies scope/role requirements for generated tools.
// Resolution precedence, most specific first:
//
//	entity type + operation  ("Category:create")
//	tool name                ("create_category")
//	operation                ("create")
//	global default
//
// A nil policy assigns no requirements to anything.
type AccessPolicy struct {
	// EntityOperations is keyed "<EntityType>:<operation>" with the
	// operation names used by the builder (list, get, create, update,
	// delete, navigate, add, remove).
	EntityOperations map[string]AccessRule `mapstructure:"entity_operations"`
	Tools            map[string]AccessRule `mapstructure:"tools"`
	Operations       map[string]AccessRule `mapstructure:"operations"`
	Default          AccessRule            `mapstructure:"default"`
}

// Resolve returns the access rule for one generated tool.
func (p *AccessPolicy) Resolve(entityType, operation, toolName string) AccessRule {
	if p == nil {
		return AccessRule{}
	}
	if rule, ok := p.EntityOperations[entityType+":"+operation]; ok {
		return rule
	}
	if rule, ok := p.Tools[toolName]; ok {
		return rule
	}
	if rule, ok := p.Operations[operation]; ok {
		return rule
	}
	return p.Default
}
