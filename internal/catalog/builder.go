package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/toolbridge/odata-mcp/internal/constants"
	"github.com/toolbridge/odata-mcp/internal/models"
)

// builtinExcludedTypes are always candidates for default-select exclusion
// when ExcludeBinaryFieldsByDefault is on. Matched case-insensitively.
var builtinExcludedTypes = []string{"Edm.Binary", "Edm.Stream", "Binary", "Stream"}

// Build turns an entity model and generation policy into the ordered tool
// catalog. It never fails: a nil model produces an empty catalog and nil
// options fall back to defaults. Identical inputs always yield an
// identical catalog, content and order; downstream caching depends on
// this.
//
// Query and CRUD tools are emitted first (entity sets in sorted name
// order), navigation tools after them, so that a MaxToolCount cap drops
// navigation tools before anything else.
func Build(model *models.EntityModel, opts *GenerationOptions, policy *AccessPolicy) []*Tool {
	opts = opts.normalized()
	tools := make([]*Tool, 0)
	if model == nil {
		return tools
	}

	setNames := make([]string, 0, len(model.EntitySets))
	for name := range model.EntitySets {
		setNames = append(setNames, name)
	}
	sort.Strings(setNames)

	b := &builder{
		model:          model,
		opts:           opts,
		policy:         policy,
		defaultSelects: make(map[string][]string),
		seen:           make(map[string]struct{}),
	}

	// Tier 1: query + CRUD.
	for _, name := range setNames {
		set := model.EntitySets[name]
		et := model.TypeOf(set)
		if et == nil || !opts.includesEntityType(et.Name) {
			continue
		}
		if opts.GenerateQueryTools {
			b.add(b.listTool(set, et))
		}
		if opts.GenerateCrudTools {
			b.add(b.getTool(set, et))
			if !opts.ReadOnly {
				if set.Creatable {
					b.add(b.createTool(set, et))
				}
				if set.Updatable {
					b.add(b.updateTool(set, et))
				}
				if set.Deletable {
					b.add(b.deleteTool(set, et))
				}
			}
		}
	}

	// Tier 2: navigation.
	if opts.GenerateNavigationTools {
		for _, name := range setNames {
			set := model.EntitySets[name]
			et := model.TypeOf(set)
			if et == nil || !opts.includesEntityType(et.Name) {
				continue
			}
			for _, nav := range et.NavigationProps {
				b.add(b.navigationTool(set, et, nav))
				if nav.Collection && !opts.ReadOnly {
					b.add(b.addRefTool(set, et, nav))
					b.add(b.removeRefTool(set, et, nav))
				}
			}
		}
	}

	tools = append(tools, b.tools...)
	if opts.MaxToolCount > 0 && len(tools) > opts.MaxToolCount {
		tools = tools[:opts.MaxToolCount]
	}
	return tools
}

// BuildDefaultSelectForEntityType computes the default projection for an
// entity type: all property names minus those whose declared type is in
// the exclusion set. Returns nil when exclusion is disabled or when no
// property matched, since a projection listing every property would be
// redundant.
func BuildDefaultSelectForEntityType(et *models.EntityType, opts *GenerationOptions) []string {
	opts = opts.normalized()
	if !opts.ExcludeBinaryFieldsByDefault || et == nil {
		return nil
	}

	excluded := func(propType string) bool {
		for _, t := range builtinExcludedTypes {
			if strings.EqualFold(propType, t) {
				return true
			}
		}
		for _, t := range opts.AlwaysExcludePropertyTypes {
			if strings.EqualFold(propType, t) {
				return true
			}
		}
		return false
	}

	var selected []string
	anyExcluded := false
	for _, prop := range et.Properties {
		if excluded(prop.Type) {
			anyExcluded = true
			continue
		}
		selected = append(selected, prop.Name)
	}
	if !anyExcluded {
		return nil
	}
	return selected
}

type builder struct {
	model  *models.EntityModel
	opts   *GenerationOptions
	policy *AccessPolicy

	tools []*Tool
	// defaultSelects caches the projection per entity type name so list_
	// and get_ tools carry the identical value.
	defaultSelects map[string][]string
	seen           map[string]struct{}
}

// add appends a tool, enforcing catalog-wide name uniqueness.
func (b *builder) add(t *Tool) {
	if t == nil {
		return
	}
	if _, dup := b.seen[t.Name]; dup {
		return
	}
	b.seen[t.Name] = struct{}{}
	b.tools = append(b.tools, t)
}

func (b *builder) defaultSelect(et *models.EntityType) []string {
	if sel, ok := b.defaultSelects[et.Name]; ok {
		return sel
	}
	sel := BuildDefaultSelectForEntityType(et, b.opts)
	b.defaultSelects[et.Name] = sel
	return sel
}

// metadata builds the per-tool metadata map. withSelect attaches the
// cached default projection (list/get tools only).
func (b *builder) metadata(et *models.EntityType, withSelect bool) map[string]interface{} {
	meta := map[string]interface{}{
		MetaEntityType: et.Name,
		MetaVersion:    b.opts.ToolVersion,
	}
	if withSelect {
		if sel := b.defaultSelect(et); sel != nil {
			meta[MetaDefaultSelect] = sel
		}
	}
	return meta
}

func (b *builder) navMetadata(et *models.EntityType, nav *models.NavigationProperty) map[string]interface{} {
	meta := b.metadata(et, false)
	meta[MetaNavProperty] = nav.Name
	return meta
}

func (b *builder) rule(et *models.EntityType, operation, toolName string) AccessRule {
	return b.policy.Resolve(et.Name, operation, toolName)
}

func (b *builder) listTool(set *models.EntitySet, et *models.EntityType) *Tool {
	name := b.opts.Naming.Render(constants.OpList, set.Name)
	rule := b.rule(et, constants.OpList, name)
	t := &Tool{
		Name:             name,
		Description:      fmt.Sprintf("List/filter %s entities with OData query options", set.Name),
		Category:         CategoryQuery,
		OperationType:    OperationRead,
		TargetEntitySet:  set.Name,
		TargetEntityType: et.Name,
		InputSchema:      listInputSchema(),
		OutputSchema:     collectionOutputSchema(et.Name),
		RequiredScopes:   rule.Scopes,
		RequiredRoles:    rule.Roles,
		Metadata:         b.metadata(et, true),
		SupportsBatch:    true,
	}
	if b.opts.IncludeExamples {
		t.Examples = []Example{{
			Description: fmt.Sprintf("First page of %s", set.Name),
			Arguments:   map[string]interface{}{constants.QueryTop: 10},
		}}
	}
	return t
}

func (b *builder) getTool(set *models.EntitySet, et *models.EntityType) *Tool {
	name := b.opts.Naming.Render(constants.OpGet, et.Name)
	rule := b.rule(et, constants.OpGet, name)
	t := &Tool{
		Name:             name,
		Description:      fmt.Sprintf("Get a single %s entity by key", et.Name),
		Category:         CategoryCrud,
		OperationType:    OperationRead,
		TargetEntitySet:  set.Name,
		TargetEntityType: et.Name,
		InputSchema:      getInputSchema(et),
		OutputSchema:     entityOutputSchema(et.Name),
		RequiredScopes:   rule.Scopes,
		RequiredRoles:    rule.Roles,
		Metadata:         b.metadata(et, true),
	}
	if b.opts.IncludeExamples {
		t.Examples = []Example{{
			Description: fmt.Sprintf("Fetch one %s by key", et.Name),
			Arguments:   exampleKeyArgs(et),
		}}
	}
	return t
}

func (b *builder) createTool(set *models.EntitySet, et *models.EntityType) *Tool {
	name := b.opts.Naming.Render(constants.OpCreate, et.Name)
	rule := b.rule(et, constants.OpCreate, name)
	return &Tool{
		Name:             name,
		Description:      fmt.Sprintf("Create a new %s entity", et.Name),
		Category:         CategoryCrud,
		OperationType:    OperationCreate,
		TargetEntitySet:  set.Name,
		TargetEntityType: et.Name,
		InputSchema:      createInputSchema(et),
		RequiredScopes:   rule.Scopes,
		RequiredRoles:    rule.Roles,
		Metadata:         b.metadata(et, false),
	}
}

func (b *builder) updateTool(set *models.EntitySet, et *models.EntityType) *Tool {
	name := b.opts.Naming.Render(constants.OpUpdate, et.Name)
	rule := b.rule(et, constants.OpUpdate, name)
	return &Tool{
		Name:             name,
		Description:      fmt.Sprintf("Update an existing %s entity", et.Name),
		Category:         CategoryCrud,
		OperationType:    OperationUpdate,
		TargetEntitySet:  set.Name,
		TargetEntityType: et.Name,
		InputSchema:      updateInputSchema(et),
		RequiredScopes:   rule.Scopes,
		RequiredRoles:    rule.Roles,
		Metadata:         b.metadata(et, false),
	}
}

func (b *builder) deleteTool(set *models.EntitySet, et *models.EntityType) *Tool {
	name := b.opts.Naming.Render(constants.OpDelete, et.Name)
	rule := b.rule(et, constants.OpDelete, name)
	return &Tool{
		Name:             name,
		Description:      fmt.Sprintf("Delete a %s entity", et.Name),
		Category:         CategoryCrud,
		OperationType:    OperationDelete,
		TargetEntitySet:  set.Name,
		TargetEntityType: et.Name,
		InputSchema:      deleteInputSchema(et),
		RequiredScopes:   rule.Scopes,
		RequiredRoles:    rule.Roles,
		Metadata:         b.metadata(et, false),
	}
}

func (b *builder) navigationTool(set *models.EntitySet, et *models.EntityType, nav *models.NavigationProperty) *Tool {
	name := b.opts.Naming.Render(constants.OpGet, et.Name, nav.Name)
	rule := b.rule(et, constants.OpNavigate, name)
	t := &Tool{
		Name:             name,
		Description:      fmt.Sprintf("Get %s related to a %s entity", nav.Name, et.Name),
		Category:         CategoryNavigation,
		OperationType:    OperationRead,
		TargetEntitySet:  set.Name,
		TargetEntityType: et.Name,
		InputSchema:      navigationInputSchema(et, nav),
		RequiredScopes:   rule.Scopes,
		RequiredRoles:    rule.Roles,
		Metadata:         b.navMetadata(et, nav),
	}
	if nav.Collection {
		t.OutputSchema = collectionOutputSchema(nav.Target)
	} else if nav.Target != "" {
		t.OutputSchema = entityOutputSchema(nav.Target)
	}
	return t
}

func (b *builder) addRefTool(set *models.EntitySet, et *models.EntityType, nav *models.NavigationProperty) *Tool {
	name := b.opts.Naming.Render(constants.OpAddRef, et.Name, nav.Name)
	rule := b.rule(et, constants.OpAddRef, name)
	return &Tool{
		Name:             name,
		Description:      fmt.Sprintf("Add a %s relationship to a %s entity", nav.Name, et.Name),
		Category:         CategoryNavigation,
		OperationType:    OperationCreate,
		TargetEntitySet:  set.Name,
		TargetEntityType: et.Name,
		InputSchema:      refInputSchema(et),
		RequiredScopes:   rule.Scopes,
		RequiredRoles:    rule.Roles,
		Metadata:         b.navMetadata(et, nav),
	}
}

func (b *builder) removeRefTool(set *models.EntitySet, et *models.EntityType, nav *models.NavigationProperty) *Tool {
	name := b.opts.Naming.Render(constants.OpRemRef, et.Name, nav.Name)
	rule := b.rule(et, constants.OpRemRef, name)
	return &Tool{
		Name:             name,
		Description:      fmt.Sprintf("Remove a %s relationship from a %s entity", nav.Name, et.Name),
		Category:         CategoryNavigation,
		OperationType:    OperationDelete,
		TargetEntitySet:  set.Name,
		TargetEntityType: et.Name,
		InputSchema:      refInputSchema(et),
		RequiredScopes:   rule.Scopes,
		RequiredRoles:    rule.Roles,
		Metadata:         b.navMetadata(et, nav),
	}
}

func exampleKeyArgs(et *models.EntityType) map[string]interface{} {
	args := make(map[string]interface{}, len(et.KeyProperties))
	for _, keyName := range et.KeyProperties {
		for _, prop := range et.Properties {
			if prop.Name != keyName {
				continue
			}
			switch constants.JSONSchemaType(prop.Type) {
			case "integer", "number":
				args[keyName] = 1
			case "boolean":
				args[keyName] = true
			default:
				args[keyName] = "example"
			}
		}
	}
	return args
}
