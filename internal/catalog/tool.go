package catalog

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/toolbridge/odata-mcp/internal/auth"
	"github.com/toolbridge/odata-mcp/internal/models"
)

// OperationType classifies the data operation a tool performs.
type OperationType string

const (
	OperationRead   OperationType = "read"
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// Tool categories. Query and CRUD tools form the primary tier; navigation
// tools are generated after them and are the first to go when the catalog
// is capped.
const (
	CategoryQuery      = "query"
	CategoryCrud       = "crud"
	CategoryNavigation = "navigation"
)

// Metadata keys attached to generated tools.
const (
	MetaEntityType    = "entity_type"
	MetaVersion       = "version"
	MetaDefaultSelect = "default_select"
	MetaNavProperty   = "nav_property"
)

// CallContext carries everything a handler needs for one invocation: the
// model snapshot the catalog was built from, the caller identity (nil when
// authentication is disabled), a fresh correlation id and the upstream
// base address. Cancellation and the deadline travel in the ctx argument.
type CallContext struct {
	Model         *models.EntityModel
	Caller        *auth.Caller
	CorrelationID string
	BaseURL       string
	Deadline      time.Time
}

// Handler executes one tool call. Errors are normalized into structured
// failure results by the execution coordinator; handlers never write to
// the transport themselves.
type Handler func(ctx context.Context, call *CallContext, args map[string]interface{}) (interface{}, error)

// Example is a documented sample invocation attached to a tool.
type Example struct {
	Description string                 `json:"description"`
	Arguments   map[string]interface{} `json:"arguments"`
}

// Tool is one callable definition in the catalog. Instances are immutable
// once published into a registry snapshot; a rebuild produces new values.
type Tool struct {
	Name             string
	Description      string
	Category         string
	OperationType    OperationType
	TargetEntitySet  string
	TargetEntityType string
	InputSchema      *jsonschema.Schema
	OutputSchema     *jsonschema.Schema
	RequiredScopes   []string
	RequiredRoles    []string
	Metadata         map[string]interface{}
	Examples         []Example
	SupportsBatch    bool
	IsDeprecated     bool
	Handler          Handler
}

// DefaultSelect returns the default projection attached at build time, or
// nil when the tool's entity type has no excluded properties.
func (t *Tool) DefaultSelect() []string {
	if t.Metadata == nil {
		return nil
	}
	sel, _ := t.Metadata[MetaDefaultSelect].([]string)
	return sel
}

// NavProperty returns the navigation property a navigation tool targets,
// or "" for non-navigation tools.
func (t *Tool) NavProperty() string {
	if t.Metadata == nil {
		return ""
	}
	nav, _ := t.Metadata[MetaNavProperty].(string)
	return nav
}
