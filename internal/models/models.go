package models

import "time"

// EntityProperty represents a property of an OData entity type
type EntityProperty struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"` // OData type (e.g., "Edm.String")
	Nullable    bool    `json:"nullable"`
	IsKey       bool    `json:"is_key"`
	Description *string `json:"description,omitempty"`
}

// EntityType represents an OData entity type definition
type EntityType struct {
	Name            string                `json:"name"`
	Properties      []*EntityProperty     `json:"properties"`
	KeyProperties   []string              `json:"key_properties"`
	Description     *string               `json:"description,omitempty"`
	NavigationProps []*NavigationProperty `json:"navigation_properties,omitempty"`
}

// NavigationProperty represents a typed relationship to another entity type.
// Collection reports whether the target side is collection-valued.
type NavigationProperty struct {
	Name       string `json:"name"`
	Target     string `json:"target,omitempty"` // target entity type name
	Collection bool   `json:"collection"`
	Nullable   bool   `json:"nullable"`
}

// EntitySet represents an OData entity set bound to the service container
type EntitySet struct {
	Name        string  `json:"name"`
	EntityType  string  `json:"entity_type"`
	Creatable   bool    `json:"creatable"`
	Updatable   bool    `json:"updatable"`
	Deletable   bool    `json:"deletable"`
	Description *string `json:"description,omitempty"`
}

// EntityModel is the immutable schema snapshot the catalog is built from.
// It is produced by an external metadata parser and never mutated after
// publication; a rediscovery replaces the whole value.
type EntityModel struct {
	ServiceRoot     string                 `json:"service_root"`
	EntityTypes     map[string]*EntityType `json:"entity_types"`
	EntitySets      map[string]*EntitySet  `json:"entity_sets"`
	SchemaNamespace string                 `json:"schema_namespace"`
	ContainerName   string                 `json:"container_name"`
	Version         string                 `json:"version"`
	ParsedAt        time.Time              `json:"parsed_at"`
}

// TypeOf resolves the entity type bound to an entity set, or nil.
func (m *EntityModel) TypeOf(set *EntitySet) *EntityType {
	if m == nil || set == nil {
		return nil
	}
	return m.EntityTypes[set.EntityType]
}

// ODataError represents an OData error response body
type ODataError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
}

// ODataResponse represents a generic OData response payload
type ODataResponse struct {
	Context  string                 `json:"@odata.context,omitempty"`
	Count    *int64                 `json:"@odata.count,omitempty"`
	NextLink string                 `json:"@odata.nextLink,omitempty"`
	Value    interface{}            `json:"value,omitempty"`
	Error    *ODataError            `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"@odata.metadata,omitempty"`
}
