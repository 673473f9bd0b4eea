package catalog

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/toolbridge/odata-mcp/internal/constants"
	"github.com/toolbridge/odata-mcp/internal/models"
)

func stringSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func integerSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: description}
}

func booleanSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: description}
}

func objectSchema(properties map[string]*jsonschema.Schema, required []string) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "object", Properties: properties}
	if len(required) > 0 {
		s.Required = required
	}
	return s
}

func propertySchema(prop *models.EntityProperty) *jsonschema.Schema {
	desc := fmt.Sprintf("Property: %s (%s)", prop.Name, prop.Type)
	if prop.Description != nil {
		desc = *prop.Description
	}
	return &jsonschema.Schema{
		Type:        constants.JSONSchemaType(prop.Type),
		Description: desc,
	}
}

// keyProperties returns the schemas and required list for the entity
// type's key, in declaration order of KeyProperties.
func keyProperties(et *models.EntityType) (map[string]*jsonschema.Schema, []string) {
	properties := make(map[string]*jsonschema.Schema)
	required := make([]string, 0, len(et.KeyProperties))
	for _, keyName := range et.KeyProperties {
		for _, prop := range et.Properties {
			if prop.Name == keyName {
				schema := propertySchema(prop)
				schema.Description = fmt.Sprintf("Key property: %s", keyName)
				properties[keyName] = schema
				required = append(required, keyName)
				break
			}
		}
	}
	return properties, required
}

// listInputSchema covers the standard collection query surface.
func listInputSchema() *jsonschema.Schema {
	return objectSchema(map[string]*jsonschema.Schema{
		constants.QueryFilter:  stringSchema("OData filter expression"),
		constants.QuerySelect:  stringSchema("Comma-separated list of properties to select"),
		constants.QueryOrderBy: stringSchema("Properties to order by"),
		constants.QueryTop:     integerSchema("Maximum number of entities to return"),
		constants.QuerySkip:    integerSchema("Number of entities to skip"),
		constants.QueryCount:   booleanSchema("Include total count of matching entities"),
	}, nil)
}

func getInputSchema(et *models.EntityType) *jsonschema.Schema {
	properties, required := keyProperties(et)
	properties[constants.QuerySelect] = stringSchema("Comma-separated list of properties to select")
	properties[constants.QueryExpand] = stringSchema("Navigation properties to expand")
	return objectSchema(properties, required)
}

func createInputSchema(et *models.EntityType) *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema)
	var required []string
	for _, prop := range et.Properties {
		if prop.IsKey {
			continue // server-assigned on create
		}
		properties[prop.Name] = propertySchema(prop)
		if !prop.Nullable {
			required = append(required, prop.Name)
		}
	}
	return objectSchema(properties, required)
}

func updateInputSchema(et *models.EntityType) *jsonschema.Schema {
	properties, required := keyProperties(et)
	for _, prop := range et.Properties {
		if !prop.IsKey {
			properties[prop.Name] = propertySchema(prop)
		}
	}
	return objectSchema(properties, required)
}

func deleteInputSchema(et *models.EntityType) *jsonschema.Schema {
	properties, required := keyProperties(et)
	return objectSchema(properties, required)
}

// navigationInputSchema keys the source entity; collection-valued targets
// additionally accept the collection query surface.
func navigationInputSchema(et *models.EntityType, nav *models.NavigationProperty) *jsonschema.Schema {
	properties, required := keyProperties(et)
	if nav.Collection {
		properties[constants.QueryFilter] = stringSchema("OData filter expression applied to the related collection")
		properties[constants.QuerySelect] = stringSchema("Comma-separated list of properties to select")
		properties[constants.QueryTop] = integerSchema("Maximum number of related entities to return")
		properties[constants.QuerySkip] = integerSchema("Number of related entities to skip")
	} else {
		properties[constants.QuerySelect] = stringSchema("Comma-separated list of properties to select")
	}
	return objectSchema(properties, required)
}

// refInputSchema keys the source entity plus the target reference.
func refInputSchema(et *models.EntityType) *jsonschema.Schema {
	properties, required := keyProperties(et)
	properties["ref"] = stringSchema("Key or URL of the related entity")
	required = append(required, "ref")
	return objectSchema(properties, required)
}

func collectionOutputSchema(entityType string) *jsonschema.Schema {
	return objectSchema(map[string]*jsonschema.Schema{
		"value": {
			Type:        "array",
			Description: fmt.Sprintf("Matching %s entities", entityType),
			Items:       &jsonschema.Schema{Type: "object"},
		},
	}, nil)
}

func entityOutputSchema(entityType string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "object",
		Description: fmt.Sprintf("A single %s entity", entityType),
	}
}
