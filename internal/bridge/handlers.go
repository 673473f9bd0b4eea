package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/toolbridge/odata-mcp/internal/catalog"
	"github.com/toolbridge/odata-mcp/internal/constants"
	"github.com/toolbridge/odata-mcp/internal/models"
)

// queryOptionNames are the system query options accepted as tool
// arguments and forwarded to the upstream service.
var queryOptionNames = []string{
	constants.QueryFilter,
	constants.QuerySelect,
	constants.QueryExpand,
	constants.QueryOrderBy,
	constants.QueryTop,
	constants.QuerySkip,
	constants.QueryCount,
}

// bindHandler attaches the upstream execution logic to a generated tool.
// The builder produces pure definitions; everything that touches the
// network lives here.
func (b *Bridge) bindHandler(t *catalog.Tool) catalog.Handler {
	switch t.Category {
	case catalog.CategoryQuery:
		return b.listHandler(t)
	case catalog.CategoryCrud:
		switch t.OperationType {
		case catalog.OperationRead:
			return b.getHandler(t)
		case catalog.OperationCreate:
			return b.createHandler(t)
		case catalog.OperationUpdate:
			return b.updateHandler(t)
		case catalog.OperationDelete:
			return b.deleteHandler(t)
		}
	case catalog.CategoryNavigation:
		switch t.OperationType {
		case catalog.OperationRead:
			return b.navigationHandler(t)
		case catalog.OperationCreate:
			return b.refHandler(t, true)
		case catalog.OperationDelete:
			return b.refHandler(t, false)
		}
	}
	return func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		return nil, fmt.Errorf("no handler for tool category %s/%s", t.Category, t.OperationType)
	}
}

func (b *Bridge) listHandler(t *catalog.Tool) catalog.Handler {
	return func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		options := queryOptions(args)
		applyDefaultSelect(options, t)
		resp, err := b.odata.ListEntities(ctx, t.TargetEntitySet, options)
		if err != nil {
			return nil, err
		}
		return collectionResult(resp), nil
	}
}

func (b *Bridge) getHandler(t *catalog.Tool) catalog.Handler {
	return func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		keys, err := keyArgs(call.Model, t.TargetEntityType, args)
		if err != nil {
			return nil, err
		}
		options := queryOptions(args)
		applyDefaultSelect(options, t)
		resp, err := b.odata.GetEntity(ctx, t.TargetEntitySet, keys, options)
		if err != nil {
			return nil, err
		}
		return resp.Value, nil
	}
}

func (b *Bridge) createHandler(t *catalog.Tool) catalog.Handler {
	return func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		resp, err := b.odata.CreateEntity(ctx, t.TargetEntitySet, entityData(args))
		if err != nil {
			return nil, err
		}
		return resp.Value, nil
	}
}

func (b *Bridge) updateHandler(t *catalog.Tool) catalog.Handler {
	return func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		keys, err := keyArgs(call.Model, t.TargetEntityType, args)
		if err != nil {
			return nil, err
		}
		data := entityData(args)
		for k := range keys {
			delete(data, k)
		}
		resp, err := b.odata.UpdateEntity(ctx, t.TargetEntitySet, keys, data, constants.PATCH)
		if err != nil {
			return nil, err
		}
		if resp.Value == nil {
			return map[string]interface{}{"updated": true}, nil
		}
		return resp.Value, nil
	}
}

func (b *Bridge) deleteHandler(t *catalog.Tool) catalog.Handler {
	return func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		keys, err := keyArgs(call.Model, t.TargetEntityType, args)
		if err != nil {
			return nil, err
		}
		if _, err := b.odata.DeleteEntity(ctx, t.TargetEntitySet, keys); err != nil {
			return nil, err
		}
		return map[string]interface{}{"deleted": true}, nil
	}
}

func (b *Bridge) navigationHandler(t *catalog.Tool) catalog.Handler {
	return func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		keys, err := keyArgs(call.Model, t.TargetEntityType, args)
		if err != nil {
			return nil, err
		}
		resp, err := b.odata.GetNavigation(ctx, t.TargetEntitySet, keys, t.NavProperty(), queryOptions(args))
		if err != nil {
			return nil, err
		}
		return collectionResult(resp), nil
	}
}

func (b *Bridge) refHandler(t *catalog.Tool, add bool) catalog.Handler {
	return func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		keys, err := keyArgs(call.Model, t.TargetEntityType, args)
		if err != nil {
			return nil, err
		}
		ref, _ := args["ref"].(string)
		if ref == "" {
			return nil, fmt.Errorf("missing required argument: ref")
		}
		if add {
			if _, err := b.odata.AddReference(ctx, t.TargetEntitySet, keys, t.NavProperty(), ref); err != nil {
				return nil, err
			}
			return map[string]interface{}{"linked": true}, nil
		}
		if _, err := b.odata.RemoveReference(ctx, t.TargetEntitySet, keys, t.NavProperty(), ref); err != nil {
			return nil, err
		}
		return map[string]interface{}{"unlinked": true}, nil
	}
}

// keyArgs extracts every key property of the entity type from the call
// arguments, failing when one is absent.
func keyArgs(model *models.EntityModel, entityType string, args map[string]interface{}) (map[string]interface{}, error) {
	if model == nil {
		return nil, fmt.Errorf("no entity model available")
	}
	et, ok := model.EntityTypes[entityType]
	if !ok {
		return nil, fmt.Errorf("unknown entity type: %s", entityType)
	}
	keys := make(map[string]interface{}, len(et.KeyProperties))
	for _, name := range et.KeyProperties {
		value, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("missing required key: %s", name)
		}
		keys[name] = value
	}
	return keys, nil
}

// queryOptions pulls the OData system query options out of the call
// arguments as string values.
func queryOptions(args map[string]interface{}) map[string]string {
	options := make(map[string]string)
	for _, name := range queryOptionNames {
		value, ok := args[name]
		if !ok {
			continue
		}
		options[name] = formatOptionValue(value)
	}
	return options
}

func formatOptionValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return fmt.Sprintf("%t", v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// applyDefaultSelect fills in the build-time default projection when the
// caller did not ask for an explicit one.
func applyDefaultSelect(options map[string]string, t *catalog.Tool) {
	if options[constants.QuerySelect] != "" {
		return
	}
	if sel := t.DefaultSelect(); len(sel) > 0 {
		options[constants.QuerySelect] = strings.Join(sel, ",")
	}
}

// entityData copies entity payload fields out of the arguments, dropping
// system query options.
func entityData(args map[string]interface{}) map[string]interface{} {
	data := make(map[string]interface{}, len(args))
	for k, v := range args {
		if strings.HasPrefix(k, "$") {
			continue
		}
		data[k] = v
	}
	return data
}

// collectionResult normalizes a collection response into a stable shape
// with the entity list, inline count and next link when present.
func collectionResult(resp *models.ODataResponse) map[string]interface{} {
	result := map[string]interface{}{
		"value": resp.Value,
	}
	if resp.Count != nil {
		result["count"] = *resp.Count
	}
	if resp.NextLink != "" {
		result["next_link"] = resp.NextLink
	}
	return result
}
