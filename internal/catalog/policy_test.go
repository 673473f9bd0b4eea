package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyResolvePrecedence(t *testing.T) {
	policy := &AccessPolicy{
		EntityOperations: map[string]AccessRule{
			"Order:create": {Scopes: []string{"orders.write"}},
		},
		Tools: map[string]AccessRule{
			"create_order":  {Scopes: []string{"tool.scope"}},
			"delete_order":  {Roles: []string{"tool.role"}},
			"list_invoices": {Scopes: []string{"invoices.read"}},
		},
		Operations: map[string]AccessRule{
			"delete": {Roles: []string{"op.admin"}},
			"list":   {Scopes: []string{"op.read"}},
		},
		Default: AccessRule{Scopes: []string{"fallback"}},
	}

	// Entity+operation beats the tool-name entry.
	rule := policy.Resolve("Order", "create", "create_order")
	assert.Equal(t, []string{"orders.write"}, rule.Scopes)

	// Tool name beats the operation entry.
	rule = policy.Resolve("Order", "delete", "delete_order")
	assert.Equal(t, []string{"tool.role"}, rule.Roles)
	assert.Empty(t, rule.Scopes)

	// Operation entry when nothing more specific matches.
	rule = policy.Resolve("Shipment", "delete", "delete_shipment")
	assert.Equal(t, []string{"op.admin"}, rule.Roles)

	// Global default as last resort.
	rule = policy.Resolve("Shipment", "get", "get_shipment")
	assert.Equal(t, []string{"fallback"}, rule.Scopes)
}

func TestPolicyResolveNil(t *testing.T) {
	var policy *AccessPolicy
	rule := policy.Resolve("Order", "create", "create_order")
	assert.Empty(t, rule.Scopes)
	assert.Empty(t, rule.Roles)
}
