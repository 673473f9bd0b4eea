package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSplitsIdentifierWords(t *testing.T) {
	tests := []struct {
		name     string
		naming   NamingConvention
		tokens   []string
		expected string
	}{
		{"snake simple", SnakeCase, []string{"list", "Products"}, "list_products"},
		{"snake multiword type", SnakeCase, []string{"get", "SalesOrderItem"}, "get_sales_order_item"},
		{"snake acronym", SnakeCase, []string{"list", "HTTPServers"}, "list_http_servers"},
		{"snake underscored source", SnakeCase, []string{"get", "sales_order"}, "get_sales_order"},
		{"kebab", KebabCase, []string{"create", "SalesOrder"}, "create-sales-order"},
		{"camel", CamelCase, []string{"delete", "SalesOrder"}, "deleteSalesOrder"},
		{"pascal", PascalCase, []string{"update", "salesOrder"}, "UpdateSalesOrder"},
		{"three tokens", SnakeCase, []string{"get", "Category", "Products"}, "get_category_products"},
		{"empty", SnakeCase, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.naming.Render(tt.tokens...))
		})
	}
}

func TestParseNamingConvention(t *testing.T) {
	assert.Equal(t, SnakeCase, ParseNamingConvention(""))
	assert.Equal(t, SnakeCase, ParseNamingConvention("snake_case"))
	assert.Equal(t, SnakeCase, ParseNamingConvention("unknown"))
	assert.Equal(t, KebabCase, ParseNamingConvention("kebab-case"))
	assert.Equal(t, KebabCase, ParseNamingConvention("KEBAB"))
	assert.Equal(t, CamelCase, ParseNamingConvention("camelCase"))
	assert.Equal(t, PascalCase, ParseNamingConvention("PascalCase"))
}
