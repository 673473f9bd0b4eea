package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolbridge/odata-mcp/internal/catalog"
	"github.com/toolbridge/odata-mcp/internal/config"
	"github.com/toolbridge/odata-mcp/internal/models"
)

func callContext(model *models.EntityModel, baseURL string) *catalog.CallContext {
	return &catalog.CallContext{Model: model, BaseURL: baseURL}
}

func commerceModel(serviceRoot string) *models.EntityModel {
	return &models.EntityModel{
		ServiceRoot: serviceRoot,
		EntityTypes: map[string]*models.EntityType{
			"Category": {
				Name: "Category",
				Properties: []*models.EntityProperty{
					{Name: "ID", Type: "Edm.Int32", IsKey: true},
					{Name: "Name", Type: "Edm.String"},
				},
				KeyProperties: []string{"ID"},
				NavigationProps: []*models.NavigationProperty{
					{Name: "Products", Target: "Product", Collection: true},
				},
			},
			"Product": {
				Name: "Product",
				Properties: []*models.EntityProperty{
					{Name: "ID", Type: "Edm.Int32", IsKey: true},
					{Name: "Name", Type: "Edm.String"},
				},
				KeyProperties: []string{"ID"},
			},
		},
		EntitySets: map[string]*models.EntitySet{
			"Categories": {Name: "Categories", EntityType: "Category", Creatable: true, Updatable: true, Deletable: true},
			"Products":   {Name: "Products", EntityType: "Product", Creatable: true, Updatable: true, Deletable: true},
		},
	}
}

func testBridge(t *testing.T, serviceURL string, mutate func(*config.Config)) *Bridge {
	t.Helper()
	cfg := &config.Config{
		ServiceURL:              serviceURL,
		GenerateCrudTools:       true,
		GenerateQueryTools:      true,
		GenerateNavigationTools: true,
		Naming:                  "snake_case",
		Enforcement:             "deny",
		CallTimeout:             5,
	}
	if mutate != nil {
		mutate(cfg)
	}
	b, err := New(cfg, nil, nil)
	require.NoError(t, err)
	return b
}

func TestNewRequiresServiceURL(t *testing.T) {
	_, err := New(&config.Config{}, nil, nil)
	assert.Error(t, err)
}

func TestApplyModelPublishesCatalog(t *testing.T) {
	b := testBridge(t, "https://example.com/odata/", nil)
	assert.Zero(t, b.Registry().Load().Len())

	b.ApplyModel(commerceModel("https://example.com/odata/"))

	snap := b.Registry().Load()
	assert.Positive(t, snap.Len())

	tool, ok := snap.Lookup("list_products")
	require.True(t, ok)
	assert.NotNil(t, tool.Handler, "published tools must have handlers bound")

	for _, published := range snap.Tools() {
		assert.NotNil(t, published.Handler, "tool %s has no handler", published.Name)
	}
}

func TestApplyModelNilPublishesEmptyCatalog(t *testing.T) {
	b := testBridge(t, "https://example.com/odata/", nil)
	b.ApplyModel(commerceModel("https://example.com/odata/"))
	require.Positive(t, b.Registry().Load().Len())

	// A nil model degrades to an empty catalog instead of failing.
	b.ApplyModel(nil)

	snap := b.Registry().Load()
	assert.Zero(t, snap.Len())
	assert.Nil(t, b.CurrentModel())
	assert.Zero(t, b.Summarize().TotalTools)
}

func TestEntityFilterWildcards(t *testing.T) {
	b := testBridge(t, "https://example.com/odata/", func(cfg *config.Config) {
		cfg.Entities = "Cat*"
	})
	b.ApplyModel(commerceModel("https://example.com/odata/"))

	snap := b.Registry().Load()
	_, ok := snap.Lookup("list_categories")
	assert.True(t, ok)
	_, ok = snap.Lookup("list_products")
	assert.False(t, ok)
}

func TestEntityFilterNoMatchesProducesEmptyCatalog(t *testing.T) {
	b := testBridge(t, "https://example.com/odata/", func(cfg *config.Config) {
		cfg.Entities = "Nothing*"
	})
	b.ApplyModel(commerceModel("https://example.com/odata/"))
	assert.Zero(t, b.Registry().Load().Len())
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"Product", "Product", true},
		{"Product", "Prod*", true},
		{"Product", "*duct", true},
		{"Product", "Order*", false},
		{"Product", "*Order", false},
		{"Product", "product", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesPattern(tt.name, tt.pattern),
			"matchesPattern(%q, %q)", tt.name, tt.pattern)
	}
}

func TestSubmitModelLatestWins(t *testing.T) {
	b := testBridge(t, "https://example.com/odata/", nil)

	stale := commerceModel("https://example.com/odata/")
	fresh := commerceModel("https://example.com/odata/")
	delete(fresh.EntitySets, "Products")
	delete(fresh.EntityTypes, "Product")

	// Without a running consumer the pending slot keeps only the newest.
	b.SubmitModel(stale)
	b.SubmitModel(fresh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	require.Eventually(t, func() bool {
		return b.Registry().Load().Len() > 0
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := b.Registry().Load().Lookup("list_products")
	assert.False(t, ok, "stale model must have been superseded")
	_, ok = b.Registry().Load().Lookup("list_categories")
	assert.True(t, ok)
}

func TestHandlersCallUpstream(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.RequestURI())
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": []map[string]interface{}{{"ID": 1, "Name": "Beverages"}},
			})
		}
	}))
	defer srv.Close()

	b := testBridge(t, srv.URL, func(cfg *config.Config) {
		cfg.ExcludeBinaryFields = false
	})
	model := commerceModel(srv.URL)
	b.ApplyModel(model)
	snap := b.Registry().Load()

	ctx := context.Background()
	call := func(name string, args map[string]interface{}) (interface{}, error) {
		tool, ok := snap.Lookup(name)
		require.True(t, ok, "tool %s not in catalog", name)
		return tool.Handler(ctx, callContext(model, srv.URL), args)
	}

	// list forwards query options.
	data, err := call("list_categories", map[string]interface{}{"$top": float64(2)})
	require.NoError(t, err)
	result := data.(map[string]interface{})
	assert.NotNil(t, result["value"])

	// get builds the key predicate from the model's key properties.
	_, err = call("get_category", map[string]interface{}{"ID": float64(1)})
	require.NoError(t, err)

	// missing key fails before any request is made.
	before := len(requests)
	_, err = call("get_category", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required key")
	assert.Len(t, requests, before)

	// delete hits the entity address.
	_, err = call("delete_category", map[string]interface{}{"ID": float64(3)})
	require.NoError(t, err)

	// navigation follows the relationship path.
	_, err = call("get_category_products", map[string]interface{}{"ID": float64(1)})
	require.NoError(t, err)

	// relationship tools require the ref argument.
	_, err = call("add_category_products", map[string]interface{}{"ID": float64(1)})
	require.Error(t, err)
	_, err = call("add_category_products", map[string]interface{}{"ID": float64(1), "ref": "Products(9)"})
	require.NoError(t, err)

	assert.Contains(t, requests, "GET /Categories?%24top=2")
	assert.Contains(t, requests, "GET /Categories(1)")
	assert.Contains(t, requests, "DELETE /Categories(3)")
	assert.Contains(t, requests, "GET /Categories(1)/Products")
	assert.Contains(t, requests, "POST /Categories(1)/Products/$ref")
}

func TestDefaultSelectAppliedAtCallTime(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]interface{}{"value": []interface{}{}})
	}))
	defer srv.Close()

	b := testBridge(t, srv.URL, func(cfg *config.Config) {
		cfg.ExcludeBinaryFields = true
	})

	model := commerceModel(srv.URL)
	model.EntityTypes["Category"].Properties = append(model.EntityTypes["Category"].Properties,
		&models.EntityProperty{Name: "Picture", Type: "Edm.Binary", Nullable: true})
	b.ApplyModel(model)

	tool, ok := b.Registry().Load().Lookup("list_categories")
	require.True(t, ok)

	_, err := tool.Handler(context.Background(), callContext(model, srv.URL), map[string]interface{}{})
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "%24select=ID%2CName")

	// An explicit $select wins over the default projection.
	_, err = tool.Handler(context.Background(), callContext(model, srv.URL), map[string]interface{}{"$select": "Picture"})
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "%24select=Picture")
}

func TestLoadPolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	content := `{
		"entity_operations": {"Category:delete": {"roles": ["admin"]}},
		"operations": {"create": {"scopes": ["catalog.write"]}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	b := testBridge(t, "https://example.com/odata/", func(cfg *config.Config) {
		cfg.PolicyFile = path
	})
	b.ApplyModel(commerceModel("https://example.com/odata/"))

	snap := b.Registry().Load()
	del, ok := snap.Lookup("delete_category")
	require.True(t, ok)
	assert.Equal(t, []string{"admin"}, del.RequiredRoles)

	create, ok := snap.Lookup("create_product")
	require.True(t, ok)
	assert.Equal(t, []string{"catalog.write"}, create.RequiredScopes)
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := New(&config.Config{
		ServiceURL: "https://example.com/odata/",
		PolicyFile: "/does/not/exist.json",
	}, nil, nil)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	b := testBridge(t, "https://example.com/odata/", func(cfg *config.Config) {
		cfg.ReadOnly = true
	})
	b.ApplyModel(commerceModel("https://example.com/odata/"))

	s := b.Summarize()
	assert.Equal(t, "https://example.com/odata/", s.ServiceURL)
	assert.True(t, s.ReadOnly)
	assert.Equal(t, 2, s.EntityTypes)
	assert.Equal(t, 2, s.EntitySets)
	assert.Equal(t, s.TotalTools, len(s.ToolNames))
	assert.Contains(t, s.ToolNames, "list_categories")
	assert.NotContains(t, s.ToolNames, "delete_category")
}
