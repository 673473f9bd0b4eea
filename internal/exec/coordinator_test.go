package exec

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolbridge/odata-mcp/internal/auth"
	"github.com/toolbridge/odata-mcp/internal/catalog"
	"github.com/toolbridge/odata-mcp/internal/models"
)

func testCoordinator(enforcement auth.EnforcementBehavior, timeout time.Duration) *Coordinator {
	modelFn := func() *models.EntityModel { return &models.EntityModel{} }
	return New(modelFn, "https://example.com/odata/", enforcement, timeout, nil, nil)
}

func openTool(handler catalog.Handler) *catalog.Tool {
	return &catalog.Tool{Name: "list_things", Handler: handler}
}

func TestExecuteSuccess(t *testing.T) {
	c := testCoordinator(auth.DenyAccess, time.Second)
	tool := openTool(func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		assert.NotEmpty(t, call.CorrelationID)
		assert.NotNil(t, call.Model)
		assert.Equal(t, "https://example.com/odata/", call.BaseURL)
		assert.False(t, call.Deadline.IsZero())
		return map[string]interface{}{"rows": 3}, nil
	})

	result := c.Execute(context.Background(), tool, nil, nil)
	require.True(t, result.IsSuccess)
	assert.Equal(t, map[string]interface{}{"rows": 3}, result.Data)
	assert.NotEmpty(t, result.CorrelationID)
	assert.Empty(t, result.ErrorCode)
}

func TestExecuteHandlerError(t *testing.T) {
	c := testCoordinator(auth.DenyAccess, time.Second)
	tool := openTool(func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		return nil, errors.New("upstream exploded")
	})

	result := c.Execute(context.Background(), tool, nil, nil)
	require.False(t, result.IsSuccess)
	assert.Equal(t, CodeExecutionFailure, result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "upstream exploded")
	assert.NotEmpty(t, result.CorrelationID)
}

func TestExecuteTimeout(t *testing.T) {
	c := testCoordinator(auth.DenyAccess, 20*time.Millisecond)
	tool := openTool(func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	start := time.Now()
	result := c.Execute(context.Background(), tool, nil, nil)
	require.False(t, result.IsSuccess)
	assert.Equal(t, CodeExecutionTimeout, result.ErrorCode)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Greater(t, result.ExecutionDuration, time.Duration(0))
}

func TestExecuteCallerCancel(t *testing.T) {
	c := testCoordinator(auth.DenyAccess, time.Minute)
	tool := openTool(func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := c.Execute(ctx, tool, nil, nil)
	require.False(t, result.IsSuccess)
	assert.Equal(t, CodeCancelled, result.ErrorCode)
}

func TestExecutePanicRecovered(t *testing.T) {
	c := testCoordinator(auth.DenyAccess, time.Second)
	tool := openTool(func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		panic("handler bug")
	})

	result := c.Execute(context.Background(), tool, nil, nil)
	require.False(t, result.IsSuccess)
	assert.Equal(t, CodeExecutionFailure, result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "handler bug")
}

func TestExecuteNoHandler(t *testing.T) {
	c := testCoordinator(auth.DenyAccess, time.Second)
	result := c.Execute(context.Background(), &catalog.Tool{Name: "unbound"}, nil, nil)
	require.False(t, result.IsSuccess)
	assert.Equal(t, CodeExecutionFailure, result.ErrorCode)
}

func TestExecuteAuthorizationDenied(t *testing.T) {
	c := testCoordinator(auth.DenyAccess, time.Second)
	invoked := false
	tool := &catalog.Tool{
		Name:           "delete_thing",
		RequiredScopes: []string{"things.write"},
		Handler: func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
			invoked = true
			return nil, nil
		},
	}

	result := c.Execute(context.Background(), tool, &auth.Caller{Subject: "bob"}, nil)
	require.False(t, result.IsSuccess)
	assert.Equal(t, CodeAuthorizationDenied, result.ErrorCode)
	assert.False(t, invoked, "denied call must not reach the handler")

	// The same tool succeeds for a caller holding the scope.
	result = c.Execute(context.Background(), tool, &auth.Caller{Scopes: []string{"things.write"}}, nil)
	assert.True(t, result.IsSuccess)
}

func TestExecuteLogOnlyProceeds(t *testing.T) {
	c := testCoordinator(auth.LogOnly, time.Second)
	tool := &catalog.Tool{
		Name:          "delete_thing",
		RequiredRoles: []string{"admin"},
		Handler: func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
			return "done", nil
		},
	}

	result := c.Execute(context.Background(), tool, nil, nil)
	require.True(t, result.IsSuccess)
	assert.Equal(t, "done", result.Data)
}

func TestNotFound(t *testing.T) {
	c := testCoordinator(auth.DenyAccess, time.Second)
	result := c.NotFound("bogus_tool")
	require.False(t, result.IsSuccess)
	assert.Equal(t, CodeToolNotFound, result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "bogus_tool")
	assert.NotEmpty(t, result.CorrelationID)
}

func TestCorrelationIDsAreFresh(t *testing.T) {
	c := testCoordinator(auth.DenyAccess, time.Second)
	tool := openTool(func(ctx context.Context, call *catalog.CallContext, args map[string]interface{}) (interface{}, error) {
		return nil, nil
	})

	first := c.Execute(context.Background(), tool, nil, nil)
	second := c.Execute(context.Background(), tool, nil, nil)
	assert.NotEqual(t, first.CorrelationID, second.CorrelationID)
}
