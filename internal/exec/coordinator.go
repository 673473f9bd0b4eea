package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toolbridge/odata-mcp/internal/auth"
	"github.com/toolbridge/odata-mcp/internal/catalog"
	"github.com/toolbridge/odata-mcp/internal/constants"
	"github.com/toolbridge/odata-mcp/internal/metrics"
	"github.com/toolbridge/odata-mcp/internal/models"
)

// ModelProvider yields the current entity model snapshot; handlers receive
// whatever snapshot was current when their call started.
type ModelProvider func() *models.EntityModel

// Coordinator owns the per-call lifecycle: authorize, bind a deadline,
// invoke the handler, normalize the outcome into a Result.
type Coordinator struct {
	modelFn     ModelProvider
	baseURL     string
	enforcement auth.EnforcementBehavior
	maxCallTime time.Duration
	logger      *zap.Logger
	metrics     *metrics.Registry
}

// New creates a coordinator. maxCallTime <= 0 falls back to the default
// per-call timeout.
func New(modelFn ModelProvider, baseURL string, enforcement auth.EnforcementBehavior, maxCallTime time.Duration, logger *zap.Logger, m *metrics.Registry) *Coordinator {
	if maxCallTime <= 0 {
		maxCallTime = constants.DefaultTimeout * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		modelFn:     modelFn,
		baseURL:     baseURL,
		enforcement: enforcement,
		maxCallTime: maxCallTime,
		logger:      logger,
		metrics:     m,
	}
}

// NotFound produces the structured result for an unknown tool name. Kept
// here so the dispatcher and direct callers emit the same shape.
func (c *Coordinator) NotFound(name string) *Result {
	return Failure(CodeToolNotFound, fmt.Sprintf("unknown tool: %s", name), uuid.NewString(), 0)
}

// Execute runs one resolved tool call to completion and returns the
// normalized result. It never returns an error; every failure mode is
// classified into the result itself.
func (c *Coordinator) Execute(ctx context.Context, tool *catalog.Tool, caller *auth.Caller, args map[string]interface{}) *Result {
	correlationID := uuid.NewString()
	log := c.logger.With(zap.String("tool", tool.Name), zap.String("correlation_id", correlationID))

	// Call-time authorization runs regardless of list-time filtering.
	if !auth.Authorized(caller, tool.RequiredScopes, tool.RequiredRoles) {
		if c.enforcement == auth.LogOnly {
			log.Warn("unauthorized call permitted by log-only enforcement")
		} else {
			log.Warn("call denied by authorization policy")
			c.observe(tool.Name, "denied", 0)
			return Failure(CodeAuthorizationDenied,
				fmt.Sprintf("caller is not authorized to invoke %s", tool.Name),
				correlationID, 0)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.maxCallTime)
	defer cancel()
	deadline, _ := callCtx.Deadline()

	call := &catalog.CallContext{
		Model:         c.modelFn(),
		Caller:        caller,
		CorrelationID: correlationID,
		BaseURL:       c.baseURL,
		Deadline:      deadline,
	}

	start := time.Now()
	data, err := c.invoke(callCtx, tool, call, args)
	duration := time.Since(start)

	switch {
	case err == nil:
		log.Debug("tool call completed", zap.Duration("duration", duration))
		c.observe(tool.Name, "success", duration)
		return Success(data, correlationID, duration)

	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("tool call exceeded its deadline", zap.Duration("duration", duration))
		c.observe(tool.Name, "timeout", duration)
		return Failure(CodeExecutionTimeout,
			fmt.Sprintf("%s did not complete within %s", tool.Name, c.maxCallTime),
			correlationID, duration)

	case errors.Is(err, context.Canceled):
		log.Info("tool call cancelled", zap.Duration("duration", duration))
		c.observe(tool.Name, "cancelled", duration)
		return Failure(CodeCancelled, "call was cancelled", correlationID, duration)

	default:
		log.Warn("tool call failed", zap.Error(err), zap.Duration("duration", duration))
		c.observe(tool.Name, "failure", duration)
		return Failure(CodeExecutionFailure, err.Error(), correlationID, duration)
	}
}

// invoke runs the handler with panic containment so a misbehaving handler
// cannot take down the dispatcher loop.
func (c *Coordinator) invoke(ctx context.Context, tool *catalog.Tool, call *catalog.CallContext, args map[string]interface{}) (data interface{}, err error) {
	if tool.Handler == nil {
		return nil, fmt.Errorf("tool %s has no handler bound", tool.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return tool.Handler(ctx, call, args)
}

func (c *Coordinator) observe(tool, outcome string, duration time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveToolCall(tool, outcome, duration)
	}
}
