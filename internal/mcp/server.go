package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/toolbridge/odata-mcp/internal/auth"
	"github.com/toolbridge/odata-mcp/internal/constants"
	"github.com/toolbridge/odata-mcp/internal/exec"
	"github.com/toolbridge/odata-mcp/internal/metrics"
	"github.com/toolbridge/odata-mcp/internal/registry"
	"github.com/toolbridge/odata-mcp/internal/transport"
)

// toolDescriptor is the wire form of a catalog tool in tools/list output.
type toolDescriptor struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	InputSchema  interface{} `json:"inputSchema"`
	OutputSchema interface{} `json:"outputSchema,omitempty"`
	Meta         interface{} `json:"_meta,omitempty"`
}

// Server is the JSON-RPC dispatch engine. It serves exactly the catalog
// published in the registry store and delegates tool invocation to the
// execution coordinator. Protocol errors (malformed or unroutable frames)
// become JSON-RPC error objects; tool-level failures become success
// envelopes with isError payloads, so "transport broke" stays separate
// from "the operation failed".
type Server struct {
	name            string
	version         string
	protocolVersion string

	store       *registry.Store
	coordinator *exec.Coordinator
	enforcement auth.EnforcementBehavior
	logger      *zap.Logger
	metrics     *metrics.Registry
}

// NewServer creates a dispatcher over a registry store and coordinator.
func NewServer(store *registry.Store, coordinator *exec.Coordinator, enforcement auth.EnforcementBehavior, logger *zap.Logger, m *metrics.Registry) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		name:            constants.MCPServerName,
		version:         constants.MCPServerVersion,
		protocolVersion: constants.MCPProtocolVersion,
		store:           store,
		coordinator:     coordinator,
		enforcement:     enforcement,
		logger:          logger,
		metrics:         m,
	}
}

// SetProtocolVersion overrides the advertised MCP protocol version.
func (s *Server) SetProtocolVersion(version string) {
	s.protocolVersion = version
}

// HandleMessage processes one inbound frame and returns the response
// frame, or nil for notifications. Safe for concurrent use; the
// transports call it from one goroutine per frame.
func (s *Server) HandleMessage(ctx context.Context, msg *transport.Message) *transport.Message {
	// Notifications are consumed without a response and carry no id.
	if isNotification(msg.Method) {
		s.metrics.ObserveFrame(msg.Method, "notification")
		return nil
	}

	if msg.JSONRPC != "2.0" || !msg.HasID() {
		s.metrics.ObserveFrame(msg.Method, "invalid_request")
		return s.errorResponse(msg.ID, constants.CodeInvalidRequest, "Invalid Request",
			`request must carry jsonrpc:"2.0" and an id`)
	}

	var resp *transport.Message
	switch msg.Method {
	case "initialize":
		resp = s.handleInitialize(msg)
	case "ping":
		resp = s.handlePing(msg)
	case "tools/list":
		resp = s.handleToolsList(ctx, msg)
	case "tools/call":
		resp = s.handleToolsCall(ctx, msg)
	default:
		s.metrics.ObserveFrame(msg.Method, "method_not_found")
		return s.errorResponse(msg.ID, constants.CodeMethodNotFound, "Method not found", msg.Method)
	}

	outcome := "ok"
	if resp != nil && resp.Error != nil {
		outcome = "error"
	}
	s.metrics.ObserveFrame(msg.Method, outcome)
	return resp
}

// handleInitialize reports identity and capabilities. It works before the
// model has been discovered: the catalog is simply empty at that point.
func (s *Server) handleInitialize(msg *transport.Message) *transport.Message {
	result := map[string]interface{}{
		"protocolVersion": s.protocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{
				"listChanged": true,
			},
		},
		"serverInfo": map[string]interface{}{
			"name":    s.name,
			"version": s.version,
		},
	}
	return s.response(msg.ID, result)
}

func (s *Server) handlePing(msg *transport.Message) *transport.Message {
	return s.response(msg.ID, map[string]interface{}{})
}

// handleToolsList returns the snapshot current at call time. Under the
// FilterTools behavior, tools the caller cannot use are omitted; other
// behaviors list everything and rely on the call-time check.
func (s *Server) handleToolsList(ctx context.Context, msg *transport.Message) *transport.Message {
	snap := s.store.Load()
	tools := snap.Tools()
	if s.enforcement == auth.FilterTools {
		tools = snap.FilterForCaller(auth.CallerFromContext(ctx))
	}

	descriptors := make([]toolDescriptor, 0, len(tools))
	for _, t := range tools {
		d := toolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}
		if t.OutputSchema != nil {
			d.OutputSchema = t.OutputSchema
		}
		if len(t.Metadata) > 0 {
			d.Meta = t.Metadata
		}
		descriptors = append(descriptors, d)
	}

	return s.response(msg.ID, map[string]interface{}{"tools": descriptors})
}

// handleToolsCall resolves and executes a tool. An unknown tool name is a
// domain failure, not a protocol error: the caller asked a well-formed
// question and gets a well-formed "no".
func (s *Server) handleToolsCall(ctx context.Context, msg *transport.Message) *transport.Message {
	var params struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.errorResponse(msg.ID, constants.CodeInvalidParams, "Invalid params", err.Error())
		}
	}
	if params.Name == "" {
		return s.errorResponse(msg.ID, constants.CodeInvalidParams, "Invalid params", "missing tool name")
	}
	if params.Arguments == nil {
		params.Arguments = make(map[string]interface{})
	}

	snap := s.store.Load()
	tool, ok := snap.Lookup(params.Name)

	var result *exec.Result
	if !ok {
		result = s.coordinator.NotFound(params.Name)
	} else {
		result = s.coordinator.Execute(ctx, tool, auth.CallerFromContext(ctx), params.Arguments)
	}

	return s.response(msg.ID, callResultPayload(result))
}

// callResultPayload renders a normalized result as an MCP tool payload.
func callResultPayload(result *exec.Result) map[string]interface{} {
	var text string
	if result.IsSuccess {
		switch data := result.Data.(type) {
		case string:
			text = data
		case nil:
			text = "{}"
		default:
			encoded, err := json.Marshal(data)
			if err != nil {
				text = fmt.Sprintf("failed to encode result: %v", err)
			} else {
				text = string(encoded)
			}
		}
	} else {
		text = fmt.Sprintf("%s: %s", result.ErrorCode, result.ErrorMessage)
	}

	meta := map[string]interface{}{
		"correlation_id": result.CorrelationID,
		"duration_ms":    result.ExecutionDuration.Milliseconds(),
	}
	if result.ErrorCode != "" {
		meta["error_code"] = result.ErrorCode
	}
	if len(result.Warnings) > 0 {
		meta["warnings"] = result.Warnings
	}
	for k, v := range result.Metadata {
		meta[k] = v
	}

	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
		"isError": !result.IsSuccess,
		"_meta":   meta,
	}
}

func (s *Server) response(id json.RawMessage, result interface{}) *transport.Message {
	encoded, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("failed to marshal result", zap.Error(err))
		return s.errorResponse(id, constants.CodeInternalError, "Internal error", err.Error())
	}
	return &transport.Message{JSONRPC: "2.0", ID: echoID(id), Result: encoded}
}

func (s *Server) errorResponse(id json.RawMessage, code int, message, detail string) *transport.Message {
	e := &transport.Error{Code: code, Message: message}
	if detail != "" {
		data, err := json.Marshal(detail)
		if err == nil {
			e.Data = data
		}
	}
	return &transport.Message{JSONRPC: "2.0", ID: echoID(id), Error: e}
}

// echoID returns the request id when one was extractable, else explicit
// null per JSON-RPC 2.0.
func echoID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func isNotification(method string) bool {
	return method == "initialized" || strings.HasPrefix(method, "notifications/")
}
