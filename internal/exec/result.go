package exec

import "time"

// Domain error codes. These travel inside tool payloads, never as JSON-RPC
// error objects: a failed operation is still a successful protocol
// exchange.
const (
	CodeToolNotFound        = "ToolNotFound"
	CodeAuthorizationDenied = "AuthorizationDenied"
	CodeExecutionFailure    = "ExecutionFailure"
	CodeExecutionTimeout    = "ExecutionTimeout"
	CodeCancelled           = "Cancelled"
)

// Result is the normalized outcome of one tool invocation.
type Result struct {
	IsSuccess         bool                   `json:"is_success"`
	Data              interface{}            `json:"data,omitempty"`
	ErrorMessage      string                 `json:"error_message,omitempty"`
	ErrorCode         string                 `json:"error_code,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	Warnings          []string               `json:"warnings,omitempty"`
	ExecutionDuration time.Duration          `json:"execution_duration"`
	CorrelationID     string                 `json:"correlation_id"`
}

// Success builds a successful result carrying the handler payload.
func Success(data interface{}, correlationID string, duration time.Duration) *Result {
	return &Result{
		IsSuccess:         true,
		Data:              data,
		ExecutionDuration: duration,
		CorrelationID:     correlationID,
	}
}

// Failure builds a classified failure result.
func Failure(code, message, correlationID string, duration time.Duration) *Result {
	return &Result{
		ErrorCode:         code,
		ErrorMessage:      message,
		ExecutionDuration: duration,
		CorrelationID:     correlationID,
	}
}
