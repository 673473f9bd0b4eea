package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/toolbridge/odata-mcp/internal/auth"
	"github.com/toolbridge/odata-mcp/internal/constants"
	"github.com/toolbridge/odata-mcp/internal/transport"
)

// Transport implements the hosted mode: one JSON-RPC frame per POST to
// /mcp. Concurrency is handled by the HTTP server itself; each request
// owns its response writer, so no extra write serialization is needed.
type Transport struct {
	addr      string
	handler   transport.Handler
	validator *auth.TokenValidator // optional; nil disables authentication
	logger    *zap.Logger
	server    *http.Server
}

// New creates an HTTP transport listening on addr.
func New(addr string, handler transport.Handler, validator *auth.TokenValidator, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{addr: addr, handler: handler, validator: validator, logger: logger}
}

// Start runs the HTTP server until ctx is cancelled.
func (t *Transport) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", t.handleFrame)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(constants.ContentType, constants.ContentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":   "ok",
			"protocol": constants.MCPProtocolVersion,
		})
	})

	t.server = &http.Server{Addr: t.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return t.Close()
	}
}

func (t *Transport) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if t.validator != nil {
		if token := auth.BearerFromHeader(r.Header.Get(constants.Authorization)); token != "" {
			caller, err := t.validator.Validate(token)
			if err != nil {
				t.logger.Debug("rejecting frame with invalid token", zap.Error(err))
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}
			ctx = auth.WithCaller(ctx, caller)
		}
	}

	var msg transport.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeFrame(w, &transport.Message{
			JSONRPC: "2.0",
			ID:      json.RawMessage("null"),
			Error:   &transport.Error{Code: constants.CodeParseError, Message: "Parse error"},
		})
		return
	}

	resp := t.handler(ctx, &msg)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted) // notification
		return
	}
	writeFrame(w, resp)
}

func writeFrame(w http.ResponseWriter, msg *transport.Message) {
	w.Header().Set(constants.ContentType, constants.ContentTypeJSON)
	_ = json.NewEncoder(w).Encode(msg)
}

// WriteMessage is unused in hosted mode: every response is bound to its
// originating request.
func (t *Transport) WriteMessage(*transport.Message) error {
	return nil
}

// Close shuts the server down, giving in-flight requests a grace period.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.server.Shutdown(ctx)
}
