package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolbridge/odata-mcp/internal/auth"
	"github.com/toolbridge/odata-mcp/internal/constants"
	"github.com/toolbridge/odata-mcp/internal/transport"
)

func frameRecorder(t *Transport, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(nethttp.MethodPost, "/mcp", strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	t.handleFrame(rec, req)
	return rec
}

func TestHandleFrameDispatches(t *testing.T) {
	var gotMethod string
	handler := func(ctx context.Context, msg *transport.Message) *transport.Message {
		gotMethod = msg.Method
		return &transport.Message{JSONRPC: "2.0", ID: msg.ID, Result: json.RawMessage(`{}`)}
	}
	tr := New(":0", handler, nil, nil)

	rec := frameRecorder(tr, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "ping", gotMethod)

	var resp transport.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1", string(resp.ID))
}

func TestHandleFrameRejectsNonPost(t *testing.T) {
	tr := New(":0", func(ctx context.Context, msg *transport.Message) *transport.Message {
		return nil
	}, nil, nil)

	req := httptest.NewRequest(nethttp.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	tr.handleFrame(rec, req)
	assert.Equal(t, nethttp.StatusMethodNotAllowed, rec.Code)
}

func TestHandleFrameParseError(t *testing.T) {
	tr := New(":0", func(ctx context.Context, msg *transport.Message) *transport.Message {
		t.Fatal("handler must not run for unparseable frames")
		return nil
	}, nil, nil)

	rec := frameRecorder(tr, "not json", nil)
	var resp transport.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, constants.CodeParseError, resp.Error.Code)
	assert.Equal(t, "null", string(resp.ID))
}

func TestHandleFrameNotification(t *testing.T) {
	tr := New(":0", func(ctx context.Context, msg *transport.Message) *transport.Message {
		return nil
	}, nil, nil)

	rec := frameRecorder(tr, `{"jsonrpc":"2.0","method":"initialized"}`, nil)
	assert.Equal(t, nethttp.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestBearerValidation(t *testing.T) {
	secret := []byte("transport-secret")
	validator := auth.NewTokenValidator(secret, "", "")

	var gotCaller *auth.Caller
	handler := func(ctx context.Context, msg *transport.Message) *transport.Message {
		gotCaller = auth.CallerFromContext(ctx)
		return &transport.Message{JSONRPC: "2.0", ID: msg.ID, Result: json.RawMessage(`{}`)}
	}
	tr := New(":0", handler, validator, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "alice",
		"scope": "catalog.read",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	// Valid token: caller lands in the request context.
	rec := frameRecorder(tr, `{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		map[string]string{constants.Authorization: "Bearer " + signed})
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	require.NotNil(t, gotCaller)
	assert.Equal(t, "alice", gotCaller.Subject)
	assert.Equal(t, []string{"catalog.read"}, gotCaller.Scopes)

	// Invalid token: rejected before the handler runs.
	gotCaller = nil
	rec = frameRecorder(tr, `{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		map[string]string{constants.Authorization: "Bearer garbage"})
	assert.Equal(t, nethttp.StatusUnauthorized, rec.Code)
	assert.Nil(t, gotCaller)

	// No token: anonymous frame, handler still runs.
	rec = frameRecorder(tr, `{"jsonrpc":"2.0","id":3,"method":"ping"}`, nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Nil(t, gotCaller)
}
