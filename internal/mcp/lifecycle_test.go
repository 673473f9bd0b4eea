package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/toolbridge/odata-mcp/internal/auth"
	"github.com/toolbridge/odata-mcp/internal/transport"
)

// LifecycleSuite drives a server through the normal client handshake:
// initialize, the initialized notification, tools/list, tools/call, ping.
type LifecycleSuite struct {
	suite.Suite
	server *Server
}

func (s *LifecycleSuite) SetupTest() {
	s.server, _ = testServer(auth.DenyAccess, echoTool("list_products"))
}

func (s *LifecycleSuite) dispatch(id, method, params string) *transport.Message {
	return s.server.HandleMessage(context.Background(), request(id, method, params))
}

func (s *LifecycleSuite) TestHandshake() {
	resp := s.dispatch("1", "initialize", `{"protocolVersion":"2025-03-26"}`)
	s.Require().NotNil(resp)
	s.Require().Nil(resp.Error)

	var init struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
		Capabilities map[string]json.RawMessage `json:"capabilities"`
	}
	s.Require().NoError(json.Unmarshal(resp.Result, &init))
	s.NotEmpty(init.ProtocolVersion)
	s.NotEmpty(init.ServerInfo.Name)
	s.Contains(init.Capabilities, "tools")

	// The initialized notification is consumed without a response.
	s.Nil(s.dispatch("", "initialized", ""))
}

func (s *LifecycleSuite) TestListThenCall() {
	resp := s.dispatch("2", "tools/list", "")
	s.Require().NotNil(resp)
	s.Require().Nil(resp.Error)

	var listed struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	s.Require().NoError(json.Unmarshal(resp.Result, &listed))
	s.Require().Len(listed.Tools, 1)
	s.Equal("list_products", listed.Tools[0].Name)

	resp = s.dispatch("3", "tools/call", `{"name":"list_products","arguments":{"$top":1}}`)
	payload := callPayload(s.T(), resp)
	s.Equal(false, payload["isError"])
	s.Equal(json.RawMessage("3"), resp.ID)
}

func (s *LifecycleSuite) TestPingBetweenCalls() {
	resp := s.dispatch("4", "ping", "")
	s.Require().NotNil(resp)
	s.Require().Nil(resp.Error)
	s.JSONEq("{}", string(resp.Result))
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}
