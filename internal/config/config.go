package config

import "strings"

// Config holds all configuration options for the OData MCP bridge
type Config struct {
	// Service configuration
	ServiceURL string `mapstructure:"service_url"`

	// Upstream authentication
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	BearerToken string `mapstructure:"bearer_token"`

	// Caller authentication (inbound, HTTP transport only)
	JWTSecret   string `mapstructure:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience"`

	// Tool generation
	GenerateCrudTools       bool   `mapstructure:"generate_crud_tools"`
	GenerateQueryTools      bool   `mapstructure:"generate_query_tools"`
	GenerateNavigationTools bool   `mapstructure:"generate_navigation_tools"`
	ExcludeBinaryFields     bool   `mapstructure:"exclude_binary_fields"`
	ExcludePropertyTypes    string `mapstructure:"exclude_property_types"` // comma-separated
	MaxToolCount            int    `mapstructure:"max_tool_count"`
	ToolVersion             string `mapstructure:"tool_version"`
	IncludeExamples         bool   `mapstructure:"include_examples"`
	Naming                  string `mapstructure:"naming"` // snake_case, kebab-case, camelCase, PascalCase

	// Entity filtering (supports prefix/suffix wildcards like "Prod*")
	Entities string `mapstructure:"entities"`

	// Authorization
	Enforcement string `mapstructure:"enforcement"` // filter, deny, log
	PolicyFile  string `mapstructure:"policy_file"`

	// Transport
	Transport   string `mapstructure:"transport"` // stdio or http
	HTTPAddr    string `mapstructure:"http_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"` // empty disables the metrics listener

	// Behavior
	ReadOnly       bool `mapstructure:"read_only"`
	CallTimeout    int  `mapstructure:"call_timeout"` // seconds
	Verbose        bool `mapstructure:"verbose"`
	PrintSummary   bool `mapstructure:"print_summary"`
	RetryAttempts  int  `mapstructure:"retry_attempts"`
}

// HasBasicAuth returns true if username and password are configured
func (c *Config) HasBasicAuth() bool {
	return c.Username != "" && c.Password != ""
}

// HasBearerAuth returns true if an upstream bearer token is configured
func (c *Config) HasBearerAuth() bool {
	return c.BearerToken != ""
}

// HasCallerAuth returns true if inbound JWT validation is configured
func (c *Config) HasCallerAuth() bool {
	return c.JWTSecret != ""
}

// UseHTTP returns true if the HTTP transport is selected
func (c *Config) UseHTTP() bool {
	return strings.EqualFold(c.Transport, "http")
}

// ParseEntities splits the comma-separated entity filter into patterns.
func (c *Config) ParseEntities() []string {
	if c.Entities == "" {
		return nil
	}
	var patterns []string
	for _, p := range strings.Split(c.Entities, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// ParseExcludedTypes splits the comma-separated property type exclusions.
func (c *Config) ParseExcludedTypes() []string {
	if c.ExcludePropertyTypes == "" {
		return nil
	}
	var types []string
	for _, t := range strings.Split(c.ExcludePropertyTypes, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			types = append(types, t)
		}
	}
	return types
}
