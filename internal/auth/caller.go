package auth

import "strings"

// Caller is the authenticated identity attached to a call, carrying the
// scope and role sets produced by token validation. A nil *Caller means
// authentication is disabled or the frame carried no credentials.
type Caller struct {
	Subject string   `json:"subject"`
	Scopes  []string `json:"scopes"`
	Roles   []string `json:"roles"`
}

// HasAnyScope reports whether the caller holds at least one of the
// required scopes. Matching is case-insensitive.
func (c *Caller) HasAnyScope(required []string) bool {
	if c == nil {
		return false
	}
	return anyMatch(c.Scopes, required)
}

// HasAnyRole reports whether the caller holds at least one of the
// required roles. Matching is case-insensitive.
func (c *Caller) HasAnyRole(required []string) bool {
	if c == nil {
		return false
	}
	return anyMatch(c.Roles, required)
}

// Authorized implements the shared authorization predicate: a tool with no
// required scopes and no required roles is open to everyone; otherwise the
// caller needs ANY matching scope or ANY matching role.
func Authorized(c *Caller, requiredScopes, requiredRoles []string) bool {
	if len(requiredScopes) == 0 && len(requiredRoles) == 0 {
		return true
	}
	return c.HasAnyScope(requiredScopes) || c.HasAnyRole(requiredRoles)
}

func anyMatch(held, required []string) bool {
	for _, r := range required {
		for _, h := range held {
			if strings.EqualFold(h, r) {
				return true
			}
		}
	}
	return false
}

// EnforcementBehavior governs how a failed authorization check manifests.
type EnforcementBehavior string

const (
	// FilterTools omits unauthorized tools from tools/list output only.
	FilterTools EnforcementBehavior = "filter"
	// DenyAccess lists unauthorized tools but fails their invocation.
	DenyAccess EnforcementBehavior = "deny"
	// LogOnly records the violation and lets the call proceed.
	LogOnly EnforcementBehavior = "log"
)

// ParseEnforcementBehavior maps a config string to a behavior, defaulting
// to DenyAccess for unknown values.
func ParseEnforcementBehavior(s string) EnforcementBehavior {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "filter", "filtertools", "filter_tools":
		return FilterTools
	case "log", "logonly", "log_only":
		return LogOnly
	default:
		return DenyAccess
	}
}
