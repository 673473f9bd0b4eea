package constants

// OData system query options
const (
	QueryFilter  = "$filter"
	QuerySelect  = "$select"
	QueryExpand  = "$expand"
	QueryOrderBy = "$orderby"
	QueryTop     = "$top"
	QuerySkip    = "$skip"
	QueryCount   = "$count"
)

// HTTP methods used against the upstream service
const (
	GET    = "GET"
	POST   = "POST"
	PUT    = "PUT"
	PATCH  = "PATCH"
	MERGE  = "MERGE"
	DELETE = "DELETE"
)

// HTTP headers and content types
const (
	ContentType     = "Content-Type"
	Accept          = "Accept"
	Authorization   = "Authorization"
	ContentTypeJSON = "application/json"
)

// Tool operation kinds emitted by the catalog builder
const (
	OpList     = "list"
	OpGet      = "get"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpNavigate = "navigate"
	OpAddRef   = "add"
	OpRemRef   = "remove"
)

// Default values
const (
	DefaultUserAgent   = "OData-MCP-Bridge/1.0 (Go)"
	DefaultTimeout     = 30 // seconds, per tool call
	DefaultToolVersion = "1.0.0"
)

// MCP-specific constants
const (
	MCPProtocolVersion = "2024-11-05"
	MCPServerName      = "odata-mcp-bridge"
	MCPServerVersion   = "1.0.0"
)

// JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ODataTypeToJSONType maps OData primitive types to JSON schema types.
var ODataTypeToJSONType = map[string]string{
	"Edm.String":         "string",
	"Edm.Guid":           "string",
	"Edm.DateTime":       "string",
	"Edm.DateTimeOffset": "string",
	"Edm.Time":           "string",
	"Edm.Binary":         "string", // base64 encoded
	"Edm.Stream":         "string",
	"Edm.Decimal":        "string", // string for precision
	"Edm.Int16":          "integer",
	"Edm.Int32":          "integer",
	"Edm.Int64":          "integer",
	"Edm.Byte":           "integer",
	"Edm.SByte":          "integer",
	"Edm.Single":         "number",
	"Edm.Double":         "number",
	"Edm.Boolean":        "boolean",
}

// JSONSchemaType returns the JSON schema type for an OData type.
func JSONSchemaType(odataType string) string {
	if t, ok := ODataTypeToJSONType[odataType]; ok {
		return t
	}
	return "string"
}
