package protocol

import "encoding/json"

// Peer payloads are modeled as open records: every field is optional and
// absence never fails parsing. Shapes vary across peer implementations,
// so schema enforcement lives in the version catalog, not here.

// Info identifies one end of the connection.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// CapabilitySet is the capabilities block exchanged during initialize.
// Keys mirror the version catalog features; values are opaque option
// objects whose presence signals support.
type CapabilitySet map[string]json.RawMessage

// Has reports whether the named capability is declared.
func (c CapabilitySet) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// InitializeParams are the parameters of the initialize request.
type InitializeParams struct {
	ProtocolVersion string        `json:"protocolVersion"`
	Capabilities    CapabilitySet `json:"capabilities"`
	ClientInfo      Info          `json:"clientInfo"`
}

// InitializeResult is the peer's response to initialize. Some peers
// report their version in protocolVersion, others in
// capabilities.protocolVersions, others in neither.
type InitializeResult struct {
	ProtocolVersion string           `json:"protocolVersion,omitempty"`
	Capabilities    PeerCapabilities `json:"capabilities,omitempty"`
	ServerInfo      Info             `json:"serverInfo,omitempty"`
}

// PeerCapabilities is the peer's declared capability block.
type PeerCapabilities struct {
	ProtocolVersions []string        `json:"protocolVersions,omitempty"`
	Tools            json.RawMessage `json:"tools,omitempty"`
	Resources        json.RawMessage `json:"resources,omitempty"`
	Prompts          json.RawMessage `json:"prompts,omitempty"`
	Sampling         json.RawMessage `json:"sampling,omitempty"`
	Roots            json.RawMessage `json:"roots,omitempty"`
	Notifications    json.RawMessage `json:"notifications,omitempty"`
}

// HasTools reports whether the peer declared the tools capability.
func (c PeerCapabilities) HasTools() bool { return c.Tools != nil }

// HasResources reports whether the peer declared the resources capability.
func (c PeerCapabilities) HasResources() bool { return c.Resources != nil }

// HasPrompts reports whether the peer declared the prompts capability.
func (c PeerCapabilities) HasPrompts() bool { return c.Prompts != nil }

// Tool is a peer-exposed callable function. InputSchema is carried
// opaquely; the host never interprets it beyond display.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Resource is a peer-exposed readable blob identified by URI.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Prompt is a peer-exposed parameterized message template.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes one prompt parameter.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Content is one block of tool or prompt output.
type Content struct {
	Type     string          `json:"type,omitempty"`
	Text     string          `json:"text,omitempty"`
	Data     string          `json:"data,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// ListToolsResult is the response to tools/list.
type ListToolsResult struct {
	Tools []Tool `json:"tools,omitempty"`
}

// CallToolParams are the parameters of tools/call.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult is the response to tools/call.
type CallToolResult struct {
	Content []Content `json:"content,omitempty"`
	IsError bool      `json:"isError,omitempty"`
}

// ListResourcesResult is the response to resources/list.
type ListResourcesResult struct {
	Resources []Resource `json:"resources,omitempty"`
}

// ReadResourceParams are the parameters of resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ResourceContents is one entry of a resources/read response.
type ResourceContents struct {
	URI      string `json:"uri,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ReadResourceResult is the response to resources/read.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents,omitempty"`
}

// ListPromptsResult is the response to prompts/list.
type ListPromptsResult struct {
	Prompts []Prompt `json:"prompts,omitempty"`
}

// GetPromptParams are the parameters of prompts/get.
type GetPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// PromptMessage is one message of a prompt template expansion.
type PromptMessage struct {
	Role    string  `json:"role,omitempty"`
	Content Content `json:"content,omitempty"`
}

// GetPromptResult is the response to prompts/get.
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages,omitempty"`
}
