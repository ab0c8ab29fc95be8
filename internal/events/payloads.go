package events

// Typed payloads for the kinds the runtime emits. The host matches on
// Event.Kind and asserts the corresponding payload type.

// InstallPayload accompanies install* events.
type InstallPayload struct {
	URL       string `json:"url"`
	Stage     string `json:"stage,omitempty"`
	Message   string `json:"message,omitempty"`
	ServerID  string `json:"serverId,omitempty"`
	FromCache bool   `json:"fromCache,omitempty"`
	Err       string `json:"error,omitempty"`
}

// ServerPayload accompanies server lifecycle events.
type ServerPayload struct {
	ServerID string `json:"serverId"`
	Detail   string `json:"detail,omitempty"`
}

// ConnectedPayload accompanies clientConnected.
type ConnectedPayload struct {
	ServerID     string   `json:"serverId"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities,omitempty"`
	PID          int      `json:"pid,omitempty"`
	ServerName   string   `json:"serverName,omitempty"`
}

// ReconnectingPayload accompanies clientReconnecting.
type ReconnectingPayload struct {
	ServerID string `json:"serverId"`
	Attempt  int    `json:"attempt"`
	Max      int    `json:"max"`
}

// ErrorPayload accompanies clientError and serverRestartFailed.
type ErrorPayload struct {
	ServerID string `json:"serverId"`
	Err      string `json:"error"`
}

// VersionPayload accompanies version* events.
type VersionPayload struct {
	ServerID string `json:"serverId"`
	Version  string `json:"version,omitempty"`
	Details  string `json:"details,omitempty"`
}

// OperationPayload accompanies toolCalled, resourceRead, and
// promptRetrieved.
type OperationPayload struct {
	ServerID string `json:"serverId"`
	Name     string `json:"name"`
}

// OutputPayload accompanies nonJsonOutput and stderrOutput.
type OutputPayload struct {
	ServerID string `json:"serverId"`
	Line     string `json:"line"`
	Benign   bool   `json:"benign,omitempty"`
}
