package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Version is the JSON-RPC protocol version carried by every envelope.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// MCP method names consumed by the host.
const (
	MethodInitialize    = "initialize"
	MethodInitialized   = "initialized"
	MethodShutdown      = "shutdown"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"
	MethodPromptsList   = "prompts/list"
	MethodPromptsGet    = "prompts/get"

	MethodToolsListChanged     = "notifications/tools/list_changed"
	MethodResourcesListChanged = "notifications/resources/list_changed"
	MethodPromptsListChanged   = "notifications/prompts/list_changed"
)

// ID is a JSON-RPC message id. The host always assigns integer ids, but
// peers occasionally echo them back as strings; unmarshaling accepts
// both so correlation never fails on a cosmetic difference.
type ID int64

// MarshalJSON encodes the id as a JSON number.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(id), 10)), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errors.New("null message id")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "unmarshaling string id")
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "non-numeric string id %q", s)
		}
		*id = ID(n)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid message id %s", data)
	}
	*id = ID(n)
	return nil
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Envelope is a single JSON-RPC 2.0 message: a request (id + method), a
// response (id + result or error), or a notification (method, no id).
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsRequest reports whether the envelope is a request expecting a
// response.
func (e *Envelope) IsRequest() bool {
	return e.ID != nil && e.Method != ""
}

// IsResponse reports whether the envelope is a response to an earlier
// request.
func (e *Envelope) IsResponse() bool {
	return e.ID != nil && e.Method == "" && (e.Result != nil || e.Error != nil)
}

// IsNotification reports whether the envelope is a notification.
func (e *Envelope) IsNotification() bool {
	return e.ID == nil && e.Method != ""
}

// NewRequest builds a request envelope. Params may be nil.
func NewRequest(id ID, method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Envelope{JSONRPC: Version, ID: &id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification envelope. Params may be nil.
func NewNotification(method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Envelope{JSONRPC: Version, Method: method, Params: raw}, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling params")
	}
	return raw, nil
}

// Encode renders the envelope as a single newline-terminated line ready
// for the wire.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling envelope")
	}
	return append(data, '\n'), nil
}
