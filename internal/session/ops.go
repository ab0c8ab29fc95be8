package session

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"

	hosterrors "github.com/thoreinstein/mcphost/internal/errors"
	"github.com/thoreinstein/mcphost/internal/events"
	"github.com/thoreinstein/mcphost/internal/protocol"
	"github.com/thoreinstein/mcphost/internal/registry"
)

// validate runs a message through the catalog before send. Warnings
// are published; errors abort the send.
func (s *Session) validate(method string, params any, versionID string) error {
	env, err := protocol.NewRequest(0, method, params)
	if err != nil {
		return err
	}
	res := s.catalog.ValidateMessage(env, versionID)
	for _, w := range res.Warnings {
		s.publish(events.KindVersionWarning, events.VersionPayload{
			ServerID: s.serverID,
			Version:  versionID,
			Details:  w,
		})
	}
	return res.Err()
}

// call guards an RPC with the running-state check and per-version
// validation, then issues it with the session's call timeout.
func (s *Session) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	s.mu.Lock()
	if s.state != registry.StateRunning || s.conn == nil {
		s.mu.Unlock()
		return nil, errors.Wrapf(hosterrors.ErrNotConnected, "server %s: %s", s.serverID, method)
	}
	conn := s.conn
	negotiatedVersion := s.negotiated.Version
	s.mu.Unlock()

	if err := s.validate(method, params, negotiatedVersion); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()
	return conn.Call(callCtx, method, params)
}

// ListTools fetches the peer's tools and refreshes the local cache.
func (s *Session) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	return s.refreshTools(ctx)
}

func (s *Session) refreshTools(ctx context.Context) ([]protocol.Tool, error) {
	raw, err := s.call(ctx, protocol.MethodToolsList, nil)
	if err != nil {
		return nil, err
	}
	var result protocol.ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "decoding tools/list result")
	}

	s.mu.Lock()
	s.tools = make(map[string]protocol.Tool, len(result.Tools))
	for _, tool := range result.Tools {
		s.tools[tool.Name] = tool
	}
	s.mu.Unlock()
	return result.Tools, nil
}

// CallTool invokes a named tool. Unknown names trigger one cache
// refresh before failing NotFound.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*protocol.CallToolResult, error) {
	if !s.haveTool(name) {
		if _, err := s.refreshTools(ctx); err != nil {
			return nil, err
		}
		if !s.haveTool(name) {
			return nil, errors.Wrapf(hosterrors.ErrNotFound, "tool %q on server %s", name, s.serverID)
		}
	}

	raw, err := s.call(ctx, protocol.MethodToolsCall, protocol.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var result protocol.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "decoding tools/call result")
	}

	s.publish(events.KindToolCalled, events.OperationPayload{ServerID: s.serverID, Name: name})
	return &result, nil
}

func (s *Session) haveTool(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tools[name]
	return ok
}

// ListResources fetches the peer's resources and refreshes the cache.
func (s *Session) ListResources(ctx context.Context) ([]protocol.Resource, error) {
	return s.refreshResources(ctx)
}

func (s *Session) refreshResources(ctx context.Context) ([]protocol.Resource, error) {
	raw, err := s.call(ctx, protocol.MethodResourcesList, nil)
	if err != nil {
		return nil, err
	}
	var result protocol.ListResourcesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "decoding resources/list result")
	}

	s.mu.Lock()
	s.resources = make(map[string]protocol.Resource, len(result.Resources))
	for _, res := range result.Resources {
		s.resources[res.URI] = res
	}
	s.mu.Unlock()
	return result.Resources, nil
}

// ReadResource reads a resource by URI.
func (s *Session) ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error) {
	raw, err := s.call(ctx, protocol.MethodResourcesRead, protocol.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, err
	}
	var result protocol.ReadResourceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "decoding resources/read result")
	}

	s.publish(events.KindResourceRead, events.OperationPayload{ServerID: s.serverID, Name: uri})
	return &result, nil
}

// ListPrompts fetches the peer's prompts and refreshes the cache.
func (s *Session) ListPrompts(ctx context.Context) ([]protocol.Prompt, error) {
	return s.refreshPrompts(ctx)
}

func (s *Session) refreshPrompts(ctx context.Context) ([]protocol.Prompt, error) {
	raw, err := s.call(ctx, protocol.MethodPromptsList, nil)
	if err != nil {
		return nil, err
	}
	var result protocol.ListPromptsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "decoding prompts/list result")
	}

	s.mu.Lock()
	s.prompts = make(map[string]protocol.Prompt, len(result.Prompts))
	for _, p := range result.Prompts {
		s.prompts[p.Name] = p
	}
	s.mu.Unlock()
	return result.Prompts, nil
}

// GetPrompt retrieves a prompt expansion. Unknown names trigger one
// cache refresh before failing NotFound.
func (s *Session) GetPrompt(ctx context.Context, name string, args map[string]string) (*protocol.GetPromptResult, error) {
	if !s.havePrompt(name) {
		if _, err := s.refreshPrompts(ctx); err != nil {
			return nil, err
		}
		if !s.havePrompt(name) {
			return nil, errors.Wrapf(hosterrors.ErrNotFound, "prompt %q on server %s", name, s.serverID)
		}
	}

	raw, err := s.call(ctx, protocol.MethodPromptsGet, protocol.GetPromptParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var result protocol.GetPromptResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "decoding prompts/get result")
	}

	s.publish(events.KindPromptRetrieved, events.OperationPayload{ServerID: s.serverID, Name: name})
	return &result, nil
}

func (s *Session) havePrompt(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.prompts[name]
	return ok
}

// Tools returns the cached tool listing.
func (s *Session) Tools() []protocol.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, t)
	}
	return out
}
