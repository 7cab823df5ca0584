// Package system implements the built-in action handler: html, markdown, and
// mermaid passthrough, per-handler user configuration, and a per-user
// persistent code interpreter.
package system

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/webcli/webcli/pkg/engine"
	"github.com/webcli/webcli/pkg/models"
)

// HandlerName is the registry name of this handler.
const HandlerName = "system"

const (
	mimeHTML     = "text/html"
	mimeMarkdown = "text/markdown"
	mimeMermaid  = "application/x-webcli-mermaid"
	mimePlain    = "text/plain"
)

const configNotJSONMessage = "config content MUST be JSON format, please retry!"

// parsedRequest is the request shape this handler accepts.
type parsedRequest struct {
	Type        string
	CommandText string
	Args        string
}

// Handler is the system action handler.
type Handler struct {
	service  engine.Service
	sessions *sessionRegistry

	// AgentFactory backs the interpreter's create_ai_agent builtin. Nil
	// means the builtin reports that no agent backend is configured.
	AgentFactory AgentFactory
}

// New creates the system handler.
func New() *Handler {
	return &Handler{sessions: newSessionRegistry()}
}

// Startup stores the service facade.
func (h *Handler) Startup(service engine.Service) error {
	h.service = service
	return nil
}

// Shutdown discards all interpreter sessions.
func (h *Handler) Shutdown() error {
	h.sessions.clear()
	return nil
}

// CanHandle accepts requests with a known type and string command_text/args.
func (h *Handler) CanHandle(request models.JSONMap) bool {
	return h.parseRequest(request) != nil
}

func (h *Handler) parseRequest(request models.JSONMap) *parsedRequest {
	reqType, ok := request["type"].(string)
	if !ok {
		return nil
	}
	switch reqType {
	case "config", "mermaid", "html", "markdown", "python":
	default:
		return nil
	}
	commandText, ok := request["command_text"].(string)
	if !ok {
		return nil
	}
	args, ok := request["args"].(string)
	if !ok {
		return nil
	}
	return &parsedRequest{Type: reqType, CommandText: commandText, Args: args}
}

// Handle dispatches on the request type.
func (h *Handler) Handle(ctx context.Context, actionID int64, request models.JSONMap, user *models.User, config models.JSONMap) bool {
	parsed := h.parseRequest(request)
	if parsed == nil {
		// Unreachable through the engine, which only dispatches after
		// CanHandle accepted the request.
		slog.Error("Request no longer parses, completing without output", "action_id", actionID)
		return true
	}

	switch parsed.Type {
	case "html":
		return h.passthrough(ctx, actionID, mimeHTML, parsed.CommandText, user)
	case "markdown":
		return h.passthrough(ctx, actionID, mimeMarkdown, parsed.CommandText, user)
	case "mermaid":
		return h.passthrough(ctx, actionID, mimeMermaid, parsed.CommandText, user)
	case "config":
		return h.handleConfig(ctx, actionID, parsed, user)
	case "python":
		return h.handlePython(ctx, actionID, parsed, user)
	}
	return true
}

func (h *Handler) passthrough(ctx context.Context, actionID int64, mime, content string, user *models.User) bool {
	if err := h.service.AppendResponse(ctx, actionID, mime, &content, nil, user); err != nil {
		slog.Error("Failed to append response", "action_id", actionID, "mime", mime, "error", err)
		return false
	}
	return true
}

// handleConfig implements "config <get|set> <handler_name>".
func (h *Handler) handleConfig(ctx context.Context, actionID int64, parsed *parsedRequest, user *models.User) bool {
	verb, handlerName, ok := parseConfigArgs(parsed.Args)
	if !ok {
		return h.passthroughPlain(ctx, actionID, "wrong syntax, expecting: <get|set> <action-handler-name>", user)
	}

	switch verb {
	case "get":
		config, err := h.service.GetHandlerUserConfig(ctx, handlerName, user)
		if err != nil {
			slog.Error("Failed to read handler config", "action_id", actionID, "handler", handlerName, "error", err)
			return false
		}
		return h.passthroughPlain(ctx, actionID, prettyJSON(config), user)

	case "set":
		var content models.JSONMap
		if err := json.Unmarshal([]byte(parsed.CommandText), &content); err != nil {
			return h.passthroughPlain(ctx, actionID, configNotJSONMessage, user)
		}
		if err := h.service.SetHandlerUserConfig(ctx, handlerName, user, content); err != nil {
			slog.Error("Failed to write handler config", "action_id", actionID, "handler", handlerName, "error", err)
			return false
		}
		return h.passthroughPlain(ctx, actionID, prettyJSON(content), user)
	}
	return true
}

func (h *Handler) passthroughPlain(ctx context.Context, actionID int64, content string, user *models.User) bool {
	return h.passthrough(ctx, actionID, mimePlain, content, user)
}

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
