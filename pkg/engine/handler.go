package engine

import (
	"context"
	"errors"

	"github.com/webcli/webcli/pkg/models"
)

// ErrNoHandler is returned when no registered handler accepts a request.
var ErrNoHandler = errors.New("no handler accepts this request")

// Handler processes actions of one flavor. Handlers run on pool workers and
// stream output through the Service they received at startup.
type Handler interface {
	// CanHandle reports whether this handler accepts the request. The engine
	// asks handlers in registration order and dispatches to the first match.
	CanHandle(request models.JSONMap) bool

	// Startup gives the handler its service facade. A handler that fails to
	// start is removed from dispatch.
	Startup(service Service) error

	// Shutdown releases handler resources.
	Shutdown() error

	// Handle processes one action. Returning true completes the action;
	// returning false leaves it pending for asynchronous completion.
	Handle(ctx context.Context, actionID int64, request models.JSONMap, user *models.User, config models.JSONMap) bool
}

// Service is the facade handlers use to talk back to the engine.
type Service interface {
	// AppendResponse persists a response chunk and notifies thread
	// subscribers.
	AppendResponse(ctx context.Context, actionID int64, mime string, textContent *string, binaryContent []byte, user *models.User) error

	// CompleteAction marks an action completed and notifies thread
	// subscribers.
	CompleteAction(ctx context.Context, actionID int64, user *models.User) error

	// GetHandlerUserConfig reads a handler's per-user configuration.
	GetHandlerUserConfig(ctx context.Context, handlerName string, user *models.User) (models.JSONMap, error)

	// SetHandlerUserConfig replaces a handler's per-user configuration.
	SetHandlerUserConfig(ctx context.Context, handlerName string, user *models.User, config models.JSONMap) error

	// GetHandler returns a registered handler by name, nil when absent.
	GetHandler(name string) Handler

	// UsersHomeDir is the parent directory of all per-user home directories.
	UsersHomeDir() string
}
