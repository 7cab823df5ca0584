// Package engine dispatches incoming actions to handlers and fans handler
// output out to thread subscribers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/webcli/webcli/pkg/events"
	"github.com/webcli/webcli/pkg/models"
	"github.com/webcli/webcli/pkg/queue"
	"github.com/webcli/webcli/pkg/store"
)

const mimePNG = "image/png"

// Engine wires the store, the notification bus, and the worker pool together
// behind the handler Service facade.
type Engine struct {
	store        *store.Store
	bus          *events.Bus
	pool         *queue.WorkerPool
	usersHomeDir string
	resourceDir  string

	handlerNames []string
	handlers     map[string]Handler
}

// New creates an engine with an empty handler registry.
func New(st *store.Store, bus *events.Bus, pool *queue.WorkerPool, usersHomeDir, resourceDir string) *Engine {
	return &Engine{
		store:        st,
		bus:          bus,
		pool:         pool,
		usersHomeDir: usersHomeDir,
		resourceDir:  resourceDir,
		handlers:     make(map[string]Handler),
	}
}

// RegisterHandler adds a handler under a name. Registration order decides
// dispatch priority.
func (e *Engine) RegisterHandler(name string, h Handler) {
	if _, ok := e.handlers[name]; ok {
		return
	}
	e.handlerNames = append(e.handlerNames, name)
	e.handlers[name] = h
}

// Startup starts all registered handlers. A handler that fails to start is
// logged and removed from dispatch; the engine itself still starts.
func (e *Engine) Startup() {
	for _, name := range e.handlerNames {
		h := e.handlers[name]
		if err := h.Startup(e); err != nil {
			slog.Error("Action handler failed to start, removing it", "handler", name, "error", err)
			delete(e.handlers, name)
		}
	}
	slog.Info("All action handlers started", "count", len(e.handlers))
}

// Shutdown stops all handlers, tolerating individual failures.
func (e *Engine) Shutdown() {
	for _, name := range e.handlerNames {
		h, ok := e.handlers[name]
		if !ok {
			continue
		}
		if err := h.Shutdown(); err != nil {
			slog.Error("Action handler failed to shut down", "handler", name, "error", err)
		}
	}
	slog.Info("All action handlers shut down")
}

// CreateThreadAction creates an action in the thread and dispatches it to the
// first handler accepting the request. The call returns as soon as the action
// is stored; the handler runs on a pool worker.
func (e *Engine) CreateThreadAction(ctx context.Context, threadID int64, req *models.CreateThreadActionRequest, user *models.User) (*models.ThreadAction, error) {
	handlerName, handler := e.discoverHandler(req.Request)
	if handler == nil {
		return nil, ErrNoHandler
	}

	threadAction, err := e.store.CreateActionInThread(ctx, threadID, handlerName, req, user)
	if err != nil {
		return nil, err
	}
	actionID := threadAction.Action.ID

	config, err := e.GetHandlerUserConfig(ctx, handlerName, user)
	if err != nil {
		slog.Error("Failed to load handler user config, using empty",
			"handler", handlerName, "action_id", actionID, "error", err)
		config = models.JSONMap{}
	}

	task := queue.Task{
		Name: fmt.Sprintf("%s-action-%d", handlerName, actionID),
		Run: func(taskCtx context.Context) {
			e.runHandler(taskCtx, handler, handlerName, actionID, req.Request, user, config)
		},
	}
	if err := e.pool.Submit(task); err != nil {
		slog.Error("Failed to submit action to worker pool",
			"handler", handlerName, "action_id", actionID, "error", err)
		return nil, fmt.Errorf("failed to dispatch action %d: %w", actionID, err)
	}
	return threadAction, nil
}

// runHandler invokes the handler and completes the action when it reports
// success. A handler that panics or returns false leaves the action pending.
func (e *Engine) runHandler(ctx context.Context, h Handler, handlerName string, actionID int64, request models.JSONMap, user *models.User, config models.JSONMap) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Action handler panicked", "handler", handlerName, "action_id", actionID, "panic", r)
		}
	}()

	if h.Handle(ctx, actionID, request, user, config) {
		if err := e.CompleteAction(ctx, actionID, user); err != nil {
			slog.Error("Failed to complete action", "handler", handlerName, "action_id", actionID, "error", err)
			return
		}
		slog.Debug("Action handled", "handler", handlerName, "action_id", actionID)
	}
}

// discoverHandler returns the first registered handler accepting the request.
func (e *Engine) discoverHandler(request models.JSONMap) (string, Handler) {
	for _, name := range e.handlerNames {
		h, ok := e.handlers[name]
		if !ok {
			continue
		}
		if h.CanHandle(request) {
			return name, h
		}
	}
	return "", nil
}

// AppendResponse persists a response chunk and publishes it to every thread
// containing the action. PNG chunks are spilled to the resource directory so
// the notification carries a file path instead of the image bytes.
func (e *Engine) AppendResponse(ctx context.Context, actionID int64, mime string, textContent *string, binaryContent []byte, user *models.User) error {
	chunk, err := e.store.AppendResponseToAction(ctx, actionID, mime, textContent, binaryContent, user)
	if err != nil {
		return err
	}

	notifyText := chunk.TextContent
	if mime == mimePNG && len(binaryContent) > 0 {
		resourcePath, err := e.writeResourceFile(actionID, chunk.ID, binaryContent)
		if err != nil {
			slog.Error("Failed to write resource file", "action_id", actionID, "chunk_id", chunk.ID, "error", err)
		} else {
			notifyText = &resourcePath
		}
	}

	threadIDs, err := e.store.GetThreadIDsForAction(ctx, actionID)
	if err != nil {
		return err
	}
	payload := events.ResponseChunkPayload{
		Type:        events.TypeActionResponseChunk,
		ID:          chunk.ID,
		ActionID:    actionID,
		Order:       chunk.Order,
		Mime:        chunk.Mime,
		TextContent: notifyText,
	}
	e.bus.PublishAll(topicsForThreads(threadIDs), payload)
	return nil
}

// CompleteAction marks the action completed and announces it to every thread
// containing it.
func (e *Engine) CompleteAction(ctx context.Context, actionID int64, user *models.User) error {
	action, err := e.store.CompleteAction(ctx, actionID, user)
	if err != nil {
		return err
	}

	threadIDs, err := e.store.GetThreadIDsForAction(ctx, actionID)
	if err != nil {
		return err
	}
	payload := events.ActionCompletedPayload{
		Type:        events.TypeActionCompleted,
		ActionID:    actionID,
		CompletedAt: *action.CompletedAt,
	}
	e.bus.PublishAll(topicsForThreads(threadIDs), payload)
	return nil
}

// GetHandlerUserConfig reads a handler's per-user configuration.
func (e *Engine) GetHandlerUserConfig(ctx context.Context, handlerName string, user *models.User) (models.JSONMap, error) {
	return e.store.GetActionHandlerUserConfig(ctx, handlerName, user)
}

// SetHandlerUserConfig replaces a handler's per-user configuration.
func (e *Engine) SetHandlerUserConfig(ctx context.Context, handlerName string, user *models.User, config models.JSONMap) error {
	_, err := e.store.SetActionHandlerUserConfig(ctx, handlerName, user, config)
	return err
}

// GetHandler returns a registered handler by name, nil when absent.
func (e *Engine) GetHandler(name string) Handler {
	return e.handlers[name]
}

// UsersHomeDir is the parent directory of all per-user home directories.
func (e *Engine) UsersHomeDir() string {
	return e.usersHomeDir
}

// writeResourceFile stores chunk bytes under the resource directory and
// returns the path relative to it.
func (e *Engine) writeResourceFile(actionID, chunkID int64, data []byte) (string, error) {
	relPath := filepath.Join(fmt.Sprintf("%d", actionID), fmt.Sprintf("%d.png", chunkID))
	fullPath := filepath.Join(e.resourceDir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create resource directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write resource file: %w", err)
	}
	return relPath, nil
}

func topicsForThreads(threadIDs []int64) []string {
	topics := make([]string, 0, len(threadIDs))
	for _, id := range threadIDs {
		topics = append(topics, events.TopicForThread(id))
	}
	return topics
}
