package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/webcli/webcli/pkg/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createThreadRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type patchThreadRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type patchThreadActionRequest struct {
	ShowQuestion *bool `json:"show_question"`
	ShowAnswer   *bool `json:"show_answer"`
}

type patchActionRequest struct {
	Title *string `json:"title"`
}

// loginHandler handles POST /api/login. On success the access token is both
// returned and set as the access-token cookie.
func (s *Server) loginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	token, err := s.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}

	c.SetCookie(&http.Cookie{
		Name:     accessTokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	return c.JSON(http.StatusOK, map[string]string{"access_token": token})
}

// listThreadsHandler handles GET /api/threads.
func (s *Server) listThreadsHandler(c echo.Context) error {
	threads, err := s.store.ListThreads(c.Request().Context(), currentUser(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, threads)
}

// createThreadHandler handles POST /api/threads.
func (s *Server) createThreadHandler(c echo.Context) error {
	var req createThreadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	thread, err := s.store.CreateThread(c.Request().Context(), req.Title, req.Description, currentUser(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, thread)
}

// getThreadHandler handles GET /api/threads/:id.
func (s *Server) getThreadHandler(c echo.Context) error {
	threadID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	thread, err := s.store.GetThread(c.Request().Context(), threadID, currentUser(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, thread)
}

// patchThreadHandler handles PATCH /api/threads/:id.
func (s *Server) patchThreadHandler(c echo.Context) error {
	threadID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req patchThreadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	thread, err := s.store.PatchThread(c.Request().Context(), threadID, currentUser(c), req.Title, req.Description)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, thread)
}

// deleteThreadHandler handles DELETE /api/threads/:id.
func (s *Server) deleteThreadHandler(c echo.Context) error {
	threadID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := s.store.DeleteThread(c.Request().Context(), threadID, currentUser(c)); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// createThreadActionHandler handles POST /api/threads/:id/actions. The action
// is dispatched to a handler asynchronously; the response returns before the
// handler runs.
func (s *Server) createThreadActionHandler(c echo.Context) error {
	threadID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req models.CreateThreadActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	threadAction, err := s.engine.CreateThreadAction(c.Request().Context(), threadID, &req, currentUser(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, threadAction)
}

// appendActionHandler handles POST /api/threads/:id/actions/:action_id,
// linking an existing action into the thread.
func (s *Server) appendActionHandler(c echo.Context) error {
	threadID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	actionID, err := pathID(c, "action_id")
	if err != nil {
		return err
	}
	threadAction, err := s.store.AppendActionToThread(c.Request().Context(), threadID, actionID, currentUser(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, threadAction)
}

// patchThreadActionHandler handles PATCH /api/threads/:id/actions/:action_id.
func (s *Server) patchThreadActionHandler(c echo.Context) error {
	threadID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	actionID, err := pathID(c, "action_id")
	if err != nil {
		return err
	}
	var req patchThreadActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	threadAction, err := s.store.PatchThreadAction(c.Request().Context(), threadID, actionID, currentUser(c), req.ShowQuestion, req.ShowAnswer)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, threadAction)
}

// removeActionHandler handles DELETE /api/threads/:id/actions/:action_id. The
// action itself is preserved.
func (s *Server) removeActionHandler(c echo.Context) error {
	threadID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	actionID, err := pathID(c, "action_id")
	if err != nil {
		return err
	}
	removed, err := s.store.RemoveActionFromThread(c.Request().Context(), threadID, actionID, currentUser(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"removed": removed})
}

// patchActionHandler handles PATCH /api/actions/:id.
func (s *Server) patchActionHandler(c echo.Context) error {
	actionID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req patchActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	action, err := s.store.PatchAction(c.Request().Context(), actionID, currentUser(c), req.Title)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, action)
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return id, nil
}
