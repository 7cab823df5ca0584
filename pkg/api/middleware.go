package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/webcli/webcli/pkg/models"
)

// accessTokenCookie is the cookie carrying the signed access token.
const accessTokenCookie = "access-token"

const userContextKey = "user"

// requireUser resolves the access-token cookie to a user and stores it on the
// request context. Requests without a valid token get 401.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(accessTokenCookie)
		if err != nil || cookie.Value == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		user, err := s.auth.UserFromToken(c.Request().Context(), cookie.Value)
		if err != nil {
			return mapServiceError(err)
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

// currentUser returns the user stored by requireUser.
func currentUser(c echo.Context) *models.User {
	user, _ := c.Get(userContextKey).(*models.User)
	return user
}
