package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/webcli/webcli/pkg/auth"
	"github.com/webcli/webcli/pkg/engine"
	"github.com/webcli/webcli/pkg/store"
)

// mapServiceError maps service-layer errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, store.ErrDuplicateEmail) {
		return echo.NewHTTPError(http.StatusConflict, "email already exists")
	}
	if errors.Is(err, store.ErrAlreadyInThread) {
		return echo.NewHTTPError(http.StatusConflict, "action is already in the thread")
	}
	if errors.Is(err, engine.ErrNoHandler) {
		return echo.NewHTTPError(http.StatusBadRequest, "no handler accepts this request")
	}
	if errors.Is(err, auth.ErrWrongPassword) || errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrInactiveUser) {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication failed")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
