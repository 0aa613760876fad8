// Package router defines how HTTP routes are registered for the API.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-ledger/internal/handler"
)

// RegisterRoutes registers non-authenticated routes: the health check,
// login and the cached room layout.
func RegisterRoutes(e *echo.Echo, db *sql.DB, a *handler.AuthHandler, l *handler.LayoutHandler, cache echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health(db))
	e.POST("/v1/auth/login", a.Login)
	e.GET("/v1/shows/:id/layout", l.Layout, cache)
}
