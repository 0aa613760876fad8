package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-ledger/internal/handler"
	"github.com/iliyamo/cinema-seat-ledger/internal/middleware"
)

// RegisterSelection registers seat selection endpoints under /v1.  All
// routes require a valid JWT with the CASHIER or CUSTOMER role and are
// rate limited per user.
func RegisterSelection(e *echo.Echo, s *handler.SelectionHandler, ev *handler.EventsHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(handler.RoleCashier, handler.RoleCustomer),
	)

	g.POST("/shows/:id/selections", s.Open, limit)
	g.GET("/selections/:sid", s.Get, limit)
	g.PUT("/selections/:sid/seats/:seat", s.Hold, limit)
	g.DELETE("/selections/:sid/seats/:seat", s.Release, limit)
	g.POST("/selections/:sid/extend", s.Extend, limit)
	g.POST("/selections/:sid/confirm", s.Confirm, limit)
	g.DELETE("/selections/:sid", s.Cancel, limit)

	// Streams are long-lived; one token per connection, not per event.
	g.GET("/shows/:id/events", ev.ShowEvents, limit)
	g.GET("/selections/:sid/events", ev.SessionEvents, limit)
}
