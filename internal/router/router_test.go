package router

import (
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/cinema-seat-ledger/internal/handler"
)

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func TestRoutesRegistered(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e, nil, &handler.AuthHandler{}, &handler.LayoutHandler{}, passthrough)
	RegisterSelection(e, &handler.SelectionHandler{}, &handler.EventsHandler{}, "secret", passthrough)

	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"GET /healthz",
		"POST /v1/auth/login",
		"GET /v1/shows/:id/layout",
		"POST /v1/shows/:id/selections",
		"GET /v1/selections/:sid",
		"PUT /v1/selections/:sid/seats/:seat",
		"DELETE /v1/selections/:sid/seats/:seat",
		"POST /v1/selections/:sid/extend",
		"POST /v1/selections/:sid/confirm",
		"DELETE /v1/selections/:sid",
		"GET /v1/shows/:id/events",
		"GET /v1/selections/:sid/events",
	} {
		assert.True(t, got[want], want)
	}
}
