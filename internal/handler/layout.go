package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-ledger/internal/middleware"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
)

// LayoutHandler serves the static room plan of a show.  It is public
// and cached in Redis; seat state is fetched per selection instead.
type LayoutHandler struct {
	Catalog reservation.CatalogReader
}

func NewLayoutHandler(catalog reservation.CatalogReader) *LayoutHandler {
	return &LayoutHandler{Catalog: catalog}
}

// Layout handles GET /v1/shows/:id/layout.
func (h *LayoutHandler) Layout(c echo.Context) error {
	showID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	layout, err := h.Catalog.GetRoomLayout(ctx, showID)
	if err != nil {
		if errors.Is(err, reservation.ErrShowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
		}
		middleware.Logger(c).WithError(err).WithField("show_id", showID).Error("loading room layout")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "layout unavailable"})
	}
	return c.JSON(http.StatusOK, layout)
}
