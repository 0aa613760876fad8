package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-ledger/internal/middleware"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
	"github.com/iliyamo/cinema-seat-ledger/internal/service"
	"github.com/iliyamo/cinema-seat-ledger/internal/session"
)

// errorStatus maps booking errors to an HTTP status and a client-safe
// message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, reservation.ErrUnknownSeat):
		return http.StatusUnprocessableEntity, "seat does not exist in this room"
	case errors.Is(err, reservation.ErrShowNotFound):
		return http.StatusNotFound, "show not found"
	case errors.Is(err, service.ErrUnknownSelection),
		errors.Is(err, session.ErrUnknownSession),
		errors.Is(err, reservation.ErrSessionNotBound):
		return http.StatusNotFound, "selection not found"
	case errors.Is(err, reservation.ErrNothingHeld):
		return http.StatusBadRequest, "no seats held"
	case errors.Is(err, reservation.ErrConfirmInProgress),
		errors.Is(err, session.ErrCheckoutInProgress):
		return http.StatusConflict, "checkout in progress"
	case errors.Is(err, reservation.ErrSeatAlreadySold):
		return http.StatusConflict, "seats already sold, selection closed"
	case errors.Is(err, reservation.ErrLeaseExpired),
		errors.Is(err, session.ErrSessionClosed):
		return http.StatusConflict, "selection closed"
	case errors.Is(err, session.ErrExtensionLimit):
		return http.StatusConflict, "purchase window cannot be extended further"
	case errors.Is(err, service.ErrSalesClosed):
		return http.StatusConflict, "sales closed for this show"
	case errors.Is(err, reservation.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "seat data unavailable, try again"
	case errors.Is(err, reservation.ErrSaleNotRecorded):
		return http.StatusServiceUnavailable, "sale not recorded, seats are still held"
	}
	return http.StatusInternalServerError, "internal error"
}

func writeError(c echo.Context, err error) error {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		middleware.Logger(c).WithError(err).Error("unhandled error")
	}
	return c.JSON(status, echo.Map{"error": msg})
}
