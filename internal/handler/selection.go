package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-ledger/internal/middleware"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
	"github.com/iliyamo/cinema-seat-ledger/internal/service"
	"github.com/iliyamo/cinema-seat-ledger/internal/session"
)

// SelectionHandler exposes seat selection: one selection is one sales
// session bound to one show.  All routes assume JWTAuth and RequireRole
// ran first.
type SelectionHandler struct {
	Booking *service.Booking
}

func NewSelectionHandler(b *service.Booking) *SelectionHandler {
	if b == nil {
		panic("nil booking passed to NewSelectionHandler")
	}
	return &SelectionHandler{Booking: b}
}

type openReq struct {
	// BuyerRef lets a cashier sell on behalf of a walk-in customer.
	BuyerRef string `json:"buyer_ref"`
}

type leaseResp struct {
	Status           string    `json:"status"`
	Pending          string    `json:"pending,omitempty"`
	Deadline         time.Time `json:"deadline"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

func leaseOf(l session.Lease) leaseResp {
	return leaseResp{
		Status:           string(l.Status),
		Pending:          string(l.Pending),
		Deadline:         l.Deadline,
		RemainingSeconds: int64(l.Remaining / time.Second),
	}
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// Open handles POST /v1/shows/:id/selections.
func (h *SelectionHandler) Open(c echo.Context) error {
	showID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var req openReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	buyer := "user:" + middleware.Subject(c)
	if req.BuyerRef != "" && middleware.Role(c) == RoleCashier {
		buyer = req.BuyerRef
	}

	sel, lease, err := h.Booking.Open(c.Request().Context(), showID, buyer)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"selection": sel,
		"lease":     leaseOf(lease),
	})
}

// Get handles GET /v1/selections/:sid.
func (h *SelectionHandler) Get(c echo.Context) error {
	view, err := h.Booking.Snapshot(c.Param("sid"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Hold handles PUT /v1/selections/:sid/seats/:seat.  A seat someone
// else holds or bought is 409; holding a seat twice is 200.
func (h *SelectionHandler) Hold(c echo.Context) error {
	seatID, ok := parseID(c, "seat")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}
	res, err := h.Booking.Hold(c.Param("sid"), seatID)
	if err != nil {
		return writeError(c, err)
	}
	if res == reservation.HoldConflict {
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"seat_id": seatID, "result": res.String()})
}

// Release handles DELETE /v1/selections/:sid/seats/:seat.  Releasing a
// seat the selection does not hold changes nothing and is reported in
// the result, not as an error.
func (h *SelectionHandler) Release(c echo.Context) error {
	seatID, ok := parseID(c, "seat")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}
	res, err := h.Booking.Release(c.Param("sid"), seatID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"seat_id": seatID, "result": res.String()})
}

type extendReq struct {
	Seconds int `json:"seconds"`
}

// Extend handles POST /v1/selections/:sid/extend.
func (h *SelectionHandler) Extend(c echo.Context) error {
	var req extendReq
	if err := c.Bind(&req); err != nil || req.Seconds <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seconds must be positive"})
	}
	lease, err := h.Booking.Extend(c.Param("sid"), time.Duration(req.Seconds)*time.Second)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, leaseOf(lease))
}

// Confirm handles POST /v1/selections/:sid/confirm.  On 503 the seats
// stay held and the client may retry within its window.
func (h *SelectionHandler) Confirm(c echo.Context) error {
	out, err := h.Booking.Checkout(c.Request().Context(), c.Param("sid"), middleware.CorrelationID(c))
	if err != nil {
		return writeError(c, err)
	}
	status := http.StatusCreated
	if out.Receipt.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, out)
}

// Cancel handles DELETE /v1/selections/:sid.  Cancelling twice is not
// an error; the final state is returned.  A cancel during checkout is
// 202: it applies only if the checkout fails.
func (h *SelectionHandler) Cancel(c echo.Context) error {
	lease, err := h.Booking.Cancel(c.Param("sid"))
	switch {
	case errors.Is(err, session.ErrCheckoutInProgress):
		return c.JSON(http.StatusAccepted, leaseOf(lease))
	case err != nil && lease.Status == "":
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, leaseOf(lease))
}
