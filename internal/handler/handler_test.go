package handler_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cinema-seat-ledger/internal/handler"
	"github.com/iliyamo/cinema-seat-ledger/internal/middleware"
	"github.com/iliyamo/cinema-seat-ledger/internal/model"
	"github.com/iliyamo/cinema-seat-ledger/internal/queue"
	"github.com/iliyamo/cinema-seat-ledger/internal/repository"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation/reservationtest"
	"github.com/iliyamo/cinema-seat-ledger/internal/service"
	"github.com/iliyamo/cinema-seat-ledger/internal/session"
	"github.com/iliyamo/cinema-seat-ledger/internal/stream"
	"github.com/iliyamo/cinema-seat-ledger/internal/utils"
)

const secret = "test-secret"

type handoffFunc func(ctx context.Context, correlationID string, event queue.SeatsConfirmedEvent) error

func (f handoffFunc) HandoffTickets(ctx context.Context, correlationID string, event queue.SeatsConfirmedEvent) error {
	return f(ctx, correlationID, event)
}

type users map[string]model.User

func (u users) GetByEmail(_ context.Context, email string) (model.User, error) {
	if user, ok := u[email]; ok {
		return user, nil
	}
	return model.User{}, repository.ErrUserNotFound
}

type testEnv struct {
	e        *echo.Echo
	hub      *stream.Hub
	booking  *service.Booking
	recorder *reservationtest.Recorder
	token    string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	log := logrus.NewEntry(logrus.New())
	hub := stream.NewHub(log)
	t.Cleanup(func() { _ = hub.Close() })

	catalog := reservationtest.NewCatalog(reservationtest.Layout(101, 8, 10))
	recorder := reservationtest.NewRecorder()
	registry := reservation.NewRegistry(catalog, reservationtest.NewOccupancy(), recorder,
		[]reservation.SeatSelectionSubscriber{hub}, reservation.WithLogger(log))
	supervisor := session.NewSupervisor(session.Config{
		Window:       time.Minute,
		TickInterval: 50 * time.Millisecond,
		MaxExtension: time.Minute,
	}, log)
	handoff := handoffFunc(func(context.Context, string, queue.SeatsConfirmedEvent) error { return nil })
	booking := service.NewBooking(registry, supervisor, handoff, hub, nil, service.Config{}, log)

	hashed, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	hash := string(hashed)
	auth := handler.NewAuthHandler(secret, 60, users{
		"cashier@cinema.test": {ID: 7, Email: "cashier@cinema.test", PasswordHash: hash, Role: handler.RoleCashier, IsActive: true},
		"owner@cinema.test":   {ID: 8, Email: "owner@cinema.test", PasswordHash: hash, Role: "OWNER", IsActive: true},
	})

	e := echo.New()
	e.Use(middleware.Correlation(log))
	e.POST("/v1/auth/login", auth.Login)
	e.GET("/v1/shows/:id/layout", handler.NewLayoutHandler(catalog).Layout)

	sel := handler.NewSelectionHandler(booking)
	events := handler.NewEventsHandler(hub, booking)
	g := e.Group("/v1", middleware.JWTAuth(secret), middleware.RequireRole(handler.RoleCashier, handler.RoleCustomer))
	g.POST("/shows/:id/selections", sel.Open)
	g.GET("/shows/:id/events", events.ShowEvents)
	g.GET("/selections/:sid", sel.Get)
	g.PUT("/selections/:sid/seats/:seat", sel.Hold)
	g.DELETE("/selections/:sid/seats/:seat", sel.Release)
	g.POST("/selections/:sid/extend", sel.Extend)
	g.POST("/selections/:sid/confirm", sel.Confirm)
	g.DELETE("/selections/:sid", sel.Cancel)
	g.GET("/selections/:sid/events", events.SessionEvents)

	tok, err := utils.NewAccessToken(secret, 7, handler.RoleCustomer, 60)
	require.NoError(t, err)
	return testEnv{e: e, hub: hub, booking: booking, recorder: recorder, token: tok.Token}
}

func (env testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+env.token)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env testEnv) open(t *testing.T) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/v1/shows/101/selections", "{}")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Selection service.Selection `json:"selection"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Selection.SessionID)
	assert.Equal(t, "user:7", out.Selection.BuyerRef)
	return out.Selection.SessionID
}

func TestSelection_HoldConfirmFlow(t *testing.T) {
	env := newTestEnv(t)
	a := env.open(t)
	b := env.open(t)

	rec := env.do(t, http.MethodPut, "/v1/selections/"+a+"/seats/54", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPut, "/v1/selections/"+a+"/seats/54", "")
	assert.Equal(t, http.StatusOK, rec.Code, "holding twice is not a conflict")

	rec = env.do(t, http.MethodPut, "/v1/selections/"+b+"/seats/54", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"seat unavailable"}`, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/v1/selections/"+b+"/seats/999", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/selections/"+a, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view service.SelectionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, []uint64{54}, view.Held)
	assert.Equal(t, model.SessionRunning, view.Status)
	assert.Len(t, view.Seats, 80)

	rec = env.do(t, http.MethodPost, "/v1/selections/"+a+"/confirm", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out service.Checkout
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []string{"101-F4"}, out.Receipt.TicketRefs)

	rec = env.do(t, http.MethodPost, "/v1/selections/"+a+"/confirm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"selection closed"}`, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/v1/selections/"+b+"/seats/54", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"seat_id":54,"result":"not_held_by_session"}`, rec.Body.String())
}

func TestSelection_ConfirmStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	a := env.open(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/v1/selections/"+a+"/seats/3", "").Code)

	env.recorder.SetFail(errors.New("deadlock found"))
	rec := env.do(t, http.MethodPost, "/v1/selections/"+a+"/confirm", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.recorder.SetFail(nil)
	rec = env.do(t, http.MethodPost, "/v1/selections/"+a+"/confirm", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSelection_CancelAndExtend(t *testing.T) {
	env := newTestEnv(t)
	a := env.open(t)

	rec := env.do(t, http.MethodPost, "/v1/selections/"+a+"/extend", `{"seconds":30}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/v1/selections/"+a+"/extend", `{"seconds":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/v1/selections/"+a+"/extend", `{"seconds":3600}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/v1/selections/"+a+"/seats/1", "").Code)
	rec = env.do(t, http.MethodDelete, "/v1/selections/"+a, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CANCELLED"`)

	rec = env.do(t, http.MethodDelete, "/v1/selections/"+a, "")
	assert.Equal(t, http.StatusOK, rec.Code, "cancelling twice reports the final state")

	rec = env.do(t, http.MethodPut, "/v1/selections/"+a+"/seats/1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"selection closed"}`, rec.Body.String())
}

func TestSelection_NotFoundAndAuth(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/selections/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/v1/shows/999/selections", "{}").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/v1/shows/abc/selections", "{}").Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/selections/nope", nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLayout(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/shows/101/layout", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var layout model.RoomLayout
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &layout))
	assert.Len(t, layout.Seats, 80)

	rec = httptest.NewRecorder()
	env.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/shows/999/layout", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	login := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)
		return rec
	}

	rec := login(`{"email":" Cashier@Cinema.test ","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"CASHIER"`)

	assert.Equal(t, http.StatusUnauthorized, login(`{"email":"cashier@cinema.test","password":"nope"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, login(`{"email":"ghost@cinema.test","password":"pw"}`).Code)
	assert.Equal(t, http.StatusForbidden, login(`{"email":"owner@cinema.test","password":"pw"}`).Code)
	assert.Equal(t, http.StatusBadRequest, login(`{"email":""}`).Code)
}

func TestShowEvents_StreamsViewForViewer(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.e)
	defer srv.Close()

	a := env.open(t)
	b := env.open(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/shows/101/events?session="+b+"&access_token="+env.token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	_, err = env.booking.Hold(a, 54)
	require.NoError(t, err)

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	assert.Equal(t, stream.EventSeat, event)
	assert.Contains(t, data, `"view":"HELD_BY_OTHER"`)
	assert.Contains(t, data, `"label":"F4"`)
	assert.NotContains(t, data, a, "holder session id must not leak")
}

func TestShowEvents_NewerSeatChangeWins(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/shows/101/events?session=viewer&access_token="+env.token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	seat := reservationtest.Layout(101, 8, 10).Seats[6]
	const changes = 200
	for i := uint64(1); i <= changes; i++ {
		state := model.SeatHeld
		if i%2 == 0 {
			state = model.SeatFree
		}
		env.hub.OnSeatStateChanged(reservation.SeatChange{
			ShowID:    101,
			Seat:      seat,
			State:     state,
			SessionID: "holder",
			Seq:       i,
			At:        time.Now(),
		})
	}

	type seatFrame struct {
		SeatID uint64         `json:"seat_id"`
		View   model.SeatView `json:"view"`
		Seq    uint64         `json:"seq"`
	}
	reader := bufio.NewReader(resp.Body)
	var got []seatFrame
	for len(got) == 0 || got[len(got)-1].Seq != changes {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f seatFrame
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f))
		if len(got) > 0 {
			require.Greater(t, f.Seq, got[len(got)-1].Seq, "seat events arrive newest last")
		}
		got = append(got, f)
	}
	last := got[len(got)-1]
	assert.Equal(t, seat.ID, last.SeatID)
	assert.Equal(t, model.ViewFree, last.View, "the final frame matches the last transition")
}
