package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-ledger/internal/middleware"
	"github.com/iliyamo/cinema-seat-ledger/internal/model"
	"github.com/iliyamo/cinema-seat-ledger/internal/repository"
	"github.com/iliyamo/cinema-seat-ledger/internal/utils"
)

// Roles allowed to sell seats.
const (
	RoleCashier  = "CASHIER"
	RoleCustomer = "CUSTOMER"
)

// UserFinder looks accounts up by email.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// AuthHandler issues access tokens to box office operators and
// customers.
type AuthHandler struct {
	Secret       string
	AccessTTLMin int
	Users        UserFinder
}

func NewAuthHandler(secret string, accessTTLMin int, users UserFinder) *AuthHandler {
	return &AuthHandler{Secret: secret, AccessTTLMin: accessTTLMin, Users: users}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	Role    string    `json:"role"`
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		middleware.Logger(c).WithError(err).Error("looking up user")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err := utils.CheckPassword(u.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, utils.ErrPasswordMismatch) {
			middleware.Logger(c).WithError(err).WithField("user_id", u.ID).Warn("stored password hash unreadable")
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if u.Role != RoleCashier && u.Role != RoleCustomer {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "role may not sell seats"})
	}

	access, err := utils.NewAccessToken(h.Secret, u.ID, u.Role, h.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, loginResp{Token: access.Token, Expires: access.Exp, Role: u.Role})
}
