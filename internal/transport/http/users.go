package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_store/internal/logging"
	"github.com/Skotchmaster/online_store/internal/middleware/auth"
	"github.com/Skotchmaster/online_store/internal/service"
	"github.com/Skotchmaster/online_store/internal/transport"
)

type UserHTTP struct {
	Svc            *service.UserService
	CookieLifetime time.Duration
}

func (h *UserHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if _, err := h.Svc.Register(ctx, req); err != nil {
		return fail(l, "register", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User registered successfully"})
}

func (h *UserHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	token, user, err := h.Svc.Login(ctx, req)
	if err != nil {
		return fail(l, "login", err)
	}

	c.SetCookie(auth.CreateCookie(auth.CookieName, token, "/", h.CookieLifetime))
	l.Info("login_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "Login successful"})
}

func (h *UserHTTP) GetMe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.get_me")

	id, err := identity(c)
	if err != nil {
		return err
	}
	user, err := h.Svc.GetMe(ctx, id.ID)
	if err != nil {
		return fail(l, "get_me", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

func (h *UserHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.update")

	caller, err := identity(c)
	if err != nil {
		return err
	}
	targetID, err := parseID(c, "userId")
	if err != nil {
		l.Warn("update_failed", "status", 400, "reason", "invalid user id")
		return err
	}

	var req transport.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.UpdateUser(ctx, caller.ID, caller.Role, targetID, req)
	if err != nil {
		return fail(l, "update", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

func (h *UserHTTP) Logout(c echo.Context) error {
	c.SetCookie(auth.DeleteCookie(auth.CookieName, "/"))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully..."})
}
