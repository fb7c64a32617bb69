package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_store/internal/middleware/auth"
	"github.com/Skotchmaster/online_store/internal/search"
	"github.com/Skotchmaster/online_store/internal/service"
)

var statusBySentinel = []struct {
	err    error
	status int
}{
	{service.ErrValidation, http.StatusBadRequest},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrConflict, http.StatusConflict},
	{search.ErrSearchFailed, http.StatusBadGateway},
	{service.ErrSearchUnavailable, http.StatusServiceUnavailable},
}

// fail logs err and converts it to the HTTP error the client sees. The
// message is whatever the service wrapped around its sentinel.
func fail(l *slog.Logger, op string, err error) error {
	for _, m := range statusBySentinel {
		if !errors.Is(err, m.err) {
			continue
		}
		msg := clientMessage(err, m.err)
		switch m.err {
		case service.ErrInvalidCredentials:
			msg = "Invalid credentials"
		case service.ErrForbidden:
			msg = "Forbidden. You do not have access"
		case search.ErrSearchFailed:
			msg = "search failed"
		}
		if m.status >= 500 {
			l.Error(op+"_failed", "status", m.status, "error", err)
		} else {
			l.Warn(op+"_failed", "status", m.status, "reason", msg, "error", err)
		}
		return echo.NewHTTPError(m.status, msg)
	}
	l.Error(op+"_failed", "status", 500, "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func clientMessage(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return sentinel.Error()
}

func parseID(c echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(v), nil
}

func identity(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		return auth.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return id, nil
}
