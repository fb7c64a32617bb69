package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_store/internal/logging"
	"github.com/Skotchmaster/online_store/internal/models"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// AllowSet is the set of roles admitted to a route.
type AllowSet map[models.Role]struct{}

// Allow builds an allow-set. It panics on a role outside the enumeration,
// which can only come from a programming error at route setup.
func Allow(roles ...models.Role) AllowSet {
	set := make(AllowSet, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			panic(fmt.Sprintf("auth: unknown role %q in allow-set", r))
		}
		set[r] = struct{}{}
	}
	return set
}

// Check returns nil when the identity may pass, ErrUnauthorized when there is
// no identity and ErrForbidden when the role is outside the set.
func (s AllowSet) Check(id *Identity) error {
	if id == nil {
		return ErrUnauthorized
	}
	if _, ok := s[id.Role]; !ok {
		return ErrForbidden
	}
	return nil
}

func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	allowed := Allow(roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := logging.FromContext(c.Request().Context()).With("middleware", "auth.require_role")

			var id *Identity
			if got, ok := IdentityFrom(c); ok {
				id = &got
			}

			switch err := allowed.Check(id); {
			case errors.Is(err, ErrUnauthorized):
				l.Warn("authorize_failed", "status", 401, "reason", "no identity")
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			case errors.Is(err, ErrForbidden):
				l.Warn("authorize_failed", "status", 403, "reason", "role not allowed", "role", id.Role)
				return echo.NewHTTPError(http.StatusForbidden, "Forbidden. You do not have access")
			}
			return next(c)
		}
	}
}

// RequireSelfOrRole admits an identity whose role is in roles or whose ID
// equals the path parameter param. It runs before handlers that act on the
// request body, so nothing is done on behalf of a caller who will be refused.
func RequireSelfOrRole(param string, roles ...models.Role) echo.MiddlewareFunc {
	allowed := Allow(roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := logging.FromContext(c.Request().Context()).With("middleware", "auth.require_self_or_role")

			id, ok := IdentityFrom(c)
			if !ok {
				l.Warn("authorize_failed", "status", 401, "reason", "no identity")
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			if allowed.Check(&id) == nil {
				return next(c)
			}

			target, err := strconv.ParseUint(c.Param(param), 10, 64)
			if err != nil || target == 0 {
				l.Warn("authorize_failed", "status", 400, "reason", "invalid "+param)
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
			}
			if uint(target) != id.ID {
				l.Warn("authorize_failed", "status", 403, "reason", "not the owner", "user_id", id.ID, "target", target)
				return echo.NewHTTPError(http.StatusForbidden, "Forbidden. You do not have access")
			}
			return next(c)
		}
	}
}
