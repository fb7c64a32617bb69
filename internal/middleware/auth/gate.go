package auth

import (
	"context"
	"errors"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_store/internal/logging"
	"github.com/Skotchmaster/online_store/internal/models"
	"github.com/Skotchmaster/online_store/internal/tokens"
)

const (
	identityKey = "identity"
	claimsKey   = "claims"

	msgMissingCredential = "Invalid token.Access denied"
	msgInvalidToken      = "Invalid token"
)

var ErrMissingCredential = errors.New("missing credential")

// Identity is the authenticated caller.
type Identity struct {
	ID   uint
	Role models.Role
}

type identityCtxKey struct{}

type Verifier interface {
	Verify(token string) (*tokens.Claims, error)
}

type Gate struct {
	verifier Verifier
}

func NewGate(v Verifier) *Gate {
	return &Gate{verifier: v}
}

// Authenticate reads the access token cookie, verifies it and stores the
// caller identity on the echo context and the request context.
func (g *Gate) Authenticate() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "cookie:" + CookieName,
		ContextKey:  claimsKey,
		ParseTokenFunc: func(c echo.Context, raw string) (any, error) {
			if raw == "" {
				return nil, ErrMissingCredential
			}
			return g.verifier.Verify(raw)
		},
		SuccessHandler: func(c echo.Context) {
			claims, ok := c.Get(claimsKey).(*tokens.Claims)
			if !ok {
				return
			}
			id := Identity{ID: claims.ID, Role: claims.Role}
			c.Set(identityKey, id)

			req := c.Request()
			ctx := WithIdentity(req.Context(), id)
			ctx = logging.IntoContext(ctx, logging.FromContext(ctx).With("user_id", id.ID))
			c.SetRequest(req.WithContext(ctx))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			l := logging.FromContext(c.Request().Context()).With("middleware", "auth.authenticate")
			if errors.Is(err, tokens.ErrInvalidToken) {
				l.Warn("authenticate_failed", "status", 400, "reason", "invalid token", "error", err)
				return echo.NewHTTPError(http.StatusBadRequest, msgInvalidToken)
			}
			l.Warn("authenticate_failed", "status", 400, "reason", "missing credential", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, msgMissingCredential)
		},
	})
}

func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}
