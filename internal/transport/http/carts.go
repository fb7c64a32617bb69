package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_store/internal/logging"
	"github.com/Skotchmaster/online_store/internal/service"
	"github.com/Skotchmaster/online_store/internal/transport"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.create")

	caller, err := identity(c)
	if err != nil {
		return err
	}
	var req transport.CreateCartRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	cart, err := h.Svc.AddItems(ctx, caller.ID, req.CartItems)
	if err != nil {
		return fail(l, "create", err)
	}
	return c.JSON(http.StatusCreated, cart)
}

func (h *CartHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	caller, err := identity(c)
	if err != nil {
		return err
	}
	cart, err := h.Svc.GetCart(ctx, caller.ID)
	if err != nil {
		return fail(l, "get", err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	caller, err := identity(c)
	if err != nil {
		return err
	}
	itemID, err := parseID(c, "itemId")
	if err != nil {
		return err
	}

	item, err := h.Svc.RemoveItem(ctx, caller.ID, itemID)
	if err != nil {
		return fail(l, "remove_item", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHTTP) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	caller, err := identity(c)
	if err != nil {
		return err
	}
	if _, err := h.Svc.Clear(ctx, caller.ID); err != nil {
		return fail(l, "clear", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Cart cleared successfully."})
}
