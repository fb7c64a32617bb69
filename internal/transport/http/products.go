package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_store/internal/logging"
	"github.com/Skotchmaster/online_store/internal/service"
	"github.com/Skotchmaster/online_store/internal/transport"
	"github.com/Skotchmaster/online_store/internal/util"
)

type ProductHTTP struct {
	Svc *service.ProductService
}

func (h *ProductHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	prod, err := h.Svc.CreateProduct(ctx, req)
	if err != nil {
		return fail(l, "create", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "product created successfully", "product": prod})
}

func (h *ProductHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.list")

	page, from, limit := util.Calculate(
		util.ParseIntDefault(c.QueryParam("page"), 1),
		util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize),
	)
	total, items, err := h.Svc.ListProducts(ctx, from, limit)
	if err != nil {
		return fail(l, "list", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"products": items,
		"meta":     util.NewMeta(page, from, limit, total),
	})
}

func (h *ProductHTTP) GetOne(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_one")

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	prod, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return fail(l, "get_one", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"product": prod})
}

func (h *ProductHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.update")

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req transport.UpdateProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	prod, err := h.Svc.UpdateProduct(ctx, id, req)
	if err != nil {
		return fail(l, "update", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Product updated", "product": prod})
}

func (h *ProductHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete")

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteProduct(ctx, id); err != nil {
		return fail(l, "delete", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Product deleted"})
}

func (h *ProductHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	q := c.QueryParam("q")
	if q == "" {
		l.Warn("search_failed", "status", 400, "reason", "empty query")
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	page, from, limit := util.Calculate(
		util.ParseIntDefault(c.QueryParam("page"), 1),
		util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize),
	)

	total, products, err := h.Svc.SearchProducts(ctx, q, from, limit)
	if err != nil {
		return fail(l, "search", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"products": products,
		"meta":     util.NewMeta(page, from, limit, total),
	})
}
