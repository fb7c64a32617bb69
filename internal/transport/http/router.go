package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_store/internal/middleware/auth"
	"github.com/Skotchmaster/online_store/internal/middleware/csrf"
	"github.com/Skotchmaster/online_store/internal/models"
	"github.com/Skotchmaster/online_store/internal/upload"
)

type Deps struct {
	DB       *gorm.DB
	Gate     *auth.Gate
	Uploads  *upload.Pipeline
	CSRF     *csrf.Config
	Users    *UserHTTP
	Products *ProductHTTP
	Carts    *CartHTTP
	Orders   *OrderHTTP
}

func (d *Deps) upload(field string) echo.MiddlewareFunc {
	if d.Uploads == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return d.Uploads.Single(field)
}

func (d *Deps) ready(c echo.Context) error {
	if d.DB == nil {
		return c.NoContent(http.StatusOK)
	}
	sqlDB, err := d.DB.DB()
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	if err := sqlDB.PingContext(c.Request().Context()); err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)

	api := e.Group("")
	if d.CSRF != nil {
		api.Use(csrf.Middleware(*d.CSRF))
	}

	authed := d.Gate.Authenticate()
	anyone := auth.RequireRole(models.RoleAdmin, models.RoleCustomer)
	admin := auth.RequireRole(models.RoleAdmin)
	customer := auth.RequireRole(models.RoleCustomer)

	user := api.Group("/user")
	user.POST("/create", d.Users.Register, d.upload("UserImage"))
	user.POST("/login", d.Users.Login)
	user.GET("/getMe", d.Users.GetMe, authed, anyone)
	user.PUT("/update/:userId", d.Users.Update, authed, anyone, auth.RequireSelfOrRole("userId", models.RoleAdmin), d.upload("UserImage"))
	user.POST("/logout", d.Users.Logout, authed, anyone)

	product := api.Group("/product", authed)
	product.GET("/search", d.Products.Search, anyone)
	product.POST("/create", d.Products.Create, admin, d.upload("productImage"))
	product.GET("", d.Products.List, admin)
	product.GET("/getOne/:id", d.Products.GetOne, admin)
	product.PUT("/update/:id", d.Products.Update, admin, d.upload("productImage"))
	product.DELETE("/delete/:id", d.Products.Delete, admin)

	cart := api.Group("/cart", authed, customer)
	cart.POST("/create", d.Carts.Create)
	cart.GET("/getCart", d.Carts.Get)
	cart.DELETE("/remove/:itemId", d.Carts.RemoveItem)
	cart.DELETE("/remove", d.Carts.Clear)

	orders := api.Group("/orders", authed)
	orders.POST("/create", d.Orders.Create, customer)
	orders.GET("", d.Orders.List, admin)
	orders.GET("/getMyOrders", d.Orders.ListMine, customer)
	orders.PUT("/update/:id", d.Orders.UpdateStatus, admin)
}
