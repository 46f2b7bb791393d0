package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/ecom-saas/internal/httpx"
	"github.com/MikeMC777/ecom-saas/internal/order"
	"github.com/MikeMC777/ecom-saas/internal/product"
	"github.com/MikeMC777/ecom-saas/internal/user"
)

type server struct {
	users      *user.Service
	products   *product.Service
	categories *product.CategoryService
	orders     *order.Service
}

// registerHandler godoc
// @Summary  Register a customer
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body  body      user.RegisterRequest  true  "user"
// @Success  201   {object}  user.TokenResponse
// @Failure  400   {object}  product.HTTPError
// @Failure  409   {object}  product.HTTPError
// @Router   /api/auth/register [post]
func registerHandler(users *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.RegisterRequest
		if !httpx.Bind(c, &in) {
			return
		}
		out, err := users.Register(c.Request.Context(), in)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

// loginHandler godoc
// @Summary  Log in
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body  body      user.LoginRequest  true  "credentials"
// @Success  200   {object}  user.TokenResponse
// @Failure  401   {object}  product.HTTPError
// @Router   /api/auth/login [post]
func loginHandler(users *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.LoginRequest
		if !httpx.Bind(c, &in) {
			return
		}
		out, err := users.Login(c.Request.Context(), in)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// meHandler godoc
// @Summary  Current account
// @Tags     auth
// @Produce  json
// @Success  200  {object}  user.User
// @Failure  401  {object}  product.HTTPError
// @Router   /api/auth/me [get]
func meHandler(users *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, _ := httpx.Session(c)
		u, err := users.Me(c.Request.Context(), sess)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// listProductsHandler godoc
// @Summary  List active products
// @Tags     products
// @Produce  json
// @Param    q         query     string  false  "search in name or description"
// @Param    category  query     string  false  "category ID"
// @Param    limit     query     int     false  "page size"  default(20)
// @Param    offset    query     int     false  "offset"     default(0)
// @Success  200       {object}  product.ListResponse
// @Router   /api/products [get]
func listProductsHandler(products *product.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Page(c)
		q := product.Query{Q: c.Query("q"), CategoryID: c.Query("category"), Limit: limit, Offset: offset, ActiveOnly: true}.Normalize()
		items, err := products.List(c.Request.Context(), httpx.Store(c), q)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, product.ListResponse{Q: q.Q, Limit: q.Limit, Offset: q.Offset, Items: items})
	}
}

// getProductHandler godoc
// @Summary  Get an active product
// @Tags     products
// @Produce  json
// @Param    id   path      string  true  "Product ID (UUID)"
// @Success  200  {object}  product.Product
// @Failure  404  {object}  product.HTTPError
// @Router   /api/products/{id} [get]
func getProductHandler(products *product.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := products.GetActive(c.Request.Context(), httpx.Store(c), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// listCategoriesHandler godoc
// @Summary  List the store's categories
// @Tags     products
// @Produce  json
// @Success  200  {array}  product.Category
// @Router   /api/categories [get]
func listCategoriesHandler(categories *product.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := categories.List(c.Request.Context(), httpx.Store(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// placeOrderHandler godoc
// @Summary  Place an order
// @Tags     orders
// @Accept   json
// @Produce  json
// @Param    body  body      order.PlaceOrderRequest  true  "order"
// @Success  201   {object}  order.PlaceOrderResponse
// @Failure  400   {object}  product.HTTPError
// @Failure  401   {object}  product.HTTPError
// @Failure  404   {object}  product.HTTPError
// @Failure  409   {object}  product.HTTPError
// @Failure  503   {object}  product.HTTPError
// @Router   /api/orders [post]
func placeOrderHandler(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.PlaceOrderRequest
		if !httpx.Bind(c, &in) {
			return
		}
		sess, _ := httpx.Session(c)
		o, err := orders.PlaceOrder(c.Request.Context(), httpx.Store(c), sess, in)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, order.PlaceOrderResponse{
			OrderID:       o.ID,
			Status:        o.Status,
			Total:         o.Total.StringFixed(2),
			CommissionFee: o.CommissionFee.StringFixed(2),
		})
	}
}

// listMyOrdersHandler godoc
// @Summary  List my orders in this store
// @Tags     orders
// @Produce  json
// @Param    limit   query     int  false  "page size"  default(20)
// @Param    offset  query     int  false  "offset"     default(0)
// @Success  200     {object}  order.ListResponse
// @Failure  401     {object}  product.HTTPError
// @Router   /api/orders [get]
func listMyOrdersHandler(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Page(c)
		sess, _ := httpx.Session(c)
		items, err := orders.ListForUser(c.Request.Context(), httpx.Store(c), sess, limit, offset)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, order.ListResponse{Limit: limit, Offset: offset, Items: items})
	}
}

// getMyOrderHandler godoc
// @Summary  Get one of my orders
// @Tags     orders
// @Produce  json
// @Param    id   path      string  true  "Order ID (UUID)"
// @Success  200  {object}  order.Order
// @Failure  404  {object}  product.HTTPError
// @Router   /api/orders/{id} [get]
func getMyOrderHandler(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, _ := httpx.Session(c)
		o, err := orders.GetForUser(c.Request.Context(), httpx.Store(c), sess, c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}
