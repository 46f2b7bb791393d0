package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/ecom-saas/internal/httpx"
	"github.com/MikeMC777/ecom-saas/internal/order"
	"github.com/MikeMC777/ecom-saas/internal/product"
	"github.com/MikeMC777/ecom-saas/internal/tenant"
)

type server struct {
	stores     *tenant.Service
	products   *product.Service
	categories *product.CategoryService
	orders     *order.Service
}

// OrderDetail is an order together with its status history.
type OrderDetail struct {
	Order   *order.Order        `json:"order"`
	History []order.StatusEvent `json:"history"`
}

// createStoreHandler godoc
// @Summary  Create a store (platform host only)
// @Tags     stores
// @Accept   json
// @Produce  json
// @Param    body  body      tenant.CreateStoreRequest  true  "store"
// @Success  201   {object}  tenant.Store
// @Failure  400   {object}  product.HTTPError
// @Failure  403   {object}  product.HTTPError
// @Failure  409   {object}  product.HTTPError
// @Router   /admin/stores [post]
func createStoreHandler(stores *tenant.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if st := httpx.Store(c); st == nil || !st.Platform {
			c.JSON(http.StatusForbidden, gin.H{"error": "stores are created from the platform host"})
			return
		}
		var in tenant.CreateStoreRequest
		if !httpx.Bind(c, &in) {
			return
		}
		sess, _ := httpx.Session(c)
		st, err := stores.CreateStore(c.Request.Context(), sess.UserID, in)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, st)
	}
}

// listProductsHandler godoc
// @Summary  List store products
// @Tags     products
// @Produce  json
// @Param    q         query     string  false  "search"
// @Param    category  query     string  false  "category ID"
// @Param    limit     query     int     false  "page size"  default(20)
// @Param    offset    query     int     false  "offset"     default(0)
// @Success  200       {object}  product.ListResponse
// @Router   /admin/products [get]
func listProductsHandler(products *product.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Page(c)
		q := product.Query{Q: c.Query("q"), CategoryID: c.Query("category"), Limit: limit, Offset: offset}.Normalize()
		items, err := products.List(c.Request.Context(), httpx.Store(c), q)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, product.ListResponse{Q: q.Q, Limit: q.Limit, Offset: q.Offset, Items: items})
	}
}

// createProductHandler godoc
// @Summary  Create a product
// @Tags     products
// @Accept   json
// @Produce  json
// @Param    body  body      product.CreateProductRequest  true  "product"
// @Success  201   {object}  product.Product
// @Failure  400   {object}  product.HTTPError
// @Failure  403   {object}  product.HTTPError
// @Router   /admin/products [post]
func createProductHandler(products *product.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in product.CreateProductRequest
		if !httpx.Bind(c, &in) {
			return
		}
		p, err := products.Create(c.Request.Context(), httpx.Store(c), in)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

// getProductHandler godoc
// @Summary  Get a product
// @Tags     products
// @Produce  json
// @Param    id   path      string  true  "Product ID (UUID)"
// @Success  200  {object}  product.Product
// @Failure  404  {object}  product.HTTPError
// @Router   /admin/products/{id} [get]
func getProductHandler(products *product.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := products.Get(c.Request.Context(), httpx.Store(c), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// updateProductHandler godoc
// @Summary  Update a product
// @Tags     products
// @Accept   json
// @Produce  json
// @Param    id    path      string                        true  "Product ID (UUID)"
// @Param    body  body      product.UpdateProductRequest  true  "fields to change"
// @Success  200   {object}  product.Product
// @Failure  400   {object}  product.HTTPError
// @Failure  404   {object}  product.HTTPError
// @Router   /admin/products/{id} [put]
func updateProductHandler(products *product.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in product.UpdateProductRequest
		if !httpx.Bind(c, &in) {
			return
		}
		p, err := products.Update(c.Request.Context(), httpx.Store(c), c.Param("id"), in)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// deleteProductHandler godoc
// @Summary  Delete a product
// @Tags     products
// @Param    id   path  string  true  "Product ID (UUID)"
// @Success  204
// @Failure  404  {object}  product.HTTPError
// @Failure  409  {object}  product.HTTPError
// @Router   /admin/products/{id} [delete]
func deleteProductHandler(products *product.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := products.Delete(c.Request.Context(), httpx.Store(c), c.Param("id")); err != nil {
			httpx.Error(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// listCategoriesHandler godoc
// @Summary  List store categories
// @Tags     categories
// @Produce  json
// @Success  200  {array}  product.Category
// @Router   /admin/categories [get]
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

// createCategoryHandler godoc
// @Summary  Create a category
// @Tags     categories
// @Accept   json
// @Produce  json
// @Param    body  body      product.CategoryRequest  true  "category"
// @Success  201   {object}  product.Category
// @Failure  400   {object}  product.HTTPError
// @Failure  409   {object}  product.HTTPError
// @Router   /admin/categories [post]
func createCategoryHandler(categories *product.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in product.CategoryRequest
		if !httpx.Bind(c, &in) {
			return
		}
		cat, err := categories.Create(c.Request.Context(), httpx.Store(c), in)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, cat)
	}
}

// getCategoryHandler godoc
// @Summary  Get a category
// @Tags     categories
// @Produce  json
// @Param    id   path      string  true  "Category ID (UUID)"
// @Success  200  {object}  product.Category
// @Failure  404  {object}  product.HTTPError
// @Router   /admin/categories/{id} [get]
func getCategoryHandler(categories *product.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat, err := categories.Get(c.Request.Context(), httpx.Store(c), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, cat)
	}
}

// updateCategoryHandler godoc
// @Summary  Replace a category
// @Tags     categories
// @Accept   json
// @Produce  json
// @Param    id    path      string                   true  "Category ID (UUID)"
// @Param    body  body      product.CategoryRequest  true  "category"
// @Success  200   {object}  product.Category
// @Failure  400   {object}  product.HTTPError
// @Failure  404   {object}  product.HTTPError
// @Failure  409   {object}  product.HTTPError
// @Router   /admin/categories/{id} [put]
func updateCategoryHandler(categories *product.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in product.CategoryRequest
		if !httpx.Bind(c, &in) {
			return
		}
		cat, err := categories.Update(c.Request.Context(), httpx.Store(c), c.Param("id"), in)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, cat)
	}
}

// deleteCategoryHandler godoc
// @Summary  Delete a category
// @Tags     categories
// @Param    id   path  string  true  "Category ID (UUID)"
// @Success  204
// @Failure  404  {object}  product.HTTPError
// @Failure  409  {object}  product.HTTPError
// @Router   /admin/categories/{id} [delete]
func deleteCategoryHandler(categories *product.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := categories.Delete(c.Request.Context(), httpx.Store(c), c.Param("id")); err != nil {
			httpx.Error(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// listOrdersHandler godoc
// @Summary  List store orders
// @Tags     orders
// @Produce  json
// @Param    status  query     string  false  "filter by status"
// @Param    limit   query     int     false  "page size"  default(20)
// @Param    offset  query     int     false  "offset"     default(0)
// @Success  200     {object}  order.ListResponse
// @Failure  400     {object}  product.HTTPError
// @Router   /admin/orders [get]
func listOrdersHandler(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Page(c)
		items, err := orders.ListForStore(c.Request.Context(), httpx.Store(c), c.Query("status"), limit, offset)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, order.ListResponse{Limit: limit, Offset: offset, Items: items})
	}
}

// getOrderHandler godoc
// @Summary  Get an order with its status history
// @Tags     orders
// @Produce  json
// @Param    id   path      string  true  "Order ID (UUID)"
// @Success  200  {object}  OrderDetail
// @Failure  404  {object}  product.HTTPError
// @Router   /admin/orders/{id} [get]
func getOrderHandler(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, st, id := c.Request.Context(), httpx.Store(c), c.Param("id")
		o, err := orders.Get(ctx, st, id)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		history, err := orders.History(ctx, st, id)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if history == nil {
			history = []order.StatusEvent{}
		}
		c.JSON(http.StatusOK, OrderDetail{Order: o, History: history})
	}
}

// updateOrderStatusHandler godoc
// @Summary  Change order status
// @Tags     orders
// @Accept   json
// @Produce  json
// @Param    id    path      string                     true  "Order ID (UUID)"
// @Param    body  body      order.UpdateStatusRequest  true  "new status"
// @Success  200   {object}  order.Order
// @Failure  400   {object}  product.HTTPError
// @Failure  404   {object}  product.HTTPError
// @Failure  422   {object}  product.HTTPError
// @Router   /admin/orders/{id}/status [put]
func updateOrderStatusHandler(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.UpdateStatusRequest
		if !httpx.Bind(c, &in) {
			return
		}
		o, err := orders.UpdateStatus(c.Request.Context(), httpx.Store(c), c.Param("id"), in)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}
