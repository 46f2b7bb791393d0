package httpx

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/ecom-saas/internal/auth"
	"github.com/MikeMC777/ecom-saas/internal/order"
	"github.com/MikeMC777/ecom-saas/internal/product"
	"github.com/MikeMC777/ecom-saas/internal/tenant"
	"github.com/MikeMC777/ecom-saas/internal/user"
)

// StatusOf maps domain errors to HTTP status codes.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, tenant.ErrStoreNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, product.ErrCategoryNotFound),
		errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrValidation),
		errors.Is(err, product.ErrInvalid),
		errors.Is(err, product.ErrCategoryInvalid),
		errors.Is(err, tenant.ErrInvalidStore),
		errors.Is(err, user.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrInsufficientStock),
		errors.Is(err, tenant.ErrSubdomainTaken),
		errors.Is(err, user.ErrAlreadyExist),
		errors.Is(err, product.ErrInUse),
		errors.Is(err, product.ErrCategoryTaken),
		errors.Is(err, product.ErrCategoryInUse):
		return http.StatusConflict
	case errors.Is(err, product.ErrPlanLimit):
		return http.StatusForbidden
	case errors.Is(err, order.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, order.ErrOrderFailed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Error writes err as {"error": "..."}. Internal errors are logged and masked.
func Error(c *gin.Context, err error) {
	code := StatusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		rid, _ := c.Get("rid")
		log.Printf("[http] rid=%v internal error: %v", rid, err)
		msg = "internal error"
	}
	c.JSON(code, gin.H{"error": msg})
}
