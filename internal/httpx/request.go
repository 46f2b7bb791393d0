package httpx

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Page reads limit and offset query params. Services clamp the values.
func Page(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

// Bind decodes the JSON body into v and writes a 400 on failure.
func Bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	return true
}

func Health(c *gin.Context) { c.String(http.StatusOK, "ok") }
