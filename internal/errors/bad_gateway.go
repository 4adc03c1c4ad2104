package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AbortWithBadGateway sends a 502 Bad Gateway response and aborts the request.
// Used when the push provider rejects or fails a delivery call.
func AbortWithBadGateway(c *gin.Context, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusBadGateway, NewAPIError(message, details))
}

// BadGateway sends a 502 Bad Gateway response without aborting.
func BadGateway(c *gin.Context, message string, details map[string]interface{}) {
	c.JSON(http.StatusBadGateway, NewAPIError(message, details))
}
