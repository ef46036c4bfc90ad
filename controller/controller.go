package controller

import (
	"errors"
	"net/http"

	"relaychat/platform"
	"relaychat/service"

	"github.com/gin-gonic/gin"
)

var logger = platform.Logger

// handleServiceError maps typed service errors to their HTTP status. Anything unexpected is
// logged and reported as a bare 500.
func handleServiceError(c *gin.Context, err error) {
	var (
		invalid      *service.InvalidRequestError
		notFound     *service.NotFoundError
		conflict     *service.ConflictError
		unauthorized *service.UnauthorizedError
	)
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Message})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Message})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Message})
	case errors.As(err, &unauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": unauthorized.Message})
	default:
		logger.Errorf("[%s] %s %s failed: %s", c.GetString("requestId"), c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
