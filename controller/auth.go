package controller

import (
	"net/http"

	"relaychat/service"

	"github.com/gin-gonic/gin"
)

// AuthController ...
type AuthController struct {
	tokens *service.TokenService
}

func NewAuthController(tokens *service.TokenService) *AuthController {
	return &AuthController{tokens: tokens}
}

// TokenValid aborts with 401 unless the request carries a valid bearer token. On success the
// caller's id is available as c.GetUint("UserId").
func (a *AuthController) TokenValid(c *gin.Context) {
	tokenAuth, err := a.tokens.ExtractTokenMetadata(c.Request)
	if err != nil {
		//Token either expired or not valid
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please login first"})
		return
	}

	c.Set("UserId", tokenAuth.UserID)
}

// Refresh ...
func (a *AuthController) Refresh(c *gin.Context) {
	ts, err := a.tokens.Refresh(a.tokens.ExtractToken(c.Request))
	if err != nil {
		logger.Warnf("[%s] Token refresh rejected: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization, please login again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": ts.AccessToken})
}
