package controller

import (
	"context"
	"net/http"

	"relaychat/model"
	"relaychat/service"

	"github.com/gin-gonic/gin"
)

type userService interface {
	Register(ctx context.Context, email, password, name string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Me(ctx context.Context, userID uint) (*model.User, error)
}

// UserController ...
type UserController struct {
	users userService
}

func NewUserController(users userService) *UserController {
	return &UserController{users: users}
}

func (ctrl *UserController) Register(c *gin.Context) {
	logger.Infof("[%s] Handling user registration request", c.GetString("requestId"))

	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email and password are required"})
		return
	}

	res, err := ctrl.users.Register(c.Request.Context(), input.Email, input.Password, input.Name)
	if err != nil {
		logger.Warnf("[%s] Failed to register user %s: %s", c.GetString("requestId"), input.Email, err)
		handleServiceError(c, err)
		return
	}

	logger.Infof("[%s] User %d registered successfully", c.GetString("requestId"), res.User.ID)
	c.JSON(http.StatusCreated, res)
}

func (ctrl *UserController) Login(c *gin.Context) {
	logger.Infof("[%s] Handling user login request", c.GetString("requestId"))

	var loginRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&loginRequest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	res, err := ctrl.users.Login(c.Request.Context(), loginRequest.Email, loginRequest.Password)
	if err != nil {
		logger.Warnf("[%s] User %s failed to login: %s", c.GetString("requestId"), loginRequest.Email, err)
		handleServiceError(c, err)
		return
	}

	logger.Infof("[%s] User %d login successfully", c.GetString("requestId"), res.User.ID)
	c.JSON(http.StatusOK, res)
}

func (ctrl *UserController) Me(c *gin.Context) {
	user, err := ctrl.users.Me(c.Request.Context(), c.GetUint("UserId"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
