package controller

import (
	"context"
	"net/http"

	"relaychat/model"
	"relaychat/service"

	"github.com/gin-gonic/gin"
)

type chatService interface {
	List(ctx context.Context, userID uint) ([]model.Conversation, error)
	Create(ctx context.Context, userID uint, title string) (*model.Conversation, error)
	Get(ctx context.Context, userID uint, id string) (*model.Conversation, error)
	Rename(ctx context.Context, userID uint, id, title string) (*model.Conversation, error)
	Delete(ctx context.Context, userID uint, id string) error
	Messages(ctx context.Context, userID uint, id string) ([]model.Message, error)
	Export(ctx context.Context, userID uint, id, format string) ([]byte, string, error)
}

type messageRelay interface {
	SendMessage(ctx context.Context, in service.SendInput, w service.StreamWriter) error
}

type ChatController struct {
	chats   chatService
	relay   messageRelay
	catalog *model.Catalog
}

func NewChatController(chats chatService, relay messageRelay, catalog *model.Catalog) *ChatController {
	return &ChatController{chats: chats, relay: relay, catalog: catalog}
}

func (ch *ChatController) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": ch.catalog.Models, "default": ch.catalog.Default})
}

func (ch *ChatController) List(c *gin.Context) {
	convs, err := ch.chats.List(c.Request.Context(), c.GetUint("UserId"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": convs})
}

func (ch *ChatController) Create(c *gin.Context) {
	var input struct {
		Title string `json:"title"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return
		}
	}

	conv, err := ch.chats.Create(c.Request.Context(), c.GetUint("UserId"), input.Title)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chat": conv})
}

func (ch *ChatController) Get(c *gin.Context) {
	conv, err := ch.chats.Get(c.Request.Context(), c.GetUint("UserId"), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": conv})
}

func (ch *ChatController) UpdateTitle(c *gin.Context) {
	var input struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	conv, err := ch.chats.Rename(c.Request.Context(), c.GetUint("UserId"), c.Param("id"), input.Title)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": conv})
}

func (ch *ChatController) Delete(c *gin.Context) {
	if err := ch.chats.Delete(c.Request.Context(), c.GetUint("UserId"), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ch *ChatController) Messages(c *gin.Context) {
	msgs, err := ch.chats.Messages(c.Request.Context(), c.GetUint("UserId"), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage answers with a server-sent event stream unless the send is rejected up front,
// in which case it answers with a JSON error.
func (ch *ChatController) SendMessage(c *gin.Context) {
	requestID := c.GetString("requestId")
	var input struct {
		Content string   `json:"content"`
		Model   string   `json:"model"`
		Images  []string `json:"images"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warnf("[%s] Invalid input, %s", requestID, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	logger.Infof("[%s] Sending message to chat %s with model %q", requestID, c.Param("id"), input.Model)
	err := ch.relay.SendMessage(c.Request.Context(), service.SendInput{
		RequestID:      requestID,
		UserID:         c.GetUint("UserId"),
		ConversationID: c.Param("id"),
		Content:        input.Content,
		Model:          input.Model,
		Images:         input.Images,
	}, newSSEWriter(c))
	if err != nil {
		logger.Warnf("[%s] Send rejected: %s", requestID, err)
		handleServiceError(c, err)
	}
}

func (ch *ChatController) Export(c *gin.Context) {
	format := c.DefaultQuery("format", service.ExportMarkdown)
	body, contentType, err := ch.chats.Export(c.Request.Context(), c.GetUint("UserId"), c.Param("id"), format)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	ext := "md"
	if format == service.ExportHTML {
		ext = "html"
	}
	c.Header("Content-Disposition", "attachment; filename=\"chat-"+c.Param("id")+"."+ext+"\"")
	c.Data(http.StatusOK, contentType, body)
}
