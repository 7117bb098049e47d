// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/KummariJohnson/boston-api/internal/middleware"
	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/internal/service"
	"github.com/KummariJohnson/boston-api/pkg/log"
	"github.com/gin-gonic/gin"
)

const (
	notInitializedDetail = "Chatbot not initialized. Server startup failed or is incomplete."
	queryErrorPrefix     = "An error occurred during query processing: "
)

// ChatHandler 处理聊天问答请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat 处理 POST /api/v1/chat。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}
	if req.Query == nil {
		c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{Detail: "field required: query"})
		return
	}

	resp, err := h.chatService.Chat(c.Request.Context(), c.GetString(middleware.RequestIDKey), *req.Query)
	if errors.Is(err, service.ErrNotInitialized) {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Detail: notInitializedDetail})
		return
	}
	if err != nil {
		log.Errorf("[ChatHandler] 处理查询失败, query: %q, error: %v", *req.Query, err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Detail: queryErrorPrefix + err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
