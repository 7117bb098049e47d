package handler

import (
	"net/http"

	"github.com/KummariJohnson/boston-api/internal/service"
	"github.com/gin-gonic/gin"
)

// HealthResponse 是 GET /health 的响应体。
type HealthResponse struct {
	Status   string `json:"status"`
	Pipeline string `json:"pipeline"`
	Service  string `json:"service"`
	Version  string `json:"version"`
}

// HealthHandler 报告进程和查询引擎的状态。引擎不可用时进程仍然存活，返回 200 和 degraded。
type HealthHandler struct {
	chatService service.ChatService
	serviceName string
	version     string
}

func NewHealthHandler(chatService service.ChatService, serviceName, version string) *HealthHandler {
	return &HealthHandler{chatService: chatService, serviceName: serviceName, version: version}
}

func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		Pipeline: "ready",
		Service:  h.serviceName,
		Version:  h.version,
	}
	if !h.chatService.Ready() {
		resp.Status = "degraded"
		resp.Pipeline = "not_initialized"
	}
	c.JSON(http.StatusOK, resp)
}
