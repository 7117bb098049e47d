package handler

import (
	"net/http"
	"time"

	"github.com/KummariJohnson/boston-api/internal/middleware"
	"github.com/KummariJohnson/boston-api/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// ServiceName 出现在健康检查响应中。
const ServiceName = "boston-chatbot-api"

// NewRouter 创建路由引擎并注册所有中间件和路由。
func NewRouter(chatService service.ChatService, version string) *gin.Engine {
	// 使用 New() 创建一个不带默认中间件的引擎
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		gin.Recovery(),
		// 允许任意来源携带凭证访问，Origin 会被原样回显
		cors.New(cors.Config{
			AllowOriginFunc: func(string) bool { return true },
			AllowMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
				http.MethodDelete, http.MethodHead, http.MethodOptions,
			},
			AllowHeaders:     []string{"*"},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	r.GET("/", Root)
	r.GET("/health", NewHealthHandler(chatService, ServiceName, version).Health)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/chat", NewChatHandler(chatService).Chat)
	}
	return r
}
