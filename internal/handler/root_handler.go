package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const welcomeMessage = "Welcome to the Boston Chatbot API! Send a POST request to /api/v1/chat with {\"query\": \"your question\"} to get started."

// Root 处理 GET /。
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": welcomeMessage})
}
