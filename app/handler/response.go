package handler

import (
	"github.com/gin-gonic/gin"
)

// ApiResponse 统一的 API 响应结构
type ApiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// success 创建成功响应
func success(c *gin.Context, data any, message string) {
	c.JSON(200, ApiResponse{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// fail 创建错误响应
func fail(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{
		Code:    errorCode,
		Message: message,
		Data:    nil,
	})
}
