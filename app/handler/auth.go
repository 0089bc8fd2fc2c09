package handler

import (
	"net/http"
	"time"

	"radio-stream/app/auth"
	"radio-stream/app/config"
	"radio-stream/app/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	config     *config.Config
	jwtService *auth.JWTService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		config:     cfg,
		jwtService: auth.NewJWTService(cfg),
	}
}

// LoginRequest 登录请求结构
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应结构
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	ExpireAt int64  `json:"expire_at"`
}

// Login 管理员登录，校验配置中的凭据并签发令牌
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}

	if req.Username != h.config.Server.Username ||
		!utils.VerifyCredential(req.Password, h.config.Server.Password) {
		fail(c, http.StatusUnauthorized, 401, "用户名或密码错误")
		return
	}

	token, err := h.jwtService.GenerateToken(req.Username)
	if err != nil {
		fail(c, http.StatusInternalServerError, 500, "生成令牌失败")
		return
	}

	expireAt := time.Now().Add(time.Duration(h.config.JWT.ExpireTime) * time.Hour).Unix()
	success(c, LoginResponse{
		Token:    token,
		Username: req.Username,
		ExpireAt: expireAt,
	}, "登录成功")
}
