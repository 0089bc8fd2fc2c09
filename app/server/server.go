package server

import (
	"context"
	"net/http"
	"path/filepath"

	"radio-stream/app/config"
	"radio-stream/app/handler"
	"radio-stream/app/logger"
	"radio-stream/app/middleware"
	"radio-stream/app/service"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器，负责提供播放器页面、HLS 切片和管理 API
type Server struct {
	Config *config.Config
	Logger *logger.Logger
	gin    *gin.Engine
	http   *http.Server
}

// New 创建一个新的 Server 实例
func New(cfg *config.Config, log *logger.Logger, processor *service.Processor) *Server {
	router := gin.Default()

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config: cfg,
		Logger: log,
	}

	// 设置路由
	s.setupRoutes(processor)

	return s
}

// Start 启动服务器
func (s *Server) Start() error {
	// 播放器页面随服务一起发布
	if err := writePlayerPage(s.Config.Storage.SegmentDir); err != nil {
		s.Logger.Errorf("写入播放器页面失败: %v", err)
	}

	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown 关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes(processor *service.Processor) {
	authHandler := handler.NewAuthHandler(s.Config)
	streamHandler := handler.NewStreamHandler(s.Config.Storage.SegmentDir)
	controlHandler := handler.NewControlHandler(processor, s.Logger)

	// 播放器与 HLS 流
	s.gin.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(s.Config.Storage.SegmentDir, "player.html"))
	})
	s.gin.GET("/stream/*filename", streamHandler.Serve)

	// API路由组
	api := s.gin.Group("/api")

	// 认证和状态查询不需要JWT验证
	api.POST("/auth/login", authHandler.Login)
	api.GET("/status", controlHandler.Status)

	// 需要JWT验证的管理路由
	protected := api.Group("/")
	protected.Use(middleware.JWTAuth(s.Config))
	{
		protected.POST("/stream/stop", controlHandler.StopStream)
		protected.POST("/storage/cleanup", controlHandler.Cleanup)
	}
}
