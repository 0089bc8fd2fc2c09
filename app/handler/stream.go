package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// StreamHandler HLS 播放列表与切片的文件服务
type StreamHandler struct {
	segmentDir string
}

// NewStreamHandler 创建流文件处理器
func NewStreamHandler(segmentDir string) *StreamHandler {
	return &StreamHandler{segmentDir: segmentDir}
}

// Serve 按扩展名设置正确的 MIME 类型后发送文件，
// 同时兼容浏览器（HLS.js）和 VLC 等播放器。
func (h *StreamHandler) Serve(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("filename"), "/")
	cleaned := filepath.Clean(name)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		c.Status(http.StatusNotFound)
		return
	}

	switch filepath.Ext(cleaned) {
	case ".m3u8":
		c.Header("Content-Type", "application/vnd.apple.mpegurl")
		c.Header("Content-Disposition", "inline")
	case ".ts":
		// MPEG-2 传输流切片
		c.Header("Content-Type", "video/mp2t")
	}

	// 跨域与安全头
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

	c.File(filepath.Join(h.segmentDir, cleaned))
}
