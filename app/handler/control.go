package handler

import (
	"net/http"

	"radio-stream/app/logger"
	"radio-stream/app/service"

	"github.com/gin-gonic/gin"
)

// ControlHandler 流控制与状态查询处理器
type ControlHandler struct {
	processor *service.Processor
	log       *logger.Logger
}

// NewControlHandler 创建控制处理器
func NewControlHandler(processor *service.Processor, log *logger.Logger) *ControlHandler {
	return &ControlHandler{
		processor: processor,
		log:       log,
	}
}

// Status 返回当前播放状态
func (h *ControlHandler) Status(c *gin.Context) {
	success(c, h.processor.Status(), "ok")
}

// StopStream 停止当前会话。正在等待会话结束的协调器会随之解除阻塞，
// 当前卡片按播放完成处理，效果等同于跳过。
func (h *ControlHandler) StopStream(c *gin.Context) {
	st := h.processor.Status()
	if st.MediaPath == "" {
		fail(c, http.StatusConflict, 409, "当前没有正在播放的会话")
		return
	}

	h.log.Infof("收到停止播放请求: %s", st.CurrentItem)
	if err := h.processor.StopStream(); err != nil {
		fail(c, http.StatusInternalServerError, 500, "停止会话失败: "+err.Error())
		return
	}
	success(c, nil, "会话已停止")
}

// Cleanup 手动触发一次存储回收
func (h *ControlHandler) Cleanup(c *gin.Context) {
	freed, err := h.processor.Cleanup()
	if err != nil {
		fail(c, http.StatusInternalServerError, 500, "存储清理未完全达标: "+err.Error())
		return
	}
	success(c, gin.H{"freed_bytes": freed}, "清理完成")
}
