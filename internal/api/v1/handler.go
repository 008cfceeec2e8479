package v1

import (
	"github.com/gin-gonic/gin"

	"dealerpulse/internal/config"
	"dealerpulse/internal/store"
)

// Handler V1 API 处理器
type Handler struct {
	store *store.Store
	cfg   *config.AppConfig
}

// NewHandler 创建 V1 API 处理器
func NewHandler(store *store.Store, cfg *config.AppConfig) *Handler {
	return &Handler{store: store, cfg: cfg}
}

// RegisterRoutes 注册 V1 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)

	// 结算：上传各源文件，SSE 流式返回进度
	router.POST("/settle", h.Settle)

	// 运行查询
	router.GET("/runs", h.ListRuns)
	router.GET("/runs/:id", h.GetRun)
	router.GET("/runs/:id/rows", h.GetRunRows)
	router.GET("/runs/:id/export", h.ExportRun)
}
