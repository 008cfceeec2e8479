package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatusResponse 系统状态响应
type StatusResponse struct {
	Initialized bool   `json:"initialized"` // 是否有历史运行
	TotalRuns   int    `json:"totalRuns"`   // 运行总数
	LastRunID   string `json:"lastRunId"`   // 最近一次运行
	LastStatus  string `json:"lastStatus"`  // 最近一次运行状态
	LastTMonth  string `json:"lastTMonth"`  // 最近一次 T 月
	Dimension   string `json:"dimension"`   // 默认结算维度
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	resp := StatusResponse{Dimension: h.cfg.Pipeline.Dimension}

	runs, err := h.store.ListRuns(0)
	if err != nil {
		c.JSON(http.StatusOK, resp)
		return
	}
	resp.TotalRuns = len(runs)
	resp.Initialized = len(runs) > 0
	if len(runs) > 0 {
		resp.LastRunID = runs[0].ID
		resp.LastStatus = runs[0].Status
		resp.LastTMonth = runs[0].TMonth
	}

	c.JSON(http.StatusOK, resp)
}
