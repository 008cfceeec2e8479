package v1

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"dealerpulse/internal/exporter"
	"dealerpulse/internal/frame"
)

// ListRuns 按时间倒序列出结算运行
// GET /api/runs
func (h *Handler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.store.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs, "total": len(runs)})
}

// GetRun 查询单次运行
// GET /api/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.store.GetRun(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "运行不存在"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetRunRows 查询一次运行的结算结果行
// GET /api/runs/:id/rows
func (h *Handler) GetRunRows(c *gin.Context) {
	id := c.Param("id")
	run, err := h.store.GetRun(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "运行不存在"})
		return
	}
	rows, err := h.store.GetSettlementRows(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "rows": rows, "total": len(rows)})
}

// ExportRun 导出一次运行的结算结果，format=csv（默认）或 xlsx
// GET /api/runs/:id/export
func (h *Handler) ExportRun(c *gin.Context) {
	id := c.Param("id")
	run, err := h.store.GetRun(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "运行不存在"})
		return
	}
	rows, err := h.store.GetSettlementRows(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	table, err := rowsToFrame(rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	short := id
	if len(short) > 8 {
		short = short[:8]
	}

	if c.DefaultQuery("format", "csv") == "xlsx" {
		wb, err := exporter.WriteWorkbook(table)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer wb.Close()
		filename := fmt.Sprintf("settlement_%s_%s.xlsx", run.TMonth, short)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		if err := wb.Write(c.Writer); err != nil {
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	filename := fmt.Sprintf("settlement_%s_%s.csv", run.TMonth, short)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := exporter.WriteCSV(table, c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}

// rowsToFrame 把落库记录还原为表，列序取首行键的字典序
func rowsToFrame(rows []map[string]any) (*frame.Frame, error) {
	if len(rows) == 0 {
		return frame.New(nil)
	}
	cols := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	f, err := frame.New(cols)
	if err != nil {
		return nil, err
	}
	for _, rec := range rows {
		vals := make([]frame.Value, len(cols))
		for i, col := range cols {
			switch v := rec[col].(type) {
			case nil:
				vals[i] = frame.Null()
			case float64:
				vals[i] = frame.Number(v)
			case string:
				vals[i] = frame.String(v)
			default:
				vals[i] = frame.String(fmt.Sprint(v))
			}
		}
		f = f.AppendRow(vals)
	}
	return f, nil
}
