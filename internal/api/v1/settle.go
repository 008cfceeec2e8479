package v1

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dealerpulse/internal/contract"
	"dealerpulse/internal/frame"
	"dealerpulse/internal/pipeline"
	"dealerpulse/internal/reader"
	"dealerpulse/internal/settle"
	"dealerpulse/internal/transform"
)

// 上传表单的文件字段名，与源标识一致
var sourceFields = []string{
	transform.SourceVideo,
	transform.SourceLive,
	transform.SourceMessage,
	transform.SourceAccountBI,
	transform.SourceLeads,
	transform.SourceSpending,
	transform.SourceDR1,
	transform.SourceDR2,
	transform.SourceAccountBase,
}

// Settle 上传各源文件并执行合流结算 (SSE 流式响应)
// POST /api/settle
func (h *Handler) Settle(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的表单数据"})
		return
	}

	inputs, cleanup, err := h.loadInputs(c, form)
	defer cleanup()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dimension := settle.Dimension(c.DefaultPostForm("dimension", h.cfg.Pipeline.Dimension))

	// SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "不支持流式响应"})
		return
	}

	p := pipeline.New(pipeline.Options{
		CoverageThreshold:        h.cfg.Pipeline.CoverageThreshold,
		NumericThreshold:         h.cfg.Pipeline.NumericThreshold,
		Dimension:                dimension,
		SkeletonSources:          h.cfg.Pipeline.SkeletonSources,
		DisableTierNormalization: !h.cfg.Pipeline.TierNormalization,
	})

	for event := range p.Run(inputs) {
		if event.Type == "done" {
			if outcome, ok := event.Data.(*pipeline.Outcome); ok {
				h.persistOutcome(outcome, string(dimension))
			}
		}
		eventData, err := json.Marshal(event)
		if err != nil {
			continue
		}
		// SSE 格式: data: {json}\n\n
		fmt.Fprintf(c.Writer, "data: %s\n\n", eventData)
		flusher.Flush()
	}
}

// persistOutcome 把结算结果落库，失败只记进运行状态，不打断响应流
func (h *Handler) persistOutcome(outcome *pipeline.Outcome, dimension string) {
	if err := h.store.CreateRun(outcome.RunID, dimension); err != nil {
		return
	}
	records := contract.Records(outcome.Settlement)
	if err := h.store.SaveSettlementRows(outcome.RunID, records); err != nil {
		_ = h.store.FailRun(outcome.RunID, err)
		return
	}
	_ = h.store.FinishRun(outcome.RunID, outcome.TMonth, outcome.TMinusMonth,
		len(records), outcome.Duration)
}

// loadInputs 把上传文件落到临时目录并解析为各源原始表
func (h *Handler) loadInputs(c *gin.Context, form *multipart.Form) (pipeline.Inputs, func(), error) {
	var tempFiles []string
	cleanup := func() {
		for _, p := range tempFiles {
			os.Remove(p)
		}
	}

	saveTemp := func(field string) (string, bool, error) {
		files := form.File[field]
		if len(files) == 0 {
			return "", false, nil
		}
		fh := files[0]
		path := filepath.Join(os.TempDir(),
			fmt.Sprintf("dealerpulse_%s_%d_%s", field, time.Now().UnixNano(), filepath.Base(fh.Filename)))
		if err := c.SaveUploadedFile(fh, path); err != nil {
			return "", false, fmt.Errorf("保存上传文件失败 %s: %w", field, err)
		}
		tempFiles = append(tempFiles, path)
		return path, true, nil
	}

	loadTable := func(field string, merged bool) (*frame.Frame, error) {
		path, ok, err := saveTemp(field)
		if err != nil || !ok {
			return nil, err
		}
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			return reader.ReadCSV(path)
		}
		if merged {
			return reader.ReadWorkbookMerged(path)
		}
		return reader.ReadWorkbook(path)
	}

	var in pipeline.Inputs
	var err error
	for _, field := range sourceFields {
		switch field {
		case transform.SourceVideo:
			in.Video, err = loadTable(field, false)
		case transform.SourceLive:
			in.Live, err = loadTable(field, false)
		case transform.SourceLeads:
			in.Leads, err = loadTable(field, false)
		case transform.SourceAccountBI:
			in.AccountBI, err = loadTable(field, false)
		case transform.SourceSpending:
			// 投放明细常按月拆多个工作表
			in.Spending, err = loadTable(field, true)
		case transform.SourceDR1:
			in.DR1, err = loadTable(field, false)
		case transform.SourceDR2:
			in.DR2, err = loadTable(field, false)
		case transform.SourceAccountBase:
			in.AccountBase, err = loadTable(field, false)
		case transform.SourceMessage:
			var path string
			var ok bool
			if path, ok, err = saveTemp(field); err == nil && ok {
				// 私信源的日期在工作表名上
				in.Message, err = reader.ReadSheets(path)
			}
		}
		if err != nil {
			return pipeline.Inputs{}, cleanup, fmt.Errorf("源 %s: %w", field, err)
		}
	}
	return in, cleanup, nil
}
