package reader

import (
	"fmt"
	"log"
	"strings"

	"github.com/xuri/excelize/v2"

	"dealerpulse/internal/frame"
	"dealerpulse/internal/transform"
)

// ReadWorkbook 读取工作簿的第一个工作表为原始表
// 首行为表头，空单元格为缺失值；类型解析交给下游清洗层
func ReadWorkbook(path string) (*frame.Frame, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败 %s: %w", path, err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("工作簿无工作表: %s", path)
	}
	return sheetToFrame(file, sheets[0])
}

// ReadWorkbookMerged 读取工作簿所有工作表并纵向拼接
// 用于按月/批次拆多表的投放明细；表头与首表不一致的工作表跳过并告警
func ReadWorkbookMerged(path string) (*frame.Frame, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败 %s: %w", path, err)
	}
	defer file.Close()

	var merged *frame.Frame
	for _, sheet := range file.GetSheetList() {
		f, err := sheetToFrame(file, sheet)
		if err != nil {
			log.Printf("工作表 %q 读取失败，跳过: %v", sheet, err)
			continue
		}
		if merged == nil {
			merged = f
			continue
		}
		next, err := merged.Concat(f)
		if err != nil {
			log.Printf("工作表 %q 表头与首表不一致，跳过: %v", sheet, err)
			continue
		}
		merged = next
	}
	if merged == nil {
		return nil, fmt.Errorf("工作簿无可用工作表: %s", path)
	}
	return merged, nil
}

// ReadSheets 按工作表读取，保留表名
// 私信源以表名承载日期，由聚合层解析
func ReadSheets(path string) ([]transform.Sheet, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败 %s: %w", path, err)
	}
	defer file.Close()

	var out []transform.Sheet
	for _, sheet := range file.GetSheetList() {
		f, err := sheetToFrame(file, sheet)
		if err != nil {
			return nil, fmt.Errorf("工作表 %q: %w", sheet, err)
		}
		out = append(out, transform.Sheet{Label: sheet, Table: f})
	}
	return out, nil
}

func sheetToFrame(file *excelize.File, sheet string) (*frame.Frame, error) {
	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("读取工作表失败: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("工作表为空")
	}

	headers := make([]string, 0, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		headers = append(headers, h)
	}

	f, err := frame.New(headers)
	if err != nil {
		return nil, err
	}
	for _, raw := range rows[1:] {
		vals := make([]frame.Value, len(headers))
		empty := true
		for i := range headers {
			if i < len(raw) && strings.TrimSpace(raw[i]) != "" {
				vals[i] = frame.String(raw[i])
				empty = false
			} else {
				vals[i] = frame.Null()
			}
		}
		if empty {
			continue
		}
		f = f.AppendRow(vals)
	}
	return f, nil
}
