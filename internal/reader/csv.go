package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"dealerpulse/internal/frame"
)

// ReadCSV 读取 CSV 文件为原始表，首行为表头
// 允许行字段数不齐（短行补缺失），BOM 由表头清洗去除
func ReadCSV(path string) (*frame.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败 %s: %w", path, err)
	}
	defer file.Close()
	return ParseCSV(file)
}

// ParseCSV 从任意读取器解析 CSV
func ParseCSV(r io.Reader) (*frame.Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	headers := make([]string, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		headers = append(headers, h)
	}

	f, err := frame.New(headers)
	if err != nil {
		return nil, err
	}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取数据行失败: %w", err)
		}
		vals := make([]frame.Value, len(headers))
		empty := true
		for i := range headers {
			if i < len(record) && strings.TrimSpace(record[i]) != "" {
				vals[i] = frame.String(record[i])
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
