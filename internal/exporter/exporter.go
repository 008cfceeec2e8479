package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"dealerpulse/internal/frame"
)

// SheetName 结算结果工作表名
const SheetName = "结算结果"

// WriteWorkbook 把结算结果表写成工作簿：首行表头，数值列保持数值类型
func WriteWorkbook(f *frame.Frame) (*excelize.File, error) {
	wb := excelize.NewFile()
	if err := wb.SetSheetName("Sheet1", SheetName); err != nil {
		_ = wb.Close()
		return nil, err
	}

	cols := f.Columns()
	for i, col := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			_ = wb.Close()
			return nil, err
		}
		if err := wb.SetCellValue(SheetName, cell, col); err != nil {
			_ = wb.Close()
			return nil, err
		}
	}

	for r := 0; r < f.NumRows(); r++ {
		for i, col := range cols {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				_ = wb.Close()
				return nil, err
			}
			v := f.At(r, col)
			switch {
			case v.IsNull():
				// 留空
			default:
				if n, ok := v.Number(); ok {
					err = wb.SetCellValue(SheetName, cell, n)
				} else if d, ok := v.Date(); ok {
					err = wb.SetCellValue(SheetName, cell, d.Format("2006-01-02"))
				} else {
					err = wb.SetCellValue(SheetName, cell, v.Text())
				}
				if err != nil {
					_ = wb.Close()
					return nil, err
				}
			}
		}
	}

	wb.SetActiveSheet(0)
	return wb, nil
}

// WriteXLSX 导出到文件
func WriteXLSX(f *frame.Frame, path string) error {
	wb, err := WriteWorkbook(f)
	if err != nil {
		return err
	}
	defer wb.Close()
	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("保存工作簿失败 %s: %w", path, err)
	}
	return nil
}

// WriteCSV 把结算结果表写成 CSV，空值输出为空字段
func WriteCSV(f *frame.Frame, w io.Writer) error {
	cw := csv.NewWriter(w)
	cols := f.Columns()
	if err := cw.Write(cols); err != nil {
		return err
	}
	record := make([]string, len(cols))
	for r := 0; r < f.NumRows(); r++ {
		for i, col := range cols {
			v := f.At(r, col)
			switch {
			case v.IsNull():
				record[i] = ""
			default:
				if n, ok := v.Number(); ok {
					record[i] = strconv.FormatFloat(n, 'f', -1, 64)
				} else if d, ok := v.Date(); ok {
					record[i] = d.Format("2006-01-02")
				} else {
					record[i] = v.Text()
				}
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
