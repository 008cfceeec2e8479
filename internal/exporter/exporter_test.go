package exporter

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"dealerpulse/internal/frame"
)

func settlementFixture(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.FromRows(
		[]string{"经销商ID", "日期", "T月车云店+区域投放总金额"},
		[][]frame.Value{
			{frame.String("D001"), frame.Date(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)), frame.Number(50)},
			{frame.String("D002"), frame.Null(), frame.Null()},
		},
	)
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return f
}

func TestWriteWorkbook(t *testing.T) {
	t.Parallel()

	wb, err := WriteWorkbook(settlementFixture(t))
	if err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}
	defer wb.Close()

	got, err := wb.GetCellValue(SheetName, "A1")
	if err != nil || got != "经销商ID" {
		t.Fatalf("header A1: %q err=%v", got, err)
	}
	got, _ = wb.GetCellValue(SheetName, "C2")
	if got != "50" {
		t.Fatalf("C2: %q", got)
	}
	got, _ = wb.GetCellValue(SheetName, "B2")
	if got != "2024-02-01" {
		t.Fatalf("B2: %q", got)
	}
	// 空值留空
	got, _ = wb.GetCellValue(SheetName, "C3")
	if got != "" {
		t.Fatalf("C3 should be empty: %q", got)
	}
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settlement.xlsx")
	if err := WriteXLSX(settlementFixture(t), path); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	wb, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer wb.Close()
	got, _ := wb.GetCellValue(SheetName, "A2")
	if got != "D001" {
		t.Fatalf("A2: %q", got)
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteCSV(settlementFixture(t), &buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "D001,2024-02-01,50") {
		t.Fatalf("row 1: %q", lines[1])
	}
	if lines[2] != "D002,," {
		t.Fatalf("null cells should be empty fields: %q", lines[2])
	}
}
