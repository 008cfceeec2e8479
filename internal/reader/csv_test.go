package reader

import (
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	t.Parallel()

	in := "\ufeffNSC CODE,Date,Spending(Net)\nD001,2024-01-05,100\nD001,2024-01-06,\n,,\n"
	f, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if !f.Has("NSC CODE") {
		t.Fatalf("BOM should be stripped from header, cols=%v", f.Columns())
	}
	// 全空行被丢弃
	if f.NumRows() != 2 {
		t.Fatalf("want 2 rows, got %d", f.NumRows())
	}
	if !f.At(1, "Spending(Net)").IsNull() {
		t.Fatalf("empty cell should be null")
	}
}

func TestParseCSV_RaggedRows(t *testing.T) {
	t.Parallel()

	in := "a,b,c\n1,2\n"
	f, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if !f.At(0, "c").IsNull() {
		t.Fatalf("short row should pad with null")
	}
}
