package cleanse

import (
	"testing"

	"dealerpulse/internal/frame"
)

func TestNormalizeToken_Placeholders(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"", "  ", "NULL", "N/A", "-", "—", "无", "未知", "--"} {
		if _, ok := NormalizeToken(bad); ok {
			t.Fatalf("%q should be treated as missing", bad)
		}
	}
	if code, ok := NormalizeToken("  D001 "); !ok || code != "D001" {
		t.Fatalf("want D001, got %q ok=%v", code, ok)
	}
}

func TestNormalizeToken_FullWidth(t *testing.T) {
	t.Parallel()

	code, ok := NormalizeToken("Ｄ００１")
	if !ok || code != "D001" {
		t.Fatalf("fullwidth fold failed: %q ok=%v", code, ok)
	}
}

func TestSplitComposite_Delimiters(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		"A,B":   {"A", "B"},
		"A|B":   {"A", "B"},
		"A、B":   {"A", "B"},
		"A，B":   {"A", "B"},
		"A/B":   {"A", "B"},
		"A; B":  {"A", "B"},
		"A,,B,": {"A", "B"},
		"A":     {"A"},
	}
	for in, want := range cases {
		got := SplitComposite(in)
		if len(got) != len(want) {
			t.Fatalf("%q: want %v, got %v", in, want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%q: want %v, got %v", in, want, got)
			}
		}
	}
}

func TestExplodeDealerColumn_InheritsRow(t *testing.T) {
	t.Parallel()

	f, _ := frame.FromRows([]string{"dealer_id", "spend"}, [][]frame.Value{
		{frame.String("A,B"), frame.Number(7)},
		{frame.String("—"), frame.Number(99)},
		{frame.String("C"), frame.Number(1)},
	})
	out, err := ExplodeDealerColumn(f, "dealer_id")
	if err != nil {
		t.Fatalf("ExplodeDealerColumn: %v", err)
	}
	if out.NumRows() != 3 {
		t.Fatalf("want 3 rows (A,B exploded + C; placeholder dropped), got %d", out.NumRows())
	}
	for r, wantID := range []string{"A", "B", "C"} {
		if got := out.At(r, "dealer_id").Text(); got != wantID {
			t.Fatalf("row %d dealer want %s, got %s", r, wantID, got)
		}
	}
	// 拆分行继承其余列
	if n, _ := out.At(0, "spend").Number(); n != 7 {
		t.Fatalf("exploded row should inherit spend=7")
	}
	if n, _ := out.At(1, "spend").Number(); n != 7 {
		t.Fatalf("exploded row should inherit spend=7")
	}
}
