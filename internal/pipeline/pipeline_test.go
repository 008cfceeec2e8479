package pipeline

import (
	"math"
	"testing"

	"dealerpulse/internal/frame"
)

// drRaw 构造 DR 线索明细原始表
func drRaw(t *testing.T, rows [][]frame.Value) *frame.Frame {
	t.Helper()
	f, err := frame.FromRows(
		[]string{"reg_dealer", "register_time", "leads_type", "mkt_second_channel_name", "send2dealer_id"},
		rows,
	)
	if err != nil {
		t.Fatalf("drRaw: %v", err)
	}
	return f
}

func drRow(dealer, date, leadsType, channel string) []frame.Value {
	return []frame.Value{
		frame.String(dealer), frame.String(date),
		frame.String(leadsType), frame.String(channel), frame.String(dealer),
	}
}

func spendingRaw(t *testing.T, rows [][]frame.Value) *frame.Frame {
	t.Helper()
	f, err := frame.FromRows([]string{"NSC CODE", "Date", "Spending(Net)"}, rows)
	if err != nil {
		t.Fatalf("spendingRaw: %v", err)
	}
	return f
}

func numberAt(t *testing.T, f *frame.Frame, row int, col string) float64 {
	t.Helper()
	if !f.Has(col) {
		t.Fatalf("缺列 %q: %v", col, f.Columns())
	}
	n, ok := f.At(row, col).Number()
	if !ok {
		t.Fatalf("列 %q 第 %d 行不是数值", col, row)
	}
	return n
}

func TestExecute_EndToEnd(t *testing.T) {
	t.Parallel()

	dr1 := drRaw(t, [][]frame.Value{
		drRow("D1", "2024-01-05", "自然", ""),
		drRow("D1", "2024-01-05", "自然", ""),
		drRow("D1", "2024-01-05", "付费", "信息流"),
		drRow("D1", "2024-01-05", "付费", "信息流"),
		drRow("D1", "2024-01-05", "广告", "信息流"),
		drRow("D1", "2024-02-10", "自然", ""),
		drRow("D1", "2024-02-10", "付费", "信息流"),
	})
	spending := spendingRaw(t, [][]frame.Value{
		{frame.String("D1"), frame.String("2024-01-05"), frame.String("100")},
		{frame.String("D1"), frame.String("2024-02-10"), frame.String("50")},
	})

	out, err := New(Options{}).Execute(Inputs{DR1: dr1, Spending: spending})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.RunID == "" {
		t.Fatalf("run id should be assigned")
	}
	if out.TMonth != "2024-02" || out.TMinusMonth != "2024-01" {
		t.Fatalf("window: T=%s T-1=%s", out.TMonth, out.TMinusMonth)
	}

	// 宽表：骨架两行，折叠后产出无前缀线索列
	if out.Wide.NumRows() != 2 {
		t.Fatalf("wide rows: %d", out.Wide.NumRows())
	}
	if !out.Wide.Has("natural_leads") || !out.Wide.Has("paid_leads") {
		t.Fatalf("folded columns missing: %v", out.Wide.Columns())
	}

	// 结算表套用合同后为展示名
	s := out.Settlement
	if s.NumRows() != 1 {
		t.Fatalf("settlement rows: %d", s.NumRows())
	}
	if got := numberAt(t, s, 0, "T月车云店+区域投放总金额"); got != 50 {
		t.Fatalf("T月投放: %v", got)
	}
	if got := numberAt(t, s, 0, "T-1月车云店+区域投放总金额"); got != 100 {
		t.Fatalf("T-1月投放: %v", got)
	}
	if got := numberAt(t, s, 0, "车云店+区域投放总金额"); got != 150 {
		t.Fatalf("投放总额: %v", got)
	}
	if got := numberAt(t, s, 0, "自然线索量"); got != 3 {
		t.Fatalf("自然线索量: %v", got)
	}
	if got := numberAt(t, s, 0, "付费线索量"); got != 4 {
		t.Fatalf("付费线索量: %v", got)
	}
	if got := numberAt(t, s, 0, "有效天数"); got != 2 {
		t.Fatalf("有效天数: %v", got)
	}
	// CPL 用两月汇总相除，而不是日比率求平均
	if got := numberAt(t, s, 0, "车云店+区域综合CPL"); math.Abs(got-150.0/7.0) > 1e-9 {
		t.Fatalf("综合CPL: %v", got)
	}
	if got := numberAt(t, s, 0, "直播付费CPL"); got != 37.5 {
		t.Fatalf("付费CPL want 150/4=37.5, got %v", got)
	}

	// 诊断覆盖窗口行数
	if out.Diagnostics.TRows != 1 || out.Diagnostics.TMinusRows != 1 {
		t.Fatalf("diag rows: %+v", out.Diagnostics)
	}
}

func TestExecute_NoSkeletonSource(t *testing.T) {
	t.Parallel()

	_, err := New(Options{}).Execute(Inputs{})
	if err == nil {
		t.Fatalf("empty inputs should fail on skeleton")
	}
}

func TestRun_EmitsProgressAndOutcome(t *testing.T) {
	t.Parallel()

	dr1 := drRaw(t, [][]frame.Value{
		drRow("D1", "2024-01-05", "自然", ""),
		drRow("D1", "2024-02-10", "付费", "信息流"),
	})

	var done *Outcome
	var types []string
	for ev := range New(Options{}).Run(Inputs{DR1: dr1}) {
		types = append(types, ev.Type)
		if ev.Type == "done" {
			done = ev.Data.(*Outcome)
		}
		if ev.Type == "error" {
			t.Fatalf("unexpected error event: %s", ev.Message)
		}
	}
	if len(types) == 0 || types[0] != "start" {
		t.Fatalf("first event should be start: %v", types)
	}
	if done == nil {
		t.Fatalf("done event with outcome expected")
	}
	if done.TMonth != "2024-02" {
		t.Fatalf("TMonth: %s", done.TMonth)
	}
}
