package consolidate

import (
	"testing"

	"dealerpulse/internal/frame"
)

func TestSafeDiv(t *testing.T) {
	t.Parallel()

	if v := SafeDiv(frame.Number(10), frame.Number(4)); v.IsNull() {
		t.Fatalf("10/4 should be defined")
	} else if n, _ := v.Number(); n != 2.5 {
		t.Fatalf("10/4 want 2.5, got %v", n)
	}
	for _, den := range []frame.Value{frame.Number(0), frame.Number(-1), frame.Null(), frame.String("x")} {
		if !SafeDiv(frame.Number(10), den).IsNull() {
			t.Fatalf("division by %v should be null", den)
		}
	}
	if !SafeDiv(frame.Null(), frame.Number(5)).IsNull() {
		t.Fatalf("null numerator should stay null")
	}
}

func TestApplyFolds(t *testing.T) {
	t.Parallel()

	f, _ := frame.FromRows(
		[]string{"dr1__paid_leads", "dr2__paid_leads"},
		[][]frame.Value{
			{frame.Number(3), frame.Number(2)},
			{frame.Null(), frame.Number(4)},
			{frame.Null(), frame.Null()},
		},
	)
	out, err := ApplyFolds(f, []Fold{{Out: "paid_leads", Parts: []string{"dr1__paid_leads", "dr2__paid_leads"}}})
	if err != nil {
		t.Fatalf("ApplyFolds: %v", err)
	}
	for r, want := range []float64{5, 4, 0} {
		if n, _ := out.At(r, "paid_leads").Number(); n != want {
			t.Fatalf("row %d want %v, got %v", r, want, n)
		}
	}
}

func TestApplyFolds_MissingPartSkipped(t *testing.T) {
	t.Parallel()

	f, _ := frame.FromRows(
		[]string{"dr1__local_leads"},
		[][]frame.Value{{frame.Number(7)}},
	)
	// dr2 批次缺席：折叠按在场列求和
	out, err := ApplyFolds(f, []Fold{{Out: "local_leads", Parts: []string{"dr1__local_leads", "dr2__local_leads"}}})
	if err != nil {
		t.Fatalf("ApplyFolds: %v", err)
	}
	if n, _ := out.At(0, "local_leads").Number(); n != 7 {
		t.Fatalf("want 7, got %v", n)
	}

	// 全部缺席：记日志跳过，不产生输出列
	out, err = ApplyFolds(f, []Fold{{Out: "paid_leads", Parts: []string{"dr1__paid_leads", "dr2__paid_leads"}}})
	if err != nil {
		t.Fatalf("ApplyFolds: %v", err)
	}
	if out.Has("paid_leads") {
		t.Fatalf("fold with no source columns should be skipped")
	}
}

func TestApplyRates_PerRow(t *testing.T) {
	t.Parallel()

	f, _ := frame.FromRows(
		[]string{"video__component_clicks", "video__anchor_exposure"},
		[][]frame.Value{
			{frame.Number(5), frame.Number(10)},
			{frame.Number(5), frame.Number(0)},
		},
	)
	out, err := ApplyRates(f, []RateDef{{RateComponentClick, "video__component_clicks", "video__anchor_exposure"}})
	if err != nil {
		t.Fatalf("ApplyRates: %v", err)
	}
	if n, _ := out.At(0, RateComponentClick).Number(); n != 0.5 {
		t.Fatalf("want 0.5, got %v", n)
	}
	if !out.At(1, RateComponentClick).IsNull() {
		t.Fatalf("zero denominator should yield null, not zero")
	}
}

func TestDerive_SecondOrderSum(t *testing.T) {
	t.Parallel()

	f, _ := frame.FromRows(
		[]string{"dr1__store_paid_leads", "dr2__store_paid_leads", "dr1__area_paid_leads", "dr2__area_paid_leads"},
		[][]frame.Value{
			{frame.Number(1), frame.Number(2), frame.Number(3), frame.Null()},
		},
	)
	out, err := Derive(f)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if n, _ := out.At(0, "store_paid_leads").Number(); n != 3 {
		t.Fatalf("store fold want 3, got %v", n)
	}
	if n, _ := out.At(0, "area_paid_leads").Number(); n != 3 {
		t.Fatalf("area fold want 3, got %v", n)
	}
	if n, _ := out.At(0, MetricStoreAreaPaidLeads).Number(); n != 6 {
		t.Fatalf("store+area want 6, got %v", n)
	}
}
