package consolidate

import (
	"errors"
	"testing"

	"dealerpulse/internal/frame"
	"dealerpulse/internal/transform"
)

func keyed(rows ...[]frame.Value) *frame.Frame {
	cols := []string{transform.DealerColumn, transform.DateColumn}
	f, err := frame.FromRows(cols, rows)
	if err != nil {
		panic(err)
	}
	return f
}

func withMetric(f *frame.Frame, name string, vals ...float64) *frame.Frame {
	col := make([]frame.Value, len(vals))
	for i, v := range vals {
		col[i] = frame.Number(v)
	}
	out, err := f.WithColumn(name, col)
	if err != nil {
		panic(err)
	}
	return out
}

func day(d int) frame.Value {
	return frame.DateYMD(2024, 3, d)
}

func TestBuildWide_SkeletonUnion(t *testing.T) {
	t.Parallel()

	dr1 := withMetric(keyed(
		[]frame.Value{frame.String("D001"), day(1)},
		[]frame.Value{frame.String("D001"), day(2)},
	), "dr1__natural_leads", 1, 2)
	spend := withMetric(keyed(
		[]frame.Value{frame.String("D002"), day(1)},
		[]frame.Value{frame.String("D001"), day(1)},
	), "spending__spending_net", 50, 100)

	c := &Coordinator{CoverageThreshold: 0.5}
	wide, err := c.BuildWide([]Source{
		{Name: "dr1", Table: dr1, Skeleton: true},
		{Name: "spending", Table: spend, Skeleton: true},
	})
	if err != nil {
		t.Fatalf("BuildWide: %v", err)
	}
	// 骨架 = 两个权威源键并集：(D001,1) (D001,2) (D002,1)
	if wide.NumRows() != 3 {
		t.Fatalf("skeleton union want 3 rows, got %d", wide.NumRows())
	}
	if !wide.Has("dr1__natural_leads") || !wide.Has("spending__spending_net") {
		t.Fatalf("joined columns missing: %v", wide.Columns())
	}
}

func TestBuildWide_MetricSourceAddsNoKeys(t *testing.T) {
	t.Parallel()

	dr1 := withMetric(keyed(
		[]frame.Value{frame.String("D001"), day(1)},
	), "dr1__natural_leads", 1)
	video := withMetric(keyed(
		[]frame.Value{frame.String("D001"), day(1)},
		[]frame.Value{frame.String("D999"), day(9)},
	), "video__anchor_exposure", 10, 99)

	c := &Coordinator{}
	wide, err := c.BuildWide([]Source{
		{Name: "dr1", Table: dr1, Skeleton: true},
		{Name: "video", Table: video},
	})
	if err != nil {
		t.Fatalf("BuildWide: %v", err)
	}
	if wide.NumRows() != 1 {
		t.Fatalf("metric-only source must not add keys, got %d rows", wide.NumRows())
	}
}

func TestBuildWide_JoinCollision(t *testing.T) {
	t.Parallel()

	a := withMetric(keyed([]frame.Value{frame.String("D001"), day(1)}), "spend", 1)
	b := withMetric(keyed([]frame.Value{frame.String("D001"), day(1)}), "spend", 2)

	c := &Coordinator{}
	_, err := c.BuildWide([]Source{
		{Name: "a", Table: a, Skeleton: true},
		{Name: "b", Table: b},
	})
	if !errors.Is(err, ErrJoinCollision) {
		t.Fatalf("want ErrJoinCollision, got %v", err)
	}
}

func TestBuildWide_LowCoverage(t *testing.T) {
	t.Parallel()

	// 骨架 20 个键，右表只命中 19 个：覆盖率 95% 恰好过线
	var skRows, vidRows [][]frame.Value
	for i := 1; i <= 20; i++ {
		skRows = append(skRows, []frame.Value{frame.String("D001"), day(i)})
		if i <= 19 {
			vidRows = append(vidRows, []frame.Value{frame.String("D001"), day(i)})
		}
	}
	sk, _ := frame.FromRows([]string{transform.DealerColumn, transform.DateColumn}, skRows)
	vid, _ := frame.FromRows([]string{transform.DealerColumn, transform.DateColumn}, vidRows)
	sk = withMetric(sk, "dr1__natural_leads", make([]float64, 20)...)
	vid = withMetric(vid, "video__anchor_exposure", make([]float64, 19)...)

	c := &Coordinator{}
	if _, err := c.BuildWide([]Source{
		{Name: "dr1", Table: sk, Skeleton: true},
		{Name: "video", Table: vid},
	}); err != nil {
		t.Fatalf("coverage 95%% should pass: %v", err)
	}

	// 命中 18/20 = 90%：低于阈值报错
	vid2, _ := frame.FromRows([]string{transform.DealerColumn, transform.DateColumn}, vidRows[:18])
	vid2 = withMetric(vid2, "video__anchor_exposure", make([]float64, 18)...)
	_, err := c.BuildWide([]Source{
		{Name: "dr1", Table: sk, Skeleton: true},
		{Name: "video", Table: vid2},
	})
	if !errors.Is(err, ErrLowCoverage) {
		t.Fatalf("want ErrLowCoverage, got %v", err)
	}
}

func TestBuildWide_EmptySkeleton(t *testing.T) {
	t.Parallel()

	video := withMetric(keyed([]frame.Value{frame.String("D001"), day(1)}), "video__anchor_exposure", 1)
	c := &Coordinator{}
	_, err := c.BuildWide([]Source{{Name: "video", Table: video}})
	if !errors.Is(err, ErrEmptySkeleton) {
		t.Fatalf("want ErrEmptySkeleton, got %v", err)
	}
}

func TestAttachDimension(t *testing.T) {
	t.Parallel()

	wide := withMetric(keyed(
		[]frame.Value{frame.String("D001"), day(1)},
		[]frame.Value{frame.String("D002"), day(1)},
	), "dr1__natural_leads", 1, 2)

	dim, _ := frame.FromRows(
		[]string{transform.DealerColumn, transform.DimensionLevel},
		[][]frame.Value{{frame.String("D001"), frame.String("L1")}},
	)
	c := &Coordinator{}
	out, err := c.AttachDimension(wide, dim)
	if err != nil {
		t.Fatalf("AttachDimension: %v", err)
	}
	if got := out.At(0, transform.DimensionLevel).Text(); got != "L1" {
		t.Fatalf("D001 level want L1, got %q", got)
	}
	// 未命中的经销商落入“未知”占位桶
	if got := out.At(1, transform.DimensionLevel).Text(); got != UnknownDimension {
		t.Fatalf("unmapped dealer want %s, got %q", UnknownDimension, got)
	}

	dup, _ := frame.FromRows(
		[]string{transform.DealerColumn, transform.DimensionLevel},
		[][]frame.Value{
			{frame.String("D001"), frame.String("L1")},
			{frame.String("D001"), frame.String("L2")},
		},
	)
	if _, err := c.AttachDimension(wide, dup); !errors.Is(err, ErrDuplicateDimensionKey) {
		t.Fatalf("want ErrDuplicateDimensionKey, got %v", err)
	}
}
