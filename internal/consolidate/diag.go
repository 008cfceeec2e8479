package consolidate

import (
	"math"
	"strings"

	"dealerpulse/internal/frame"
	"dealerpulse/internal/transform"
)

// MetricSum 单指标在全量与 T/T-1 两个窗口的合计
type MetricSum struct {
	Both   float64
	T      float64
	TMinus float64
}

// RateStats 日级率列的分布统计
type RateStats struct {
	Present bool
	NonNull int
	Mean    float64
	Min     float64
	Max     float64
}

// Diagnostics 宽表诊断汇总，只读不改表
type Diagnostics struct {
	TotalRows      int
	TRows          int
	TMinusRows     int
	MetricSums     map[string]MetricSum
	RateStats      map[string]RateStats
	MessagePresent bool
	// LevelDealers 每个层级下的去重经销商数，宽表无层级列时为空
	LevelDealers map[string]int
}

// Inspect 汇总宽表质量信息：窗口行数、核心指标合计、率分布
// monthOf 把行映射到月份标签，结算层与此保持同一口径
func Inspect(wide *frame.Frame, monthOf func(row int) (string, bool), tMonth, tMinusMonth string, metrics []string, rates []string) Diagnostics {
	d := Diagnostics{
		TotalRows:  wide.NumRows(),
		MetricSums: make(map[string]MetricSum),
		RateStats:  make(map[string]RateStats),
	}
	for _, c := range wide.Columns() {
		if strings.HasPrefix(c, "message__") {
			d.MessagePresent = true
			break
		}
	}
	if wide.Has(transform.DimensionLevel) {
		seen := make(map[string]map[string]struct{})
		for r := 0; r < wide.NumRows(); r++ {
			level := wide.At(r, transform.DimensionLevel).Text()
			dealer := wide.At(r, transform.DealerColumn).Text()
			if seen[level] == nil {
				seen[level] = make(map[string]struct{})
			}
			seen[level][dealer] = struct{}{}
		}
		d.LevelDealers = make(map[string]int, len(seen))
		for level, dealers := range seen {
			d.LevelDealers[level] = len(dealers)
		}
	}
	rowMonth := make([]string, wide.NumRows())
	for r := 0; r < wide.NumRows(); r++ {
		if m, ok := monthOf(r); ok {
			rowMonth[r] = m
			switch m {
			case tMonth:
				d.TRows++
			case tMinusMonth:
				d.TMinusRows++
			}
		}
	}
	for _, metric := range metrics {
		if !wide.Has(metric) {
			continue
		}
		var ms MetricSum
		for r := 0; r < wide.NumRows(); r++ {
			n, ok := wide.At(r, metric).Number()
			if !ok {
				continue
			}
			ms.Both += n
			switch rowMonth[r] {
			case tMonth:
				ms.T += n
			case tMinusMonth:
				ms.TMinus += n
			}
		}
		d.MetricSums[metric] = ms
	}
	for _, rate := range rates {
		if !wide.Has(rate) {
			d.RateStats[rate] = RateStats{Present: false}
			continue
		}
		st := RateStats{Present: true, Min: math.Inf(1), Max: math.Inf(-1)}
		sum := 0.0
		for r := 0; r < wide.NumRows(); r++ {
			n, ok := wide.At(r, rate).Number()
			if !ok {
				continue
			}
			st.NonNull++
			sum += n
			st.Min = math.Min(st.Min, n)
			st.Max = math.Max(st.Max, n)
		}
		if st.NonNull > 0 {
			st.Mean = sum / float64(st.NonNull)
		} else {
			st.Min, st.Max = 0, 0
		}
		d.RateStats[rate] = st
	}
	return d
}
