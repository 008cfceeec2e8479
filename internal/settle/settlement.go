package settle

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"dealerpulse/internal/consolidate"
	"dealerpulse/internal/frame"
	"dealerpulse/internal/transform"
)

// ErrInsufficientPeriods 数据不足两个自然月，无法做 T/T-1 对比
var ErrInsufficientPeriods = errors.New("结算月份不足")

// Unknown 维度属性缺失时的兜底取值
const Unknown = "未知"

// Dimension 结算分组维度
type Dimension string

const (
	// DimensionDealer 按经销商结算，附带层级与门店名
	DimensionDealer Dimension = "dealer"
	// DimensionTier 按层级结算，白名单指标除以层级内去重经销商数
	DimensionTier Dimension = "tier"
)

// 结算输出列后缀
const (
	suffixT      = "_t"
	suffixTMinus = "_t_minus_1"
	suffixTotal  = "_total"
)

// EffectiveDaysColumn 有效天数列基名（每组内去重日期数）
const EffectiveDaysColumn = "effective_days"

// Metric 注册到结算的求和指标：宽表来源列与输出基名
type Metric struct {
	Name   string
	Column string
}

// Rate 结算口径的率：分子合计 / 分母合计，按 _t/_t_minus_1/_total 各算一遍
type Rate struct {
	Out string
	Num []string
	Den []string
}

// DailyAverage 日均指标：指标合计 / 有效天数
type DailyAverage struct {
	Out    string
	Metric string
}

// Config 结算配置
type Config struct {
	Metrics       []Metric
	Rates         []Rate
	DailyAverages []DailyAverage
	// NormalizeWhitelist 层级维度下按去重经销商数摊平的指标基名
	NormalizeWhitelist []string
	// DisableNormalization 关闭层级摊平（输出层级原始合计）
	DisableNormalization bool
}

// DefaultConfig 与合流层默认产出对应的结算配置
func DefaultConfig() Config {
	return Config{
		Metrics:       defaultMetrics(),
		Rates:         defaultRates(),
		DailyAverages: defaultDailyAverages(),
		NormalizeWhitelist: []string{
			transform.MetricNaturalLeads,
			transform.MetricPaidLeads,
			transform.MetricStorePaidLeads,
			transform.MetricAreaPaidLeads,
			transform.MetricOtherPaidLeads,
			transform.MetricLocalLeads,
			consolidate.MetricStoreAreaPaidLeads,
			transform.MetricSpendingNet,
			transform.MetricAnchorExposure,
			transform.MetricComponentClicks,
			transform.MetricShortVideoCount,
			transform.MetricShortVideoLeads,
			transform.MetricOver25MinLiveMins,
			transform.MetricLiveEffectiveHrs,
			transform.MetricEffectiveSessions,
			transform.MetricExposures,
			transform.MetricViewers,
			transform.MetricSmallWheelClicks,
			transform.MetricSmallWheelLeads,
			transform.MetricEnterPrivate,
			transform.MetricPrivateOpen,
			transform.MetricPrivateLeads,
			transform.MetricLiveLeads,
			transform.MetricShortVideoPlays,
			"avg_daily_spending",
			"avg_daily_paid_leads",
			"avg_daily_live_hours",
			"avg_daily_enter_private",
			"avg_daily_private_open",
			"avg_daily_private_leads",
		},
	}
}

func defaultMetrics() []Metric {
	src := func(source, metric string) string { return source + "__" + metric }
	return []Metric{
		// 折叠后的 DR 指标已无前缀
		{transform.MetricNaturalLeads, transform.MetricNaturalLeads},
		{transform.MetricPaidLeads, transform.MetricPaidLeads},
		{transform.MetricStorePaidLeads, transform.MetricStorePaidLeads},
		{transform.MetricAreaPaidLeads, transform.MetricAreaPaidLeads},
		{transform.MetricOtherPaidLeads, transform.MetricOtherPaidLeads},
		{transform.MetricLocalLeads, transform.MetricLocalLeads},
		{consolidate.MetricStoreAreaPaidLeads, consolidate.MetricStoreAreaPaidLeads},

		{transform.MetricSpendingNet, src(transform.SourceSpending, transform.MetricSpendingNet)},

		{transform.MetricAnchorExposure, src(transform.SourceVideo, transform.MetricAnchorExposure)},
		{transform.MetricComponentClicks, src(transform.SourceVideo, transform.MetricComponentClicks)},
		{transform.MetricShortVideoCount, src(transform.SourceVideo, transform.MetricShortVideoCount)},
		{transform.MetricShortVideoLeads, src(transform.SourceVideo, transform.MetricShortVideoLeads)},

		{transform.MetricOver25MinLiveMins, src(transform.SourceLive, transform.MetricOver25MinLiveMins)},
		{transform.MetricLiveEffectiveHrs, src(transform.SourceLive, transform.MetricLiveEffectiveHrs)},
		{transform.MetricEffectiveSessions, src(transform.SourceLive, transform.MetricEffectiveSessions)},
		{transform.MetricExposures, src(transform.SourceLive, transform.MetricExposures)},
		{transform.MetricViewers, src(transform.SourceLive, transform.MetricViewers)},
		{transform.MetricSmallWheelClicks, src(transform.SourceLive, transform.MetricSmallWheelClicks)},

		{transform.MetricSmallWheelLeads, src(transform.SourceLeads, transform.MetricSmallWheelLeads)},

		{transform.MetricEnterPrivate, src(transform.SourceMessage, transform.MetricEnterPrivate)},
		{transform.MetricPrivateOpen, src(transform.SourceMessage, transform.MetricPrivateOpen)},
		{transform.MetricPrivateLeads, src(transform.SourceMessage, transform.MetricPrivateLeads)},

		{transform.MetricLiveLeads, src(transform.SourceAccountBI, transform.MetricLiveLeads)},
		{transform.MetricShortVideoPlays, src(transform.SourceAccountBI, transform.MetricShortVideoPlays)},
	}
}

func defaultRates() []Rate {
	return []Rate{
		{Out: "total_cpl",
			Num: []string{transform.MetricSpendingNet},
			Den: []string{transform.MetricNaturalLeads, transform.MetricPaidLeads}},
		{Out: "paid_cpl",
			Num: []string{transform.MetricSpendingNet},
			Den: []string{transform.MetricPaidLeads}},
		{Out: "local_leads_share",
			Num: []string{transform.MetricLocalLeads},
			Den: []string{transform.MetricNaturalLeads, transform.MetricPaidLeads}},
		{Out: "component_click_rate",
			Num: []string{transform.MetricComponentClicks},
			Den: []string{transform.MetricAnchorExposure}},
		{Out: "component_leads_rate",
			Num: []string{transform.MetricShortVideoLeads},
			Den: []string{transform.MetricAnchorExposure}},
		{Out: "exposure_enter_rate",
			Num: []string{transform.MetricViewers},
			Den: []string{transform.MetricExposures}},
		{Out: "small_wheel_click_rate",
			Num: []string{transform.MetricSmallWheelClicks},
			Den: []string{transform.MetricViewers}},
		{Out: "small_wheel_leads_rate",
			Num: []string{transform.MetricSmallWheelLeads},
			Den: []string{transform.MetricSmallWheelClicks}},
		{Out: "private_open_rate",
			Num: []string{transform.MetricPrivateOpen},
			Den: []string{transform.MetricEnterPrivate}},
		{Out: "private_leads_rate",
			Num: []string{transform.MetricPrivateLeads},
			Den: []string{transform.MetricPrivateOpen}},
		{Out: "private_conversion_rate",
			Num: []string{transform.MetricPrivateLeads},
			Den: []string{transform.MetricEnterPrivate}},
	}
}

func defaultDailyAverages() []DailyAverage {
	return []DailyAverage{
		{"avg_daily_spending", transform.MetricSpendingNet},
		{"avg_daily_paid_leads", consolidate.MetricStoreAreaPaidLeads},
		{"avg_daily_live_hours", transform.MetricLiveEffectiveHrs},
		{"avg_daily_enter_private", transform.MetricEnterPrivate},
		{"avg_daily_private_open", transform.MetricPrivateOpen},
		{"avg_daily_private_leads", transform.MetricPrivateLeads},
	}
}

// Aggregator 月度结算：T/T-1 两窗口对比
type Aggregator struct {
	cfg Config
}

// NewAggregator 创建结算聚合器，cfg 的零值字段取默认配置
func NewAggregator(cfg Config) *Aggregator {
	def := DefaultConfig()
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = def.Metrics
	}
	if len(cfg.Rates) == 0 {
		cfg.Rates = def.Rates
	}
	if len(cfg.DailyAverages) == 0 {
		cfg.DailyAverages = def.DailyAverages
	}
	if len(cfg.NormalizeWhitelist) == 0 {
		cfg.NormalizeWhitelist = def.NormalizeWhitelist
	}
	return &Aggregator{cfg: cfg}
}

// Result 结算结果与窗口信息
type Result struct {
	Table       *frame.Frame
	TMonth      string
	TMinusMonth string
}

// monthKey 行聚合中间态
type group struct {
	sums    map[string]float64
	has     map[string]bool
	days    map[string]struct{}
	dealers map[string]struct{}
}

func newGroup() *group {
	return &group{
		sums:    make(map[string]float64),
		has:     make(map[string]bool),
		days:    make(map[string]struct{}),
		dealers: make(map[string]struct{}),
	}
}

// MonthLabel 月度标签：日期截断到月初
func MonthLabel(t time.Time) string {
	return t.Format("2006-01")
}

// Settle 对宽表做 T/T-1 月度结算
// 不足两个月报 ErrInsufficientPeriods；T/T-1 之外的行只被排除，不报错
func (a *Aggregator) Settle(wide *frame.Frame, dim Dimension) (*Result, error) {
	tMonth, tMinus, err := resolveWindow(wide)
	if err != nil {
		return nil, err
	}
	log.Printf("结算窗口: T=%s, T-1=%s", tMonth, tMinus)

	keyOrder, groups, attrs := a.accumulate(wide, dim, tMonth, tMinus)
	a.normalizeTier(dim, groups, tMonth, tMinus)

	table, err := a.assemble(dim, keyOrder, groups, attrs, tMonth, tMinus)
	if err != nil {
		return nil, err
	}
	return &Result{Table: table, TMonth: tMonth, TMinusMonth: tMinus}, nil
}

// resolveWindow 收集全表月份并确定 T 与 T-1
func resolveWindow(wide *frame.Frame) (string, string, error) {
	monthSet := make(map[string]struct{})
	for r := 0; r < wide.NumRows(); r++ {
		if d, ok := wide.At(r, transform.DateColumn).Date(); ok {
			monthSet[MonthLabel(d)] = struct{}{}
		}
	}
	months := make([]string, 0, len(monthSet))
	for m := range monthSet {
		months = append(months, m)
	}
	sort.Strings(months)
	if len(months) < 2 {
		return "", "", fmt.Errorf("%w: 需要至少两个自然月, 实际 %v", ErrInsufficientPeriods, months)
	}
	return months[len(months)-1], months[len(months)-2], nil
}

// dimensionKey 行的分组键；层级维度下空层级兜底为“未知”
func dimensionKey(wide *frame.Frame, row int, dim Dimension) string {
	if dim == DimensionTier {
		if wide.Has(transform.DimensionLevel) {
			if v := wide.At(row, transform.DimensionLevel); !v.IsNull() && v.Text() != "" {
				return v.Text()
			}
		}
		return Unknown
	}
	return wide.At(row, transform.DealerColumn).Text()
}

type displayAttrs struct {
	level     string
	storeName string
	seenAt    time.Time
}

// accumulate 按 (维度键, 月份) 扫描求和，并记录有效天数、去重经销商与展示属性
func (a *Aggregator) accumulate(wide *frame.Frame, dim Dimension, tMonth, tMinus string) ([]string, map[string]map[string]*group, map[string]*displayAttrs) {
	keyOrder := make([]string, 0)
	groups := make(map[string]map[string]*group)
	attrs := make(map[string]*displayAttrs)

	for r := 0; r < wide.NumRows(); r++ {
		d, ok := wide.At(r, transform.DateColumn).Date()
		if !ok {
			continue
		}
		month := MonthLabel(d)
		if month != tMonth && month != tMinus {
			continue
		}
		key := dimensionKey(wide, r, dim)
		byMonth, seen := groups[key]
		if !seen {
			byMonth = make(map[string]*group, 2)
			groups[key] = byMonth
			keyOrder = append(keyOrder, key)
		}
		g, seen := byMonth[month]
		if !seen {
			g = newGroup()
			byMonth[month] = g
		}
		g.days[d.Format("2006-01-02")] = struct{}{}
		g.dealers[wide.At(r, transform.DealerColumn).Text()] = struct{}{}

		for _, m := range a.cfg.Metrics {
			if !wide.Has(m.Column) {
				continue
			}
			if n, ok := wide.At(r, m.Column).Number(); ok {
				g.sums[m.Name] += n
				g.has[m.Name] = true
			}
		}

		if dim == DimensionDealer {
			at, seen := attrs[key]
			if !seen {
				at = &displayAttrs{}
				attrs[key] = at
			}
			// 取最近观测到的非空展示属性
			if !d.Before(at.seenAt) {
				if wide.Has(transform.DimensionLevel) {
					if v := wide.At(r, transform.DimensionLevel); !v.IsNull() && v.Text() != "" {
						at.level = v.Text()
						at.seenAt = d
					}
				}
				if wide.Has(transform.DimensionStoreName) {
					if v := wide.At(r, transform.DimensionStoreName); !v.IsNull() && v.Text() != "" {
						at.storeName = v.Text()
						at.seenAt = d
					}
				}
			}
		}
	}
	return keyOrder, groups, attrs
}

// normalizeTier 层级维度的摊平：白名单求和指标除以该层级当月去重经销商数
// 率与占比因分子分母同除而不受影响
func (a *Aggregator) normalizeTier(dim Dimension, groups map[string]map[string]*group, tMonth, tMinus string) {
	if dim != DimensionTier || a.cfg.DisableNormalization {
		return
	}
	whitelist := make(map[string]struct{}, len(a.cfg.NormalizeWhitelist))
	for _, m := range a.cfg.NormalizeWhitelist {
		whitelist[m] = struct{}{}
	}
	for key, byMonth := range groups {
		for _, month := range []string{tMonth, tMinus} {
			g, ok := byMonth[month]
			if !ok {
				continue
			}
			n := len(g.dealers)
			if n == 0 {
				continue
			}
			for name := range g.sums {
				if _, ok := whitelist[name]; ok {
					g.sums[name] /= float64(n)
				}
			}
			log.Printf("层级摊平: %s %s 经销商数=%d", key, month, n)
		}
	}
}

// assemble 透视为最终结算表：每个维度键一行
func (a *Aggregator) assemble(dim Dimension, keyOrder []string, groups map[string]map[string]*group, attrs map[string]*displayAttrs, tMonth, tMinus string) (*frame.Frame, error) {
	if dim == DimensionTier {
		sortTierKeys(keyOrder)
	}

	cols := a.outputColumns(dim)
	out, err := frame.New(cols)
	if err != nil {
		return nil, err
	}

	for _, key := range keyOrder {
		byMonth := groups[key]
		gT, gT1 := byMonth[tMonth], byMonth[tMinus]

		row := make(map[string]frame.Value, len(cols))
		if dim == DimensionTier {
			row[transform.DimensionLevel] = frame.String(key)
		} else {
			row[transform.DealerColumn] = frame.String(key)
			at := attrs[key]
			row[transform.DimensionLevel] = displayOr(at, func(a *displayAttrs) string { return a.level })
			row[transform.DimensionStoreName] = displayOr(at, func(a *displayAttrs) string { return a.storeName })
		}

		// 指标求和的三个口径
		for _, m := range a.cfg.Metrics {
			vT := sumValue(gT, m.Name)
			vT1 := sumValue(gT1, m.Name)
			row[m.Name+suffixT] = vT
			row[m.Name+suffixTMinus] = vT1
			row[m.Name+suffixTotal] = nullSafeAdd(vT, vT1)
		}

		// 有效天数：T/T-1 各自的去重日期数，总口径为并集
		daysT, daysT1, daysTotal := effectiveDays(gT, gT1)
		row[EffectiveDaysColumn+suffixT] = daysT
		row[EffectiveDaysColumn+suffixTMinus] = daysT1
		row[EffectiveDaysColumn+suffixTotal] = daysTotal

		// 率：分子合计/分母合计，绝不对日级率取均值
		for _, rd := range a.cfg.Rates {
			row[rd.Out+suffixT] = consolidate.SafeDiv(sumParts(row, rd.Num, suffixT), sumParts(row, rd.Den, suffixT))
			row[rd.Out+suffixTMinus] = consolidate.SafeDiv(sumParts(row, rd.Num, suffixTMinus), sumParts(row, rd.Den, suffixTMinus))
			row[rd.Out+suffixTotal] = consolidate.SafeDiv(sumParts(row, rd.Num, suffixTotal), sumParts(row, rd.Den, suffixTotal))
		}

		// 日均：指标合计/有效天数
		for _, da := range a.cfg.DailyAverages {
			row[da.Out+suffixT] = consolidate.SafeDiv(row[da.Metric+suffixT], daysT)
			row[da.Out+suffixTMinus] = consolidate.SafeDiv(row[da.Metric+suffixTMinus], daysT1)
			row[da.Out+suffixTotal] = consolidate.SafeDiv(row[da.Metric+suffixTotal], daysTotal)
		}

		vals := make([]frame.Value, len(cols))
		for i, c := range cols {
			if v, ok := row[c]; ok {
				vals[i] = v
			} else {
				vals[i] = frame.Null()
			}
		}
		out = out.AppendRow(vals)
	}
	return out, nil
}

// outputColumns 结算表固定列序：维度列、指标三口径、有效天数、率、日均
func (a *Aggregator) outputColumns(dim Dimension) []string {
	var cols []string
	if dim == DimensionTier {
		cols = append(cols, transform.DimensionLevel)
	} else {
		cols = append(cols, transform.DealerColumn, transform.DimensionStoreName, transform.DimensionLevel)
	}
	for _, m := range a.cfg.Metrics {
		cols = append(cols, m.Name+suffixT, m.Name+suffixTMinus, m.Name+suffixTotal)
	}
	cols = append(cols,
		EffectiveDaysColumn+suffixT,
		EffectiveDaysColumn+suffixTMinus,
		EffectiveDaysColumn+suffixTotal,
	)
	for _, rd := range a.cfg.Rates {
		cols = append(cols, rd.Out+suffixT, rd.Out+suffixTMinus, rd.Out+suffixTotal)
	}
	for _, da := range a.cfg.DailyAverages {
		cols = append(cols, da.Out+suffixT, da.Out+suffixTMinus, da.Out+suffixTotal)
	}
	return cols
}

func displayOr(at *displayAttrs, pick func(*displayAttrs) string) frame.Value {
	if at != nil {
		if s := pick(at); s != "" {
			return frame.String(s)
		}
	}
	return frame.String(Unknown)
}

// sumValue 组内指标合计；组缺席或指标从未出现返回空
func sumValue(g *group, metric string) frame.Value {
	if g == nil || !g.has[metric] {
		return frame.Null()
	}
	return frame.Number(g.sums[metric])
}

// nullSafeAdd 双空保持空，单空按另一侧取值
func nullSafeAdd(a, b frame.Value) frame.Value {
	na, oka := a.Number()
	nb, okb := b.Number()
	switch {
	case oka && okb:
		return frame.Number(na + nb)
	case oka:
		return frame.Number(na)
	case okb:
		return frame.Number(nb)
	default:
		return frame.Null()
	}
}

// sumParts 同后缀多列求和，空按 0 计；全空返回空
func sumParts(row map[string]frame.Value, parts []string, suffix string) frame.Value {
	sum := 0.0
	any := false
	for _, p := range parts {
		if n, ok := row[p+suffix].Number(); ok {
			sum += n
			any = true
		}
	}
	if !any {
		return frame.Null()
	}
	return frame.Number(sum)
}

func effectiveDays(gT, gT1 *group) (frame.Value, frame.Value, frame.Value) {
	union := make(map[string]struct{})
	count := func(g *group) frame.Value {
		if g == nil {
			return frame.Null()
		}
		for d := range g.days {
			union[d] = struct{}{}
		}
		return frame.Number(float64(len(g.days)))
	}
	t := count(gT)
	t1 := count(gT1)
	if t.IsNull() && t1.IsNull() {
		return t, t1, frame.Null()
	}
	return t, t1, frame.Number(float64(len(union)))
}

// sortTierKeys 层级降序，“未知”置底
func sortTierKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i] == Unknown {
			return false
		}
		if keys[j] == Unknown {
			return true
		}
		return keys[i] > keys[j]
	})
}
