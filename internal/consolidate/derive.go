package consolidate

import (
	"log"

	"dealerpulse/internal/frame"
	"dealerpulse/internal/transform"
)

// Fold 折叠定义：多个同义列求和为一个输出列（缺失部分按 0）
type Fold struct {
	Out   string
	Parts []string
}

// RateDef 率定义：分子合计 / 分母合计
// 结算层按 _t/_t_minus_1/_total 三个口径分别重算，绝不对日级率取均值
type RateDef struct {
	Out string
	Num string
	Den string
}

// 派生输出列名
const (
	MetricStoreAreaPaidLeads = "store_area_paid_leads"

	RateComponentClick = "component_click_rate"
	RateComponentLeads = "component_leads_rate"
	RatePrivateOpen    = "private_open_rate"
	RatePrivateLeads   = "private_leads_rate"
	RatePrivateConv    = "private_conversion_rate"
)

// DefaultFolds DR 两个批次折叠为总线索列
var DefaultFolds = []Fold{
	{Out: transform.MetricNaturalLeads, Parts: drPair(transform.MetricNaturalLeads)},
	{Out: transform.MetricPaidLeads, Parts: drPair(transform.MetricPaidLeads)},
	{Out: transform.MetricStorePaidLeads, Parts: drPair(transform.MetricStorePaidLeads)},
	{Out: transform.MetricAreaPaidLeads, Parts: drPair(transform.MetricAreaPaidLeads)},
	{Out: transform.MetricOtherPaidLeads, Parts: drPair(transform.MetricOtherPaidLeads)},
	{Out: transform.MetricLocalLeads, Parts: drPair(transform.MetricLocalLeads)},
}

// DefaultDerivedSums 折叠列之上的二级派生
var DefaultDerivedSums = []Fold{
	{
		Out:   MetricStoreAreaPaidLeads,
		Parts: []string{transform.MetricStorePaidLeads, transform.MetricAreaPaidLeads},
	},
}

// DefaultRates 日级率，诊断用；结算口径的率由结算层重算
var DefaultRates = []RateDef{
	{RateComponentClick, prefixed(transform.SourceVideo, transform.MetricComponentClicks), prefixed(transform.SourceVideo, transform.MetricAnchorExposure)},
	{RateComponentLeads, prefixed(transform.SourceLeads, transform.MetricSmallWheelLeads), prefixed(transform.SourceVideo, transform.MetricComponentClicks)},
	{RatePrivateOpen, prefixed(transform.SourceMessage, transform.MetricPrivateOpen), prefixed(transform.SourceMessage, transform.MetricEnterPrivate)},
	{RatePrivateLeads, prefixed(transform.SourceMessage, transform.MetricPrivateLeads), prefixed(transform.SourceMessage, transform.MetricPrivateOpen)},
	{RatePrivateConv, prefixed(transform.SourceMessage, transform.MetricPrivateLeads), prefixed(transform.SourceMessage, transform.MetricEnterPrivate)},
}

func drPair(metric string) []string {
	return []string{
		prefixed(transform.SourceDR1, metric),
		prefixed(transform.SourceDR2, metric),
	}
}

func prefixed(source, metric string) string {
	return source + "__" + metric
}

// SafeDiv 安全除法：分母为正数时返回商，否则返回空（不是 0）
// 空结果表示“该键下不可判定”，与真实的 0 率必须可区分
func SafeDiv(num, den frame.Value) frame.Value {
	d, ok := den.Number()
	if !ok || d <= 0 {
		return frame.Null()
	}
	n, ok := num.Number()
	if !ok {
		return frame.Null()
	}
	return frame.Number(n / d)
}

// ApplyFolds 执行折叠：部分列缺失记日志跳过，空值按 0 计
func ApplyFolds(f *frame.Frame, folds []Fold) (*frame.Frame, error) {
	for _, fold := range folds {
		present := make([]string, 0, len(fold.Parts))
		for _, p := range fold.Parts {
			if f.Has(p) {
				present = append(present, p)
			}
		}
		if len(present) == 0 {
			log.Printf("折叠缺少源列: %s <- %v", fold.Out, fold.Parts)
			continue
		}
		vals := make([]frame.Value, f.NumRows())
		for r := range vals {
			sum := 0.0
			for _, p := range present {
				if n, ok := f.At(r, p).Float(); ok {
					sum += n
				}
			}
			vals[r] = frame.Number(sum)
		}
		var err error
		if f, err = f.WithColumn(fold.Out, vals); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ApplyRates 按定义逐行计算日级率，分子或分母列缺失时跳过
func ApplyRates(f *frame.Frame, rates []RateDef) (*frame.Frame, error) {
	for _, rd := range rates {
		if !f.Has(rd.Num) || !f.Has(rd.Den) {
			log.Printf("率缺列: %s 需要 %s/%s", rd.Out, rd.Num, rd.Den)
			continue
		}
		vals := make([]frame.Value, f.NumRows())
		for r := range vals {
			vals[r] = SafeDiv(f.At(r, rd.Num), f.At(r, rd.Den))
		}
		var err error
		if f, err = f.WithColumn(rd.Out, vals); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Derive 在宽表上依次执行折叠、二级派生与日级率
func Derive(f *frame.Frame) (*frame.Frame, error) {
	f, err := ApplyFolds(f, DefaultFolds)
	if err != nil {
		return nil, err
	}
	if f, err = ApplyFolds(f, DefaultDerivedSums); err != nil {
		return nil, err
	}
	return ApplyRates(f, DefaultRates)
}
