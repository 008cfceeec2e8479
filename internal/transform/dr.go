package transform

import (
	"strings"

	"dealerpulse/internal/frame"
)

// DR 明细的分类依据列（重命名后的内部列名）
const (
	drLeadsTypeColumn = "leads_type"
	drChannelColumn   = "mkt_second_channel_name"
	drSendToColumn    = "send2dealer_id"
)

// 线索类型归一
var (
	naturalLeadsTypes = map[string]struct{}{"自然": {}, "自然线索": {}}
	paidLeadsTypes    = map[string]struct{}{"付费": {}, "广告": {}}
)

// 付费渠道白名单：车云店本市直发与区域加码
var (
	storeChannels = map[string]struct{}{
		"抖音车云店_BMW_本市_LS直发": {},
		"抖音车云店_LS直发":        {},
	}
	areaChannels = map[string]struct{}{
		"抖音车云店_BMW_总部BDT_LS直发": {},
	}
)

// NewDRAggregator 创建 DR 线索明细聚合器
// DR 输入是一条线索一行的明细表，没有现成指标列：
// 先按线索类型与渠道构造 0/1 指示列，再按 (dealer_id, date) 求和
// batch 区分 DR1/DR2 两个批次，决定输出前缀
func NewDRAggregator(batch string) Aggregator {
	spec := drBaseSpec
	spec.Name = batch
	return &drAggregator{spec: spec}
}

type drAggregator struct {
	spec Spec
}

func (a *drAggregator) Name() string {
	return a.spec.Name
}

func (a *drAggregator) Aggregate(raw *frame.Frame) (*frame.Frame, error) {
	f, err := prepareKeyed(raw, a.spec)
	if err != nil {
		return nil, err
	}
	f, err = classifyLeads(f)
	if err != nil {
		return nil, err
	}
	return finishAggregate(f, a.spec)
}

// classifyLeads 把每条线索展开为 0/1 指示列：
// 自然/付费按 leads_type，车云店/区域按渠道白名单，
// 白名单外的付费线索落入 other 桶，本地线索按下发经销商等于登记经销商判定
func classifyLeads(f *frame.Frame) (*frame.Frame, error) {
	n := f.NumRows()
	natural := make([]frame.Value, n)
	paid := make([]frame.Value, n)
	store := make([]frame.Value, n)
	area := make([]frame.Value, n)
	other := make([]frame.Value, n)
	local := make([]frame.Value, n)

	for r := 0; r < n; r++ {
		lt := cellText(f, r, drLeadsTypeColumn)
		ch := cellText(f, r, drChannelColumn)
		dealer := cellText(f, r, DealerColumn)
		sendTo := cellText(f, r, drSendToColumn)

		_, isNatural := naturalLeadsTypes[lt]
		_, isPaid := paidLeadsTypes[lt]
		_, isStore := storeChannels[ch]
		_, isArea := areaChannels[ch]

		natural[r] = indicator(isNatural)
		paid[r] = indicator(isPaid)
		store[r] = indicator(isPaid && isStore)
		area[r] = indicator(isPaid && isArea)
		other[r] = indicator(isPaid && !isStore && !isArea)
		local[r] = indicator(dealer != "" && sendTo == dealer)
	}

	cols := []struct {
		name string
		vals []frame.Value
	}{
		{MetricNaturalLeads, natural},
		{MetricPaidLeads, paid},
		{MetricStorePaidLeads, store},
		{MetricAreaPaidLeads, area},
		{MetricOtherPaidLeads, other},
		{MetricLocalLeads, local},
	}
	var err error
	for _, c := range cols {
		if f, err = f.WithColumn(c.name, c.vals); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func cellText(f *frame.Frame, row int, col string) string {
	if !f.Has(col) {
		return ""
	}
	return strings.TrimSpace(f.At(row, col).Text())
}

func indicator(b bool) frame.Value {
	if b {
		return frame.Number(1)
	}
	return frame.Number(0)
}
