package transform

import (
	"fmt"

	"dealerpulse/internal/cleanse"
	"dealerpulse/internal/frame"
)

// Sheet 私信源的一个工作表：表名承载日期，表体是当日明细
type Sheet struct {
	Label string
	Table *frame.Frame
}

// NewMessageAggregator 创建私信聚合器
// 私信工作簿按日期拆工作表，表内没有日期列，
// 先从表名解析出日期补进每一行，再走通用聚合
func NewMessageAggregator(numericThreshold float64) *MessageAggregator {
	if numericThreshold <= 0 {
		numericThreshold = DefaultNumericParseThreshold
	}
	return &MessageAggregator{spec: MessageSpec, threshold: numericThreshold}
}

// MessageAggregator 多工作表私信源聚合器
type MessageAggregator struct {
	spec      Spec
	threshold float64
}

func (a *MessageAggregator) Name() string {
	return a.spec.Name
}

// Aggregate 单表入口：表中自带日期列时可直接使用
func (a *MessageAggregator) Aggregate(raw *frame.Frame) (*frame.Frame, error) {
	spec := a.spec
	spec.DateAliases = []string{"日期", "date", "私信日期", "消息日期"}
	f, err := prepareKeyed(raw, spec)
	if err != nil {
		return nil, err
	}
	f, err = CastNumericColumns(f, spec.SumColumns, a.threshold)
	if err != nil {
		return nil, fmt.Errorf("源 %s: %w", spec.Name, err)
	}
	return finishAggregate(f, spec)
}

// AggregateSheets 多工作表入口：表名解析失败立即报 ErrSheetDateInvalid
func (a *MessageAggregator) AggregateSheets(sheets []Sheet) (*frame.Frame, error) {
	var merged *frame.Frame
	for _, sheet := range sheets {
		day, ok := cleanse.ParseDate(frame.String(sheet.Label))
		if !ok {
			return nil, fmt.Errorf("%w: 工作表 %q", ErrSheetDateInvalid, sheet.Label)
		}
		spec := a.spec
		f, err := prepareKeyed(sheet.Table, spec)
		if err != nil {
			return nil, fmt.Errorf("工作表 %q: %w", sheet.Label, err)
		}
		dates := make([]frame.Value, f.NumRows())
		for i := range dates {
			dates[i] = frame.Date(day)
		}
		if f, err = f.WithColumn(DateColumn, dates); err != nil {
			return nil, err
		}
		keep := append([]string{DealerColumn, DateColumn}, presentColumns(f, spec.SumColumns)...)
		if f, err = f.Select(keep); err != nil {
			return nil, err
		}
		if merged == nil {
			merged = f
		} else if merged, err = merged.Concat(f); err != nil {
			return nil, fmt.Errorf("工作表 %q: %w", sheet.Label, err)
		}
	}
	if merged == nil {
		empty, err := frame.New([]string{DealerColumn, DateColumn})
		if err != nil {
			return nil, err
		}
		merged = empty
	}
	merged, err := CastNumericColumns(merged, a.spec.SumColumns, a.threshold)
	if err != nil {
		return nil, fmt.Errorf("源 %s: %w", a.spec.Name, err)
	}
	return finishAggregate(merged, a.spec)
}

func presentColumns(f *frame.Frame, cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if f.Has(c) {
			out = append(out, c)
		}
	}
	return out
}
