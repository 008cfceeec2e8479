package transform

import (
	"dealerpulse/internal/cleanse"
	"dealerpulse/internal/frame"
)

// NewAccountBaseAggregator 创建经销商维表聚合器
// 维表没有日期，输出按 dealer_id 去重的层级与门店名，
// 同一经销商出现多行时取首个非空文本
func NewAccountBaseAggregator() Aggregator {
	return &accountBaseAggregator{spec: AccountBaseSpec}
}

type accountBaseAggregator struct {
	spec Spec
}

func (a *accountBaseAggregator) Name() string {
	return a.spec.Name
}

func (a *accountBaseAggregator) Aggregate(raw *frame.Frame) (*frame.Frame, error) {
	f, err := prepareKeyed(raw, a.spec)
	if err != nil {
		return nil, err
	}

	attrs := presentColumns(f, []string{DimensionLevel, DimensionStoreName})
	for _, col := range attrs {
		if f, err = cleanTextColumn(f, col); err != nil {
			return nil, err
		}
	}
	if f, err = f.Select(append([]string{DealerColumn}, attrs...)); err != nil {
		return nil, err
	}

	return firstNonNullByDealer(f, attrs)
}

// cleanTextColumn 文本属性清洗：去空白与占位符，无效值置空
func cleanTextColumn(f *frame.Frame, col string) (*frame.Frame, error) {
	vals, err := f.Column(col)
	if err != nil {
		return nil, err
	}
	out := make([]frame.Value, len(vals))
	for i, v := range vals {
		if v.IsNull() {
			out[i] = frame.Null()
			continue
		}
		if s, ok := cleanse.NormalizeToken(v.Text()); ok {
			out[i] = frame.String(s)
		} else {
			out[i] = frame.Null()
		}
	}
	return f.WithColumn(col, out)
}

// firstNonNullByDealer 按 dealer_id 聚合，每个属性取首个非空值
func firstNonNullByDealer(f *frame.Frame, attrs []string) (*frame.Frame, error) {
	type entry struct {
		vals []frame.Value
	}
	order := make([]string, 0)
	byDealer := make(map[string]*entry)
	for r := 0; r < f.NumRows(); r++ {
		dealer := f.At(r, DealerColumn).Text()
		e, ok := byDealer[dealer]
		if !ok {
			e = &entry{vals: make([]frame.Value, len(attrs))}
			for i := range e.vals {
				e.vals[i] = frame.Null()
			}
			byDealer[dealer] = e
			order = append(order, dealer)
		}
		for i, col := range attrs {
			if e.vals[i].IsNull() {
				if v := f.At(r, col); !v.IsNull() {
					e.vals[i] = v
				}
			}
		}
	}

	out, err := frame.New(append([]string{DealerColumn}, attrs...))
	if err != nil {
		return nil, err
	}
	for _, dealer := range order {
		row := append([]frame.Value{frame.String(dealer)}, byDealer[dealer].vals...)
		out = out.AppendRow(row)
	}
	return out, nil
}
