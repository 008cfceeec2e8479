package transform

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"dealerpulse/internal/cleanse"
	"dealerpulse/internal/frame"
)

// 标准键列名：所有源经过聚合后都以这两列为主键
const (
	DealerColumn = "dealer_id"
	DateColumn   = "date"
)

var (
	// ErrMissingKeyColumn 源表缺少映射所需的键列
	ErrMissingKeyColumn = errors.New("缺少键列")
	// ErrNumericParseFailure 指标列数值化成功率低于阈值
	ErrNumericParseFailure = errors.New("数值列解析率过低")
	// ErrSheetDateInvalid 私信源的工作表名无法解析为日期
	ErrSheetDateInvalid = errors.New("工作表名无法解析为日期")
)

// DefaultNumericParseThreshold 数值化成功率默认阈值
const DefaultNumericParseThreshold = 0.98

// Spec 单个数据源的静态配置：表头别名、指标映射与求和列
type Spec struct {
	// Name 源标识，同时用作输出指标列前缀（如 dr1__natural_leads）
	Name string
	// DealerAliases 经销商标识列可接受的源表头
	DealerAliases []string
	// DateAliases 日期列可接受的源表头；维度表留空
	DateAliases []string
	// Metrics 源表头 -> 规范指标名
	Metrics map[string]string
	// SumColumns 需要按 (dealer_id, date) 求和的规范指标名
	SumColumns []string
}

// Aggregator 单源聚合器：原始表 -> 键唯一的规范指标表
type Aggregator interface {
	Name() string
	Aggregate(raw *frame.Frame) (*frame.Frame, error)
}

// NewAggregator 按配置创建通用聚合器（video/live/leads/account_bi/spending 等）
func NewAggregator(spec Spec, numericThreshold float64) Aggregator {
	if numericThreshold <= 0 {
		numericThreshold = DefaultNumericParseThreshold
	}
	return &baseAggregator{spec: spec, threshold: numericThreshold}
}

type baseAggregator struct {
	spec      Spec
	threshold float64
}

func (a *baseAggregator) Name() string {
	return a.spec.Name
}

func (a *baseAggregator) Aggregate(raw *frame.Frame) (*frame.Frame, error) {
	f, err := prepareKeyed(raw, a.spec)
	if err != nil {
		return nil, err
	}
	f, err = CastNumericColumns(f, a.spec.SumColumns, a.threshold)
	if err != nil {
		return nil, fmt.Errorf("源 %s: %w", a.spec.Name, err)
	}
	return finishAggregate(f, a.spec)
}

// prepareKeyed 执行重命名与键清洗：键列定位、指标重命名、经销商拆分、日期解析
func prepareKeyed(raw *frame.Frame, spec Spec) (*frame.Frame, error) {
	f, err := renameByAliases(raw, spec.DealerAliases, DealerColumn, spec.Name)
	if err != nil {
		return nil, err
	}
	if len(spec.DateAliases) > 0 {
		f, err = renameByAliases(f, spec.DateAliases, DateColumn, spec.Name)
		if err != nil {
			return nil, err
		}
	}
	f, err = renameMetrics(f, spec.Metrics)
	if err != nil {
		return nil, err
	}
	f, err = cleanse.ExplodeDealerColumn(f, DealerColumn)
	if err != nil {
		return nil, err
	}
	if len(spec.DateAliases) > 0 {
		f, err = cleanse.NormalizeDateColumn(f, DateColumn, true)
		if err != nil {
			return nil, fmt.Errorf("源 %s: %w", spec.Name, err)
		}
	}
	return f, nil
}

// finishAggregate 选列、按键求和并加源前缀
func finishAggregate(f *frame.Frame, spec Spec) (*frame.Frame, error) {
	keys := []string{DealerColumn, DateColumn}
	present := make([]string, 0, len(spec.SumColumns))
	for _, c := range spec.SumColumns {
		if f.Has(c) {
			present = append(present, c)
		} else {
			log.Printf("[%s] 指标列缺失，跳过: %s", spec.Name, c)
		}
	}
	f, err := f.Select(append(append([]string(nil), keys...), present...))
	if err != nil {
		return nil, err
	}
	f, err = f.GroupSum(keys, present)
	if err != nil {
		return nil, err
	}
	return prefixMetrics(f, spec.Name, keys)
}

// prefixMetrics 给非键列加 "源__" 前缀，保证多源合流时列名天然不冲突
func prefixMetrics(f *frame.Frame, prefix string, keys []string) (*frame.Frame, error) {
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	mapping := make(map[string]string)
	for _, c := range f.Columns() {
		if _, ok := keySet[c]; ok {
			continue
		}
		mapping[c] = prefix + "__" + c
	}
	return f.Rename(mapping)
}

// renameByAliases 在源表头中定位别名之一并重命名为标准列名
// 全部未命中时返回 ErrMissingKeyColumn，错误信息列出期望的表头
func renameByAliases(f *frame.Frame, aliases []string, to string, sourceName string) (*frame.Frame, error) {
	if f.Has(to) {
		return f, nil
	}
	norm := make(map[string]string, len(f.Columns()))
	for _, c := range f.Columns() {
		norm[cleanse.NormalizeHeader(c)] = c
	}
	for _, alias := range aliases {
		key := cleanse.NormalizeHeader(alias)
		if actual, ok := norm[key]; ok {
			return f.Rename(map[string]string{actual: to})
		}
	}
	// 宽松包含匹配兜底，处理诸如“主机厂经销商id列表(去重)”之类的变体
	for _, alias := range aliases {
		key := cleanse.NormalizeHeader(alias)
		for n, actual := range norm {
			if strings.Contains(n, key) {
				return f.Rename(map[string]string{actual: to})
			}
		}
	}
	return nil, fmt.Errorf("%w: 源 %s 找不到 %q，期望表头之一 %v，实际 %v",
		ErrMissingKeyColumn, sourceName, to, aliases, f.Columns())
}

// renameMetrics 按映射重命名指标列；未命中的映射不报错，由后续折叠阶段兜底
func renameMetrics(f *frame.Frame, mapping map[string]string) (*frame.Frame, error) {
	norm := make(map[string]string, len(f.Columns()))
	for _, c := range f.Columns() {
		norm[cleanse.NormalizeHeader(c)] = c
	}
	rename := make(map[string]string)
	taken := make(map[string]struct{})
	for src, to := range mapping {
		if _, dup := taken[to]; dup {
			continue
		}
		key := cleanse.NormalizeHeader(src)
		if actual, ok := norm[key]; ok {
			rename[actual] = to
			taken[to] = struct{}{}
			continue
		}
		for n, actual := range norm {
			if _, used := rename[actual]; used {
				continue
			}
			if strings.Contains(n, key) || (key != "" && strings.Contains(key, n) && n != "") {
				rename[actual] = to
				taken[to] = struct{}{}
				break
			}
		}
	}
	if len(rename) == 0 {
		return f, nil
	}
	return f.Rename(rename)
}

// 数值清洗时按空处理的占位符
var numericPlaceholders = map[string]struct{}{
	"": {}, "-": {}, "—": {}, "n/a": {}, "na": {}, "null": {}, "none": {},
}

// CastNumericColumns 把指标列转为数值：
// 去千分位逗号与百分号，占位符置空；非空值解析失败率超过阈值时整列报错
func CastNumericColumns(f *frame.Frame, cols []string, threshold float64) (*frame.Frame, error) {
	for _, col := range cols {
		if !f.Has(col) {
			continue
		}
		vals, err := f.Column(col)
		if err != nil {
			return nil, err
		}
		out := make([]frame.Value, len(vals))
		parsed, failed := 0, 0
		for i, v := range vals {
			switch v.Kind() {
			case frame.KindNumber:
				out[i] = v
				parsed++
			case frame.KindNull:
				out[i] = frame.Null()
			case frame.KindString:
				s, _ := v.String()
				s = strings.TrimSpace(strings.ReplaceAll(s, " ", ""))
				s = strings.ReplaceAll(s, ",", "")
				s = strings.TrimSuffix(s, "%")
				if _, blank := numericPlaceholders[strings.ToLower(strings.TrimSpace(s))]; blank {
					out[i] = frame.Null()
					continue
				}
				if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
					out[i] = frame.Number(n)
					parsed++
				} else {
					out[i] = frame.Null()
					failed++
				}
			default:
				out[i] = frame.Null()
				failed++
			}
		}
		if total := parsed + failed; total > 0 {
			rate := float64(parsed) / float64(total)
			if rate < threshold {
				return nil, fmt.Errorf("%w: 列 %q 解析率 %.2f%% < %.0f%%",
					ErrNumericParseFailure, col, rate*100, threshold*100)
			}
		}
		if f, err = f.WithColumn(col, out); err != nil {
			return nil, err
		}
	}
	return f, nil
}
