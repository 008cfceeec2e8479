package contract

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"dealerpulse/internal/frame"
)

var (
	// ErrContractColumnMissing 合同要求的列在计算结果中不存在
	ErrContractColumnMissing = errors.New("合同缺列")
	// ErrDuplicateDisplayName 两个规范列映射到同一个展示名
	ErrDuplicateDisplayName = errors.New("展示名重复")
)

// baseDisplayNames 规范指标基名 -> 对外展示名
// 结算表的 _t/_t_minus_1/_total 后缀由 DisplayName 统一翻译
var baseDisplayNames = map[string]string{
	"dealer_id":  "经销商ID",
	"date":       "日期",
	"level":      "层级",
	"store_name": "门店名",

	"natural_leads":         "自然线索量",
	"paid_leads":            "付费线索量",
	"store_paid_leads":      "车云店付费线索",
	"area_paid_leads":       "区域加码付费线索",
	"other_paid_leads":      "其他渠道付费线索",
	"local_leads":           "本地线索量",
	"store_area_paid_leads": "直播车云店+区域付费线索量",

	"spending_net": "车云店+区域投放总金额",

	"anchor_exposure":   "锚点曝光量",
	"component_clicks":  "组件点击次数",
	"short_video_count": "短视频条数",
	"short_video_leads": "组件留资人数（获取线索量）",

	"over25_min_live_mins":    "超25分钟直播时长(分)",
	"live_effective_hours":    "直播有效时长(小时)",
	"effective_live_sessions": "有效直播场次",
	"exposures":               "曝光人数",
	"viewers":                 "场观",
	"small_wheel_clicks":      "小风车点击次数",
	"small_wheel_leads":       "小风车留资量",

	"enter_private_count": "进私人数",
	"private_open_count":  "私信开口人数",
	"private_leads_count": "咨询留资人数",

	"live_leads":        "直播线索量",
	"short_video_plays": "短视频播放量",

	"effective_days": "有效天数",

	"total_cpl":               "车云店+区域综合CPL",
	"paid_cpl":                "直播付费CPL",
	"local_leads_share":       "本地线索占比",
	"component_click_rate":    "组件点击率",
	"component_leads_rate":    "组件留资率",
	"exposure_enter_rate":     "曝光进入率",
	"small_wheel_click_rate":  "小风车点击率",
	"small_wheel_leads_rate":  "小风车点击留资率",
	"private_open_rate":       "私信咨询率",
	"private_leads_rate":      "咨询留资率",
	"private_conversion_rate": "私信转化率",

	"avg_daily_spending":      "直播车云店+区域日均消耗",
	"avg_daily_paid_leads":    "直播车云店+区域付费线索量日均",
	"avg_daily_live_hours":    "日均直播有效时长(小时)",
	"avg_daily_enter_private": "日均进私人数",
	"avg_daily_private_open":  "日均私信开口人数",
	"avg_daily_private_leads": "日均咨询留资人数",
}

// DisplayName 规范列名翻译为展示名
// 后缀约定：_t -> "T月"前缀，_t_minus_1 -> "T-1月"前缀，_total -> 基名本身
func DisplayName(canonical string) (string, bool) {
	if d, ok := baseDisplayNames[canonical]; ok {
		return d, true
	}
	for _, sfx := range []struct {
		suffix string
		prefix string
	}{
		{"_t_minus_1", "T-1月"},
		{"_total", ""},
		{"_t", "T月"},
	} {
		if strings.HasSuffix(canonical, sfx.suffix) {
			base := strings.TrimSuffix(canonical, sfx.suffix)
			if d, ok := baseDisplayNames[base]; ok {
				return sfx.prefix + d, true
			}
		}
	}
	return "", false
}

// Column 合同中的一列：规范名与对外展示名
type Column struct {
	Canonical string
	Display   string
}

// Contract 输出合同：最终报表的列集合与顺序
type Contract struct {
	Columns []Column
}

// ForColumns 按结算表列序生成合同，跳过没有展示名的列并告警
func ForColumns(canonical []string) *Contract {
	c := &Contract{}
	for _, col := range canonical {
		d, ok := DisplayName(col)
		if !ok {
			log.Printf("列 %q 无展示名映射，不进入合同", col)
			continue
		}
		c.Columns = append(c.Columns, Column{Canonical: col, Display: d})
	}
	return c
}

// Validate 展示名与规范名都不允许重复
func (c *Contract) Validate() error {
	byDisplay := make(map[string]string, len(c.Columns))
	seen := make(map[string]struct{}, len(c.Columns))
	for _, col := range c.Columns {
		if _, dup := seen[col.Canonical]; dup {
			return fmt.Errorf("合同列重复: %q", col.Canonical)
		}
		seen[col.Canonical] = struct{}{}
		if prev, dup := byDisplay[col.Display]; dup {
			return fmt.Errorf("%w: %q 同时映射 %q 与 %q", ErrDuplicateDisplayName, col.Display, prev, col.Canonical)
		}
		byDisplay[col.Display] = col.Canonical
	}
	return nil
}

// Apply 对计算结果执行合同：
// 缺列报错并列出全部缺失；多余列丢弃并告警；按合同列序重命名输出
func (c *Contract) Apply(f *frame.Frame) (*frame.Frame, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var missing []string
	for _, col := range c.Columns {
		if !f.Has(col.Canonical) {
			missing = append(missing, col.Canonical)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrContractColumnMissing, missing)
	}

	wanted := make(map[string]struct{}, len(c.Columns))
	order := make([]string, 0, len(c.Columns))
	rename := make(map[string]string, len(c.Columns))
	for _, col := range c.Columns {
		wanted[col.Canonical] = struct{}{}
		order = append(order, col.Canonical)
		rename[col.Canonical] = col.Display
	}
	for _, col := range f.Columns() {
		if _, ok := wanted[col]; !ok {
			log.Printf("合同外列被丢弃: %q", col)
		}
	}
	out, err := f.Select(order)
	if err != nil {
		return nil, err
	}
	return out.Rename(rename)
}

// Records 把套用合同后的表转为 {展示名: 值} 扁平记录，供多维表格写入方使用
func Records(f *frame.Frame) []map[string]any {
	cols := f.Columns()
	out := make([]map[string]any, 0, f.NumRows())
	for r := 0; r < f.NumRows(); r++ {
		rec := make(map[string]any, len(cols))
		for _, c := range cols {
			v := f.At(r, c)
			switch {
			case v.IsNull():
				rec[c] = nil
			default:
				if n, ok := v.Number(); ok {
					rec[c] = n
				} else if d, ok := v.Date(); ok {
					rec[c] = d.Format("2006-01-02")
				} else {
					rec[c] = v.Text()
				}
			}
		}
		out = append(out, rec)
	}
	return out
}
