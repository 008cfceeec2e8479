package cleanse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dealerpulse/internal/frame"
)

// ErrDateColumnUnparseable 必需日期列全部解析失败
var ErrDateColumnUnparseable = errors.New("日期列无法解析")

// Excel 序列日的基准日与合理范围（1954 年 ~ 2119 年左右）
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const (
	serialMin = 20000
	serialMax = 80000
)

var (
	compactDateRE = regexp.MustCompile(`^\d{8}$`)
	yearMonthRE   = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	yearOnlyRE    = regexp.MustCompile(`^\d{4}$`)
	tzSuffixRE    = regexp.MustCompile(`(Z|[+-]\d{2}:?\d{2})$`)
)

// ParseDate 尽力解析一个脏日期单元格
// 支持：已是日期、Excel 序列日、ISO、斜杠/点号/中文年月日、紧凑 YYYYMMDD、带时间部分
func ParseDate(v frame.Value) (time.Time, bool) {
	switch v.Kind() {
	case frame.KindDate:
		d, _ := v.Date()
		return d, true
	case frame.KindNumber:
		n, _ := v.Number()
		return parseSerial(n)
	case frame.KindString:
		s, _ := v.String()
		return parseDateString(s)
	default:
		return time.Time{}, false
	}
}

func parseSerial(n float64) (time.Time, bool) {
	iv := int(n)
	if iv < serialMin || iv > serialMax {
		return time.Time{}, false
	}
	return excelEpoch.AddDate(0, 0, iv), true
}

func parseDateString(s string) (time.Time, bool) {
	s = foldWidth(stripInvisible(s))
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// 纯数字：可能是紧凑日期或序列日
	if compactDateRE.MatchString(s) {
		if t, err := time.ParseInLocation("20060102", s, time.UTC); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "-./年") {
		return parseSerial(f)
	}

	// 去掉时间部分和时区后缀
	s = strings.Replace(s, "T", " ", 1)
	s = tzSuffixRE.ReplaceAllString(s, "")
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}

	// 中文年月日与各类分隔符统一为短横线
	s = strings.ReplaceAll(s, "年", "-")
	s = strings.ReplaceAll(s, "月", "-")
	s = strings.ReplaceAll(s, "日", "")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.TrimSuffix(s, "-")

	if m := yearMonthRE.FindStringSubmatch(s); m != nil {
		s = fmt.Sprintf("%s-%s-01", m[1], m[2])
	} else if yearOnlyRE.MatchString(s) {
		s += "-01-01"
	}

	for _, layout := range []string{"2006-1-2", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// NormalizeDateColumn 把指定列解析为日期；单元格解析失败置空
// required 为真且全部为空时返回 ErrDateColumnUnparseable
func NormalizeDateColumn(f *frame.Frame, col string, required bool) (*frame.Frame, error) {
	vals, err := f.Column(col)
	if err != nil {
		return nil, err
	}
	out := make([]frame.Value, len(vals))
	parsed := 0
	var samples []string
	for i, v := range vals {
		if t, ok := ParseDate(v); ok {
			out[i] = frame.Date(t)
			parsed++
		} else {
			out[i] = frame.Null()
			if !v.IsNull() && len(samples) < 5 {
				samples = append(samples, v.Text())
			}
		}
	}
	if required && parsed == 0 && len(vals) > 0 {
		return nil, fmt.Errorf("%w: 列 %q 全部 %d 行解析失败, 样本 %v", ErrDateColumnUnparseable, col, len(vals), samples)
	}
	return f.WithColumn(col, out)
}
