package cleanse

import (
	"strings"

	"dealerpulse/internal/frame"
)

// 清洗阶段视为缺失的占位符（小写比较）
var placeholderTokens = map[string]struct{}{
	"":     {},
	"null": {},
	"n/a":  {},
	"na":   {},
	"none": {},
	"-":    {},
	"—":    {},
	"--":   {},
	"无":    {},
	"空":    {},
	"未知":   {},
}

// 复合单元格的分隔符，统一替换为半角逗号后再拆分
var idDelimiters = []string{"|", "，", "、", "/", ";", "；"}

// NormalizeToken 规范化单个标识符：全半角统一、去不可见字符、去首尾空白
// 占位符返回空串和 false
func NormalizeToken(s string) (string, bool) {
	s = foldWidth(s)
	s = stripInvisible(s)
	s = strings.TrimSpace(s)
	if _, bad := placeholderTokens[strings.ToLower(s)]; bad {
		return "", false
	}
	return s, true
}

// SplitComposite 拆分复合标识单元格（"A,B" / "A|B" 等），返回有效标识列表
func SplitComposite(s string) []string {
	for _, d := range idDelimiters {
		s = strings.ReplaceAll(s, d, ",")
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if code, ok := NormalizeToken(p); ok {
			out = append(out, code)
		}
	}
	return out
}

// ExplodeDealerColumn 把经销商标识列规范为每行一个编码：
// 复合单元格拆分为多行并继承其余列，清洗后无效的行被丢弃
func ExplodeDealerColumn(f *frame.Frame, col string) (*frame.Frame, error) {
	vals, err := f.Column(col)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, c := range f.Columns() {
		if c == col {
			idx = i
		}
	}

	out, err := frame.New(f.Columns())
	if err != nil {
		return nil, err
	}
	for r := 0; r < f.NumRows(); r++ {
		codes := SplitComposite(vals[r].Text())
		for _, code := range codes {
			row := f.Row(r)
			row[idx] = frame.String(code)
			out = out.AppendRow(row)
		}
	}
	return out, nil
}

// stripInvisible 去除零宽字符和 BOM，NBSP 替换为普通空格
func stripInvisible(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			continue
		case '\u00a0':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// foldWidth 全角 ASCII 转半角（ＡＢＣ１２３ -> ABC123，全角空格 -> 空格）
func foldWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '　':
			b.WriteRune(' ')
		case r >= '！' && r <= '～':
			b.WriteRune(r - '！' + '!')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeHeader 规范化列名用于表头匹配：全半角统一、去空白、统一括号、转小写
func NormalizeHeader(s string) string {
	s = foldWidth(s)
	s = stripInvisible(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", "")
	s = strings.ReplaceAll(s, "（", "(")
	s = strings.ReplaceAll(s, "）", ")")
	s = strings.ReplaceAll(s, "：", ":")
	return strings.ToLower(s)
}
