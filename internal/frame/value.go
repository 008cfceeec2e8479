package frame

import (
	"fmt"
	"strconv"
	"time"
)

// Kind 单元格值类型
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindDate
)

// Value 表格单元格值，支持空值/数值/文本/日期四种形态
type Value struct {
	kind Kind
	num  float64
	str  string
	date time.Time
}

// Null 空值
func Null() Value {
	return Value{kind: KindNull}
}

// Number 数值
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// String 文本值
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Date 日期值（只保留年月日）
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateYMD 由年月日构造日期值
func DateYMD(year int, month time.Month, day int) Value {
	return Value{kind: KindDate, date: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Kind 返回值类型
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull 是否为空值
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Number 取数值
func (v Value) Number() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// String 取文本值
func (v Value) String() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Date 取日期值
func (v Value) Date() (time.Time, bool) {
	if v.kind != KindDate {
		return time.Time{}, false
	}
	return v.date, true
}

// Float 宽松取数：空值按 0，数值按原值，其余不可取
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNull:
		return 0, true
	case KindNumber:
		return v.num, true
	default:
		return 0, false
	}
}

// Text 宽松取文本：文本按原值，数值/日期按可读形式，空值为空串
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindDate:
		return v.date.Format("2006-01-02")
	default:
		return ""
	}
}

// keyToken 生成用于分组/连接的键表示，不同类型不会互相碰撞
func (v Value) keyToken() string {
	switch v.kind {
	case KindNumber:
		return "n:" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return "s:" + v.str
	case KindDate:
		return "d:" + v.date.Format("2006-01-02")
	default:
		return "~"
	}
}

// GoString 调试输出
func (v Value) GoString() string {
	switch v.kind {
	case KindNumber:
		return fmt.Sprintf("Number(%v)", v.num)
	case KindString:
		return fmt.Sprintf("String(%q)", v.str)
	case KindDate:
		return fmt.Sprintf("Date(%s)", v.date.Format("2006-01-02"))
	default:
		return "Null()"
	}
}
