package frame

import (
	"fmt"
	"sort"
	"strings"
)

// Frame 内存列式表：有序列名 + 按列存储的单元格
// 所有变换方法返回新 Frame，不修改接收者
type Frame struct {
	cols  []string
	index map[string]int
	data  [][]Value // data[i] 为第 i 列
	rows  int
}

// New 创建空表，列名重复时报错
func New(cols []string) (*Frame, error) {
	index := make(map[string]int, len(cols))
	data := make([][]Value, len(cols))
	for i, c := range cols {
		if _, ok := index[c]; ok {
			return nil, fmt.Errorf("列名重复: %q", c)
		}
		index[c] = i
		data[i] = nil
	}
	return &Frame{cols: append([]string(nil), cols...), index: index, data: data}, nil
}

// FromRows 由表头和行数据创建表，短行用空值补齐，多余单元格丢弃
func FromRows(header []string, rows [][]Value) (*Frame, error) {
	f, err := New(header)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		f.appendRow(row)
	}
	return f, nil
}

func (f *Frame) appendRow(row []Value) {
	for i := range f.cols {
		v := Null()
		if i < len(row) {
			v = row[i]
		}
		f.data[i] = append(f.data[i], v)
	}
	f.rows++
}

// AppendRow 追加一行（返回含新行的新表）
func (f *Frame) AppendRow(row []Value) *Frame {
	out := f.clone()
	out.appendRow(row)
	return out
}

func (f *Frame) clone() *Frame {
	data := make([][]Value, len(f.data))
	for i, col := range f.data {
		data[i] = append([]Value(nil), col...)
	}
	index := make(map[string]int, len(f.index))
	for k, v := range f.index {
		index[k] = v
	}
	return &Frame{cols: append([]string(nil), f.cols...), index: index, data: data, rows: f.rows}
}

// NumRows 行数
func (f *Frame) NumRows() int {
	return f.rows
}

// Columns 列名列表（副本）
func (f *Frame) Columns() []string {
	return append([]string(nil), f.cols...)
}

// Has 是否存在指定列
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column 取整列，列不存在时报错
func (f *Frame) Column(name string) ([]Value, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("列不存在: %q", name)
	}
	return f.data[i], nil
}

// At 取单元格，越界或列不存在时返回空值
func (f *Frame) At(row int, name string) Value {
	i, ok := f.index[name]
	if !ok || row < 0 || row >= f.rows {
		return Null()
	}
	return f.data[i][row]
}

// Row 取整行
func (f *Frame) Row(row int) []Value {
	out := make([]Value, len(f.cols))
	for i := range f.cols {
		out[i] = f.data[i][row]
	}
	return out
}

// Rename 按映射重命名列，产生重名时报错
func (f *Frame) Rename(mapping map[string]string) (*Frame, error) {
	cols := make([]string, len(f.cols))
	for i, c := range f.cols {
		if to, ok := mapping[c]; ok {
			cols[i] = to
		} else {
			cols[i] = c
		}
	}
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("重命名后列名重复: %q", c)
		}
		seen[c] = struct{}{}
	}
	out := f.clone()
	out.cols = cols
	out.index = make(map[string]int, len(cols))
	for i, c := range cols {
		out.index[c] = i
	}
	return out, nil
}

// Select 按给定顺序保留列，缺列时报错
func (f *Frame) Select(cols []string) (*Frame, error) {
	out, err := New(cols)
	if err != nil {
		return nil, err
	}
	src := make([]int, len(cols))
	for i, c := range cols {
		j, ok := f.index[c]
		if !ok {
			return nil, fmt.Errorf("列不存在: %q", c)
		}
		src[i] = j
	}
	for i, j := range src {
		out.data[i] = append([]Value(nil), f.data[j]...)
	}
	out.rows = f.rows
	return out, nil
}

// WithColumn 新增或替换一列，长度必须与行数一致（空表除外）
func (f *Frame) WithColumn(name string, vals []Value) (*Frame, error) {
	if f.rows != len(vals) && f.rows != 0 {
		return nil, fmt.Errorf("列 %q 长度 %d 与行数 %d 不一致", name, len(vals), f.rows)
	}
	out := f.clone()
	if i, ok := out.index[name]; ok {
		out.data[i] = append([]Value(nil), vals...)
		return out, nil
	}
	out.cols = append(out.cols, name)
	out.index[name] = len(out.cols) - 1
	out.data = append(out.data, append([]Value(nil), vals...))
	if out.rows == 0 {
		out.rows = len(vals)
	}
	return out, nil
}

// Drop 删除列（不存在的列忽略）
func (f *Frame) Drop(names ...string) *Frame {
	dropped := make(map[string]struct{}, len(names))
	for _, n := range names {
		dropped[n] = struct{}{}
	}
	keep := make([]string, 0, len(f.cols))
	for _, c := range f.cols {
		if _, ok := dropped[c]; !ok {
			keep = append(keep, c)
		}
	}
	out, _ := f.Select(keep)
	return out
}

// Filter 保留谓词为真的行
func (f *Frame) Filter(pred func(row int) bool) *Frame {
	out, _ := New(f.cols)
	for r := 0; r < f.rows; r++ {
		if pred(r) {
			out.appendRow(f.Row(r))
		}
	}
	return out
}

// rowKey 生成指定列的组合键
func (f *Frame) rowKey(row int, cols []int) string {
	var b strings.Builder
	for _, c := range cols {
		b.WriteString(f.data[c][row].keyToken())
		b.WriteByte('\x1f')
	}
	return b.String()
}

func (f *Frame) colIndices(cols []string) ([]int, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j, ok := f.index[c]
		if !ok {
			return nil, fmt.Errorf("列不存在: %q", c)
		}
		idx[i] = j
	}
	return idx, nil
}

// GroupSum 按键列分组并对指标列求和；空值按 0 计入，整组全空时合计为 0
// 输出列顺序为 keys + sums，组顺序按首次出现
func (f *Frame) GroupSum(keys, sums []string) (*Frame, error) {
	keyIdx, err := f.colIndices(keys)
	if err != nil {
		return nil, err
	}
	sumIdx, err := f.colIndices(sums)
	if err != nil {
		return nil, err
	}

	out, err := New(append(append([]string(nil), keys...), sums...))
	if err != nil {
		return nil, err
	}
	groupRow := make(map[string]int)
	totals := make([][]float64, 0)

	for r := 0; r < f.rows; r++ {
		k := f.rowKey(r, keyIdx)
		g, ok := groupRow[k]
		if !ok {
			g = len(totals)
			groupRow[k] = g
			totals = append(totals, make([]float64, len(sums)))
			row := make([]Value, len(keys)+len(sums))
			for i, ki := range keyIdx {
				row[i] = f.data[ki][r]
			}
			out.appendRow(row)
		}
		for i, si := range sumIdx {
			if n, ok := f.data[si][r].Float(); ok {
				totals[g][i] += n
			}
		}
	}
	for g, t := range totals {
		for i := range sums {
			out.data[len(keys)+i][g] = Number(t[i])
		}
	}
	return out, nil
}

// DistinctRows 取指定列的去重组合，保持首次出现顺序
func (f *Frame) DistinctRows(cols []string) (*Frame, error) {
	idx, err := f.colIndices(cols)
	if err != nil {
		return nil, err
	}
	out, err := New(cols)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for r := 0; r < f.rows; r++ {
		k := f.rowKey(r, idx)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		row := make([]Value, len(cols))
		for i, c := range idx {
			row[i] = f.data[c][r]
		}
		out.appendRow(row)
	}
	return out, nil
}

// LeftJoin 左连接：以接收者为左表，右表键必须唯一
// 返回连接结果与左表命中行数；右表键重复时报错
func (f *Frame) LeftJoin(right *Frame, on []string) (*Frame, int, error) {
	leftIdx, err := f.colIndices(on)
	if err != nil {
		return nil, 0, fmt.Errorf("左表: %w", err)
	}
	rightIdx, err := right.colIndices(on)
	if err != nil {
		return nil, 0, fmt.Errorf("右表: %w", err)
	}

	onSet := make(map[string]struct{}, len(on))
	for _, c := range on {
		onSet[c] = struct{}{}
	}
	var rightCols []string
	var rightColIdx []int
	for i, c := range right.cols {
		if _, ok := onSet[c]; ok {
			continue
		}
		rightCols = append(rightCols, c)
		rightColIdx = append(rightColIdx, i)
	}

	lookup := make(map[string]int, right.rows)
	for r := 0; r < right.rows; r++ {
		k := right.rowKey(r, rightIdx)
		if _, dup := lookup[k]; dup {
			return nil, 0, fmt.Errorf("右表连接键重复: %v", keyValues(right, r, rightIdx))
		}
		lookup[k] = r
	}

	out, err := New(append(f.Columns(), rightCols...))
	if err != nil {
		return nil, 0, err
	}
	matched := 0
	for r := 0; r < f.rows; r++ {
		row := f.Row(r)
		if rr, ok := lookup[f.rowKey(r, leftIdx)]; ok {
			matched++
			for _, ci := range rightColIdx {
				row = append(row, right.data[ci][rr])
			}
		} else {
			for range rightColIdx {
				row = append(row, Null())
			}
		}
		out.appendRow(row)
	}
	return out, matched, nil
}

func keyValues(f *Frame, row int, cols []int) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = f.data[c][row].Text()
	}
	return out
}

// Sort 按指定列升序稳定排序（键表示序）
func (f *Frame) Sort(cols []string) (*Frame, error) {
	idx, err := f.colIndices(cols)
	if err != nil {
		return nil, err
	}
	order := make([]int, f.rows)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return f.rowKey(order[a], idx) < f.rowKey(order[b], idx)
	})
	out, _ := New(f.cols)
	for _, r := range order {
		out.appendRow(f.Row(r))
	}
	return out, nil
}

// Concat 纵向拼接两张列集合一致的表（列顺序可不同）
func (f *Frame) Concat(other *Frame) (*Frame, error) {
	if len(f.cols) != len(other.cols) {
		return nil, fmt.Errorf("拼接列数不一致: %d vs %d", len(f.cols), len(other.cols))
	}
	aligned, err := other.Select(f.cols)
	if err != nil {
		return nil, fmt.Errorf("拼接列不一致: %w", err)
	}
	out := f.clone()
	for r := 0; r < aligned.rows; r++ {
		out.appendRow(aligned.Row(r))
	}
	return out, nil
}
