package consolidate

import (
	"errors"
	"fmt"
	"log"

	"dealerpulse/internal/frame"
	"dealerpulse/internal/transform"
)

var (
	// ErrJoinCollision 合流时右表携带了宽表已有的非键列
	ErrJoinCollision = errors.New("合流列名冲突")
	// ErrLowCoverage 左连接覆盖率低于阈值
	ErrLowCoverage = errors.New("合流覆盖率过低")
	// ErrDuplicateDimensionKey 维表在 dealer_id 上不唯一
	ErrDuplicateDimensionKey = errors.New("维表键重复")
	// ErrEmptySkeleton 骨架源全部为空，无法确定合流键集
	ErrEmptySkeleton = errors.New("骨架键集为空")
)

// DefaultCoverageThreshold 左连接覆盖率默认阈值
const DefaultCoverageThreshold = 0.95

// Source 待合流的单源聚合结果
type Source struct {
	Name  string
	Table *frame.Frame
	// Skeleton 为真的源参与骨架键集（键的权威来源）
	Skeleton bool
}

// Coordinator 多源合流：冻结骨架键集后逐源左连接
type Coordinator struct {
	// CoverageThreshold 每次左连接的最低覆盖率，0 取默认值
	CoverageThreshold float64
}

func (c *Coordinator) threshold() float64 {
	if c.CoverageThreshold <= 0 {
		return DefaultCoverageThreshold
	}
	return c.CoverageThreshold
}

// BuildWide 先用骨架源的键并集冻结 (dealer_id, date) 键集，
// 再把每个源左连接进来。每次连接前检查列名冲突，连接后检查覆盖率。
// 空源跳过并记日志，不报错。
func (c *Coordinator) BuildWide(sources []Source) (*frame.Frame, error) {
	keys := []string{transform.DealerColumn, transform.DateColumn}

	wide, err := buildSkeleton(sources, keys)
	if err != nil {
		return nil, err
	}
	log.Printf("骨架键集冻结: %d 行", wide.NumRows())

	for _, src := range sources {
		if src.Table == nil || src.Table.NumRows() == 0 {
			log.Printf("源 %s 为空，跳过合流", src.Name)
			continue
		}
		metricCols := nonKeyColumns(src.Table, keys)
		if len(metricCols) == 0 {
			log.Printf("源 %s 无可并入的指标列，跳过", src.Name)
			continue
		}
		for _, col := range metricCols {
			if wide.Has(col) {
				return nil, fmt.Errorf("%w: 源 %s 的列 %q 已存在于宽表", ErrJoinCollision, src.Name, col)
			}
		}
		right, err := src.Table.Select(append(append([]string(nil), keys...), metricCols...))
		if err != nil {
			return nil, fmt.Errorf("源 %s: %w", src.Name, err)
		}
		joined, matched, err := wide.LeftJoin(right, keys)
		if err != nil {
			return nil, fmt.Errorf("源 %s: %w", src.Name, err)
		}
		coverage := 1.0
		if wide.NumRows() > 0 {
			coverage = float64(matched) / float64(wide.NumRows())
		}
		log.Printf("合流 %s: rows=%d matched=%d coverage=%.2f%%",
			src.Name, wide.NumRows(), matched, coverage*100)
		if coverage < c.threshold() {
			return nil, fmt.Errorf("%w: 源 %s 覆盖率 %.2f%% < %.0f%%, 请检查键一致性与日期对齐",
				ErrLowCoverage, src.Name, coverage*100, c.threshold()*100)
		}
		wide = joined
	}
	return wide, nil
}

// UnknownDimension 维表未覆盖的经销商落入的占位桶
const UnknownDimension = "未知"

// AttachDimension 把经销商维表（level/store_name）按 dealer_id 挂到宽表上
// 维表键不唯一时报 ErrDuplicateDimensionKey；未命中的行填“未知”占位，
// 使空层级在下游分组中仍是可查询的展示桶
func (c *Coordinator) AttachDimension(wide, dim *frame.Frame) (*frame.Frame, error) {
	if dim == nil || dim.NumRows() == 0 {
		log.Printf("维表为空，跳过属性挂载")
		return wide, nil
	}
	seen := make(map[string]struct{}, dim.NumRows())
	for r := 0; r < dim.NumRows(); r++ {
		k := dim.At(r, transform.DealerColumn).Text()
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: dealer_id=%q", ErrDuplicateDimensionKey, k)
		}
		seen[k] = struct{}{}
	}
	dimCols := nonKeyColumns(dim, []string{transform.DealerColumn})
	for _, col := range dimCols {
		if wide.Has(col) {
			return nil, fmt.Errorf("%w: 维表列 %q 已存在于宽表", ErrJoinCollision, col)
		}
	}
	joined, matched, err := wide.LeftJoin(dim, []string{transform.DealerColumn})
	if err != nil {
		return nil, err
	}
	for _, col := range dimCols {
		vals := make([]frame.Value, joined.NumRows())
		for r := 0; r < joined.NumRows(); r++ {
			v := joined.At(r, col)
			if v.IsNull() {
				v = frame.String(UnknownDimension)
			}
			vals[r] = v
		}
		if joined, err = joined.WithColumn(col, vals); err != nil {
			return nil, err
		}
	}
	log.Printf("维表挂载: rows=%d matched=%d", wide.NumRows(), matched)
	return joined, nil
}

// buildSkeleton 取所有骨架源 (dealer_id, date) 的去重并集并排序
func buildSkeleton(sources []Source, keys []string) (*frame.Frame, error) {
	skeleton, err := frame.New(keys)
	if err != nil {
		return nil, err
	}
	used := 0
	for _, src := range sources {
		if !src.Skeleton || src.Table == nil || src.Table.NumRows() == 0 {
			continue
		}
		part, err := src.Table.Select(keys)
		if err != nil {
			return nil, fmt.Errorf("骨架源 %s: %w", src.Name, err)
		}
		if skeleton, err = skeleton.Concat(part); err != nil {
			return nil, err
		}
		used++
	}
	if used == 0 || skeleton.NumRows() == 0 {
		return nil, ErrEmptySkeleton
	}
	if skeleton, err = skeleton.DistinctRows(keys); err != nil {
		return nil, err
	}
	return skeleton.Sort(keys)
}

func nonKeyColumns(f *frame.Frame, keys []string) []string {
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	var out []string
	for _, c := range f.Columns() {
		if _, ok := keySet[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}
