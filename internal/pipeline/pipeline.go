package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"dealerpulse/internal/consolidate"
	"dealerpulse/internal/contract"
	"dealerpulse/internal/frame"
	"dealerpulse/internal/settle"
	"dealerpulse/internal/transform"
)

// Inputs 一次合流结算所需的原始表，缺席的源传 nil
type Inputs struct {
	Video       *frame.Frame
	Live        *frame.Frame
	Leads       *frame.Frame
	AccountBI   *frame.Frame
	Spending    *frame.Frame
	DR1         *frame.Frame
	DR2         *frame.Frame
	Message     []transform.Sheet
	AccountBase *frame.Frame
}

// Options 管线参数
type Options struct {
	// CoverageThreshold 合流覆盖率阈值，0 取默认值
	CoverageThreshold float64
	// NumericThreshold 数值化成功率阈值，0 取默认值
	NumericThreshold float64
	// Dimension 结算维度，空取经销商维度
	Dimension settle.Dimension
	// SkeletonSources 参与骨架键集的源，空取默认（dr1/dr2/spending）
	SkeletonSources []string
	// DisableTierNormalization 关闭层级摊平
	DisableTierNormalization bool
}

// DefaultSkeletonSources 默认的骨架键源：线索登记与投放为键的权威来源
var DefaultSkeletonSources = []string{
	transform.SourceDR1,
	transform.SourceDR2,
	transform.SourceSpending,
}

// Outcome 管线产出：日宽表、结算表（展示名）与诊断信息
type Outcome struct {
	RunID       string
	Wide        *frame.Frame
	Settlement  *frame.Frame
	TMonth      string
	TMinusMonth string
	Diagnostics consolidate.Diagnostics
	Duration    time.Duration
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"`      // start/stage/done/error
	Message   string      `json:"message"`   // 事件消息
	Data      interface{} `json:"data"`      // 附加数据
	Timestamp time.Time   `json:"timestamp"` // 时间戳
}

// Pipeline 合流结算管线
type Pipeline struct {
	opts Options
}

// New 创建管线
func New(opts Options) *Pipeline {
	if opts.Dimension == "" {
		opts.Dimension = settle.DimensionDealer
	}
	return &Pipeline{opts: opts}
}

// Run 异步执行，返回进度通道；完成事件携带 *Outcome
func (p *Pipeline) Run(in Inputs) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)
		outcome, err := p.execute(in, progressChan)
		if err != nil {
			p.send(progressChan, ProgressEvent{
				Type:      "error",
				Message:   err.Error(),
				Timestamp: time.Now(),
			})
			return
		}
		p.send(progressChan, ProgressEvent{
			Type:      "done",
			Message:   "结算完成",
			Data:      outcome,
			Timestamp: time.Now(),
		})
	}()

	return progressChan
}

// Execute 同步执行
func (p *Pipeline) Execute(in Inputs) (*Outcome, error) {
	return p.execute(in, nil)
}

func (p *Pipeline) execute(in Inputs, progress chan ProgressEvent) (*Outcome, error) {
	startTime := time.Now()
	runID := uuid.NewString()

	p.send(progress, ProgressEvent{
		Type:      "start",
		Message:   "开始合流结算",
		Data:      map[string]string{"run_id": runID},
		Timestamp: time.Now(),
	})

	sources, err := p.aggregateSources(in, progress)
	if err != nil {
		return nil, err
	}

	p.stage(progress, "构建骨架键集并合流")
	coordinator := &consolidate.Coordinator{CoverageThreshold: p.opts.CoverageThreshold}
	wide, err := coordinator.BuildWide(sources)
	if err != nil {
		return nil, err
	}

	if in.AccountBase != nil && in.AccountBase.NumRows() > 0 {
		p.stage(progress, "聚合经销商维表")
		dim, err := transform.NewAccountBaseAggregator().Aggregate(in.AccountBase)
		if err != nil {
			return nil, err
		}
		if wide, err = coordinator.AttachDimension(wide, dim); err != nil {
			return nil, err
		}
	}

	p.stage(progress, "折叠与派生指标")
	if wide, err = consolidate.Derive(wide); err != nil {
		return nil, err
	}

	p.stage(progress, fmt.Sprintf("按 %s 维度结算", p.opts.Dimension))
	settler := settle.NewAggregator(settle.Config{DisableNormalization: p.opts.DisableTierNormalization})
	result, err := settler.Settle(wide, p.opts.Dimension)
	if err != nil {
		return nil, err
	}

	p.stage(progress, "套用输出合同")
	final, err := contract.ForColumns(result.Table.Columns()).Apply(result.Table)
	if err != nil {
		return nil, err
	}

	diag := p.collectDiagnostics(wide, result)

	return &Outcome{
		RunID:       runID,
		Wide:        wide,
		Settlement:  final,
		TMonth:      result.TMonth,
		TMinusMonth: result.TMinusMonth,
		Diagnostics: diag,
		Duration:    time.Since(startTime),
	}, nil
}

// aggregateSources 逐源聚合到 (dealer_id, date) 日粒度
func (p *Pipeline) aggregateSources(in Inputs, progress chan ProgressEvent) ([]consolidate.Source, error) {
	type job struct {
		name string
		raw  *frame.Frame
		agg  transform.Aggregator
	}
	nt := p.opts.NumericThreshold
	jobs := []job{
		{transform.SourceDR1, in.DR1, transform.NewDRAggregator(transform.SourceDR1)},
		{transform.SourceDR2, in.DR2, transform.NewDRAggregator(transform.SourceDR2)},
		{transform.SourceSpending, in.Spending, transform.NewAggregator(transform.SpendingSpec, nt)},
		{transform.SourceVideo, in.Video, transform.NewAggregator(transform.VideoSpec, nt)},
		{transform.SourceLive, in.Live, transform.NewAggregator(transform.LiveSpec, nt)},
		{transform.SourceLeads, in.Leads, transform.NewAggregator(transform.LeadsSpec, nt)},
		{transform.SourceAccountBI, in.AccountBI, transform.NewAggregator(transform.AccountBISpec, nt)},
	}

	skeletonList := p.opts.SkeletonSources
	if len(skeletonList) == 0 {
		skeletonList = DefaultSkeletonSources
	}
	skeleton := make(map[string]struct{}, len(skeletonList))
	for _, s := range skeletonList {
		skeleton[s] = struct{}{}
	}

	sources := make([]consolidate.Source, 0, len(jobs)+1)
	for _, j := range jobs {
		_, isSkeleton := skeleton[j.name]
		if j.raw == nil || j.raw.NumRows() == 0 {
			p.stage(progress, fmt.Sprintf("源 %s 缺席，跳过", j.name))
			sources = append(sources, consolidate.Source{Name: j.name, Skeleton: isSkeleton})
			continue
		}
		p.stage(progress, fmt.Sprintf("聚合源 %s", j.name))
		table, err := j.agg.Aggregate(j.raw)
		if err != nil {
			return nil, err
		}
		sources = append(sources, consolidate.Source{Name: j.name, Table: table, Skeleton: isSkeleton})
	}

	if len(in.Message) > 0 {
		p.stage(progress, "聚合私信多工作表")
		table, err := transform.NewMessageAggregator(nt).AggregateSheets(in.Message)
		if err != nil {
			return nil, err
		}
		sources = append(sources, consolidate.Source{Name: transform.SourceMessage, Table: table})
	}
	return sources, nil
}

func (p *Pipeline) collectDiagnostics(wide *frame.Frame, result *settle.Result) consolidate.Diagnostics {
	monthOf := func(row int) (string, bool) {
		d, ok := wide.At(row, transform.DateColumn).Date()
		if !ok {
			return "", false
		}
		return settle.MonthLabel(d), true
	}
	metrics := []string{
		transform.MetricNaturalLeads,
		transform.MetricPaidLeads,
		transform.MetricStorePaidLeads,
		transform.MetricAreaPaidLeads,
		transform.MetricLocalLeads,
		transform.SourceSpending + "__" + transform.MetricSpendingNet,
	}
	rates := []string{
		consolidate.RateComponentClick,
		consolidate.RateComponentLeads,
		consolidate.RatePrivateOpen,
		consolidate.RatePrivateLeads,
		consolidate.RatePrivateConv,
	}
	return consolidate.Inspect(wide, monthOf, result.TMonth, result.TMinusMonth, metrics, rates)
}

func (p *Pipeline) stage(ch chan ProgressEvent, msg string) {
	p.send(ch, ProgressEvent{Type: "stage", Message: msg, Timestamp: time.Now()})
}

func (p *Pipeline) send(ch chan ProgressEvent, event ProgressEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- event:
	default:
		// 通道已满，丢弃事件
	}
}
