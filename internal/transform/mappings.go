package transform

// 规范指标名：聚合层输出带源前缀（如 video__anchor_exposure），
// 折叠阶段再产出无前缀的总量列
const (
	MetricNaturalLeads      = "natural_leads"
	MetricPaidLeads         = "paid_leads"
	MetricStorePaidLeads    = "store_paid_leads"
	MetricAreaPaidLeads     = "area_paid_leads"
	MetricOtherPaidLeads    = "other_paid_leads"
	MetricLocalLeads        = "local_leads"
	MetricSpendingNet       = "spending_net"
	MetricAnchorExposure    = "anchor_exposure"
	MetricComponentClicks   = "component_clicks"
	MetricShortVideoCount   = "short_video_count"
	MetricShortVideoLeads   = "short_video_leads"
	MetricOver25MinLiveMins = "over25_min_live_mins"
	MetricLiveEffectiveHrs  = "live_effective_hours"
	MetricEffectiveSessions = "effective_live_sessions"
	MetricExposures         = "exposures"
	MetricViewers           = "viewers"
	MetricSmallWheelClicks  = "small_wheel_clicks"
	MetricSmallWheelLeads   = "small_wheel_leads"
	MetricEnterPrivate      = "enter_private_count"
	MetricPrivateOpen       = "private_open_count"
	MetricPrivateLeads      = "private_leads_count"
	MetricLiveLeads         = "live_leads"
	MetricShortVideoPlays   = "short_video_plays"

	DimensionLevel     = "level"
	DimensionStoreName = "store_name"
)

// 源标识，同时是宽表中指标列的前缀
const (
	SourceVideo       = "video"
	SourceLive        = "live"
	SourceMessage     = "message"
	SourceAccountBI   = "account_bi"
	SourceLeads       = "leads"
	SourceDR1         = "dr1"
	SourceDR2         = "dr2"
	SourceSpending    = "spending"
	SourceAccountBase = "account_base"
)

// 通用的经销商标识列别名，各源在其专属别名之后兜底
var commonDealerAliases = []string{"dealer_id", "nsc_code", "经销商id"}

func dealerAliases(primary ...string) []string {
	return append(primary, commonDealerAliases...)
}

// VideoSpec 短视频日报
var VideoSpec = Spec{
	Name:          SourceVideo,
	DealerAliases: dealerAliases("主机厂经销商id"),
	DateAliases:   []string{"日期", "date"},
	Metrics: map[string]string{
		"锚点曝光次数":      MetricAnchorExposure,
		"锚点点击次数":      MetricComponentClicks,
		"新发布视频数":      MetricShortVideoCount,
		"短视频表单提交商机量":  MetricShortVideoLeads,
	},
	SumColumns: []string{
		MetricAnchorExposure, MetricComponentClicks,
		MetricShortVideoCount, MetricShortVideoLeads,
	},
}

// LiveSpec 直播大屏日报
var LiveSpec = Spec{
	Name:          SourceLive,
	DealerAliases: dealerAliases("主机厂经销商id列表"),
	DateAliases:   []string{"开播日期", "直播日期", "日期", "date"},
	Metrics: map[string]string{
		"超25分钟直播时长(分)":    MetricOver25MinLiveMins,
		"直播有效时长（小时）":     MetricLiveEffectiveHrs,
		"超25min直播总场次":    MetricEffectiveSessions,
		"曝光人数":           MetricExposures,
		"场观":             MetricViewers,
		"小风车点击次数（不含小雪花）": MetricSmallWheelClicks,
	},
	SumColumns: []string{
		MetricOver25MinLiveMins, MetricLiveEffectiveHrs, MetricEffectiveSessions,
		MetricExposures, MetricViewers, MetricSmallWheelClicks,
	},
}

// MessageSpec 私信多工作表月报，日期来自工作表名
var MessageSpec = Spec{
	Name:          SourceMessage,
	DealerAliases: dealerAliases("主机厂经销商ID"),
	Metrics: map[string]string{
		"进入私信客户数": MetricEnterPrivate,
		"主动咨询客户数": MetricPrivateOpen,
		"私信留资客户数": MetricPrivateLeads,
	},
	SumColumns: []string{MetricEnterPrivate, MetricPrivateOpen, MetricPrivateLeads},
}

// AccountBISpec 账号 BI 日报
var AccountBISpec = Spec{
	Name:          SourceAccountBI,
	DealerAliases: dealerAliases("主机厂经销商id列表"),
	DateAliases:   []string{"日期", "date"},
	Metrics: map[string]string{
		"直播间表单提交商机量": MetricLiveLeads,
		"短-播放量":      MetricShortVideoPlays,
	},
	SumColumns: []string{MetricLiveLeads, MetricShortVideoPlays},
}

// LeadsSpec 留资去重日报
var LeadsSpec = Spec{
	Name:          SourceLeads,
	DealerAliases: dealerAliases("主机厂经销商id列表"),
	DateAliases:   []string{"留资日期", "日期", "date"},
	Metrics: map[string]string{
		"直播间表单提交商机量(去重)": MetricSmallWheelLeads,
	},
	SumColumns: []string{MetricSmallWheelLeads},
}

// SpendingSpec 投放金额明细
var SpendingSpec = Spec{
	Name:          SourceSpending,
	DealerAliases: dealerAliases("NSC CODE", "NSC_CODE"),
	DateAliases:   []string{"Date", "日期"},
	Metrics: map[string]string{
		"Spending(Net)": MetricSpendingNet,
		"投放金额":          MetricSpendingNet,
	},
	SumColumns: []string{MetricSpendingNet},
}

// drBaseSpec DR 线索明细的公共映射，指标列在分类阶段构造
var drBaseSpec = Spec{
	DealerAliases: dealerAliases("reg_dealer"),
	DateAliases:   []string{"register_time", "register date", "日期", "date"},
	Metrics: map[string]string{
		"leads_type":              drLeadsTypeColumn,
		"mkt_second_channel_name": drChannelColumn,
		"send2dealer_id":          drSendToColumn,
	},
	SumColumns: []string{
		MetricNaturalLeads, MetricPaidLeads, MetricStorePaidLeads,
		MetricAreaPaidLeads, MetricOtherPaidLeads, MetricLocalLeads,
	},
}

// AccountBaseSpec 经销商维表，无日期列
var AccountBaseSpec = Spec{
	Name:          SourceAccountBase,
	DealerAliases: dealerAliases("NSC_id", "NSC Code"),
	Metrics: map[string]string{
		"第二期层级": DimensionLevel,
		"抖音id":  DimensionStoreName,
	},
}
