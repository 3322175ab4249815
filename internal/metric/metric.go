package metric

// TrendPoints 趋势图保留的最大点数
const TrendPoints = 20

// 单位
const (
	UnitPercent = "%"
	UnitMBps    = "MB/s"
)

// DashboardSeries 仪表盘序列：当前值 + 最近的趋势
// Trend 永远不为 nil，没有数据时为空切片、Current 为 0
type DashboardSeries struct {
	Current float64   `json:"current" yaml:"current"`
	Trend   []float64 `json:"chart_data" yaml:"chart_data"`
	Unit    string    `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// EmptySeries 指定单位的零值序列
func EmptySeries(unit string) DashboardSeries {
	return DashboardSeries{
		Current: 0,
		Trend:   []float64{},
		Unit:    unit,
	}
}

// IsEmpty 当前值为 0 且没有趋势点
func (s DashboardSeries) IsEmpty() bool {
	return s.Current == 0 && len(s.Trend) == 0
}

// StorageSeries 存储使用率（仅即时查询，Trend 始终为空）。Used + Free = 100
type StorageSeries struct {
	DashboardSeries `yaml:",inline"`
	Used            float64 `json:"used" yaml:"used"`
	Free            float64 `json:"free" yaml:"free"`
}

// EmptyStorage 存储的零值：used=0, free=100
func EmptyStorage() StorageSeries {
	return StorageSeries{
		DashboardSeries: EmptySeries(UnitPercent),
		Used:            0,
		Free:            100,
	}
}

// Result 单个分支的结果：值或错误，二者只会有一个有意义
type Result[T any] struct {
	Value T
	Err   error
}

// OK 构造成功结果
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail 构造失败结果，Value 为该分支的零值输出
func Fail[T any](zero T, err error) Result[T] {
	return Result[T]{Value: zero, Err: err}
}
