package vmclient

import (
	"fmt"
	"strconv"
	"time"
)

// Sample 单个采样点
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series 一条匹配的时间序列
type Series struct {
	Metric  map[string]string `json:"metric"`
	Samples []Sample          `json:"samples"`
}

// Label 读取标签值，不存在时返回空字符串
func (s Series) Label(name string) string {
	return s.Metric[name]
}

// Values 按时间顺序返回所有采样值
func (s Series) Values() []float64 {
	values := make([]float64, 0, len(s.Samples))
	for _, sample := range s.Samples {
		values = append(values, sample.Value)
	}
	return values
}

// QueryResult 查询结果。没有匹配序列时 Series 为空，这仍然是成功的查询
type QueryResult struct {
	ResultType string   `json:"resultType"`
	Series     []Series `json:"series"`
}

// First 返回第一条序列
func (r *QueryResult) First() (Series, bool) {
	if r == nil || len(r.Series) == 0 {
		return Series{}, false
	}
	return r.Series[0], true
}

// apiResponse Prometheus HTTP API 的原始响应
type apiResponse struct {
	Status    string  `json:"status"`
	Data      apiData `json:"data"`
	ErrorType string  `json:"errorType,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type apiData struct {
	ResultType string      `json:"resultType"`
	Result     []apiResult `json:"result"`
}

type apiResult struct {
	Metric map[string]string `json:"metric"`
	Value  []interface{}     `json:"value,omitempty"`  // 即时查询: [ts, "val"]
	Values [][]interface{}   `json:"values,omitempty"` // 范围查询: [[ts, "val"], ...]
}

// toQueryResult 把原始响应转换为 QueryResult
func (d apiData) toQueryResult() (*QueryResult, error) {
	result := &QueryResult{
		ResultType: d.ResultType,
		Series:     make([]Series, 0, len(d.Result)),
	}

	for _, r := range d.Result {
		series := Series{Metric: r.Metric}
		if series.Metric == nil {
			series.Metric = map[string]string{}
		}

		if len(r.Values) > 0 {
			series.Samples = make([]Sample, 0, len(r.Values))
			for _, pair := range r.Values {
				sample, err := parseSample(pair)
				if err != nil {
					return nil, err
				}
				series.Samples = append(series.Samples, sample)
			}
		} else if r.Value != nil {
			sample, err := parseSample(r.Value)
			if err != nil {
				return nil, err
			}
			series.Samples = []Sample{sample}
		}

		result.Series = append(result.Series, series)
	}

	return result, nil
}

// parseSample 解析 [timestamp(float64), value(string)]
func parseSample(pair []interface{}) (Sample, error) {
	if len(pair) != 2 {
		return Sample{}, fmt.Errorf("%w: sample has %d elements", ErrMalformedResponse, len(pair))
	}

	ts, ok := pair[0].(float64)
	if !ok {
		return Sample{}, fmt.Errorf("%w: timestamp is %T", ErrMalformedResponse, pair[0])
	}

	var value float64
	switch v := pair[1].(type) {
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("%w: value %q: %v", ErrMalformedResponse, v, err)
		}
		value = f
	case float64:
		value = v
	default:
		return Sample{}, fmt.Errorf("%w: value is %T", ErrMalformedResponse, pair[1])
	}

	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return Sample{
		Timestamp: time.Unix(sec, nsec),
		Value:     value,
	}, nil
}
