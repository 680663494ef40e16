// Package window 实现价差样本窗口。
// 样本只追加不删除；head/tail 两个游标标记上次标定消费到的位置和累计样本数。
package window

import (
	"fmt"
	"math"
)

// Window 多序列样本窗口（各序列共享游标）
// 价差套利只有一条序列；配对交易有 long/short 两条序列，同时追加。
// 注意：非并发安全，由所属策略在单个事件循环中访问。
type Window struct {
	// trainSamples 单次标定使用的样本数
	trainSamples int
	// series 样本序列
	series [][]float64
	// head 上次标定时的 tail
	head int
	// tail 累计追加的样本数
	tail int
}

// New 创建样本窗口
// 参数 trainSamples: 标定样本数，必须为正
// 参数 numSeries: 序列条数，至少为 1
func New(trainSamples, numSeries int) *Window {
	if numSeries < 1 {
		numSeries = 1
	}
	return &Window{
		trainSamples: trainSamples,
		series:       make([][]float64, numSeries),
	}
}

// Append 追加一组观测（每条序列一个值）
// 返回: 值个数与序列数不一致时返回错误
func (w *Window) Append(values ...float64) error {
	if len(values) != len(w.series) {
		return fmt.Errorf("样本个数 %d 与序列数 %d 不一致", len(values), len(w.series))
	}
	for i, v := range values {
		w.series[i] = append(w.series[i], v)
	}
	w.tail++
	return nil
}

// Head 返回 sample_head
func (w *Window) Head() int { return w.head }

// Tail 返回 sample_tail
func (w *Window) Tail() int { return w.tail }

// TrainSamples 返回标定样本数
func (w *Window) TrainSamples() int { return w.trainSamples }

// Pending 自上次标定以来新增的样本数
func (w *Window) Pending() int { return w.tail - w.head }

// Ready 是否已积累足够样本（tail - head >= train）
func (w *Window) Ready() bool { return w.Pending() >= w.trainSamples }

// ShouldRecalibrate 是否需要滚动重标定（tail - head > train）
func (w *Window) ShouldRecalibrate() bool { return w.Pending() > w.trainSamples }

// CanCalibrate 总样本数是否足够做一次标定
func (w *Window) CanCalibrate() bool { return w.tail >= w.trainSamples }

// Consume 标记当前样本已被消费（head = tail）
func (w *Window) Consume() { w.head = w.tail }

// Last 返回指定序列的最新样本
func (w *Window) Last(series int) (float64, bool) {
	s := w.series[series]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

// Trailing 返回指定序列截至 tail 的最后 n 个样本
// 返回的切片与窗口共享底层数组，调用方只读。
func (w *Window) Trailing(series, n int) []float64 {
	s := w.series[series]
	if n > len(s) {
		n = len(s)
	}
	if n <= 0 {
		return nil
	}
	return s[len(s)-n:]
}

// MeanStd 计算算术平均与总体标准差（除以 N）
// 空切片返回 (0, 0)。
func MeanStd(values []float64) (mean, std float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(n))
	return mean, std
}
