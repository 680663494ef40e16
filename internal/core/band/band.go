// Package band 由样本窗口计算交易通道。
// margin = max(range_width × std, min_range) + round_fee
// up = mean + margin，down = mean - margin
// spread_threshold = margin - min_profit - round_fee
// stop_loss_up = up + stop_loss_margin × margin，stop_loss_down 对称
package band

import (
	"math"

	"stat-arb-engine/internal/core/window"
)

// Params 通道参数
type Params struct {
	// RangeWidth 标准差倍数
	RangeWidth float64
	// MinRange 最小通道半宽
	MinRange float64
	// MinProfit 最小利润
	MinProfit float64
	// StopLossMargin 止损线相对 margin 的倍数；<=0 表示不设止损线
	StopLossMargin float64
}

// Bands 一次标定的完整结果
// 只能整体替换，不做局部更新。
type Bands struct {
	Mean            float64
	Std             float64
	Margin          float64
	RoundFee        float64
	Up              float64
	Down            float64
	SpreadThreshold float64
	StopLossUp      float64
	StopLossDown    float64
	// HasStopLoss 是否带止损线
	HasStopLoss bool
}

// Calibrate 由样本计算通道
// 参数 samples: 标定样本（调用方保证为最后 train 个）
// 参数 roundFee: 双腿开平往返手续费（价格单位）
func Calibrate(samples []float64, p Params, roundFee float64) Bands {
	mean, std := window.MeanStd(samples)
	margin := math.Max(p.RangeWidth*std, p.MinRange) + roundFee

	b := Bands{
		Mean:            mean,
		Std:             std,
		Margin:          margin,
		RoundFee:        roundFee,
		Up:              mean + margin,
		Down:            mean - margin,
		SpreadThreshold: margin - p.MinProfit - roundFee,
	}
	if p.StopLossMargin > 0 {
		b.HasStopLoss = true
		b.StopLossUp = b.Up + p.StopLossMargin*margin
		b.StopLossDown = b.Down - p.StopLossMargin*margin
	}
	return b
}

// OneShot 做市用的一次性 ±1σ 边界
// 返回的 Bands 只填 Mean/Std/Up/Down。
func OneShot(samples []float64) Bands {
	mean, std := window.MeanStd(samples)
	return Bands{
		Mean: mean,
		Std:  std,
		Up:   mean + std,
		Down: mean - std,
	}
}

// Widen 两侧各放宽 delta（回合结束后避免立刻反向进场）
func (b Bands) Widen(delta float64) Bands {
	if delta == 0 {
		return b
	}
	b.Up += delta
	b.Down -= delta
	if b.HasStopLoss {
		b.StopLossUp += delta
		b.StopLossDown -= delta
	}
	return b
}

// Flat 以单一价格初始化通道（预热期展示用）
func Flat(v float64) Bands {
	return Bands{Mean: v, Up: v, Down: v, StopLossUp: v, StopLossDown: v}
}
