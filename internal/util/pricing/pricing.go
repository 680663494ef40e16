// Package pricing 提供按最小变动价位取整的工具函数。
// 使用 decimal 运算，避免 0.1 + 0.2 这类二进制浮点误差把价格推到相邻档位。
package pricing

import (
	"github.com/shopspring/decimal"
)

// RoundToTick 四舍五入到最近的价位
// 参数 price: 原始价格
// 参数 tick: 最小变动价位；<=0 时原样返回
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	return p.Div(t).Round(0).Mul(t).InexactFloat64()
}

// FloorToTick 向下取整到价位（买单用，不追高）
func FloorToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	return p.Div(t).Floor().Mul(t).InexactFloat64()
}

// CeilToTick 向上取整到价位（卖单用，不杀跌）
func CeilToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	return p.Div(t).Ceil().Mul(t).InexactFloat64()
}

// Shift 将价格平移 n 个价位，结果按价位取整
// 参数 n: 可为负数
func Shift(price, tick float64, n int64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	return p.Add(t.Mul(decimal.NewFromInt(n))).Div(t).Round(0).Mul(t).InexactFloat64()
}

// Ticks 返回两个价格之间相差的价位数（a - b），四舍五入到整数
func Ticks(a, b, tick float64) int64 {
	if tick <= 0 {
		return 0
	}
	d := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b))
	return d.Div(decimal.NewFromFloat(tick)).Round(0).IntPart()
}

// Notional 价格 × 数量 × 乘数
func Notional(price float64, size int64, multiplier float64) float64 {
	return decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(size)).
		Mul(decimal.NewFromFloat(multiplier)).
		InexactFloat64()
}
