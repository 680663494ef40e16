// Package risk 实现止损计数、持仓时长与回合上限。
package risk

import (
	"stat-arb-engine/internal/core/band"
)

// Limits 风控参数
type Limits struct {
	// MaxLossTimes 止损次数上限，达到后策略永久停止；<=0 表示不限制
	MaxLossTimes int
	// MaxHoldingSec 最长持仓秒数；<=0 表示不限制
	MaxHoldingSec int64
	// MaxRound 最大回合数，达到后不再开新仓；<=0 表示不限制
	MaxRound int
}

// Controller 风控状态
type Controller struct {
	limits Limits

	// stopLossTimes 已触发止损次数
	stopLossTimes int
	// closeRounds 已完成回合数
	closeRounds int
	// buildSec 从空仓到持仓的时刻（秒）；0 表示空仓
	buildSec int64
}

// NewController 创建风控
func NewController(limits Limits) *Controller {
	return &Controller{limits: limits}
}

// StopLossHit 是否击穿止损线
// 持多且 mid 跌破下止损线，或持空且 mid 涨破上止损线。
// 参数 position: 主腿净持仓
// 参数 mid: 当前价差中间值
func StopLossHit(position int64, mid float64, b band.Bands) bool {
	if !b.HasStopLoss || position == 0 {
		return false
	}
	if position > 0 {
		return mid < b.StopLossDown
	}
	return mid > b.StopLossUp
}

// RecordStopLoss 记一次止损
// 返回: 是否达到上限需要停止策略
func (c *Controller) RecordStopLoss() bool {
	c.stopLossTimes++
	return c.limits.MaxLossTimes > 0 && c.stopLossTimes >= c.limits.MaxLossTimes
}

// StopLossTimes 已触发止损次数
func (c *Controller) StopLossTimes() int { return c.stopLossTimes }

// OnPosition 持仓变化时更新建仓时刻
// 从空仓变为非空仓时记录，回到空仓时清零。
func (c *Controller) OnPosition(prev, next, nowSec int64) {
	switch {
	case next == 0:
		c.buildSec = 0
	case prev == 0:
		c.buildSec = nowSec
	}
}

// BuildSec 建仓时刻（秒），空仓为 0
func (c *Controller) BuildSec() int64 { return c.buildSec }

// TimeUp 是否超过最长持仓时间
func (c *Controller) TimeUp(nowSec int64) bool {
	if c.limits.MaxHoldingSec <= 0 || c.buildSec == 0 {
		return false
	}
	return nowSec-c.buildSec > c.limits.MaxHoldingSec
}

// RecordRound 记一个完成的回合
// 返回: 当前回合序号
func (c *Controller) RecordRound() int {
	c.closeRounds++
	return c.closeRounds
}

// Rounds 已完成回合数
func (c *Controller) Rounds() int { return c.closeRounds }

// CanOpen 是否还允许开新仓
func (c *Controller) CanOpen() bool {
	return c.limits.MaxRound <= 0 || c.closeRounds < c.limits.MaxRound
}

// Limits 返回风控参数
func (c *Controller) Limits() Limits { return c.limits }
