// Package ledger 维护每条腿的净持仓与成交均价。
// 只由确认的成交驱动；所有决策函数从这里读取多空状态。
package ledger

import (
	"stat-arb-engine/internal/core/model"
)

// Leg 单条腿的持仓
type Leg struct {
	// Position 带符号净持仓
	Position int64
	// AvgCost 持仓均价（成交量加权）；空仓时为 0
	AvgCost float64
	// Realized 累计已实现盈亏（价格单位 × 数量）
	Realized float64
	// Traded 累计成交数量
	Traded int64
}

// Ledger 按腿索引的持仓账本
type Ledger struct {
	legs [len(model.Roles)]Leg
}

// New 创建空账本
func New() *Ledger {
	return &Ledger{}
}

// Seed 用账户快照初始化某条腿的持仓
func (l *Ledger) Seed(role model.Role, position int64, avgCost float64) {
	leg := &l.legs[role]
	leg.Position = position
	if position == 0 {
		leg.AvgCost = 0
	} else {
		leg.AvgCost = avgCost
	}
}

// Apply 记入一笔成交
// 参数 side: 成交方向
// 参数 size: 成交数量（正数）
// 参数 price: 成交价
// 返回: 成交前后的持仓
func (l *Ledger) Apply(role model.Role, side model.Side, size int64, price float64) (prev, next int64) {
	leg := &l.legs[role]
	prev = leg.Position
	signed := side.Sign() * size
	if signed == 0 {
		return prev, prev
	}
	leg.Traded += size

	switch {
	case prev == 0 || (prev > 0) == (signed > 0):
		// 加仓：加权均价
		absPrev := abs(prev)
		leg.AvgCost = (leg.AvgCost*float64(absPrev) + price*float64(size)) / float64(absPrev+size)
		leg.Position = prev + signed
	default:
		// 减仓或反手
		closed := min(abs(prev), size)
		direction := float64(model.SideOf(prev).Sign())
		leg.Realized += (price - leg.AvgCost) * float64(closed) * direction
		leg.Position = prev + signed
		switch {
		case leg.Position == 0:
			leg.AvgCost = 0
		case (leg.Position > 0) != (prev > 0):
			// 反手，剩余部分以本次价格建仓
			leg.AvgCost = price
		}
	}
	return prev, leg.Position
}

// Position 某条腿的净持仓
func (l *Ledger) Position(role model.Role) int64 {
	return l.legs[role].Position
}

// AvgCost 某条腿的均价
func (l *Ledger) AvgCost(role model.Role) float64 {
	return l.legs[role].AvgCost
}

// Realized 某条腿的已实现盈亏
func (l *Ledger) Realized(role model.Role) float64 {
	return l.legs[role].Realized
}

// TotalRealized 全部腿的已实现盈亏之和
func (l *Ledger) TotalRealized() float64 {
	var sum float64
	for _, leg := range l.legs {
		sum += leg.Realized
	}
	return sum
}

// Leg 返回某条腿的完整状态副本
func (l *Ledger) Leg(role model.Role) Leg {
	return l.legs[role]
}

// IsFlat 所有腿是否空仓
func (l *Ledger) IsFlat() bool {
	for _, leg := range l.legs {
		if leg.Position != 0 {
			return false
		}
	}
	return true
}

// Unhedged 主腿与对冲腿的净敞口（main + hedge），完全对冲时为 0
func (l *Ledger) Unhedged() int64 {
	return l.legs[model.RoleMain].Position + l.legs[model.RoleHedge].Position
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
