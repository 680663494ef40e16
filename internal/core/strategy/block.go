package strategy

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"stat-arb-engine/internal/core/model"
	"stat-arb-engine/internal/core/orders"
	"stat-arb-engine/internal/util/pricing"
)

// hedgeDriftEps 对冲腿价格漂移判定阈值
const hedgeDriftEps = 1e-4

// crossPrice 立即成交价：买取卖一，卖取买一
func (s *Strategy) crossPrice(role model.Role, side model.Side) float64 {
	snap := &s.legs[role]
	if side == model.SideBuy {
		return snap.Asks[0]
	}
	return snap.Bids[0]
}

// blockPrice 套利主腿下单价
// 在对手价基础上让一个价位，并且不越过己方最优价。
func (s *Strategy) blockPrice(side model.Side) float64 {
	snap := &s.legs[model.RoleMain]
	tick := s.ticks[model.RoleMain]
	if side == model.SideBuy {
		p := pricing.Shift(snap.Asks[0], tick, -1)
		return pricing.RoundToTick(math.Max(p, snap.Bids[0]), tick)
	}
	p := pricing.Shift(snap.Bids[0], tick, 1)
	return pricing.RoundToTick(math.Min(p, snap.Asks[0]), tick)
}

// hedgeTarget 主腿下单时记录的对冲腿参考价
// 主腿买则对冲腿卖在买一，主腿卖则对冲腿买在卖一。
func (s *Strategy) hedgeTarget(mainSide model.Side) float64 {
	return pricing.RoundToTick(s.crossPrice(model.RoleHedge, mainSide.Opposite()), s.ticks[model.RoleHedge])
}

// splitSize 单次开仓手数
func (s *Strategy) splitSize(pos int64) int64 {
	size := s.cfg.SplitNum
	if size <= 0 {
		size = 1
	}
	if room := s.maxPos - abs64(pos); size > room {
		size = room
	}
	return size
}

// Open 开仓
// 已有阻塞单或持仓达到上限时不做任何事。
// 返回: 是否下单
func (s *Strategy) Open(side model.Side) bool {
	if !s.canTrade() || side == model.SideNone {
		return false
	}
	if s.orders.HasBlocking() {
		s.logger.Debug("存在阻塞单，不开仓", zap.Int("outstanding", s.orders.Len()))
		return false
	}
	pos := s.ledger.Position(model.RoleMain)
	if abs64(pos) >= s.maxPos {
		return false
	}
	size := s.splitSize(pos)
	if size <= 0 {
		return false
	}
	o := s.orders.Submit(orders.Spec{
		Role:     model.RoleMain,
		Ticker:   s.tickers[model.RoleMain],
		Side:     side,
		Size:     size,
		Price:    s.blockPrice(side),
		Tag:      model.TagOpen,
		ShotTime: s.lastTime(),
	})
	s.targetHedgePrice = s.hedgeTarget(side)
	s.logger.Info("开仓",
		zap.String("side", string(side)),
		zap.Int64("size", o.Size),
		zap.Float64("price", o.Price),
		zap.Float64("pair_mid", s.pairMid()),
		zap.Float64("target_hedge", s.targetHedgePrice),
	)
	return true
}

// Close 平掉主腿全部持仓
// 空仓视为成功；已有阻塞单时返回 false。
func (s *Strategy) Close() bool {
	return s.closePosition(model.TagClose)
}

func (s *Strategy) closePosition(tag string) bool {
	pos := s.ledger.Position(model.RoleMain)
	if pos == 0 {
		return true
	}
	if !s.canTrade() {
		return false
	}
	if s.orders.HasBlocking() {
		s.logger.Debug("存在阻塞单，不平仓", zap.Int("outstanding", s.orders.Len()))
		return false
	}
	side := model.SideOf(pos).Opposite()
	o := s.orders.Submit(orders.Spec{
		Role:     model.RoleMain,
		Ticker:   s.tickers[model.RoleMain],
		Side:     side,
		Size:     abs64(pos),
		Price:    s.blockPrice(side),
		Tag:      tag,
		ShotTime: s.lastTime(),
	})
	s.targetHedgePrice = s.hedgeTarget(side)
	s.logger.Info("平仓",
		zap.String("tag", tag),
		zap.String("side", string(side)),
		zap.Int64("size", o.Size),
		zap.Float64("price", o.Price),
		zap.Float64("pair_mid", s.pairMid()),
	)
	return true
}

// ForceFlat 强制平仓
// 最多尝试 MaxCloseTry 次；仍被阻塞时清空在途订单并再平一次。
// 返回: 尝试次数，以及是否动用了清空兜底
func (s *Strategy) ForceFlat() (attempts int, forced bool) {
	if !s.canTrade() {
		return 0, false
	}
	s.logger.Warn("强制平仓",
		zap.Int64("position", s.ledger.Position(model.RoleMain)),
		zap.Float64("pair_mid", s.pairMid()),
		zap.Float64("current_spread", s.currentSpread()),
	)
	for attempts = 1; attempts <= MaxCloseTry; attempts++ {
		if s.closePosition(model.TagForceFlat) {
			return attempts, false
		}
	}
	attempts = MaxCloseTry
	stale := s.orders.Outstanding()
	n := s.orders.Clear()
	for _, o := range stale {
		s.logger.Warn("清除滞留订单",
			zap.String("ref", o.Ref),
			zap.String("role", o.Role.String()),
			zap.String("status", string(o.Status)),
			zap.String("tag", o.Tag),
		)
	}
	s.logger.Error("多次尝试仍无法平仓，已清空在途订单", zap.Int("cleared", n))
	s.closePosition(model.TagForceFlat)
	return attempts, true
}

// closing 是否已有平仓单在途
func (s *Strategy) closing() bool {
	for _, o := range s.orders.Outstanding() {
		if o.Role == model.RoleMain && model.IsCloseTag(o.Tag) {
			return true
		}
	}
	return false
}

// sendHedge 主腿成交后立即对冲
func (s *Strategy) sendHedge(o *model.Order, r model.ExecReport, tag string) {
	side := o.Side.Opposite()
	if !s.canTrade() {
		s.report(fmt.Errorf("%w: %s %s %d", ErrUnhedged, s.tickers[model.RoleMain], o.Side, r.Size))
		return
	}
	h := s.orders.Submit(orders.Spec{
		Role:     model.RoleHedge,
		Ticker:   s.tickers[model.RoleHedge],
		Side:     side,
		Size:     r.Size,
		Price:    s.crossPrice(model.RoleHedge, side),
		Tag:      tag,
		ShotTime: s.lastTime(),
	})
	s.logger.Info("对冲",
		zap.String("side", string(side)),
		zap.Int64("size", h.Size),
		zap.Float64("price", h.Price),
		zap.Float64("main_fill", r.Price),
		zap.String("tag", tag),
	)
}

// moderateBlock 套利类订单的改价与撤单
// 主腿：参考价移动且挂单价已不利，同时对冲腿偏离目标价时撤单；
// 对冲腿：始终改到最新对手价。
func (s *Strategy) moderateBlock() {
	for _, o := range s.orders.Outstanding() {
		if !o.Valid() {
			continue
		}
		tick := s.ticks[o.Role]
		var reasonable float64
		if o.Role == model.RoleMain {
			reasonable = s.blockPrice(o.Side)
		} else {
			reasonable = s.crossPrice(model.RoleHedge, o.Side)
		}
		if math.Abs(reasonable-o.Price) < tick/2 {
			continue
		}

		if o.Role == model.RoleHedge {
			s.orders.Modify(o, reasonable, o.Size)
			continue
		}

		unfavorable := (o.Side == model.SideBuy && reasonable-o.Price >= tick/2) ||
			(o.Side == model.SideSell && o.Price-reasonable >= tick/2)
		if !unfavorable || !s.hedgeDrifted(o.Side) {
			continue
		}
		s.logger.Debug("主腿撤单",
			zap.String("ref", o.Ref),
			zap.Float64("price", o.Price),
			zap.Float64("reasonable", reasonable),
			zap.Float64("target_hedge", s.targetHedgePrice),
		)
		s.orders.Cancel(o)
	}
}

// hedgeDrifted 对冲腿是否已朝不利方向偏离目标价
func (s *Strategy) hedgeDrifted(mainSide model.Side) bool {
	hedge := &s.legs[model.RoleHedge]
	if mainSide == model.SideBuy {
		return hedge.Bids[0]-s.targetHedgePrice < -hedgeDriftEps
	}
	return hedge.Asks[0]-s.targetHedgePrice > hedgeDriftEps
}
