package strategy

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"stat-arb-engine/internal/core/band"
	"stat-arb-engine/internal/core/model"
	"stat-arb-engine/internal/core/orders"
	"stat-arb-engine/internal/core/window"
	"stat-arb-engine/internal/util/pricing"
)

// makerPolicy 做市：双边挂单，用一次性 ±1σ 边界决定挂单休眠或唤醒
type makerPolicy struct {
	s     *Strategy
	win   *window.Window
	bands band.Bands
	// calibrated 一次性边界是否已算出
	calibrated bool
	// priceControl 开仓让价；edurance 改价容忍度（价格单位）
	priceControl float64
	edurance     float64
}

func newMakerPolicy(s *Strategy) *makerPolicy {
	tick := s.ticks[model.RoleMain]
	return &makerPolicy{
		s:            s,
		win:          window.New(s.cfg.MinTrainSample, 1),
		priceControl: float64(s.cfg.PriceControlTicks) * tick,
		edurance:     float64(s.cfg.EduranceTicks) * tick,
	}
}

func (p *makerPolicy) observe(aligned bool) {
	if !aligned {
		return
	}
	diff := p.s.pairMid()
	if err := p.win.Append(diff); err != nil {
		p.s.report(err)
		return
	}
	if !p.calibrated && p.win.CanCalibrate() {
		p.oneShot()
	}
	p.s.publish(diff, p.bands)
}

func (p *makerPolicy) oneShot() {
	p.bands = band.OneShot(p.win.Trailing(0, p.win.TrainSamples()))
	p.calibrated = true
	p.s.logger.Info("做市边界标定完成",
		zap.Float64("mean", p.bands.Mean),
		zap.Float64("std", p.bands.Std),
		zap.Float64("up", p.bands.Up),
		zap.Float64("down", p.bands.Down),
	)
}

func (p *makerPolicy) ready() bool { return p.calibrated }

func (p *makerPolicy) calibrate() error {
	if p.calibrated {
		return nil
	}
	if !p.win.CanCalibrate() {
		return fmt.Errorf("%w: 需要 %d 个，当前 %d 个", ErrInsufficientSamples, p.win.TrainSamples(), p.win.Tail())
	}
	p.oneShot()
	return nil
}

// midBuy 价差不高于上界时买单可挂出
func (p *makerPolicy) midBuy() bool { return p.s.pairMid() <= p.bands.Up }

// midSell 价差不低于下界时卖单可挂出
func (p *makerPolicy) midSell() bool { return p.s.pairMid() >= p.bands.Down }

func (p *makerPolicy) favorable(side model.Side) bool {
	if side == model.SideBuy {
		return p.midBuy()
	}
	return p.midSell()
}

// canOpen 是否允许补开仓单
func (p *makerPolicy) canOpen() bool {
	return p.s.state == StateRunning && p.s.risk.CanOpen()
}

func (p *makerPolicy) run(aligned bool) {}

func (p *makerPolicy) flatten(aligned bool) {}

// start 有持仓时整笔挂平仓单，否则双边挂开仓单（条件不利的挂休眠单）
func (p *makerPolicy) start() {
	s := p.s
	pos := s.ledger.Position(model.RoleMain)
	if pos != 0 {
		s.maxPos = max(abs64(pos), s.startMaxPos)
		p.place(model.SideOf(pos).Opposite(), abs64(pos), model.TagClose, false, false)
		return
	}
	p.place(model.SideBuy, 1, model.TagStartOpen, !p.midBuy(), false)
	p.place(model.SideSell, 1, model.TagStartOpen, !p.midSell(), false)
}

func (p *makerPolicy) resume() { p.start() }

// enterFlat 撤掉所有开仓单，保留平仓单
func (p *makerPolicy) enterFlat() {
	for _, o := range p.s.orders.Outstanding() {
		if o.Role == model.RoleMain && !model.IsCloseTag(o.Tag) {
			p.s.orders.Cancel(o)
		}
	}
}

// place 主腿下单；同一方向只允许一笔
func (p *makerPolicy) place(side model.Side, size int64, tag string, sleep, control bool) *model.Order {
	s := p.s
	if !s.canTrade() {
		return nil
	}
	if existing := s.orders.FindBySide(model.RoleMain, side); existing != nil {
		s.logger.Debug("同方向已有挂单",
			zap.String("side", string(side)),
			zap.String("ref", existing.Ref),
			zap.String("tag", tag),
		)
		return nil
	}
	o := s.orders.Submit(orders.Spec{
		Role:     model.RoleMain,
		Ticker:   s.tickers[model.RoleMain],
		Side:     side,
		Size:     size,
		Price:    p.orderPrice(side, control),
		Tag:      tag,
		Sleep:    sleep,
		ShotTime: s.lastTime(),
	})
	s.logger.Info("做市挂单",
		zap.String("side", string(side)),
		zap.Int64("size", size),
		zap.Float64("price", o.Price),
		zap.String("tag", tag),
		zap.Bool("sleep", sleep),
	)
	return o
}

// openOrder 补一笔开仓单；未对齐或条件不利时挂休眠单
func (p *makerPolicy) openOrder(side model.Side, tag string) {
	sleep := !p.s.isAligned() || !p.favorable(side)
	p.place(side, 1, tag, sleep, true)
}

// orderPrice 主腿挂单价
// 让价单远离盘口 priceControl；已对冲的平仓单以保本价为锚；其余挂在己方最优价。
func (p *makerPolicy) orderPrice(side model.Side, control bool) float64 {
	s := p.s
	main := &s.legs[model.RoleMain]
	tick := s.ticks[model.RoleMain]
	bid, ask := main.Bids[0], main.Asks[0]

	away := func() float64 {
		if side == model.SideBuy {
			return pricing.RoundToTick(bid-p.priceControl, tick)
		}
		return pricing.RoundToTick(ask+p.priceControl, tick)
	}
	if control {
		return away()
	}

	pos := s.ledger.Position(model.RoleMain)
	isClose := (pos > 0 && side == model.SideSell) || (pos < 0 && side == model.SideBuy)
	if !isClose {
		if side == model.SideBuy {
			return bid
		}
		return ask
	}
	if pos != -s.ledger.Position(model.RoleHedge) {
		return away()
	}

	balance := p.balancePrice(pos)
	if side == model.SideBuy {
		switch {
		case balance <= bid:
			return pricing.Shift(balance, tick, -1)
		case balance <= ask:
			return bid
		default:
			return ask
		}
	}
	switch {
	case balance >= ask:
		return pricing.Shift(balance, tick, 1)
	case balance >= bid:
		return ask
	default:
		return bid
	}
}

// balancePrice 平仓保本价：对冲腿对手价 + 两腿均价差
func (p *makerPolicy) balancePrice(pos int64) float64 {
	s := p.s
	hedge := &s.legs[model.RoleHedge]
	tick := s.ticks[model.RoleMain]
	diff := s.ledger.AvgCost(model.RoleMain) - s.ledger.AvgCost(model.RoleHedge)
	if pos > 0 {
		return pricing.CeilToTick(hedge.Asks[0]+diff, tick)
	}
	return pricing.FloorToTick(hedge.Bids[0]+diff, tick)
}

// priceChange 挂单价是否需要修正
// 双边挂单时偏离超过容忍度即改；单边（平仓方向）挂单价劣于参考价立即改，优于参考价超过容忍度才改。
func (p *makerPolicy) priceChange(current, reasonable float64, side model.Side) bool {
	pos := p.s.ledger.Position(model.RoleMain)
	eps := p.s.ticks[model.RoleMain] / 2
	bilateral := !((pos > 0 && side == model.SideSell) || (pos < 0 && side == model.SideBuy))
	if bilateral {
		return math.Abs(current-reasonable) > p.edurance
	}
	if side == model.SideBuy {
		return current-reasonable > eps || reasonable-current > p.edurance
	}
	return reasonable-current > eps || current-reasonable > p.edurance
}

func (p *makerPolicy) moderate(role model.Role, aligned bool) {
	if role == model.RoleHedge {
		p.moderateHedge()
		return
	}
	s := p.s
	pos := s.ledger.Position(model.RoleMain)
	for _, o := range s.orders.Outstanding() {
		if o.Role != model.RoleMain {
			continue
		}
		switch {
		case o.Valid():
			if aligned && ((o.Side == model.SideBuy && !p.midBuy() && pos >= 0) ||
				(o.Side == model.SideSell && !p.midSell() && pos <= 0)) {
				s.logger.Debug("开仓条件不利，挂单转休眠", zap.String("ref", o.Ref), zap.String("side", string(o.Side)))
				s.orders.Park(o)
				continue
			}
			reasonable := p.orderPrice(o.Side, false)
			if p.priceChange(o.Price, reasonable, o.Side) {
				s.orders.Modify(o, reasonable, o.Size)
			}
		case o.Status == model.StatusSleep:
			if aligned && p.favorable(o.Side) {
				s.orders.Modify(o, p.orderPrice(o.Side, false), o.Size)
				s.orders.Wake(o)
				s.logger.Debug("条件转好，唤醒挂单", zap.String("ref", o.Ref), zap.Float64("diff", s.pairMid()))
			}
		}
	}
}

// moderateHedge 对冲单始终钉在对手价
func (p *makerPolicy) moderateHedge() {
	s := p.s
	tick := s.ticks[model.RoleHedge]
	for _, o := range s.orders.Outstanding() {
		if o.Role != model.RoleHedge || !o.Valid() {
			continue
		}
		target := s.crossPrice(model.RoleHedge, o.Side)
		if math.Abs(o.Price-target) > tick/2 {
			s.orders.Modify(o, target, o.Size)
		}
	}
}

func (p *makerPolicy) onMainFill(o *model.Order, r model.ExecReport, prev, next int64) {
	s := p.s
	s.sendHedge(o, r, model.TagHedge)
	if !s.canTrade() {
		return
	}

	side := o.Side
	reverse := side.Opposite()
	trade := side.Sign() * r.Size

	if next*trade > 0 {
		// 开仓成交
		if prev == 0 {
			p.convertReverse(reverse, abs64(next))
		} else if ro, err := s.orders.IncreaseSize(model.RoleMain, reverse, r.Size); err != nil {
			s.report(fmt.Errorf("%s 加量 %d: %w", reverse, r.Size, err))
		} else {
			s.orders.Resend(ro)
			s.logger.Info("平仓单加量", zap.String("ref", ro.Ref), zap.Int64("size", ro.Size))
		}
		if p.canOpen() && abs64(next) < s.maxPos {
			p.openOrder(side, model.TagAddOpen)
		}
		return
	}

	// 平仓成交
	if abs64(prev) == s.maxPos && p.canOpen() {
		p.openOrder(reverse, model.TagMakeUp)
	}
	if next == 0 {
		s.maxPos = s.startMaxPos
		at := r.Time
		if at.IsZero() {
			at = s.lastTime()
		}
		s.completeRound(abs64(prev), o.Tag, at)
		if p.canOpen() {
			p.openOrder(side, model.TagReopen)
		}
	}
}

// convertReverse 空仓到一手：反向挂单改作平仓单，休眠的唤醒；没有则新挂一笔
func (p *makerPolicy) convertReverse(side model.Side, size int64) {
	s := p.s
	ro := s.orders.FindBySide(model.RoleMain, side)
	if ro == nil {
		p.place(side, size, model.TagClose, false, false)
		return
	}
	ro.Tag = model.TagClose
	switch {
	case ro.Valid(), ro.Status == model.StatusModifying:
		s.orders.Modify(ro, p.orderPrice(side, false), size)
	case ro.Status == model.StatusSleep:
		s.orders.Modify(ro, p.orderPrice(side, false), size)
		s.orders.Wake(ro)
	default:
		s.logger.Debug("反向挂单正在撤单", zap.String("ref", ro.Ref), zap.String("status", string(ro.Status)))
	}
}

func (p *makerPolicy) onHedgeFill(o *model.Order, r model.ExecReport, done bool) {}

func (p *makerPolicy) override(slot int, v float64) {
	switch slot {
	case model.SlotUpDiff:
		p.bands.Up = v
	case model.SlotDownDiff:
		p.bands.Down = v
	default:
		p.s.logger.Warn("做市没有止损线，忽略指令槽位", zap.Int("slot", slot))
	}
}

func (p *makerPolicy) view() band.Bands { return p.bands }

func (p *makerPolicy) samples() int { return p.win.Tail() }
