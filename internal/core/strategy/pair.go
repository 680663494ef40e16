package strategy

import (
	"fmt"

	"go.uber.org/zap"

	"stat-arb-engine/internal/core/band"
	"stat-arb-engine/internal/core/model"
	"stat-arb-engine/internal/core/window"
)

const (
	seriesLong = iota
	seriesShort
)

// pairPolicy 双通道配对交易
// long = main.ask - hedge.bid，short = main.bid - hedge.ask，各自独立标定。
type pairPolicy struct {
	s   *Strategy
	win *window.Window
	// long/short 两条序列的通道
	long  band.Bands
	short band.Bands
	// spreadThreshold 可交易的最大盘口价差；0 表示不限制
	spreadThreshold float64
}

func newPairPolicy(s *Strategy) *pairPolicy {
	return &pairPolicy{
		s:               s,
		win:             window.New(s.cfg.TrainSamples, 2),
		spreadThreshold: s.cfg.SpreadThreshold * s.ticks[model.RoleMain],
	}
}

func (p *pairPolicy) spreadGood() bool {
	return p.spreadThreshold <= 0 || p.s.currentSpread() <= p.spreadThreshold
}

// prices 当前 long/short 价格
func (p *pairPolicy) prices() (long, short float64) {
	main, hedge := &p.s.legs[model.RoleMain], &p.s.legs[model.RoleHedge]
	return main.Asks[0] - hedge.Bids[0], main.Bids[0] - hedge.Asks[0]
}

func (p *pairPolicy) observe(aligned bool) {
	if !aligned || !p.spreadGood() {
		return
	}
	long, short := p.prices()
	if err := p.win.Append(long, short); err != nil {
		p.s.report(err)
		return
	}
	if p.s.state != StateWarmup && p.win.ShouldRecalibrate() {
		p.recalibrate()
	}
	p.s.publish(long, p.view())
}

func (p *pairPolicy) ready() bool { return p.win.Ready() }

func (p *pairPolicy) calibrate() error {
	if !p.win.CanCalibrate() {
		return fmt.Errorf("%w: 需要 %d 个，当前 %d 个", ErrInsufficientSamples, p.win.TrainSamples(), p.win.Tail())
	}
	p.recalibrate()
	return nil
}

func (p *pairPolicy) recalibrate() {
	n := p.win.TrainSamples()
	fee := p.s.roundFeePoint()
	params := p.s.bandParams(false)
	p.long = band.Calibrate(p.win.Trailing(seriesLong, n), params, fee)
	p.short = band.Calibrate(p.win.Trailing(seriesShort, n), params, fee)
	p.win.Consume()
	p.s.logger.Info("标定完成",
		zap.Float64("long_up", p.long.Up),
		zap.Float64("long_mean", p.long.Mean),
		zap.Float64("long_down", p.long.Down),
		zap.Float64("short_up", p.short.Up),
		zap.Float64("short_mean", p.short.Mean),
		zap.Float64("short_down", p.short.Down),
		zap.Int("tail", p.win.Tail()),
	)
}

func (p *pairPolicy) run(aligned bool) {
	if !aligned || !p.spreadGood() || p.timeExit() {
		return
	}
	if p.s.risk.CanOpen() && p.openLogic() {
		return
	}
	p.closeLogic()
}

func (p *pairPolicy) flatten(aligned bool) {
	if aligned && p.spreadGood() && !p.timeExit() {
		p.closeLogic()
	}
}

// timeExit 持仓超时强平，先于开平仓判断
func (p *pairPolicy) timeExit() bool {
	s := p.s
	if s.ledger.Position(model.RoleMain) == 0 || s.closing() || !s.risk.TimeUp(s.nowSec()) {
		return false
	}
	s.logger.Warn("持仓时间超限",
		zap.Int64("build_sec", s.risk.BuildSec()),
		zap.Int64("now_sec", s.nowSec()),
	)
	s.ForceFlat()
	return true
}

// openLogic long 触及 short 通道下轨则买，short 触及 long 通道上轨则卖；同时触发不开仓
func (p *pairPolicy) openLogic() bool {
	s := p.s
	if abs64(s.ledger.Position(model.RoleMain)) >= s.maxPos {
		return false
	}
	long, lok := p.win.Last(seriesLong)
	short, sok := p.win.Last(seriesShort)
	if !lok || !sok {
		return false
	}
	buy := long <= p.short.Down
	sell := short >= p.long.Up
	switch {
	case buy && sell:
		s.logger.Debug("买卖条件同时成立，不开仓",
			zap.Float64("long", long),
			zap.Float64("short", short),
		)
		return false
	case buy:
		s.Open(model.SideBuy)
	case sell:
		s.Open(model.SideSell)
	default:
		return false
	}
	return true
}

func (p *pairPolicy) closeLogic() {
	s := p.s
	pos := s.ledger.Position(model.RoleMain)
	if pos == 0 || s.closing() {
		return
	}
	long, _ := p.win.Last(seriesLong)
	short, _ := p.win.Last(seriesShort)
	if (pos > 0 && short > p.short.Mean) || (pos < 0 && long < p.long.Mean) {
		s.Close()
	}
}

func (p *pairPolicy) moderate(role model.Role, aligned bool) {
	p.s.moderateBlock()
}

func (p *pairPolicy) onMainFill(o *model.Order, r model.ExecReport, prev, next int64) {
	p.s.sendHedge(o, r, o.Tag)
}

func (p *pairPolicy) onHedgeFill(o *model.Order, r model.ExecReport, done bool) {
	if !done {
		return
	}
	if !model.IsCloseTag(o.Tag) {
		p.win.Consume()
		return
	}
	at := r.Time
	if at.IsZero() {
		at = p.s.lastTime()
	}
	p.s.completeRound(o.Size, o.Tag, at)
	if p.win.CanCalibrate() {
		p.recalibrate()
	}
}

func (p *pairPolicy) start() {}

func (p *pairPolicy) resume() { p.win.Consume() }

func (p *pairPolicy) enterFlat() {
	if p.s.ledger.Position(model.RoleMain) != 0 {
		p.s.ForceFlat()
	}
}

func (p *pairPolicy) override(slot int, v float64) {
	switch slot {
	case model.SlotUpDiff:
		p.long.Up = v
	case model.SlotDownDiff:
		p.short.Down = v
	default:
		p.s.logger.Warn("配对交易没有止损线，忽略指令槽位", zap.Int("slot", slot))
	}
}

// view long 通道的均值与上轨，short 通道的下轨
func (p *pairPolicy) view() band.Bands {
	return band.Bands{
		Mean: p.long.Mean,
		Up:   p.long.Up,
		Down: p.short.Down,
	}
}

func (p *pairPolicy) samples() int { return p.win.Tail() }
