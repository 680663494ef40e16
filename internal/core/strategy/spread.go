package strategy

import (
	"fmt"

	"go.uber.org/zap"

	"stat-arb-engine/internal/core/band"
	"stat-arb-engine/internal/core/model"
	"stat-arb-engine/internal/core/risk"
	"stat-arb-engine/internal/core/window"
)

// softCloseSamples 软平仓使用的短窗口长度
const softCloseSamples = 100

// spreadPolicy 价差套利：围绕滚动均值的单一对称通道
type spreadPolicy struct {
	s     *Strategy
	win   *window.Window
	bands band.Bands
}

func newSpreadPolicy(s *Strategy) *spreadPolicy {
	return &spreadPolicy{
		s:   s,
		win: window.New(s.cfg.TrainSamples, 1),
		bands: band.Bands{
			SpreadThreshold: s.cfg.SpreadThreshold * s.ticks[model.RoleMain],
		},
	}
}

func (p *spreadPolicy) observe(aligned bool) {
	if !aligned {
		return
	}
	sample := p.s.pairMid()
	if err := p.win.Append(sample); err != nil {
		p.s.report(err)
		return
	}
	switch {
	case p.s.state == StateWarmup:
		threshold := p.bands.SpreadThreshold
		p.bands = band.Flat(sample)
		p.bands.SpreadThreshold = threshold
	case p.win.ShouldRecalibrate():
		p.recalibrate()
	}
	p.s.publish(sample, p.bands)
}

func (p *spreadPolicy) ready() bool { return p.win.Ready() }

func (p *spreadPolicy) calibrate() error {
	if !p.win.CanCalibrate() {
		return fmt.Errorf("%w: 需要 %d 个，当前 %d 个", ErrInsufficientSamples, p.win.TrainSamples(), p.win.Tail())
	}
	p.recalibrate()
	return nil
}

func (p *spreadPolicy) recalibrate() {
	samples := p.win.Trailing(0, p.win.TrainSamples())
	p.bands = band.Calibrate(samples, p.s.bandParams(true), p.s.roundFeePoint())
	p.win.Consume()
	p.s.logger.Info("标定完成",
		zap.Float64("mean", p.bands.Mean),
		zap.Float64("std", p.bands.Std),
		zap.Float64("up", p.bands.Up),
		zap.Float64("down", p.bands.Down),
		zap.Float64("spread_threshold", p.bands.SpreadThreshold),
		zap.Float64("stop_loss_up", p.bands.StopLossUp),
		zap.Float64("stop_loss_down", p.bands.StopLossDown),
		zap.Float64("round_fee", p.bands.RoundFee),
		zap.Int("tail", p.win.Tail()),
	)
}

func (p *spreadPolicy) run(aligned bool) {
	if !aligned || p.riskExit() {
		return
	}
	if p.s.risk.CanOpen() && p.openLogic() {
		return
	}
	p.closeLogic()
}

func (p *spreadPolicy) flatten(aligned bool) {
	if aligned && !p.riskExit() {
		p.closeLogic()
	}
}

// openLogic 返回是否命中开仓条件（命中即不再做平仓判断）
func (p *spreadPolicy) openLogic() bool {
	s := p.s
	if abs64(s.ledger.Position(model.RoleMain)) >= s.maxPos {
		return false
	}
	side := p.openSide()
	if side == model.SideNone {
		return false
	}
	s.Open(side)
	return true
}

// openSide 主腿卖：main.ask - hedge.ask >= up；主腿买：main.bid - hedge.bid <= down
// 对冲腿对应一侧的挂单量不足时不开。
func (p *spreadPolicy) openSide() model.Side {
	main, hedge := &p.s.legs[model.RoleMain], &p.s.legs[model.RoleHedge]
	minSize := p.s.cfg.MinHedgeSize
	if main.Asks[0]-hedge.Asks[0] >= p.bands.Up && hedge.AskSizes[0] >= minSize {
		return model.SideSell
	}
	if main.Bids[0]-hedge.Bids[0] <= p.bands.Down && hedge.BidSizes[0] >= minSize {
		return model.SideBuy
	}
	return model.SideNone
}

// riskExit 止损与持仓超时，先于开平仓判断
// 返回: 是否已强平
func (p *spreadPolicy) riskExit() bool {
	s := p.s
	pos := s.ledger.Position(model.RoleMain)
	if pos == 0 || s.closing() {
		return false
	}

	if s.currentSpread() <= p.bands.SpreadThreshold && risk.StopLossHit(pos, s.pairMid(), p.bands) {
		s.logger.Warn("触发止损",
			zap.Int64("position", pos),
			zap.Float64("pair_mid", s.pairMid()),
			zap.Float64("stop_loss_up", p.bands.StopLossUp),
			zap.Float64("stop_loss_down", p.bands.StopLossDown),
		)
		s.ForceFlat()
		if s.risk.RecordStopLoss() {
			s.halt("止损次数达到上限")
		}
		return true
	}

	if s.risk.TimeUp(s.nowSec()) {
		s.logger.Warn("持仓时间超限",
			zap.Int64("build_sec", s.risk.BuildSec()),
			zap.Int64("now_sec", s.nowSec()),
			zap.Float64("pair_mid", s.pairMid()),
		)
		s.ForceFlat()
		return true
	}
	return false
}

func (p *spreadPolicy) closeLogic() {
	s := p.s
	pos := s.ledger.Position(model.RoleMain)
	if pos == 0 || s.closing() {
		return
	}
	if p.hitMean(pos) {
		s.Close()
	}
}

// hitMean 最新样本是否已回到均值另一侧（含半个盘口价差）
func (p *spreadPolicy) hitMean(pos int64) bool {
	sample, ok := p.win.Last(0)
	if !ok {
		return false
	}
	ref := p.closeMean()
	half := p.s.currentSpread() / 2
	if pos > 0 {
		return sample-half >= ref
	}
	return sample+half <= ref
}

// closeMean 平仓参考均值；软平仓时混合最近 100 个样本的均值
func (p *spreadPolicy) closeMean() float64 {
	if !p.s.cfg.SoftClose || p.win.Tail() < softCloseSamples {
		return p.bands.Mean
	}
	recent, _ := window.MeanStd(p.win.Trailing(0, softCloseSamples))
	return (recent + p.bands.Mean) / 2
}

func (p *spreadPolicy) moderate(role model.Role, aligned bool) {
	p.s.moderateBlock()
}

func (p *spreadPolicy) onMainFill(o *model.Order, r model.ExecReport, prev, next int64) {
	p.s.sendHedge(o, r, o.Tag)
}

func (p *spreadPolicy) onHedgeFill(o *model.Order, r model.ExecReport, done bool) {
	if !done {
		return
	}
	s := p.s
	if !model.IsCloseTag(o.Tag) {
		p.win.Consume()
		return
	}
	at := r.Time
	if at.IsZero() {
		at = s.lastTime()
	}
	s.completeRound(o.Size, o.Tag, at)
	if p.win.CanCalibrate() {
		p.recalibrate()
	}
	if s.cfg.AddMargin != 0 {
		p.bands = p.bands.Widen(s.cfg.AddMargin * s.ticks[model.RoleMain])
	}
}

func (p *spreadPolicy) start() {}

func (p *spreadPolicy) resume() { p.win.Consume() }

func (p *spreadPolicy) enterFlat() {
	if p.s.ledger.Position(model.RoleMain) != 0 {
		p.s.ForceFlat()
	}
}

func (p *spreadPolicy) override(slot int, v float64) {
	switch slot {
	case model.SlotUpDiff:
		p.bands.Up = v
	case model.SlotDownDiff:
		p.bands.Down = v
	case model.SlotStopLossUp:
		p.bands.StopLossUp = v
		p.bands.HasStopLoss = true
	case model.SlotStopLossDown:
		p.bands.StopLossDown = v
		p.bands.HasStopLoss = true
	}
}

func (p *spreadPolicy) view() band.Bands { return p.bands }

func (p *spreadPolicy) samples() int { return p.win.Tail() }
