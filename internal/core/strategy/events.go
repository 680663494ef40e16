package strategy

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"stat-arb-engine/internal/core/align"
	"stat-arb-engine/internal/core/model"
)

// minCommandValue 指令槽位的有效阈值
const minCommandValue = 1e-8

// OnMarketData 处理一条行情
// 未对齐的行情只更新缓存，不参与交易判断。
func (s *Strategy) OnMarketData(snap *model.MarketSnapshot) {
	role, ok := s.roleOf(snap.Ticker)
	if !ok {
		s.report(fmt.Errorf("%w: 行情 %s", ErrUnknownTicker, snap.Ticker))
		return
	}
	if !snap.IsGood() {
		s.logger.Debug("忽略不完整行情", zap.String("ticker", snap.Ticker))
		return
	}
	s.legs[role] = *snap
	if s.risk.BuildSec() == 0 {
		// 持仓来自账户快照时，在第一笔行情上开始计时
		if hp := s.ledger.Position(model.RoleHedge); hp != 0 {
			s.risk.OnPosition(0, hp, s.nowSec())
		}
	}

	main, hedge := s.legs[model.RoleMain].Time, s.legs[model.RoleHedge].Time
	if s.skew != nil && !main.IsZero() && !hedge.IsZero() {
		s.skew.Observe(s.name, align.SkewUs(main, hedge))
	}
	aligned := s.isAligned()

	s.policy.observe(aligned)

	switch s.state {
	case StateWarmup:
		if s.positionReady && s.legsGood() && s.policy.ready() {
			if err := s.Start(); err != nil {
				s.report(err)
			}
		}
	case StateRunning:
		s.policy.moderate(role, aligned)
		if s.state == StateRunning {
			s.policy.run(aligned)
		}
	case StateFlatting:
		s.policy.moderate(role, aligned)
		if s.state == StateFlatting {
			s.policy.flatten(aligned)
		}
	case StatePaused:
		if role == model.RoleHedge {
			s.policy.moderate(role, aligned)
		}
	}
}

// OnExecReport 处理订单回报
// 停止状态下仍记账，但不会发出新订单。
func (s *Strategy) OnExecReport(r model.ExecReport) {
	switch r.Type {
	case model.ExecAccepted:
		s.orders.OnAccepted(r.OrderRef, r.Price)
	case model.ExecFilled:
		s.onFilled(r)
	case model.ExecCancelled:
		o, breached := s.orders.OnCancelled(r.OrderRef)
		if o == nil {
			return
		}
		s.logger.Debug("撤单确认",
			zap.String("ref", o.Ref),
			zap.String("role", o.Role.String()),
			zap.Int("cancels", s.orders.CancelCount(o.Role)),
		)
		if breached {
			s.halt("撤单次数超过上限")
		}
	case model.ExecRejected:
		if o := s.orders.OnRejected(r.OrderRef); o != nil {
			s.logger.Warn("订单被拒", zap.String("ref", o.Ref), zap.String("tag", o.Tag))
		}
	}
}

func (s *Strategy) onFilled(r model.ExecReport) {
	o, done := s.orders.OnFilled(r.OrderRef, r.Size)
	role, ok := s.roleOf(r.Ticker)
	if !ok {
		s.report(fmt.Errorf("%w: 成交 %s", ErrUnknownTicker, r.Ticker))
		return
	}

	side := r.Side
	if o != nil {
		role = o.Role
		side = o.Side
	}
	prev, next := s.ledger.Apply(role, side, r.Size, r.Price)
	s.accrueFee(role, r.Price, r.Size, abs64(next) < abs64(prev))

	if role == model.RoleHedge {
		s.risk.OnPosition(prev, next, s.nowSec())
	}

	s.logger.Info("成交",
		zap.String("ref", r.OrderRef),
		zap.String("role", role.String()),
		zap.String("side", string(side)),
		zap.Int64("size", r.Size),
		zap.Float64("price", r.Price),
		zap.Int64("position", next),
	)

	if o == nil {
		// 强平兜底清空后才到达的回报
		s.report(fmt.Errorf("%w: %s %s", ErrUnknownOrder, r.Ticker, r.OrderRef))
		return
	}
	if role == model.RoleMain {
		s.policy.onMainFill(o, r, prev, next)
	} else {
		s.policy.onHedgeFill(o, r, done)
	}
}

// OnPositionEnd 持仓同步完成
func (s *Strategy) OnPositionEnd() {
	s.positionReady = true
	s.logger.Info("持仓同步完成",
		zap.Int64("main", s.ledger.Position(model.RoleMain)),
		zap.Int64("hedge", s.ledger.Position(model.RoleHedge)),
	)
}

// SeedPosition 用账户快照初始化持仓
// 返回: 合约不属于本策略时返回 false
func (s *Strategy) SeedPosition(ticker string, position int64, avgCost float64) bool {
	role, ok := s.roleOf(ticker)
	if !ok {
		return false
	}
	s.ledger.Seed(role, position, avgCost)
	if role == model.RoleHedge && s.nowSec() > 0 {
		s.risk.OnPosition(0, position, s.nowSec())
	}
	return true
}

// HandleCommand 处理外部指令
func (s *Strategy) HandleCommand(cmd model.Command) {
	s.logger.Info("收到指令", zap.String("action", string(cmd.Action)), zap.Float64s("values", cmd.Values[:]))
	switch cmd.Action {
	case model.CommandSet:
		for slot, v := range cmd.Values {
			if math.Abs(v) > minCommandValue {
				s.policy.override(slot, v)
			}
		}
	case model.CommandPause:
		s.Pause()
	case model.CommandResume:
		s.Resume()
	case model.CommandFlat:
		s.Flat()
	case model.CommandStop:
		s.Stop()
	default:
		s.report(fmt.Errorf("未知指令: %q", cmd.Action))
	}
}

// Start 强制标定并进入运行状态
// 样本不足属于配置错误：策略停止并返回 ErrInsufficientSamples。
func (s *Strategy) Start() error {
	if s.state == StateStopped {
		return nil
	}
	if err := s.policy.calibrate(); err != nil {
		s.halt("标定失败")
		return &ConfigError{Strategy: s.name, Field: "train_samples", Err: err}
	}
	s.state = StateRunning
	s.logger.Info("策略启动", zap.Int("samples", s.policy.samples()))
	s.policy.start()
	return nil
}

// Pause 暂停：撤销主腿全部订单
func (s *Strategy) Pause() {
	if s.state != StateRunning && s.state != StateFlatting {
		return
	}
	s.state = StatePaused
	s.orders.CancelAll(model.RoleMain)
	s.logger.Info("策略暂停")
}

// Resume 从暂停恢复
func (s *Strategy) Resume() {
	if s.state != StatePaused {
		return
	}
	s.state = StateRunning
	s.logger.Info("策略恢复")
	s.policy.resume()
}

// Flat 进入只平不开并立即平仓
func (s *Strategy) Flat() {
	if s.state == StateStopped || s.state == StateWarmup {
		return
	}
	s.state = StateFlatting
	s.logger.Info("策略只平不开")
	s.policy.enterFlat()
}

// Stop 终止策略（不可恢复）
func (s *Strategy) Stop() {
	s.halt("外部停止")
}

// halt 进入终止状态并撤销主腿订单；只生效一次
func (s *Strategy) halt(reason string) {
	if s.state == StateStopped {
		return
	}
	s.state = StateStopped
	n := s.orders.CancelAll(model.RoleMain)
	s.logger.Warn("策略停止",
		zap.String("reason", reason),
		zap.Int("cancelled", n),
		zap.Int64("main", s.ledger.Position(model.RoleMain)),
		zap.Int64("hedge", s.ledger.Position(model.RoleHedge)),
	)
}

// accrueFee 累计本回合手续费
func (s *Strategy) accrueFee(role model.Role, price float64, size int64, closing bool) {
	fee, err := s.contracts.Fee(s.tickers[role], price, size, closing, s.cfg.NoCloseToday)
	if err != nil {
		s.report(fmt.Errorf("计算手续费失败: %w", err))
		return
	}
	s.roundFee += fee
}

// completeRound 记录一个完成的回合
func (s *Strategy) completeRound(size int64, reason string, at model.Timeval) model.Round {
	seq := s.risk.RecordRound()
	var gross float64
	for _, r := range model.Roles {
		realized := s.ledger.Realized(r)
		gross += (realized - s.realizedMark[r]) * s.multipliers[r]
		s.realizedMark[r] = realized
	}
	round := model.Round{
		Strategy:    s.name,
		MainTicker:  s.tickers[model.RoleMain],
		HedgeTicker: s.tickers[model.RoleHedge],
		Seq:         seq,
		Size:        size,
		GrossPnL:    gross,
		Fee:         s.roundFee,
		NetPnL:      gross - s.roundFee,
		Reason:      reason,
		ClosedAt:    at,
	}
	s.roundFee = 0

	s.logger.Info("回合结束",
		zap.Int("seq", round.Seq),
		zap.Int64("size", round.Size),
		zap.Float64("gross_pnl", round.GrossPnL),
		zap.Float64("fee", round.Fee),
		zap.Float64("net_pnl", round.NetPnL),
		zap.String("reason", reason),
	)
	for _, rec := range s.recorders {
		if err := rec.RecordRound(round); err != nil {
			s.report(fmt.Errorf("记录回合失败: %w", err))
		}
	}
	return round
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
