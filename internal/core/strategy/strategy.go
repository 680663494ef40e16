// Package strategy 实现统计套利决策核心。
// 一个参数化的 Strategy 持有样本窗口、通道、持仓账本、订单管理与风控，
// 三种策略类型（价差套利、双通道配对、做市）只提供各自的开平仓决策。
//
// 所有方法都假定在单个事件循环 goroutine 中调用，执行到完成，不阻塞。
package strategy

import (
	"fmt"

	"go.uber.org/zap"

	"stat-arb-engine/internal/config"
	"stat-arb-engine/internal/contract"
	"stat-arb-engine/internal/core/align"
	"stat-arb-engine/internal/core/band"
	"stat-arb-engine/internal/core/ledger"
	"stat-arb-engine/internal/core/model"
	"stat-arb-engine/internal/core/orders"
	"stat-arb-engine/internal/core/risk"
)

// MaxCloseTry 强平的最大尝试次数
const MaxCloseTry = 10

// State 策略生命周期状态
type State string

const (
	// StateWarmup 预热：只积累样本
	StateWarmup State = "warmup"
	// StateRunning 正常运行
	StateRunning State = "running"
	// StatePaused 暂停：不做任何开平仓判断
	StatePaused State = "paused"
	// StateFlatting 只平不开
	StateFlatting State = "flatting"
	// StateStopped 终止，不再下单
	StateStopped State = "stopped"
)

// Contracts 合约与手续费查询
type Contracts interface {
	Lookup(name string) (contract.Info, error)
	ActiveTickers(name, date string) ([]string, error)
	FeePoint(ticker string, openPrice float64, openSize int64, closePrice float64, closeSize int64, noCloseToday bool) (contract.FeePoint, error)
	Fee(ticker string, price float64, size int64, closing, noCloseToday bool) (float64, error)
}

// SnapshotSender UI 通道快照下游
type SnapshotSender interface {
	SendSnapshot(snap model.BandSnapshot)
}

// RoundRecorder 回合记录下游
type RoundRecorder interface {
	RecordRound(r model.Round) error
}

// SkewObserver 两腿时间差观察者
type SkewObserver interface {
	Observe(strategy string, skewUs int64)
}

// Deps 策略的外部协作者
type Deps struct {
	// Orders 订单下游（必填）
	Orders orders.Sender
	// Contracts 合约查询（必填）
	Contracts Contracts
	// Snapshots UI 快照下游，可为 nil
	Snapshots SnapshotSender
	// Rounds 回合记录下游
	Rounds []RoundRecorder
	// Skew 时间差观察者，可为 nil
	Skew SkewObserver
	// OnError 非致命异常回调；为 nil 时写 error 日志
	OnError func(err error)
	// TradeDate 交易日（YYYY-MM-DD），用于解析可交易合约
	TradeDate string
	// Logger 日志记录器
	Logger *zap.Logger
}

// Info 策略状态摘要（指标输出用）
type Info struct {
	Name          string  `json:"name"`
	Variant       string  `json:"variant"`
	State         State   `json:"state"`
	MainTicker    string  `json:"main_ticker"`
	HedgeTicker   string  `json:"hedge_ticker"`
	MainPosition  int64   `json:"main_position"`
	HedgePosition int64   `json:"hedge_position"`
	Rounds        int     `json:"rounds"`
	StopLossTimes int     `json:"stop_loss_times"`
	MainCancels   int     `json:"main_cancels"`
	HedgeCancels  int     `json:"hedge_cancels"`
	Outstanding   int     `json:"outstanding"`
	Samples       int     `json:"samples"`
	Mean          float64 `json:"mean"`
	Up            float64 `json:"up"`
	Down          float64 `json:"down"`
	Realized      float64 `json:"realized"`
}

// policy 策略类型的决策函数
type policy interface {
	// observe 新行情到达后的样本积累与滚动标定
	observe(aligned bool)
	// ready 预热是否完成
	ready() bool
	// calibrate 强制标定
	calibrate() error
	// run 正常运行时的开平仓判断
	run(aligned bool)
	// flatten 只平不开时的判断
	flatten(aligned bool)
	// moderate 检查某条腿的在途订单
	moderate(role model.Role, aligned bool)
	// onMainFill 主腿成交
	onMainFill(o *model.Order, r model.ExecReport, prev, next int64)
	// onHedgeFill 对冲腿成交
	onHedgeFill(o *model.Order, r model.ExecReport, done bool)
	// start 预热结束后的第一次动作
	start()
	// resume 从暂停恢复
	resume()
	// enterFlat 进入只平不开
	enterFlat()
	// override 手动设置通道参数
	override(slot int, v float64)
	// view 当前主通道（展示与状态输出）
	view() band.Bands
	// samples 已积累样本数
	samples() int
}

// Strategy 一个策略实例
type Strategy struct {
	name    string
	variant string
	cfg     config.StrategyConfig

	// tickers/ticks/multipliers 按腿索引
	tickers     [len(model.Roles)]string
	ticks       [len(model.Roles)]float64
	multipliers [len(model.Roles)]float64
	// legs 每条腿的最新快照
	legs [len(model.Roles)]model.MarketSnapshot

	state         State
	positionReady bool
	// tolerance 对齐容忍度（微秒）
	tolerance int64

	// maxPos 当前最大持仓；startMaxPos 配置值
	maxPos      int64
	startMaxPos int64
	// targetHedgePrice 下主腿单时的对冲腿盘口价
	targetHedgePrice float64

	ledger *ledger.Ledger
	orders *orders.Manager
	risk   *risk.Controller
	policy policy

	contracts Contracts
	snapshots SnapshotSender
	recorders []RoundRecorder
	skew      SkewObserver
	onError   func(err error)
	logger    *zap.Logger

	// roundFee 当前回合累计手续费
	roundFee float64
	// realizedMark 上个回合结束时各腿的已实现盈亏
	realizedMark [len(model.Roles)]float64
}

// New 创建策略实例
// 参数 cfg: 单个策略配置，未填的参数按配置文件的默认值补齐
// 参数 deps: 外部协作者
// 返回: 配置问题以 *ConfigError 返回
func New(cfg config.StrategyConfig, deps Deps) (*Strategy, error) {
	cfgErr := func(field string, err error) error {
		return &ConfigError{Strategy: cfg.UniqueName, Field: field, Err: err}
	}

	switch cfg.Variant {
	case config.VariantSpread, config.VariantPair, config.VariantMaker:
	default:
		return nil, cfgErr("variant", fmt.Errorf("%w: %q", ErrUnknownVariant, cfg.Variant))
	}
	if cfg.UniqueName == "" {
		return nil, cfgErr("unique_name", fmt.Errorf("策略名不能为空"))
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, cfgErr("params", err)
	}
	if deps.Contracts == nil {
		return nil, cfgErr("contract", fmt.Errorf("缺少合约查询"))
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("strategy").With(zap.String("strategy", cfg.UniqueName))

	s := &Strategy{
		name:        cfg.UniqueName,
		variant:     cfg.Variant,
		cfg:         cfg,
		state:       StateWarmup,
		maxPos:      cfg.MaxPosition,
		startMaxPos: cfg.MaxPosition,
		ledger:      ledger.New(),
		contracts:   deps.Contracts,
		snapshots:   deps.Snapshots,
		recorders:   deps.Rounds,
		skew:        deps.Skew,
		onError:     deps.OnError,
		logger:      logger,
	}
	s.positionReady = !cfg.WaitPosition

	cancelLimit, err := s.resolveLegs(deps.TradeDate)
	if err != nil {
		return nil, err
	}

	s.orders = orders.NewManager(s.name, deps.Orders, cancelLimit, logger)
	s.risk = risk.NewController(risk.Limits{
		MaxLossTimes:  cfg.MaxLossTimes,
		MaxHoldingSec: cfg.MaxHoldingSec,
		MaxRound:      cfg.MaxRound,
	})

	switch cfg.Variant {
	case config.VariantSpread:
		s.tolerance = align.ArbToleranceUs
		s.policy = newSpreadPolicy(s)
	case config.VariantPair:
		s.tolerance = align.ArbToleranceUs
		s.policy = newPairPolicy(s)
	case config.VariantMaker:
		s.tolerance = align.MakerToleranceUs
		s.policy = newMakerPolicy(s)
	}

	logger.Info("策略已创建",
		zap.String("variant", s.variant),
		zap.String("main", s.tickers[model.RoleMain]),
		zap.String("hedge", s.tickers[model.RoleHedge]),
		zap.Int64("max_position", s.maxPos),
		zap.Int("cancel_limit", cancelLimit),
	)
	return s, nil
}

// resolveLegs 解析两腿合约与合约参数
// 单一逻辑合约时 tickers[0] 为对冲腿、tickers[1] 为主腿；
// 配置了 hedge_contract 时主腿取主合约的最后一个、对冲腿取对冲合约的第一个。
// 返回: 撤单上限（两腿较小者）
func (s *Strategy) resolveLegs(date string) (int, error) {
	cfg := s.cfg
	mainInfo, err := s.contracts.Lookup(cfg.Contract)
	if err != nil {
		return 0, &ConfigError{Strategy: s.name, Field: "contract", Err: err}
	}
	mainTickers, err := s.contracts.ActiveTickers(cfg.Contract, date)
	if err != nil {
		return 0, &ConfigError{Strategy: s.name, Field: "contract", Err: err}
	}

	hedgeInfo := mainInfo
	if cfg.HedgeContract == "" {
		if len(mainTickers) < 2 {
			return 0, &ConfigError{Strategy: s.name, Field: "contract",
				Err: fmt.Errorf("%w: %s 只有 %d 个", ErrNotEnoughTickers, cfg.Contract, len(mainTickers))}
		}
		s.tickers[model.RoleHedge] = mainTickers[0]
		s.tickers[model.RoleMain] = mainTickers[1]
	} else {
		hedgeInfo, err = s.contracts.Lookup(cfg.HedgeContract)
		if err != nil {
			return 0, &ConfigError{Strategy: s.name, Field: "hedge_contract", Err: err}
		}
		hedgeTickers, err := s.contracts.ActiveTickers(cfg.HedgeContract, date)
		if err != nil {
			return 0, &ConfigError{Strategy: s.name, Field: "hedge_contract", Err: err}
		}
		if len(mainTickers) == 0 || len(hedgeTickers) == 0 {
			return 0, &ConfigError{Strategy: s.name, Field: "hedge_contract",
				Err: fmt.Errorf("%w: %s/%s", ErrNotEnoughTickers, cfg.Contract, cfg.HedgeContract)}
		}
		s.tickers[model.RoleMain] = mainTickers[len(mainTickers)-1]
		s.tickers[model.RoleHedge] = hedgeTickers[0]
	}
	if s.tickers[model.RoleMain] == s.tickers[model.RoleHedge] {
		return 0, &ConfigError{Strategy: s.name, Field: "contract",
			Err: fmt.Errorf("%w: 主腿与对冲腿相同 %s", ErrNotEnoughTickers, s.tickers[model.RoleMain])}
	}

	s.ticks[model.RoleMain] = mainInfo.MinPriceMove
	s.ticks[model.RoleHedge] = hedgeInfo.MinPriceMove
	s.multipliers[model.RoleMain] = mainInfo.Multiplier
	s.multipliers[model.RoleHedge] = hedgeInfo.Multiplier
	for _, r := range model.Roles {
		if s.ticks[r] <= 0 {
			return 0, &ConfigError{Strategy: s.name, Field: "min_price_move",
				Err: fmt.Errorf("%s 最小变动价位必须为正数", s.tickers[r])}
		}
		if s.multipliers[r] <= 0 {
			s.multipliers[r] = 1
		}
	}

	limit := mainInfo.CancelLimit
	if hedgeInfo.CancelLimit > 0 && (limit <= 0 || hedgeInfo.CancelLimit < limit) {
		limit = hedgeInfo.CancelLimit
	}
	return limit, nil
}

// Name 策略名
func (s *Strategy) Name() string { return s.name }

// Variant 策略类型
func (s *Strategy) Variant() string { return s.variant }

// Ticker 某条腿的合约
func (s *Strategy) Ticker(role model.Role) string { return s.tickers[role] }

// Tickers 需要注册的合约（主腿、对冲腿）
func (s *Strategy) Tickers() []string {
	return []string{s.tickers[model.RoleMain], s.tickers[model.RoleHedge]}
}

// State 当前状态
func (s *Strategy) State() State { return s.state }

// Position 某条腿的净持仓
func (s *Strategy) Position(role model.Role) int64 { return s.ledger.Position(role) }

// Status 状态摘要
func (s *Strategy) Status() Info {
	b := s.policy.view()
	return Info{
		Name:          s.name,
		Variant:       s.variant,
		State:         s.state,
		MainTicker:    s.tickers[model.RoleMain],
		HedgeTicker:   s.tickers[model.RoleHedge],
		MainPosition:  s.ledger.Position(model.RoleMain),
		HedgePosition: s.ledger.Position(model.RoleHedge),
		Rounds:        s.risk.Rounds(),
		StopLossTimes: s.risk.StopLossTimes(),
		MainCancels:   s.orders.CancelCount(model.RoleMain),
		HedgeCancels:  s.orders.CancelCount(model.RoleHedge),
		Outstanding:   s.orders.Len(),
		Samples:       s.policy.samples(),
		Mean:          b.Mean,
		Up:            b.Up,
		Down:          b.Down,
		Realized:      s.ledger.TotalRealized(),
	}
}

// roleOf 由合约找到腿
func (s *Strategy) roleOf(ticker string) (model.Role, bool) {
	for _, r := range model.Roles {
		if s.tickers[r] == ticker {
			return r, true
		}
	}
	return 0, false
}

// report 非致命异常
func (s *Strategy) report(err error) {
	if s.onError != nil {
		s.onError(err)
		return
	}
	s.logger.Error("策略异常", zap.Error(err))
}

// nowSec 交易所时间（最新快照的秒）
func (s *Strategy) nowSec() int64 {
	t := s.legs[model.RoleMain].Time.Sec
	if h := s.legs[model.RoleHedge].Time.Sec; h > t {
		t = h
	}
	return t
}

// lastTime 最新快照时间
func (s *Strategy) lastTime() model.Timeval {
	m, h := s.legs[model.RoleMain].Time, s.legs[model.RoleHedge].Time
	if h.Sec > m.Sec || (h.Sec == m.Sec && h.Usec > m.Usec) {
		return h
	}
	return m
}

// isAligned 两腿是否同步
func (s *Strategy) isAligned() bool {
	return align.IsAligned(s.legs[model.RoleMain].Time, s.legs[model.RoleHedge].Time, s.tolerance)
}

// legsGood 两腿快照都可用
func (s *Strategy) legsGood() bool {
	return s.legs[model.RoleMain].IsGood() && s.legs[model.RoleHedge].IsGood()
}

// mid 某条腿的中间价
func (s *Strategy) mid(role model.Role) float64 {
	return s.legs[role].Mid()
}

// pairMid 主腿中间价 - 对冲腿中间价
func (s *Strategy) pairMid() float64 {
	return s.mid(model.RoleMain) - s.mid(model.RoleHedge)
}

// currentSpread 两腿盘口价差之和
func (s *Strategy) currentSpread() float64 {
	return s.legs[model.RoleMain].Spread() + s.legs[model.RoleHedge].Spread()
}

// roundFeePoint 双腿在当前中间价下的开平往返手续费点
func (s *Strategy) roundFeePoint() float64 {
	var total float64
	for _, r := range model.Roles {
		m := s.mid(r)
		fp, err := s.contracts.FeePoint(s.tickers[r], m, 1, m, 1, s.cfg.NoCloseToday)
		if err != nil {
			s.report(fmt.Errorf("计算手续费失败: %w", err))
			continue
		}
		total += fp.Total()
	}
	return total
}

// bandParams 把以价位数配置的参数换算为价格
func (s *Strategy) bandParams(withStopLoss bool) band.Params {
	tick := s.ticks[model.RoleMain]
	p := band.Params{
		RangeWidth: s.cfg.RangeWidth,
		MinRange:   s.cfg.MinRange * tick,
		MinProfit:  s.cfg.MinProfit * tick,
	}
	if withStopLoss {
		p.StopLossMargin = s.cfg.StopLossMargin
	}
	return p
}

// canTrade 是否允许发出新订单
func (s *Strategy) canTrade() bool {
	return s.state != StateStopped
}

// publish 发布 UI 通道快照
func (s *Strategy) publish(sample float64, b band.Bands) {
	if s.snapshots == nil {
		return
	}
	s.snapshots.SendSnapshot(model.BandSnapshot{
		Strategy:     s.name,
		Time:         s.legs[model.RoleHedge].Time,
		Sample:       sample,
		Mean:         b.Mean,
		Up:           b.Up,
		Down:         b.Down,
		StopLossUp:   b.StopLossUp,
		StopLossDown: b.StopLossDown,
		Position:     s.ledger.Position(model.RoleMain),
	})
}
