// Package registry 维护合约到订阅策略的注册表，并在单个事件循环中分发事件。
// 使用单写者模式避免锁和竞态条件。
package registry

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"stat-arb-engine/internal/core/model"
	"stat-arb-engine/internal/core/orders"
)

// PositionEnd 持仓同步完成事件的保留 key
const PositionEnd = "positionend"

var (
	// ErrDuplicateName 策略名重复
	ErrDuplicateName = errors.New("策略名重复")
	// ErrUnknownStrategy 指令指向的策略不存在
	ErrUnknownStrategy = errors.New("未知策略")
	// ErrUnroutable 回报无法确定所属策略
	ErrUnroutable = errors.New("回报无法路由")
)

// Subscriber 可注册的策略实例
type Subscriber interface {
	Name() string
	Tickers() []string
	OnMarketData(snap *model.MarketSnapshot)
	OnExecReport(r model.ExecReport)
	OnPositionEnd()
	HandleCommand(cmd model.Command)
	SeedPosition(ticker string, position int64, avgCost float64) bool
}

// owner 在途订单的归属
type owner struct {
	strategy string
	size     int64
	traded   int64
}

// Registry 注册表与分发器（单写者）
// 注意：所有方法默认由事件循环单 goroutine 调用。
type Registry struct {
	// subs 第一层 key: 合约（或 PositionEnd），value: 订阅者（按注册顺序）
	subs map[string][]Subscriber
	// byName 策略名到实例
	byName map[string]Subscriber
	// owners 订单引用到归属策略
	owners map[string]*owner

	logger *zap.Logger
}

// New 创建注册表
func New(logger *zap.Logger) *Registry {
	return &Registry{
		subs:   make(map[string][]Subscriber),
		byName: make(map[string]Subscriber),
		owners: make(map[string]*owner),
		logger: logger.Named("registry"),
	}
}

// Register 在主腿、对冲腿与 PositionEnd 下注册策略
func (r *Registry) Register(s Subscriber) error {
	name := s.Name()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.byName[name] = s
	for _, ticker := range append(s.Tickers(), PositionEnd) {
		r.subs[ticker] = append(r.subs[ticker], s)
	}
	r.logger.Info("策略已注册", zap.String("strategy", name), zap.Strings("tickers", s.Tickers()))
	return nil
}

// Tickers 需要订阅行情的全部合约（不含保留 key），按字典序
func (r *Registry) Tickers() []string {
	out := make([]string, 0, len(r.subs))
	for ticker := range r.subs {
		if ticker != PositionEnd {
			out = append(out, ticker)
		}
	}
	sort.Strings(out)
	return out
}

// Subscribers 某个合约的订阅者
// 返回的切片应视为只读。
func (r *Registry) Subscribers(ticker string) []Subscriber {
	return r.subs[ticker]
}

// Strategy 按名称查找
func (r *Registry) Strategy(name string) (Subscriber, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Track 记录订单请求的归属，用于回报路由
func (r *Registry) Track(req model.OrderRequest) {
	o := req.Order
	switch req.Action {
	case model.ActionNew, model.ActionModify:
		own, ok := r.owners[o.Ref]
		if !ok {
			own = &owner{strategy: o.Strategy}
			r.owners[o.Ref] = own
		}
		own.size = o.Size
	}
}

// Sender 包装订单下游：先记录归属再转发
func (r *Registry) Sender(next orders.Sender) orders.Sender {
	return trackingSender{r: r, next: next}
}

type trackingSender struct {
	r    *Registry
	next orders.Sender
}

func (t trackingSender) SendOrder(req model.OrderRequest) {
	t.r.Track(req)
	t.next.SendOrder(req)
}

// DispatchMarketData 把行情交给订阅该合约的全部策略
// 返回: 收到行情的策略数
func (r *Registry) DispatchMarketData(snap *model.MarketSnapshot) int {
	subs := r.subs[snap.Ticker]
	for _, s := range subs {
		s.OnMarketData(snap)
	}
	return len(subs)
}

// DispatchReport 把回报交给下单的策略
// 归属未知时，只有一个订阅者的合约直接交给它，否则返回 ErrUnroutable。
func (r *Registry) DispatchReport(rep model.ExecReport) error {
	target, err := r.route(rep)
	if err != nil {
		return err
	}
	r.settle(rep)
	target.OnExecReport(rep)
	return nil
}

func (r *Registry) route(rep model.ExecReport) (Subscriber, error) {
	if own, ok := r.owners[rep.OrderRef]; ok {
		if s, ok := r.byName[own.strategy]; ok {
			return s, nil
		}
	}
	subs := r.subs[rep.Ticker]
	if len(subs) == 1 {
		return subs[0], nil
	}
	return nil, fmt.Errorf("%w: %s %s（订阅者 %d 个）", ErrUnroutable, rep.Ticker, rep.OrderRef, len(subs))
}

// settle 订单终结后释放归属记录
func (r *Registry) settle(rep model.ExecReport) {
	own, ok := r.owners[rep.OrderRef]
	if !ok {
		return
	}
	switch rep.Type {
	case model.ExecFilled:
		own.traded += rep.Size
		if own.traded >= own.size {
			delete(r.owners, rep.OrderRef)
		}
	case model.ExecCancelled, model.ExecRejected:
		// 休眠单被唤醒时会以同一引用重新登记
		delete(r.owners, rep.OrderRef)
	}
}

// DispatchPositionEnd 通知全部策略持仓同步完成
func (r *Registry) DispatchPositionEnd() {
	for _, s := range r.subs[PositionEnd] {
		s.OnPositionEnd()
	}
}

// DispatchCommand 把指令交给指定策略；策略名为空时广播
func (r *Registry) DispatchCommand(cmd model.Command) error {
	if cmd.Strategy == "" {
		for _, s := range r.subs[PositionEnd] {
			s.HandleCommand(cmd)
		}
		return nil
	}
	s, ok := r.byName[cmd.Strategy]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStrategy, cmd.Strategy)
	}
	s.HandleCommand(cmd)
	return nil
}

// SeedPosition 把账户持仓交给持有该合约的全部策略
// 返回: 接受该持仓的策略数
func (r *Registry) SeedPosition(ticker string, position int64, avgCost float64) int {
	n := 0
	for _, s := range r.subs[ticker] {
		if s.SeedPosition(ticker, position, avgCost) {
			n++
		}
	}
	return n
}

// Outstanding 仍在跟踪归属的订单数
func (r *Registry) Outstanding() int { return len(r.owners) }
