// Package paper 实现模拟成交网关。
// 重要：仅用于研究/验证，严禁真实下单。
package paper

import (
	"go.uber.org/zap"

	"stat-arb-engine/internal/core/model"
)

// Gateway 模拟成交网关（单写者）
// 新单与改单立即确认；价格可与最新盘口成交时按挂单价全部成交，否则挂着等后续行情。
// 回报先进入队列，由事件循环通过 Drain 取出再分发，避免在策略回调中重入。
type Gateway struct {
	// books 按合约缓存最新行情
	books map[string]*model.MarketSnapshot
	// resting 在途挂单（key: 订单引用）
	resting map[string]*model.Order
	// seq 挂单顺序，保证撮合的确定性
	seq []string
	// queue 待分发的回报
	queue []model.ExecReport

	logger *zap.Logger
}

// NewGateway 创建模拟成交网关
func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{
		books:   make(map[string]*model.MarketSnapshot),
		resting: make(map[string]*model.Order),
		logger:  logger.Named("paper"),
	}
}

// SendOrder 实现 orders.Sender
func (g *Gateway) SendOrder(req model.OrderRequest) {
	o := req.Order
	switch req.Action {
	case model.ActionNew:
		if _, ok := g.resting[o.Ref]; !ok {
			g.seq = append(g.seq, o.Ref)
		}
		g.resting[o.Ref] = &o
		g.emit(model.ExecAccepted, &o, o.Price, 0)
		g.tryFill(&o)
	case model.ActionModify:
		cur, ok := g.resting[o.Ref]
		if !ok {
			// 已成交或已撤销
			g.emit(model.ExecRejected, &o, o.Price, 0)
			return
		}
		cur.Price = o.Price
		cur.Size = o.Size
		g.emit(model.ExecAccepted, cur, cur.Price, 0)
		g.tryFill(cur)
	case model.ActionCancel:
		cur, ok := g.resting[o.Ref]
		if !ok {
			return
		}
		g.remove(cur.Ref)
		g.emit(model.ExecCancelled, cur, cur.Price, 0)
	default:
		g.logger.Warn("未知订单动作", zap.String("action", string(req.Action)), zap.String("ref", o.Ref))
	}
}

// OnMarketData 更新盘口并撮合该合约上的挂单
func (g *Gateway) OnMarketData(snap *model.MarketSnapshot) {
	if !snap.IsGood() {
		return
	}
	book := *snap
	g.books[snap.Ticker] = &book
	for _, ref := range append([]string(nil), g.seq...) {
		if o, ok := g.resting[ref]; ok && o.Ticker == snap.Ticker {
			g.tryFill(o)
		}
	}
}

// Drain 取出全部待分发回报
func (g *Gateway) Drain() []model.ExecReport {
	out := g.queue
	g.queue = nil
	return out
}

// Resting 在途挂单数
func (g *Gateway) Resting() int { return len(g.resting) }

// tryFill 挂单价穿过盘口时全部成交
func (g *Gateway) tryFill(o *model.Order) {
	book := g.books[o.Ticker]
	if book == nil || !marketable(o.Side, o.Price, book) {
		return
	}
	remaining := o.Size - o.TradedSize
	if remaining <= 0 {
		return
	}
	o.TradedSize = o.Size
	g.remove(o.Ref)
	g.emit(model.ExecFilled, o, o.Price, remaining)
	g.logger.Debug("模拟成交",
		zap.String("ref", o.Ref),
		zap.String("ticker", o.Ticker),
		zap.String("side", string(o.Side)),
		zap.Float64("price", o.Price),
		zap.Int64("size", remaining),
	)
}

// marketable 买价不低于卖一，或卖价不高于买一
func marketable(side model.Side, price float64, book *model.MarketSnapshot) bool {
	switch side {
	case model.SideBuy:
		return price >= book.Asks[0]
	case model.SideSell:
		return price <= book.Bids[0]
	default:
		return false
	}
}

func (g *Gateway) emit(typ model.ExecType, o *model.Order, price float64, size int64) {
	var ts model.Timeval
	if book := g.books[o.Ticker]; book != nil {
		ts = book.Time
	}
	g.queue = append(g.queue, model.ExecReport{
		Type:     typ,
		OrderRef: o.Ref,
		Ticker:   o.Ticker,
		Side:     o.Side,
		Price:    price,
		Size:     size,
		Time:     ts,
	})
}

func (g *Gateway) remove(ref string) {
	delete(g.resting, ref)
	for i, r := range g.seq {
		if r == ref {
			g.seq = append(g.seq[:i], g.seq[i+1:]...)
			return
		}
	}
}
