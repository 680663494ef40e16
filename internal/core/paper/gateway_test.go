// Package paper 模拟成交网关测试
package paper

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"

	"stat-arb-engine/internal/core/model"
)

func book(ticker string, bid, ask float64) *model.MarketSnapshot {
	return &model.MarketSnapshot{
		Ticker:   ticker,
		Bids:     [model.Depth]float64{bid},
		Asks:     [model.Depth]float64{ask},
		BidSizes: [model.Depth]int64{5},
		AskSizes: [model.Depth]int64{5},
		Time:     model.Timeval{Sec: 1700000000, Usec: 1000},
	}
}

func newOrder(ref string, side model.Side, price float64, size int64) model.OrderRequest {
	return model.OrderRequest{
		Action: model.ActionNew,
		Order:  model.Order{Ref: ref, Ticker: "BTC-SWAP", Side: side, Price: price, Size: size, Status: model.StatusSubmitted},
	}
}

func types(reps []model.ExecReport) []model.ExecType {
	out := make([]model.ExecType, len(reps))
	for i, r := range reps {
		out[i] = r.Type
	}
	return out
}

func TestGateway_MarketableFillsImmediately(t *testing.T) {
	g := NewGateway(zap.NewNop())
	g.OnMarketData(book("BTC-SWAP", 100, 100.5))

	g.SendOrder(newOrder("o1", model.SideBuy, 100.5, 2))
	reps := g.Drain()
	if len(reps) != 2 || reps[0].Type != model.ExecAccepted || reps[1].Type != model.ExecFilled {
		t.Fatalf("回报 = %v, want [accepted filled]", types(reps))
	}
	if reps[1].Price != 100.5 || reps[1].Size != 2 || reps[1].Time.Sec != 1700000000 {
		t.Fatalf("成交回报 = %+v", reps[1])
	}
	if g.Resting() != 0 {
		t.Fatalf("成交后不应有挂单")
	}
	if len(g.Drain()) != 0 {
		t.Fatalf("Drain 后队列应为空")
	}
}

func TestGateway_RestingFillsOnLaterBook(t *testing.T) {
	g := NewGateway(zap.NewNop())
	g.OnMarketData(book("BTC-SWAP", 100, 100.5))

	g.SendOrder(newOrder("o1", model.SideSell, 100.25, 1))
	if reps := g.Drain(); len(reps) != 1 || reps[0].Type != model.ExecAccepted {
		t.Fatalf("回报 = %v, want [accepted]", types(reps))
	}

	g.OnMarketData(book("ETH-SWAP", 200, 201))
	if len(g.Drain()) != 0 || g.Resting() != 1 {
		t.Fatalf("其他合约行情不应撮合")
	}

	g.OnMarketData(book("BTC-SWAP", 100.25, 100.75))
	reps := g.Drain()
	if len(reps) != 1 || reps[0].Type != model.ExecFilled || reps[0].Price != 100.25 {
		t.Fatalf("回报 = %+v", reps)
	}
}

func TestGateway_ModifyAndCancel(t *testing.T) {
	g := NewGateway(zap.NewNop())
	g.OnMarketData(book("BTC-SWAP", 100, 100.5))
	g.SendOrder(newOrder("o1", model.SideBuy, 99, 1))
	g.SendOrder(newOrder("o2", model.SideBuy, 99, 1))
	g.Drain()

	mod := newOrder("o1", model.SideBuy, 100.5, 3)
	mod.Action = model.ActionModify
	g.SendOrder(mod)
	reps := g.Drain()
	if len(reps) != 2 || reps[1].Type != model.ExecFilled || reps[1].Size != 3 {
		t.Fatalf("改到可成交价应全部成交: %+v", reps)
	}

	// 已成交订单的改单被拒
	g.SendOrder(mod)
	if reps := g.Drain(); len(reps) != 1 || reps[0].Type != model.ExecRejected {
		t.Fatalf("回报 = %v, want [rejected]", types(reps))
	}

	cancel := newOrder("o2", model.SideBuy, 99, 1)
	cancel.Action = model.ActionCancel
	g.SendOrder(cancel)
	g.SendOrder(cancel)
	reps = g.Drain()
	if len(reps) != 1 || reps[0].Type != model.ExecCancelled {
		t.Fatalf("重复撤单只确认一次: %v", types(reps))
	}
	if g.Resting() != 0 {
		t.Fatalf("Resting() = %d, want 0", g.Resting())
	}
}

func TestGateway_NoBookNoFill(t *testing.T) {
	g := NewGateway(zap.NewNop())
	g.SendOrder(newOrder("o1", model.SideBuy, 1e9, 1))
	if reps := g.Drain(); len(reps) != 1 || reps[0].Type != model.ExecAccepted {
		t.Fatalf("无行情时只确认不成交: %v", types(reps))
	}
}

// **Feature: stat-arb-engine, Property 8: Paper Fill Price Never Crosses The Limit**

func TestGateway_FillPrice_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("成交价等于挂单价且挂单价可与盘口成交", prop.ForAll(
		func(mid, offset float64, buy bool) bool {
			g := NewGateway(zap.NewNop())
			b := book("BTC-SWAP", mid-0.5, mid+0.5)
			g.OnMarketData(b)
			side := model.SideSell
			if buy {
				side = model.SideBuy
			}
			price := mid + offset
			g.SendOrder(newOrder("o", side, price, 1))
			for _, r := range g.Drain() {
				if r.Type != model.ExecFilled {
					continue
				}
				if r.Price != price {
					return false
				}
				if buy && price < b.Asks[0] {
					return false
				}
				if !buy && price > b.Bids[0] {
					return false
				}
			}
			filled := g.Resting() == 0
			return filled == marketable(side, price, b)
		},
		gen.Float64Range(10, 10000),
		gen.Float64Range(-2, 2),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
