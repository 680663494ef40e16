// Package okx 实现 OKX books5 消息解析。
// 字段映射: ts(ms) -> Timeval{sec, usec}，数量按张取整
package okx

import (
	"encoding/json"
	"fmt"

	"stat-arb-engine/internal/core/model"
	"stat-arb-engine/internal/util/fastparse"
)

// Parser OKX 消息解析器
type Parser struct {
	// tickers 已订阅的合约
	tickers map[string]struct{}
}

// NewParser 创建 OKX 消息解析器
// 参数 tickers: 需要的 instId 列表；其余合约的消息被忽略
func NewParser(tickers []string) *Parser {
	set := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		set[t] = struct{}{}
	}
	return &Parser{tickers: set}
}

// Parse 解析 OKX WebSocket 消息
// 返回: 行情快照列表（一条消息可能包含多个数据）；非 books5 消息返回 nil
func (p *Parser) Parse(data []byte) ([]*model.MarketSnapshot, error) {
	var msg Books5Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 OKX 消息失败: %w", err)
	}
	if msg.Arg.Channel != "books5" || len(msg.Data) == 0 {
		return nil, nil
	}

	snaps := make([]*model.MarketSnapshot, 0, len(msg.Data))
	for i := range msg.Data {
		d := &msg.Data[i]
		if d.InstId == "" {
			d.InstId = msg.Arg.InstId
		}
		snap, err := p.parseBooks5Data(d)
		if err != nil {
			return nil, fmt.Errorf("解析 books5 数据失败: %w", err)
		}
		if snap != nil {
			snaps = append(snaps, snap)
		}
	}
	return snaps, nil
}

func (p *Parser) parseBooks5Data(d *Books5Data) (*model.MarketSnapshot, error) {
	if _, ok := p.tickers[d.InstId]; !ok {
		return nil, nil
	}
	ts, err := fastparse.ParseInt(d.Ts)
	if err != nil {
		return nil, fmt.Errorf("%s ts=%q: %w", d.InstId, d.Ts, err)
	}

	snap := &model.MarketSnapshot{
		Ticker: d.InstId,
		Time:   model.TimevalFromMs(ts),
	}
	if err := parseLevels(d.Bids, &snap.Bids, &snap.BidSizes); err != nil {
		return nil, fmt.Errorf("%s bids: %w", d.InstId, err)
	}
	if err := parseLevels(d.Asks, &snap.Asks, &snap.AskSizes); err != nil {
		return nil, fmt.Errorf("%s asks: %w", d.InstId, err)
	}
	return snap, nil
}

// parseLevels 解析最多 Depth 档价格与数量
func parseLevels(levels [][]string, prices *[model.Depth]float64, sizes *[model.Depth]int64) error {
	for i, lv := range levels {
		if i >= model.Depth {
			break
		}
		if len(lv) < 2 {
			return fmt.Errorf("第 %d 档字段不足", i)
		}
		px, err := fastparse.ParseFloat(lv[0])
		if err != nil {
			return err
		}
		qty, err := fastparse.ParseSize(lv[1])
		if err != nil {
			return err
		}
		prices[i] = px
		sizes[i] = qty
	}
	return nil
}

// IsSubscribeResponse 判断是否为订阅响应
func IsSubscribeResponse(data []byte) bool {
	var resp SubscribeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false
	}
	return resp.Event == "subscribe" || resp.Event == "error"
}

// IsPong 判断是否为 pong 响应
func IsPong(data []byte) bool {
	return string(data) == "pong"
}
