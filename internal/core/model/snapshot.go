// Package model 定义决策核心使用的数据结构。
// 包含行情快照、订单、成交回报、指令与回合记录等类型。
package model

import (
	"time"
)

// Depth 快照保留的盘口档位数
const Depth = 5

// Timeval 秒 + 微秒时间戳
// 对齐判断只比较这两个分量，不做跨秒换算。
type Timeval struct {
	// Sec Unix 秒
	Sec int64 `json:"sec"`
	// Usec 微秒部分（0-999999）
	Usec int64 `json:"usec"`
}

// TimevalFromMs 由毫秒时间戳构造 Timeval
// 参数 ms: Unix 毫秒时间戳
func TimevalFromMs(ms int64) Timeval {
	return Timeval{Sec: ms / 1000, Usec: (ms % 1000) * 1000}
}

// TimevalFromTime 由 time.Time 构造 Timeval
func TimevalFromTime(t time.Time) Timeval {
	return Timeval{Sec: t.Unix(), Usec: int64(t.Nanosecond() / 1000)}
}

// IsZero 是否为零值（表示该腿尚未收到行情）
func (t Timeval) IsZero() bool {
	return t.Sec == 0 && t.Usec == 0
}

// Time 转换为 time.Time
func (t Timeval) Time() time.Time {
	return time.Unix(t.Sec, t.Usec*1000)
}

// MarketSnapshot 单个合约的盘口快照
// 接收后视为不可变；策略按腿（Role）保存最新一份。
type MarketSnapshot struct {
	// Ticker 合约标识，如 BTC-USDT-SWAP
	Ticker string `json:"ticker"`
	// Bids 买盘价格（买一在前）
	Bids [Depth]float64 `json:"bids"`
	// BidSizes 买盘数量
	BidSizes [Depth]int64 `json:"bid_sizes"`
	// Asks 卖盘价格（卖一在前）
	Asks [Depth]float64 `json:"asks"`
	// AskSizes 卖盘数量
	AskSizes [Depth]int64 `json:"ask_sizes"`
	// LastTrade 最新成交价
	LastTrade float64 `json:"last_trade"`
	// Time 交易所时间
	Time Timeval `json:"time"`
}

// IsGood 检查快照是否完整可用
// 有效条件: 合约非空，买一卖一都大于 0，且买一 < 卖一
func (s *MarketSnapshot) IsGood() bool {
	if s == nil || s.Ticker == "" {
		return false
	}
	return s.Bids[0] > 0 && s.Asks[0] > 0 && s.Bids[0] < s.Asks[0]
}

// Mid 中间价
// 公式: (Bids[0] + Asks[0]) / 2
func (s *MarketSnapshot) Mid() float64 {
	return (s.Bids[0] + s.Asks[0]) / 2
}

// Spread 买卖价差
// 公式: Asks[0] - Bids[0]
func (s *MarketSnapshot) Spread() float64 {
	return s.Asks[0] - s.Bids[0]
}

// BandSnapshot 发往 UI 的价差通道快照
type BandSnapshot struct {
	// Strategy 策略名
	Strategy string `json:"strategy"`
	// Time 采样时间
	Time Timeval `json:"time"`
	// Sample 最新价差样本
	Sample float64 `json:"sample"`
	// Mean 均值
	Mean float64 `json:"mean"`
	// Up 上轨
	Up float64 `json:"up"`
	// Down 下轨
	Down float64 `json:"down"`
	// StopLossUp 上止损线
	StopLossUp float64 `json:"stop_loss_up"`
	// StopLossDown 下止损线
	StopLossDown float64 `json:"stop_loss_down"`
	// Position 主腿持仓
	Position int64 `json:"position"`
}
