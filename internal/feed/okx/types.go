// Package okx 定义 OKX 公共行情消息类型。
package okx

// SubscribeRequest OKX 订阅请求
type SubscribeRequest struct {
	// Op 操作类型: subscribe, unsubscribe
	Op string `json:"op"`
	// Args 订阅参数列表
	Args []SubscribeArg `json:"args"`
}

// SubscribeArg 订阅参数
type SubscribeArg struct {
	// Channel 频道名称: books5
	Channel string `json:"channel"`
	// InstId 合约 ID: BTC-USDT-SWAP
	InstId string `json:"instId"`
}

// SubscribeResponse OKX 订阅响应
type SubscribeResponse struct {
	Event string        `json:"event"`
	Arg   *SubscribeArg `json:"arg,omitempty"`
	Code  string        `json:"code,omitempty"`
	Msg   string        `json:"msg,omitempty"`
}

// Books5Message OKX books5 频道消息
type Books5Message struct {
	Arg    SubscribeArg `json:"arg"`
	Action string       `json:"action"`
	Data   []Books5Data `json:"data"`
}

// Books5Data OKX books5 深度数据
// bids/asks: [[价格, 数量(张), 废弃, 订单数], ...]；ts 为交易所毫秒时间戳
type Books5Data struct {
	Bids   [][]string `json:"bids"`
	Asks   [][]string `json:"asks"`
	Ts     string     `json:"ts"`
	SeqId  int64      `json:"seqId"`
	InstId string     `json:"instId"`
}

// ConnectionMetrics 连接质量指标
type ConnectionMetrics struct {
	// ReconnectCount 重连次数
	ReconnectCount int64 `json:"reconnect_count"`
	// ParseErrorCount 解析错误次数
	ParseErrorCount int64 `json:"parse_error_count"`
	// DroppedCount 通道满时丢弃的行情数
	DroppedCount int64 `json:"dropped_count"`
	// UpdatesPerSec 每秒更新次数
	UpdatesPerSec float64 `json:"updates_per_sec"`
	// LastMessageAgeMs 最后消息距今时间（毫秒）
	LastMessageAgeMs int64 `json:"last_message_age_ms"`
	// WsRttMs WebSocket RTT（毫秒）
	WsRttMs int64 `json:"ws_rtt_ms"`
}
