package model

// ExecType 成交回报类型
type ExecType string

const (
	// ExecAccepted 新单或改单已被交易所接受
	ExecAccepted ExecType = "accepted"
	// ExecFilled 成交（可能为部分成交）
	ExecFilled ExecType = "filled"
	// ExecCancelled 撤单确认
	ExecCancelled ExecType = "cancelled"
	// ExecRejected 拒单
	ExecRejected ExecType = "rejected"
)

// ExecReport 订单回报
type ExecReport struct {
	// Type 回报类型
	Type ExecType `json:"type"`
	// OrderRef 订单引用
	OrderRef string `json:"order_ref"`
	// Ticker 合约（分发器据此路由）
	Ticker string `json:"ticker"`
	// Side 成交方向
	Side Side `json:"side"`
	// Price 成交价或改单后价格
	Price float64 `json:"price"`
	// Size 本次成交数量
	Size int64 `json:"size"`
	// Time 回报时间
	Time Timeval `json:"time"`
}

// CommandAction 外部指令动作
type CommandAction string

const (
	// CommandSet 手动设置通道参数
	CommandSet CommandAction = "set"
	// CommandPause 暂停
	CommandPause CommandAction = "pause"
	// CommandResume 恢复
	CommandResume CommandAction = "resume"
	// CommandFlat 只平不开并强平
	CommandFlat CommandAction = "flat"
	// CommandStop 停止
	CommandStop CommandAction = "stop"
)

// 指令数值槽位
const (
	SlotUpDiff = iota
	SlotDownDiff
	SlotStopLossUp
	SlotStopLossDown
	SlotCount
)

// Command 外部注入的指令
type Command struct {
	// Strategy 目标策略名
	Strategy string `json:"strategy"`
	// Action 动作
	Action CommandAction `json:"action"`
	// Values 数值槽位（仅 set 使用）
	Values [SlotCount]float64 `json:"values"`
}

// Round 一次完整开平仓回合
type Round struct {
	// Strategy 策略名
	Strategy string `json:"strategy"`
	// MainTicker 主腿合约
	MainTicker string `json:"main_ticker"`
	// HedgeTicker 对冲腿合约
	HedgeTicker string `json:"hedge_ticker"`
	// Seq 回合序号（从 1 开始）
	Seq int `json:"seq"`
	// Size 回合数量
	Size int64 `json:"size"`
	// GrossPnL 毛利（价格单位 × 数量 × 乘数）
	GrossPnL float64 `json:"gross_pnl"`
	// Fee 手续费
	Fee float64 `json:"fee"`
	// NetPnL 净利
	NetPnL float64 `json:"net_pnl"`
	// Reason 平仓原因（标签）
	Reason string `json:"reason"`
	// ClosedAt 平仓时间
	ClosedAt Timeval `json:"closed_at"`
}

// Win 是否盈利回合
func (r *Round) Win() bool {
	return r.NetPnL > 0
}
