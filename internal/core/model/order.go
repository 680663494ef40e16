package model

// Role 策略内的腿
type Role int

const (
	// RoleMain 主腿（主动报价腿）
	RoleMain Role = iota
	// RoleHedge 对冲腿
	RoleHedge
)

// Roles 全部腿，按固定顺序
var Roles = [...]Role{RoleMain, RoleHedge}

// String 返回腿名称
func (r Role) String() string {
	switch r {
	case RoleMain:
		return "main"
	case RoleHedge:
		return "hedge"
	default:
		return "unknown"
	}
}

// Side 交易方向
type Side string

const (
	// SideNone 无方向（无信号）
	SideNone Side = ""
	// SideBuy 买
	SideBuy Side = "buy"
	// SideSell 卖
	SideSell Side = "sell"
)

// Opposite 反方向
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideNone
	}
}

// Sign 方向符号：买 +1，卖 -1
func (s Side) Sign() int64 {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

// SideOf 由带符号数量得到方向
func SideOf(signed int64) Side {
	switch {
	case signed > 0:
		return SideBuy
	case signed < 0:
		return SideSell
	default:
		return SideNone
	}
}

// OrderStatus 订单状态
type OrderStatus string

const (
	// StatusSubmitted 已提交，挂单中
	StatusSubmitted OrderStatus = "submitted"
	// StatusModifying 改价中，等待确认
	StatusModifying OrderStatus = "modifying"
	// StatusCancelling 撤单中，等待确认
	StatusCancelling OrderStatus = "cancelling"
	// StatusSleep 休眠：有效但未暴露到交易所
	StatusSleep OrderStatus = "sleep"
	// StatusFilled 全部成交
	StatusFilled OrderStatus = "filled"
	// StatusCancelled 已撤销
	StatusCancelled OrderStatus = "cancelled"
)

// 订单标签，用于区分成交性质
const (
	TagOpen      = "open"
	TagClose     = "close"
	TagForceFlat = "force_flat_close"
	TagHedge     = "hedge"
	TagStartOpen = "start_open"
	TagAddOpen   = "add_open"
	TagMakeUp    = "make_up_open"
	TagReopen    = "reopen_flat"
)

// IsCloseTag 标签是否属于平仓类
func IsCloseTag(tag string) bool {
	return tag == TagClose || tag == TagForceFlat
}

// Order 策略持有的订单
type Order struct {
	// Ref 订单引用（uuid）
	Ref string `json:"ref"`
	// Strategy 所属策略
	Strategy string `json:"strategy"`
	// Ticker 合约
	Ticker string `json:"ticker"`
	// Role 所属腿
	Role Role `json:"role"`
	// Side 方向
	Side Side `json:"side"`
	// Size 委托数量（正数）
	Size int64 `json:"size"`
	// TradedSize 已成交数量
	TradedSize int64 `json:"traded_size"`
	// Price 委托价格
	Price float64 `json:"price"`
	// Tag 标签（open/close/force_flat_close/...）
	Tag string `json:"tag"`
	// Status 状态
	Status OrderStatus `json:"status"`
	// ShotTime 下单时所依据行情的时间
	ShotTime Timeval `json:"shot_time"`
}

// SignedSize 带符号委托数量
func (o *Order) SignedSize() int64 {
	return o.Side.Sign() * o.Size
}

// Remaining 剩余未成交数量
func (o *Order) Remaining() int64 {
	return o.Size - o.TradedSize
}

// Valid 是否为交易所上的有效挂单（可被改价/撤单）
func (o *Order) Valid() bool {
	return o.Status == StatusSubmitted
}

// OrderAction 发往下游网关的动作
type OrderAction string

const (
	// ActionNew 新单
	ActionNew OrderAction = "new"
	// ActionCancel 撤单
	ActionCancel OrderAction = "cancel"
	// ActionModify 改单
	ActionModify OrderAction = "modify"
)

// OrderRequest 下游网关请求（订单副本 + 动作）
type OrderRequest struct {
	// Action 动作
	Action OrderAction `json:"action"`
	// Order 订单副本
	Order Order `json:"order"`
}
