// Package contract 提供合约元数据、手续费与可交易合约查询。
package contract

// Info 合约元数据
type Info struct {
	// Name 逻辑名
	Name string
	// Tickers 交易日对应的可交易合约（对冲腿在前、主腿在后）
	Tickers []string
	// MinPriceMove 最小变动价位
	MinPriceMove float64
	// CancelLimit 撤单次数上限
	CancelLimit int
	// Multiplier 合约乘数
	Multiplier float64
	// OpenFeeRate 开仓费率
	OpenFeeRate float64
	// CloseFeeRate 平仓费率
	CloseFeeRate float64
	// CloseTodayFeeRate 平今费率
	CloseTodayFeeRate float64
	// FeePerLot 每手固定费用
	FeePerLot float64
}

// FeePoint 单位数量的开平手续费（价格单位）
type FeePoint struct {
	// Open 开仓费用点
	Open float64
	// Close 平仓费用点
	Close float64
}

// Total 开平合计
func (f FeePoint) Total() float64 {
	return f.Open + f.Close
}

// OKXResponse OKX 合约元数据 API 响应
// API: GET /api/v5/public/instruments?instType=SWAP|FUTURES
type OKXResponse struct {
	// Code 响应码，"0" 表示成功
	Code string `json:"code"`
	// Msg 错误消息
	Msg string `json:"msg"`
	// Data 合约列表
	Data []OKXInstrument `json:"data"`
}

// OKXInstrument OKX 合约信息（只保留用到的字段）
type OKXInstrument struct {
	// InstId 合约 ID，如 BTC-USDT-SWAP
	InstId string `json:"instId"`
	// InstType 合约类型: SWAP（永续）, FUTURES（交割）
	InstType string `json:"instType"`
	// CtVal 合约面值
	CtVal string `json:"ctVal"`
	// TickSz 最小价格变动单位
	TickSz string `json:"tickSz"`
	// LotSz 最小交易数量
	LotSz string `json:"lotSz"`
	// State 合约状态: live, suspend, preopen
	State string `json:"state"`
}
