package jsonl

import (
	"stat-arb-engine/internal/core/model"
	"stat-arb-engine/internal/core/orders"
	"stat-arb-engine/internal/util/timeutil"
)

// 记录类型
const (
	KindOrder    = "order"
	KindReport   = "report"
	KindSnapshot = "snapshot"
	KindRound    = "round"
	KindMetrics  = "metrics"
)

// Record 一行 JSONL 记录
type Record struct {
	// Kind 记录类型
	Kind string `json:"kind"`
	// TsMs 本地写入时间（毫秒）
	TsMs int64 `json:"ts_ms"`
	// Data 记录内容
	Data any `json:"data"`
}

func newRecord(kind string, data any) Record {
	return Record{Kind: kind, TsMs: timeutil.NowMs(), Data: data}
}

// OrderSink 订单下游：记录每个订单请求，可选地再转发给真正的网关
type OrderSink struct {
	w    *Writer
	next orders.Sender
}

// NewOrderSink 创建订单下游
// 参数 next: 转发目标；为 nil 时只记录（实盘由外部网关读取 orders.jsonl）
func NewOrderSink(w *Writer, next orders.Sender) *OrderSink {
	return &OrderSink{w: w, next: next}
}

// SendOrder 实现 orders.Sender
func (s *OrderSink) SendOrder(req model.OrderRequest) {
	_ = s.w.Write(newRecord(KindOrder, req))
	if s.next != nil {
		s.next.SendOrder(req)
	}
}

// RecordReport 记录一条订单回报
func (s *OrderSink) RecordReport(r model.ExecReport) {
	_ = s.w.Write(newRecord(KindReport, r))
}

// SnapshotSink UI 通道快照下游
type SnapshotSink struct {
	w *Writer
}

// NewSnapshotSink 创建通道快照下游
func NewSnapshotSink(w *Writer) *SnapshotSink { return &SnapshotSink{w: w} }

// SendSnapshot 实现 strategy.SnapshotSender
func (s *SnapshotSink) SendSnapshot(snap model.BandSnapshot) {
	_ = s.w.Write(newRecord(KindSnapshot, snap))
}

// RoundSink 回合记录下游
type RoundSink struct {
	w *Writer
}

// NewRoundSink 创建回合记录下游
func NewRoundSink(w *Writer) *RoundSink { return &RoundSink{w: w} }

// RecordRound 实现 strategy.RoundRecorder
func (s *RoundSink) RecordRound(r model.Round) error {
	return s.w.Write(newRecord(KindRound, r))
}

// WriteMetrics 写一条指标记录
func WriteMetrics(w *Writer, data any) error {
	return w.Write(newRecord(KindMetrics, data))
}
