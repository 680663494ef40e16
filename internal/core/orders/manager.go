// Package orders 管理策略的在途订单。
// 负责下单/撤单/改单/休眠/唤醒、撤单计数熔断，以及做市加量路径的互斥。
// 下单是即发即忘的：结果通过之后的成交/撤单回报异步体现。
package orders

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stat-arb-engine/internal/core/model"
)

// ErrNoReverseOrder 加量时找不到反向挂单
var ErrNoReverseOrder = errors.New("未找到可加量的反向挂单")

// Sender 订单下游（交易网关或模拟网关）
type Sender interface {
	// SendOrder 投递一条订单请求，不等待结果
	SendOrder(req model.OrderRequest)
}

// Spec 下单参数
type Spec struct {
	Role     model.Role
	Ticker   string
	Side     model.Side
	Size     int64
	Price    float64
	Tag      string
	Sleep    bool
	ShotTime model.Timeval
}

// Manager 在途订单簿
// 注意：除 IncreaseSize 外，所有方法都在策略的事件循环中调用，不加锁。
type Manager struct {
	// strategy 所属策略名
	strategy string
	// sender 订单下游
	sender Sender
	// logger 日志记录器
	logger *zap.Logger
	// newRef 订单引用生成器
	newRef func() string

	// orders 在途订单（按提交顺序）
	orders []*model.Order
	// parked 撤单确认后转为休眠的订单
	parked map[string]bool
	// pending 改单确认前本地又有改动、确认后需补发改单的订单
	pending map[string]bool

	// cancels 每条腿的撤单计数
	cancels [len(model.Roles)]int
	// cancelLimit 撤单上限（超过即熔断）
	cancelLimit int
	// tripped 熔断是否已触发
	tripped bool

	// mu 保护加量路径的扫描与修改
	mu sync.Mutex
}

// NewManager 创建订单管理器
// 参数 strategy: 策略名，写入每笔订单
// 参数 sender: 订单下游
// 参数 cancelLimit: 撤单上限；<=0 表示不限制
// 参数 logger: 日志记录器
func NewManager(strategy string, sender Sender, cancelLimit int, logger *zap.Logger) *Manager {
	return &Manager{
		strategy:    strategy,
		sender:      sender,
		logger:      logger.Named("orders"),
		newRef:      uuid.NewString,
		parked:      make(map[string]bool),
		pending:     make(map[string]bool),
		cancelLimit: cancelLimit,
	}
}

// Submit 提交新单
// Sleep 为 true 时订单只在本地登记为休眠，不发往交易所。
func (m *Manager) Submit(spec Spec) *model.Order {
	o := &model.Order{
		Ref:      m.newRef(),
		Strategy: m.strategy,
		Ticker:   spec.Ticker,
		Role:     spec.Role,
		Side:     spec.Side,
		Size:     spec.Size,
		Price:    spec.Price,
		Tag:      spec.Tag,
		Status:   model.StatusSubmitted,
		ShotTime: spec.ShotTime,
	}
	if spec.Sleep {
		o.Status = model.StatusSleep
	}
	m.orders = append(m.orders, o)

	m.logger.Debug("下单",
		zap.String("ref", o.Ref),
		zap.String("ticker", o.Ticker),
		zap.String("side", string(o.Side)),
		zap.Int64("size", o.Size),
		zap.Float64("price", o.Price),
		zap.String("tag", o.Tag),
		zap.String("status", string(o.Status)),
	)
	if !spec.Sleep {
		m.send(model.ActionNew, o)
	}
	return o
}

// Cancel 撤单
// 挂单发出撤单请求并进入 cancelling；休眠单直接本地移除（不计撤单数）。
// 返回: 是否有动作
func (m *Manager) Cancel(o *model.Order) bool {
	switch o.Status {
	case model.StatusSubmitted:
		o.Status = model.StatusCancelling
		m.send(model.ActionCancel, o)
		return true
	case model.StatusSleep:
		m.remove(o.Ref)
		o.Status = model.StatusCancelled
		return true
	default:
		return false
	}
}

// Park 将挂单撤下并保留为休眠单
// 撤单确认到达后订单状态变为 sleep，可再被 Wake。
func (m *Manager) Park(o *model.Order) bool {
	if !o.Valid() {
		return false
	}
	m.parked[o.Ref] = true
	o.Status = model.StatusCancelling
	m.send(model.ActionCancel, o)
	return true
}

// Wake 唤醒休眠单并发往交易所
func (m *Manager) Wake(o *model.Order) bool {
	if o.Status != model.StatusSleep {
		return false
	}
	o.Status = model.StatusSubmitted
	m.send(model.ActionNew, o)
	return true
}

// Modify 改价/改量
// 挂单进入 modifying 并发出改单请求；改单中的订单记下新值，确认后补发；休眠单只更新本地字段。
func (m *Manager) Modify(o *model.Order, price float64, size int64) bool {
	switch o.Status {
	case model.StatusSubmitted:
		o.Price = price
		o.Size = size
		o.Status = model.StatusModifying
		m.send(model.ActionModify, o)
		return true
	case model.StatusModifying:
		o.Price = price
		o.Size = size
		m.pending[o.Ref] = true
		return true
	case model.StatusSleep:
		o.Price = price
		o.Size = size
		return true
	default:
		return false
	}
}

// IncreaseSize 在指定腿、方向的第一笔挂单（或休眠单）上加量
// 扫描与修改在锁内完成；改单请求由调用方在锁外发出。
// 返回: 被加量的订单；找不到时返回 ErrNoReverseOrder
func (m *Manager) IncreaseSize(role model.Role, side model.Side, delta int64) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.Role != role || o.Side != side {
			continue
		}
		switch o.Status {
		case model.StatusSubmitted, model.StatusModifying, model.StatusSleep:
			o.Size += delta
			return o, nil
		}
	}
	return nil, ErrNoReverseOrder
}

// Resend 将本地已改动的挂单以改单请求发出
// 上一笔改单尚未确认时只做标记，由 OnAccepted 补发。
func (m *Manager) Resend(o *model.Order) {
	switch o.Status {
	case model.StatusSubmitted:
		o.Status = model.StatusModifying
		m.send(model.ActionModify, o)
	case model.StatusModifying:
		m.pending[o.Ref] = true
	}
}

// OnAccepted 处理新单/改单确认
// 确认期间本地有新改动时保持 modifying，并以本地价量补发改单。
func (m *Manager) OnAccepted(ref string, price float64) *model.Order {
	o := m.Find(ref)
	if o == nil {
		return nil
	}
	if o.Status != model.StatusModifying {
		return o
	}
	if m.pending[ref] {
		delete(m.pending, ref)
		m.logger.Debug("补发改单",
			zap.String("ref", o.Ref),
			zap.Int64("size", o.Size),
			zap.Float64("price", o.Price),
		)
		m.send(model.ActionModify, o)
		return o
	}
	o.Status = model.StatusSubmitted
	if price > 0 {
		o.Price = price
	}
	return o
}

// OnFilled 处理成交回报
// 返回: 对应订单（不属于本策略时为 nil），以及是否已全部成交
func (m *Manager) OnFilled(ref string, size int64) (*model.Order, bool) {
	o := m.Find(ref)
	if o == nil {
		return nil, false
	}
	o.TradedSize += size
	if o.TradedSize < o.Size {
		return o, false
	}
	o.Status = model.StatusFilled
	delete(m.pending, ref)
	m.remove(ref)
	return o, true
}

// OnCancelled 处理撤单确认
// 撤单计数严格递增；计数首次超过上限时 breached 为 true，之后不再重复报告。
func (m *Manager) OnCancelled(ref string) (o *model.Order, breached bool) {
	o = m.Find(ref)
	if o == nil {
		return nil, false
	}
	m.cancels[o.Role]++
	delete(m.pending, ref)

	if m.parked[ref] {
		delete(m.parked, ref)
		o.Status = model.StatusSleep
	} else {
		o.Status = model.StatusCancelled
		m.remove(ref)
	}

	if m.cancelLimit > 0 && !m.tripped && m.cancels[o.Role] > m.cancelLimit {
		m.tripped = true
		breached = true
		m.logger.Warn("撤单次数超过上限",
			zap.String("role", o.Role.String()),
			zap.Int("cancels", m.cancels[o.Role]),
			zap.Int("limit", m.cancelLimit),
		)
	}
	return o, breached
}

// OnRejected 处理拒单：直接移除，不计撤单数
func (m *Manager) OnRejected(ref string) *model.Order {
	o := m.Find(ref)
	if o == nil {
		return nil
	}
	delete(m.parked, ref)
	delete(m.pending, ref)
	o.Status = model.StatusCancelled
	m.remove(ref)
	return o
}

// CancelAll 撤销某条腿的全部订单
func (m *Manager) CancelAll(role model.Role) int {
	n := 0
	for _, o := range m.Outstanding() {
		if o.Role == role && m.Cancel(o) {
			n++
		}
	}
	return n
}

// Clear 强制清空在途订单（强平兜底）
func (m *Manager) Clear() int {
	n := len(m.orders)
	m.orders = nil
	m.parked = make(map[string]bool)
	m.pending = make(map[string]bool)
	return n
}

// Find 按引用查找在途订单
func (m *Manager) Find(ref string) *model.Order {
	for _, o := range m.orders {
		if o.Ref == ref {
			return o
		}
	}
	return nil
}

// FindBySide 查找指定腿、方向的第一笔在途订单
func (m *Manager) FindBySide(role model.Role, side model.Side) *model.Order {
	for _, o := range m.orders {
		if o.Role == role && o.Side == side {
			return o
		}
	}
	return nil
}

// Outstanding 返回在途订单切片的副本（可在遍历时修改订单簿）
func (m *Manager) Outstanding() []*model.Order {
	out := make([]*model.Order, len(m.orders))
	copy(out, m.orders)
	return out
}

// Len 在途订单数
func (m *Manager) Len() int { return len(m.orders) }

// HasBlocking 是否存在阻塞单（套利类策略同一时刻只允许一笔）
func (m *Manager) HasBlocking() bool { return len(m.orders) > 0 }

// CancelCount 某条腿的累计撤单数
func (m *Manager) CancelCount(role model.Role) int { return m.cancels[role] }

// Tripped 撤单熔断是否已触发
func (m *Manager) Tripped() bool { return m.tripped }

func (m *Manager) send(action model.OrderAction, o *model.Order) {
	if m.sender == nil {
		return
	}
	m.sender.SendOrder(model.OrderRequest{Action: action, Order: *o})
}

func (m *Manager) remove(ref string) {
	for i, o := range m.orders {
		if o.Ref == ref {
			m.orders = append(m.orders[:i], m.orders[i+1:]...)
			return
		}
	}
}
