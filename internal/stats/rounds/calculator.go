// Package rounds 按策略维护已完成回合的滚动统计。
// EV = p × (R - f) + (1 - p) × (-L - f)
// p_required = (L + f) / (R + L)
package rounds

import (
	"sort"
	"sync"

	"stat-arb-engine/internal/core/model"
)

// Stats 回合统计（滚动窗口）
type Stats struct {
	// Strategy 策略名
	Strategy string `json:"strategy"`
	// Count 窗口内样本数
	Count int64 `json:"count"`
	// Total 累计回合数
	Total int64 `json:"total"`
	// WinCount 盈利回合数（净利>0）
	WinCount int64 `json:"win_count"`
	// LossCount 亏损回合数（净利<=0）
	LossCount int64 `json:"loss_count"`

	// WinRate 胜率 p
	WinRate float64 `json:"win_rate"`
	// AvgProfit 平均毛利 R（盈利回合）
	AvgProfit float64 `json:"avg_profit"`
	// AvgLoss 平均毛亏损绝对值 L（亏损回合）
	AvgLoss float64 `json:"avg_loss"`
	// AvgFee 平均手续费 f
	AvgFee float64 `json:"avg_fee"`
	// NetPnL 窗口内累计净利
	NetPnL float64 `json:"net_pnl"`

	// EV 单回合期望净利
	EV float64 `json:"ev"`
	// PRequired 盈亏平衡胜率
	PRequired float64 `json:"p_required"`
}

type sample struct {
	win   bool
	gross float64
	fee   float64
	net   float64
}

// window 单个策略的环形缓冲
type window struct {
	buf  []sample
	pos  int
	full bool

	total     int64
	count     int64
	winCount  int64
	lossCount int64
	sumWinR   float64
	sumLossL  float64
	sumFee    float64
	sumNet    float64
}

func (w *window) add(s sample) {
	// 环已满时先扣除被覆盖样本
	if w.full {
		old := w.buf[w.pos]
		w.count--
		if old.win {
			w.winCount--
			w.sumWinR -= old.gross
		} else {
			w.lossCount--
			w.sumLossL -= abs(old.gross)
		}
		w.sumFee -= old.fee
		w.sumNet -= old.net
	}

	w.buf[w.pos] = s
	w.pos++
	if w.pos >= len(w.buf) {
		w.pos = 0
		w.full = true
	}

	w.total++
	w.count++
	if s.win {
		w.winCount++
		w.sumWinR += s.gross
	} else {
		w.lossCount++
		w.sumLossL += abs(s.gross)
	}
	w.sumFee += s.fee
	w.sumNet += s.net
}

func (w *window) stats(name string) Stats {
	out := Stats{
		Strategy:  name,
		Count:     w.count,
		Total:     w.total,
		WinCount:  w.winCount,
		LossCount: w.lossCount,
		NetPnL:    w.sumNet,
	}
	if w.count <= 0 {
		return out
	}

	out.WinRate = float64(w.winCount) / float64(w.count)
	out.AvgFee = w.sumFee / float64(w.count)
	if w.winCount > 0 {
		out.AvgProfit = w.sumWinR / float64(w.winCount)
	}
	if w.lossCount > 0 {
		out.AvgLoss = w.sumLossL / float64(w.lossCount)
	}

	p, R, L, f := out.WinRate, out.AvgProfit, out.AvgLoss, out.AvgFee
	out.EV = p*(R-f) + (1-p)*(-L-f)
	if den := R + L; den > 0 {
		out.PRequired = (L + f) / den
	} else {
		out.PRequired = 1
	}
	return out
}

// Calculator 回合统计计算器
// 实现 strategy.RoundRecorder，可与其它下游并列挂载。
type Calculator struct {
	windowSize int

	mu      sync.Mutex
	windows map[string]*window
}

// NewCalculator 创建回合统计计算器
// 参数 windowSize: 每个策略的滚动窗口大小（<=0 时取 1000）
func NewCalculator(windowSize int) *Calculator {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &Calculator{
		windowSize: windowSize,
		windows:    make(map[string]*window),
	}
}

// RecordRound 记录一个已完成回合
func (c *Calculator) RecordRound(r model.Round) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[r.Strategy]
	if !ok {
		w = &window{buf: make([]sample, c.windowSize)}
		c.windows[r.Strategy] = w
	}
	w.add(sample{win: r.Win(), gross: r.GrossPnL, fee: r.Fee, net: r.NetPnL})
	return nil
}

// Stats 返回某个策略的统计快照，未知策略返回零值
func (c *Calculator) Stats(strategy string) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[strategy]
	if !ok {
		return Stats{Strategy: strategy}
	}
	return w.stats(strategy)
}

// All 按策略名排序返回全部快照
func (c *Calculator) All() []Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Stats, 0, len(c.windows))
	for name, w := range c.windows {
		out = append(out, w.stats(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
