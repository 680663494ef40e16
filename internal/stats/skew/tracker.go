// Package skew 统计两腿行情时间戳之间的偏差。
package skew

import (
	"sort"
	"sync"
)

// Stats 偏差统计快照（滚动窗口，单位微秒）
type Stats struct {
	// Strategy 策略名
	Strategy string `json:"strategy"`
	// Count 累计样本数
	Count int64 `json:"count"`
	// P50Us 中位数
	P50Us int64 `json:"p50_us"`
	// P90Us 90 分位
	P90Us int64 `json:"p90_us"`
	// P99Us 99 分位
	P99Us int64 `json:"p99_us"`
	// MaxUs 窗口内最大值
	MaxUs int64 `json:"max_us"`
}

type rollingWindow struct {
	size  int
	buf   []int64
	pos   int
	count int64
	full  bool
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size, buf: make([]int64, 0, size)}
}

func (w *rollingWindow) add(v int64) {
	w.count++
	if !w.full {
		w.buf = append(w.buf, v)
		if len(w.buf) == w.size {
			w.full = true
			w.pos = 0
		}
		return
	}
	w.buf[w.pos] = v
	w.pos++
	if w.pos >= w.size {
		w.pos = 0
	}
}

// quantiles 返回各分位值，q 取最近秩
func (w *rollingWindow) quantiles(qs ...float64) []int64 {
	values := make([]int64, len(qs))
	if len(w.buf) == 0 {
		return values
	}
	tmp := make([]int64, len(w.buf))
	copy(tmp, w.buf)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })

	n := len(tmp)
	for i, q := range qs {
		switch {
		case q <= 0:
			values[i] = tmp[0]
		case q >= 1:
			values[i] = tmp[n-1]
		default:
			values[i] = tmp[int(float64(n-1)*q)]
		}
	}
	return values
}

// Tracker 按策略维护偏差窗口
// 实现 strategy.SkewObserver。
type Tracker struct {
	windowSize int

	mu      sync.Mutex
	windows map[string]*rollingWindow
}

// NewTracker 创建偏差追踪器
// 参数 windowSize: 每个策略的窗口大小（<=0 时取 10000）
func NewTracker(windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = 10000
	}
	return &Tracker{windowSize: windowSize, windows: make(map[string]*rollingWindow)}
}

// Observe 记录一次偏差，负值取绝对值
func (t *Tracker) Observe(strategy string, skewUs int64) {
	if skewUs < 0 {
		skewUs = -skewUs
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[strategy]
	if !ok {
		w = newRollingWindow(t.windowSize)
		t.windows[strategy] = w
	}
	w.add(skewUs)
}

// Stats 返回某个策略的快照
func (t *Tracker) Stats(strategy string) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statsLocked(strategy)
}

// All 按策略名排序返回全部快照
func (t *Tracker) All() []Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.windows))
	for name := range t.windows {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Stats, 0, len(names))
	for _, name := range names {
		out = append(out, t.statsLocked(name))
	}
	return out
}

func (t *Tracker) statsLocked(strategy string) Stats {
	w, ok := t.windows[strategy]
	if !ok {
		return Stats{Strategy: strategy}
	}
	qs := w.quantiles(0.50, 0.90, 0.99, 1)
	return Stats{
		Strategy: strategy,
		Count:    w.count,
		P50Us:    qs[0],
		P90Us:    qs[1],
		P99Us:    qs[2],
		MaxUs:    qs[3],
	}
}
