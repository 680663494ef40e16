// Package backoff 行情重连的指数退避。
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Backoff 指数退避：第 n 次等待 base·2ⁿ，封顶 max，再乘以 1±jitter 的随机因子
// 非并发安全，由单个重连循环持有。
type Backoff struct {
	base   time.Duration
	max    time.Duration
	jitter float64
	// failures 自上次 Reset 以来的失败次数
	failures int
	// ceiling 下一次的未抖动间隔
	ceiling time.Duration
}

// New 参数 jitter: 抖动比例（0-1）
func New(base, max time.Duration, jitter float64) *Backoff {
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max, jitter: jitter, ceiling: base}
}

// NewDefault 1s 起步，30s 封顶，±20% 抖动
func NewDefault() *Backoff {
	return New(time.Second, 30*time.Second, 0.2)
}

// Next 返回本次应等待的时间并推进失败次数
func (b *Backoff) Next() time.Duration {
	d := b.ceiling
	if b.ceiling < b.max {
		// 倍增前比较，避免 Duration 溢出
		if b.ceiling > b.max/2 {
			b.ceiling = b.max
		} else {
			b.ceiling *= 2
		}
	}
	b.failures++
	if b.jitter <= 0 {
		return d
	}
	return time.Duration(float64(d) * (1 + b.jitter*(2*rand.Float64()-1)))
}

// Wait 睡眠 Next() 的时长；ctx 取消时返回 ctx.Err()
func (b *Backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset 连接恢复后调用
func (b *Backoff) Reset() {
	b.failures = 0
	b.ceiling = b.base
}

// Attempt 自上次 Reset 以来的失败次数
func (b *Backoff) Attempt() int {
	return b.failures
}
