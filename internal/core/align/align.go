// Package align 判断两条腿的最新行情在时间上是否同步。
package align

import "stat-arb-engine/internal/core/model"

const (
	// ArbToleranceUs 套利类策略的微秒容差
	ArbToleranceUs int64 = 100_000
	// MakerToleranceUs 做市策略的微秒容差（持续挂单，对过期对冲价更敏感）
	MakerToleranceUs int64 = 10_000
)

// IsAligned 两腿时间戳是否同步
// 条件：两者都已有行情，秒相同，微秒差的绝对值 < tolUs。
// 对参数顺序对称。
func IsAligned(a, b model.Timeval, tolUs int64) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	if a.Sec != b.Sec {
		return false
	}
	return SkewUs(a, b) < tolUs
}

// SkewUs 两个时间戳的微秒差绝对值（跨秒时按完整时间差计算）
func SkewUs(a, b model.Timeval) int64 {
	d := (a.Sec-b.Sec)*1_000_000 + (a.Usec - b.Usec)
	if d < 0 {
		return -d
	}
	return d
}
