// Package timeutil 本地时钟读数。
// 挂钟取启动时刻，流逝时间取单调时钟，运行中系统校时不会让差值变负。
package timeutil

import "time"

var epoch = time.Now()

// NowNano Unix 纳秒
func NowNano() int64 {
	return epoch.Add(time.Since(epoch)).UnixNano()
}

// NowMs Unix 毫秒
func NowMs() int64 {
	return NanoToMs(NowNano())
}

// NanoToMs 纳秒转毫秒（向零截断）
func NanoToMs(ns int64) int64 {
	return ns / int64(time.Millisecond)
}

// MsToNano 毫秒转纳秒
func MsToNano(ms int64) int64 {
	return ms * int64(time.Millisecond)
}
