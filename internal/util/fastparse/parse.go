// Package fastparse 解析交易所消息中的数值字段。
// 热路径只用 strconv，不经过 fmt。
package fastparse

import (
	"strconv"
)

// ParseFloat 解析浮点数字符串，如 "12345.67"
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// ParseInt 解析十进制整数字符串，如毫秒时间戳
func ParseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// ParseSize 解析挂单数量并截断为整数手数
// 整数串走 ParseInt，小数串（如 "12.0"）退回 ParseFloat。
func ParseSize(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
