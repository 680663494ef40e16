package strategy

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientSamples 强制标定时样本不足
	ErrInsufficientSamples = errors.New("标定样本不足")
	// ErrNotEnoughTickers 逻辑合约解析出的可交易合约不足两个
	ErrNotEnoughTickers = errors.New("可交易合约不足")
	// ErrUnknownVariant 未知策略类型
	ErrUnknownVariant = errors.New("未知策略类型")
	// ErrUnknownTicker 回调中出现不属于本策略的合约
	ErrUnknownTicker = errors.New("不属于本策略的合约")
	// ErrUnknownOrder 回报对应的订单不在在途订单中
	ErrUnknownOrder = errors.New("未知订单回报")
	// ErrUnhedged 停止状态下主腿成交未对冲
	ErrUnhedged = errors.New("主腿成交未对冲")
)

// ConfigError 策略构造阶段的配置错误
// 由调用方决定是否终止进程。
type ConfigError struct {
	// Strategy 策略名
	Strategy string
	// Field 出错的配置项
	Field string
	// Err 原因
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("策略 %s 配置错误 [%s]: %v", e.Strategy, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
