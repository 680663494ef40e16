package risk

import (
	"testing"

	"stat-arb-engine/internal/core/band"
)

func TestStopLossHit(t *testing.T) {
	b := band.Bands{HasStopLoss: true, StopLossUp: 3, StopLossDown: -3}
	if !StopLossHit(1, -3.1, b) {
		t.Fatalf("持多跌破下止损线应触发")
	}
	if StopLossHit(1, 3.5, b) {
		t.Fatalf("持多上涨不应触发")
	}
	if !StopLossHit(-2, 3.1, b) {
		t.Fatalf("持空涨破上止损线应触发")
	}
	if StopLossHit(0, -10, b) {
		t.Fatalf("空仓不应触发")
	}
	if StopLossHit(1, -10, band.Bands{}) {
		t.Fatalf("无止损线不应触发")
	}
}

func TestController_StopLossLimit(t *testing.T) {
	c := NewController(Limits{MaxLossTimes: 2})
	if c.RecordStopLoss() {
		t.Fatalf("第 1 次止损不应停止")
	}
	if !c.RecordStopLoss() {
		t.Fatalf("第 2 次止损应停止")
	}
	if c.StopLossTimes() != 2 {
		t.Fatalf("StopLossTimes = %d", c.StopLossTimes())
	}
}

func TestController_HoldingTime(t *testing.T) {
	c := NewController(Limits{MaxHoldingSec: 60})
	c.OnPosition(0, -1, 1000)
	if c.TimeUp(1060) {
		t.Fatalf("恰好 60 秒不应超时")
	}
	if !c.TimeUp(1061) {
		t.Fatalf("61 秒应超时")
	}
	c.OnPosition(-1, -2, 1100)
	if c.BuildSec() != 1000 {
		t.Fatalf("加仓不应重置建仓时刻")
	}
	c.OnPosition(-2, 0, 1200)
	if c.TimeUp(5000) {
		t.Fatalf("空仓不应超时")
	}
}

func TestController_Rounds(t *testing.T) {
	c := NewController(Limits{MaxRound: 2})
	c.RecordRound()
	if !c.CanOpen() {
		t.Fatalf("1 个回合后仍可开仓")
	}
	c.RecordRound()
	if c.CanOpen() {
		t.Fatalf("达到回合上限后不应开仓")
	}
	if NewController(Limits{}).CanOpen() != true {
		t.Fatalf("未设置上限时应可开仓")
	}
}
