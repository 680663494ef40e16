// Package okx OKX 解析器测试
package okx

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var testTickers = []string{"BTC-USDT-SWAP", "BTC-USDT-261225"}

// **Feature: stat-arb-engine, Property 9: Books5 Parse Preserves Touch And Exchange Time**

func TestParser_RoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	parser := NewParser(testTickers)

	properties.Property("解析保留价格、数量与交易所时间", prop.ForAll(
		func(bidPx, askGap float64, bidQty, askQty int64, ts int64) bool {
			askPx := bidPx + askGap
			msg := Books5Message{
				Arg: SubscribeArg{Channel: "books5", InstId: "BTC-USDT-SWAP"},
				Data: []Books5Data{{
					InstId: "BTC-USDT-SWAP",
					Bids:   [][]string{{fmt.Sprintf("%.1f", bidPx), fmt.Sprintf("%d", bidQty), "0", "1"}},
					Asks:   [][]string{{fmt.Sprintf("%.1f", askPx), fmt.Sprintf("%d", askQty), "0", "1"}},
					Ts:     fmt.Sprintf("%d", ts),
				}},
			}
			data, err := json.Marshal(msg)
			if err != nil {
				return false
			}
			snaps, err := parser.Parse(data)
			if err != nil || len(snaps) != 1 {
				return false
			}
			s := snaps[0]
			bidDiff := s.Bids[0] - bidPx
			askDiff := s.Asks[0] - askPx
			return bidDiff < 0.06 && bidDiff > -0.06 &&
				askDiff < 0.06 && askDiff > -0.06 &&
				s.BidSizes[0] == bidQty && s.AskSizes[0] == askQty &&
				s.Time.Sec*1000+s.Time.Usec/1000 == ts &&
				s.Ticker == "BTC-USDT-SWAP"
		},
		gen.Float64Range(10000, 100000),
		gen.Float64Range(0.1, 50),
		gen.Int64Range(0, 10000),
		gen.Int64Range(0, 10000),
		gen.Int64Range(1700000000000, 1800000000000),
	))

	properties.TestingRun(t)
}

func TestParser_SpecificMessages(t *testing.T) {
	parser := NewParser(testTickers)

	msg := `{
		"arg": {"channel": "books5", "instId": "BTC-USDT-261225"},
		"data": [{
			"instId": "BTC-USDT-261225",
			"bids": [["50000.5", "15", "0", "3"], ["50000.0", "7", "0", "1"]],
			"asks": [["50001.0", "20", "0", "5"]],
			"ts": "1700000000123",
			"seqId": 12345
		}]
	}`
	snaps, err := parser.Parse([]byte(msg))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("快照数量 = %d, want 1", len(snaps))
	}
	s := snaps[0]
	if s.Ticker != "BTC-USDT-261225" {
		t.Errorf("Ticker = %s", s.Ticker)
	}
	if s.Bids[0] != 50000.5 || s.Bids[1] != 50000.0 || s.Asks[0] != 50001.0 {
		t.Errorf("价格 = %v / %v", s.Bids, s.Asks)
	}
	if s.BidSizes[0] != 15 || s.BidSizes[1] != 7 || s.AskSizes[0] != 20 {
		t.Errorf("数量 = %v / %v", s.BidSizes, s.AskSizes)
	}
	if s.Time.Sec != 1700000000 || s.Time.Usec != 123000 {
		t.Errorf("Time = %+v, want {1700000000 123000}", s.Time)
	}
	if !s.IsGood() {
		t.Errorf("快照应可用")
	}
}

func TestParser_InvalidMessages(t *testing.T) {
	parser := NewParser(testTickers)

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{"无效 JSON", `{invalid json}`, true},
		{"非 books5 频道", `{"arg": {"channel": "trades", "instId": "BTC-USDT-SWAP"}, "data": []}`, false},
		{"未订阅的合约", `{"arg": {"channel": "books5", "instId": "SOL-USDT-SWAP"}, "data": [{"instId": "SOL-USDT-SWAP", "bids": [], "asks": [], "ts": "0"}]}`, false},
		{"时间戳无效", `{"arg": {"channel": "books5", "instId": "BTC-USDT-SWAP"}, "data": [{"instId": "BTC-USDT-SWAP", "bids": [], "asks": [], "ts": "abc"}]}`, true},
		{"档位字段不足", `{"arg": {"channel": "books5", "instId": "BTC-USDT-SWAP"}, "data": [{"instId": "BTC-USDT-SWAP", "bids": [["1"]], "asks": [], "ts": "1"}]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsPong(t *testing.T) {
	tests := []struct {
		data string
		want bool
	}{
		{"pong", true},
		{"ping", false},
		{`{"event": "subscribe"}`, false},
	}
	for _, tt := range tests {
		if got := IsPong([]byte(tt.data)); got != tt.want {
			t.Errorf("IsPong(%q) = %v, want %v", tt.data, got, tt.want)
		}
	}
}

func TestIsSubscribeResponse(t *testing.T) {
	tests := []struct {
		data string
		want bool
	}{
		{`{"event": "subscribe", "arg": {"channel": "books5"}}`, true},
		{`{"event": "error", "code": "1", "msg": "error"}`, true},
		{`{"arg": {"channel": "books5"}, "data": []}`, false},
		{`pong`, false},
	}
	for _, tt := range tests {
		if got := IsSubscribeResponse([]byte(tt.data)); got != tt.want {
			t.Errorf("IsSubscribeResponse(%q) = %v, want %v", tt.data, got, tt.want)
		}
	}
}
