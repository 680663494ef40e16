// Package jsonl 输出模块测试
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"

	"stat-arb-engine/internal/core/model"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("无效 JSON 行: %v", err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return out
}

func TestWriter_WriteAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "test.jsonl")
	w, err := NewWriter(path, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := w.Write(map[string]any{"i": i}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if lines := readLines(t, path); len(lines) != 10 {
		t.Fatalf("lines=%d, want 10", len(lines))
	}
	if w.Written() != 10 || w.Dropped() != 0 {
		t.Errorf("written=%d dropped=%d", w.Written(), w.Dropped())
	}
	if err := w.Write(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("关闭后写入应返回 ErrClosed, got %v", err)
	}
}

type countingSender struct{ n int }

func (c *countingSender) SendOrder(model.OrderRequest) { c.n++ }

func TestSinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.jsonl")
	w, err := NewWriter(path, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	next := &countingSender{}
	orders := NewOrderSink(w, next)
	orders.SendOrder(model.OrderRequest{Action: model.ActionNew, Order: model.Order{Ref: "r1", Side: model.SideBuy, Size: 1, Price: 100}})
	orders.RecordReport(model.ExecReport{Type: model.ExecFilled, OrderRef: "r1", Size: 1})
	NewSnapshotSink(w).SendSnapshot(model.BandSnapshot{Strategy: "s", Up: 1, Down: -1})
	if err := NewRoundSink(w).RecordRound(model.Round{Strategy: "s", Seq: 1, NetPnL: 2}); err != nil {
		t.Fatalf("RecordRound: %v", err)
	}
	if err := WriteMetrics(w, map[string]int{"x": 1}); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if next.n != 1 {
		t.Fatalf("订单应转发给下游, got %d", next.n)
	}
	lines := readLines(t, path)
	want := []string{KindOrder, KindReport, KindSnapshot, KindRound, KindMetrics}
	if len(lines) != len(want) {
		t.Fatalf("lines=%d, want %d", len(lines), len(want))
	}
	for i, k := range want {
		if lines[i]["kind"] != k {
			t.Errorf("第 %d 行 kind=%v, want %s", i, lines[i]["kind"], k)
		}
	}
	order := lines[0]["data"].(map[string]any)["order"].(map[string]any)
	if order["ref"] != "r1" || order["side"] != "buy" {
		t.Errorf("订单记录 = %v", order)
	}
}

// **Feature: stat-arb-engine, Property 10: Round Output Completeness**

func TestRound_OutputCompleteness_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("回合记录 JSON 必含必需字段", prop.ForAll(
		func(gross, fee float64, seq int, size int64) bool {
			r := newRecord(KindRound, model.Round{
				Strategy: "s", MainTicker: "M", HedgeTicker: "H",
				Seq: seq, Size: size, GrossPnL: gross, Fee: fee, NetPnL: gross - fee, Reason: model.TagClose,
			})
			b, err := json.Marshal(r)
			if err != nil {
				return false
			}
			var m map[string]any
			if err := json.Unmarshal(b, &m); err != nil {
				return false
			}
			data, ok := m["data"].(map[string]any)
			if !ok || m["kind"] != KindRound {
				return false
			}
			for _, k := range []string{"strategy", "main_ticker", "hedge_ticker", "seq", "size", "gross_pnl", "fee", "net_pnl", "reason", "closed_at"} {
				if _, ok := data[k]; !ok {
					return false
				}
			}
			return true
		},
		gen.Float64Range(-1000, 1000),
		gen.Float64Range(0, 10),
		gen.IntRange(1, 1000),
		gen.Int64Range(1, 100),
	))

	properties.TestingRun(t)
}

func TestWriter_FlushAndDrop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flush.jsonl")
	w, err := NewWriter(path, 1, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Write(map[string]int{"a": 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if lines := readLines(t, path); len(lines) != 1 {
		t.Fatalf("Flush 后 lines=%d, want 1", len(lines))
	}
	if got := w.Written() + w.Dropped(); got != 1 {
		t.Fatalf("written+dropped=%d, want 1", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("重复 Close: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("关闭后 Flush 应为空操作: %v", err)
	}
}
