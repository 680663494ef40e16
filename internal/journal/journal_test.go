package journal

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"stat-arb-engine/internal/core/model"
)

func TestJournal_RecordAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "rounds.db")
	j, err := Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	rounds := []model.Round{
		{Strategy: "a", MainTicker: "M", HedgeTicker: "H", Seq: 1, Size: 1, GrossPnL: 2, Fee: 0.5, NetPnL: 1.5, Reason: model.TagClose, ClosedAt: model.Timeval{Sec: 100, Usec: 5}},
		{Strategy: "b", MainTicker: "M", HedgeTicker: "H", Seq: 1, Size: 2, GrossPnL: -1, Fee: 0.5, NetPnL: -1.5, Reason: model.TagForceFlat},
		{Strategy: "a", MainTicker: "M", HedgeTicker: "H", Seq: 2, Size: 1, GrossPnL: -0.5, Fee: 0.5, NetPnL: -1, Reason: model.TagForceFlat},
	}
	for _, r := range rounds {
		if err := j.RecordRound(r); err != nil {
			t.Fatalf("RecordRound: %v", err)
		}
	}

	ctx := context.Background()
	got, err := j.Rounds(ctx, "a")
	if err != nil {
		t.Fatalf("Rounds: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 1 || got[1].Seq != 2 {
		t.Fatalf("Rounds(a) = %+v", got)
	}
	if got[0] != rounds[0] {
		t.Errorf("回合往返不一致: %+v vs %+v", got[0], rounds[0])
	}

	n, net, err := j.Summary(ctx, "a")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if n != 2 || math.Abs(net-0.5) > 1e-9 {
		t.Fatalf("Summary(a) = %d, %v", n, net)
	}
}

func TestJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rounds.db")
	j, err := Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j.RecordRound(model.Round{Strategy: "a", Seq: 1, NetPnL: 1}); err != nil {
		t.Fatalf("RecordRound: %v", err)
	}
	j.Close()

	j, err = Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("重新打开失败: %v", err)
	}
	defer j.Close()
	n, _, err := j.Summary(context.Background(), "a")
	if err != nil || n != 1 {
		t.Fatalf("重新打开后回合数 = %d, err=%v", n, err)
	}
}
