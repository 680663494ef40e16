package timeutil

import "testing"

func TestNowMonotonic(t *testing.T) {
	a := NowNano()
	b := NowNano()
	if b < a {
		t.Fatalf("NowNano 回退: %d -> %d", a, b)
	}
	if ms := NowMs(); ms < NanoToMs(a) {
		t.Fatalf("NowMs = %d 早于 %d", ms, NanoToMs(a))
	}
}

func TestConversions(t *testing.T) {
	if MsToNano(1500) != 1_500_000_000 || NanoToMs(1_500_000_000) != 1500 {
		t.Fatal("毫秒/纳秒换算错误")
	}
}
