package pricing

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestRoundToTick(t *testing.T) {
	cases := []struct {
		price, tick, want float64
	}{
		{100.04, 0.1, 100.0},
		{100.06, 0.1, 100.1},
		{0.1 + 0.2, 0.1, 0.3},
		{3512.3, 0.5, 3512.5},
		{42, 0, 42},
	}
	for _, c := range cases {
		if got := RoundToTick(c.price, c.tick); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("RoundToTick(%v, %v) = %v, want %v", c.price, c.tick, got, c.want)
		}
	}
}

func TestFloorCeil(t *testing.T) {
	if got := FloorToTick(100.09, 0.1); math.Abs(got-100.0) > 1e-12 {
		t.Fatalf("FloorToTick = %v, want 100", got)
	}
	if got := CeilToTick(100.01, 0.1); math.Abs(got-100.1) > 1e-12 {
		t.Fatalf("CeilToTick = %v, want 100.1", got)
	}
	if got := Shift(100.0, 0.2, -3); math.Abs(got-99.4) > 1e-12 {
		t.Fatalf("Shift = %v, want 99.4", got)
	}
	if got := Ticks(100.4, 100.0, 0.2); got != 2 {
		t.Fatalf("Ticks = %d, want 2", got)
	}
}

// **Feature: stat-arb-engine, Property 1: Tick Rounding Stays On Grid**

func TestRoundToTick_OnGrid_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("取整结果是价位整数倍且误差不超过半个价位", prop.ForAll(
		func(price float64, tickIdx int) bool {
			tick := []float64{0.01, 0.1, 0.2, 0.5, 1, 5}[tickIdx]
			got := RoundToTick(price, tick)
			n := got / tick
			if math.Abs(n-math.Round(n)) > 1e-6 {
				return false
			}
			return math.Abs(got-price) <= tick/2+1e-9
		},
		gen.Float64Range(0.01, 100000),
		gen.IntRange(0, 5),
	))

	properties.Property("下取整不大于原价，上取整不小于原价", prop.ForAll(
		func(price float64) bool {
			tick := 0.1
			return FloorToTick(price, tick) <= price+1e-9 && CeilToTick(price, tick) >= price-1e-9
		},
		gen.Float64Range(0.01, 100000),
	))

	properties.TestingRun(t)
}
