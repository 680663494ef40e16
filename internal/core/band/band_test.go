package band

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// unitSamples 返回均值 0、总体标准差 1 的 n 个样本（n 为偶数）
func unitSamples(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		if i%2 == 0 {
			s[i] = 1
		} else {
			s[i] = -1
		}
	}
	return s
}

func TestCalibrate_UnitScenario(t *testing.T) {
	b := Calibrate(unitSamples(100), Params{RangeWidth: 1, MinRange: 0.5}, 0)
	if b.Mean != 0 || b.Std != 1 {
		t.Fatalf("mean=%v std=%v, want 0/1", b.Mean, b.Std)
	}
	if b.Margin != 1 || b.Up != 1 || b.Down != -1 {
		t.Fatalf("margin=%v up=%v down=%v, want 1/1/-1", b.Margin, b.Up, b.Down)
	}
	if b.HasStopLoss {
		t.Fatalf("未配置止损倍数不应有止损线")
	}
}

func TestCalibrate_MinRangeAndFee(t *testing.T) {
	b := Calibrate(unitSamples(10), Params{RangeWidth: 0.2, MinRange: 0.5, MinProfit: 0.1, StopLossMargin: 2}, 0.3)
	// max(0.2, 0.5) + 0.3
	if math.Abs(b.Margin-0.8) > 1e-12 {
		t.Fatalf("margin=%v, want 0.8", b.Margin)
	}
	if math.Abs(b.SpreadThreshold-0.4) > 1e-12 {
		t.Fatalf("spread_threshold=%v, want 0.4", b.SpreadThreshold)
	}
	if math.Abs(b.StopLossUp-(0.8+1.6)) > 1e-12 || math.Abs(b.StopLossDown+(0.8+1.6)) > 1e-12 {
		t.Fatalf("stop loss = %v/%v", b.StopLossUp, b.StopLossDown)
	}
}

func TestOneShot(t *testing.T) {
	b := OneShot([]float64{1, 3})
	if b.Mean != 2 || b.Up != 3 || b.Down != 1 {
		t.Fatalf("OneShot = %+v", b)
	}
}

func TestWiden(t *testing.T) {
	b := Calibrate(unitSamples(4), Params{RangeWidth: 1, StopLossMargin: 1}, 0).Widen(0.5)
	if b.Up != 1.5 || b.Down != -1.5 || b.StopLossUp != 2.5 || b.StopLossDown != -2.5 {
		t.Fatalf("Widen = %+v", b)
	}
}

// **Feature: stat-arb-engine, Property 3: Band Symmetry Around The Mean**

func TestCalibrate_Symmetry_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("上下轨关于均值对称且 margin 不小于 min_range + fee", prop.ForAll(
		func(samples []float64, width, minRange, fee float64) bool {
			b := Calibrate(samples, Params{RangeWidth: width, MinRange: minRange, StopLossMargin: 1}, fee)
			if math.Abs((b.Up-b.Mean)-(b.Mean-b.Down)) > 1e-9 {
				return false
			}
			if b.Margin < minRange+fee-1e-12 {
				return false
			}
			return b.StopLossUp >= b.Up && b.StopLossDown <= b.Down
		},
		gen.SliceOfN(50, gen.Float64Range(-10, 10)),
		gen.Float64Range(0, 5),
		gen.Float64Range(0, 2),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
