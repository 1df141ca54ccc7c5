package sources

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFlexFloat(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{`"123.45"`, 123.45},
		{`67.8`, 67.8},
		{`""`, 0},
		{`"0"`, 0},
	}
	for _, tc := range cases {
		var f flexFloat
		if err := json.Unmarshal([]byte(tc.in), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if float64(f) != tc.want {
			t.Errorf("flexFloat(%s) = %v, want %v", tc.in, float64(f), tc.want)
		}
	}
}

func TestEMASeedAndConvergence(t *testing.T) {
	prices := []float64{10, 10, 10, 10, 10}
	out := ema(prices, 9)
	if out[0] != 10 {
		t.Fatalf("ema seed = %v, want first price", out[0])
	}
	if math.Abs(out[len(out)-1]-10) > 1e-9 {
		t.Fatalf("ema of constant series must stay constant, got %v", out[len(out)-1])
	}
}

func TestEMASignalTrend(t *testing.T) {
	up := make([]float64, 50)
	down := make([]float64, 50)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 200 - float64(i)
	}

	if got := emaSignal(up); got != 1 {
		t.Errorf("rising series: signal = %d, want 1", got)
	}
	if got := emaSignal(down); got != -1 {
		t.Errorf("falling series: signal = %d, want -1", got)
	}
	if got := emaSignal([]float64{42}); got != 0 {
		t.Errorf("single price: signal = %d, want 0", got)
	}
}

func TestSignalChangedOnReversal(t *testing.T) {
	// long downtrend, then a violent reversal bar that flips the fast EMA
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 200 - float64(i)
	}
	if signalChanged(prices) {
		t.Fatalf("steady downtrend must not report a signal change")
	}

	prices = append(prices, 1000)
	if emaSignal(prices) != 1 {
		t.Fatalf("reversal bar should flip the signal bullish")
	}
	if !signalChanged(prices) {
		t.Fatalf("flip on the latest bar must report a signal change")
	}
}
