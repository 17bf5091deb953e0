package formulas

import (
	"math"
	"testing"
)

func makeReturns(value float64, count int) []float64 {
	returns := make([]float64, count)
	for i := range returns {
		returns[i] = value
	}
	return returns
}

func TestLogReturns(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		expected []float64
	}{
		{
			name:     "too short",
			prices:   []float64{100},
			expected: []float64{},
		},
		{
			name:     "doubling",
			prices:   []float64{1, 2, 4},
			expected: []float64{math.Log(2), math.Log(2)},
		},
		{
			name:     "flat",
			prices:   []float64{50, 50, 50},
			expected: []float64{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogReturns(tt.prices)
			if len(got) != len(tt.expected) {
				t.Fatalf("length = %d, want %d", len(got), len(tt.expected))
			}
			for i := range got {
				if math.Abs(got[i]-tt.expected[i]) > 1e-12 {
					t.Errorf("returns[%d] = %f, want %f", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestLogReturns_NonPositivePricesAreMissing(t *testing.T) {
	got := LogReturns([]float64{100, 0, 100})
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Errorf("expected NaN markers for non-positive prices, got %v", got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name       string
		cumulative []float64
		expected   float64
		tolerance  float64
	}{
		{
			name:       "monotonic rise has no drawdown",
			cumulative: []float64{1.0, 1.1, 1.2, 1.3},
			expected:   0,
			tolerance:  1e-12,
		},
		{
			name:       "halving from peak",
			cumulative: []float64{1.0, 2.0, 1.0, 1.5},
			expected:   -0.5,
			tolerance:  1e-12,
		},
		{
			name:       "empty",
			cumulative: []float64{},
			expected:   0,
			tolerance:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(tt.cumulative)
			if math.Abs(got-tt.expected) > tt.tolerance {
				t.Errorf("MaxDrawdown = %f, want %f", got, tt.expected)
			}
			if got > 0 || got < -1 {
				t.Errorf("MaxDrawdown = %f outside [-1, 0]", got)
			}
		})
	}
}

func TestUlcerIndexNonNegative(t *testing.T) {
	paths := [][]float64{
		{1.0, 1.1, 0.9, 1.2},
		{1.0, 0.5, 0.25},
		{1.0, 1.0, 1.0},
		{},
	}
	for _, p := range paths {
		if ui := UlcerIndex(p); ui < 0 {
			t.Errorf("UlcerIndex(%v) = %f, want >= 0", p, ui)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name      string
		a, b      []float64
		expected  float64
		tolerance float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0, 1e-12},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0, 1e-12},
		{"opposite", []float64{1, 1}, []float64{-1, -1}, -1.0, 1e-12},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0.0, 0},
		{"length mismatch", []float64{1}, []float64{1, 2}, 0.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.tolerance {
				t.Errorf("CosineSimilarity = %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestMinMaxScale(t *testing.T) {
	got := MinMaxScale([]float64{2, 4, 6})
	want := []float64{0, 0.5, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("scaled[%d] = %f, want %f", i, got[i], want[i])
		}
	}

	// Constant input maps to zeros, not NaN.
	for _, v := range MinMaxScale(makeReturns(3.0, 5)) {
		if v != 0 {
			t.Errorf("constant series scaled to %f, want 0", v)
		}
	}
}

func TestFinite(t *testing.T) {
	if Finite(math.NaN()) != 0 || Finite(math.Inf(1)) != 0 || Finite(math.Inf(-1)) != 0 {
		t.Error("non-finite values must coerce to 0")
	}
	if Finite(1.5) != 1.5 {
		t.Error("finite values must pass through")
	}
}

func TestQuantile(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	if m := Median(data); math.Abs(m-3) > 1e-12 {
		t.Errorf("Median = %f, want 3", m)
	}
	// Input order must not matter and the input must not be mutated.
	shuffled := []float64{5, 1, 4, 2, 3}
	if m := Median(shuffled); math.Abs(m-3) > 1e-12 {
		t.Errorf("Median of shuffled = %f, want 3", m)
	}
	if shuffled[0] != 5 {
		t.Error("Quantile mutated its input")
	}
	// Even length interpolates the middle pair.
	if m := Median([]float64{1, 2, 3, 4}); math.Abs(m-2.5) > 1e-12 {
		t.Errorf("Median of even length = %f, want 2.5", m)
	}
	// Quartiles interpolate over (n-1)*p.
	quarters := []float64{1, 2, 3, 4}
	if q := Quantile(quarters, 0.25); math.Abs(q-1.75) > 1e-12 {
		t.Errorf("Quantile(0.25) = %f, want 1.75", q)
	}
	if q := Quantile(quarters, 0.75); math.Abs(q-3.25) > 1e-12 {
		t.Errorf("Quantile(0.75) = %f, want 3.25", q)
	}
	if q := Quantile(quarters, 0); q != 1 {
		t.Errorf("Quantile(0) = %f, want 1", q)
	}
	if q := Quantile(quarters, 1); q != 4 {
		t.Errorf("Quantile(1) = %f, want 4", q)
	}
}
