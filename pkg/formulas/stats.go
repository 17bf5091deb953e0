// Package formulas provides reusable financial math helpers.
package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization factor for daily observations.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Quantile returns the p-quantile (0 <= p <= 1) of data using linear
// interpolation over (n-1)*p between order statistics, so the median of an
// odd-length series is its middle element. The input is not modified.
func Quantile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := float64(len(sorted)-1) * p
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if frac == 0 {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Median returns the median of data.
func Median(data []float64) float64 {
	return Quantile(data, 0.5)
}

// Correlation calculates the Pearson correlation coefficient between two series.
// Mismatched or empty inputs yield 0.
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return Finite(stat.Correlation(x, y, nil))
}

// Skewness returns the sample skewness of the return distribution.
func Skewness(data []float64) float64 {
	if len(data) < 3 {
		return 0
	}
	return Finite(stat.Skew(data, nil))
}

// ExcessKurtosis returns the excess kurtosis of the return distribution.
func ExcessKurtosis(data []float64) float64 {
	if len(data) < 4 {
		return 0
	}
	return Finite(stat.ExKurtosis(data, nil))
}

// LogReturns converts a price series to log returns.
// The result has length len(prices)-1; non-positive price pairs produce NaN,
// which callers treat as missing.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}
	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i] > 0 && prices[i-1] > 0 {
			returns[i-1] = math.Log(prices[i] / prices[i-1])
		} else {
			returns[i-1] = math.NaN()
		}
	}
	return returns
}

// AnnualizedVolatility calculates annualized volatility from daily returns.
// Formula: std dev of daily returns x sqrt(252).
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// CumulativeReturns builds the compounded growth path (1+r1)(1+r2)...
// from a series of simple returns. Result has the same length as returns.
func CumulativeReturns(returns []float64) []float64 {
	path := make([]float64, len(returns))
	cum := 1.0
	for i, r := range returns {
		cum *= 1 + r
		path[i] = cum
	}
	return path
}

// DrawdownSeries returns the drawdown at each point of a cumulative return
// path: (value / running peak) - 1. Every element is <= 0.
func DrawdownSeries(cumulative []float64) []float64 {
	dd := make([]float64, len(cumulative))
	peak := math.Inf(-1)
	for i, v := range cumulative {
		if v > peak {
			peak = v
		}
		if peak != 0 {
			dd[i] = v/peak - 1
		}
	}
	return dd
}

// MaxDrawdown returns the deepest drawdown (most negative value) of a
// cumulative return path, expressed as a fraction in [-1, 0].
func MaxDrawdown(cumulative []float64) float64 {
	min := 0.0
	for _, d := range DrawdownSeries(cumulative) {
		if d < min {
			min = d
		}
	}
	return min
}

// UlcerIndex is the root-mean-square of the drawdown series.
func UlcerIndex(cumulative []float64) float64 {
	dd := DrawdownSeries(cumulative)
	if len(dd) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range dd {
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(dd)))
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Zero vectors or mismatched lengths yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MinMaxScale normalizes values to [0,1]. A constant series maps to all zeros.
func MinMaxScale(values []float64) []float64 {
	scaled := make([]float64, len(values))
	if len(values) == 0 {
		return scaled
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	span := max - min
	if span == 0 {
		return scaled
	}
	for i, v := range values {
		scaled[i] = (v - min) / span
	}
	return scaled
}

// Finite coerces NaN and +/-Inf to 0. Degenerate math must never leak a
// non-finite value into a results table.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FiniteOnly returns the finite elements of data, preserving order.
func FiniteOnly(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// FiniteOnlyPair keeps the positions where both series are finite, so paired
// statistics stay aligned.
func FiniteOnlyPair(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	outA := make([]float64, 0, n)
	outB := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(a[i]) || math.IsInf(a[i], 0) || math.IsNaN(b[i]) || math.IsInf(b[i], 0) {
			continue
		}
		outA = append(outA, a[i])
		outB = append(outB, b[i])
	}
	return outA, outB
}
