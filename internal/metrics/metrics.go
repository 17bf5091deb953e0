// Package metrics derives per-instrument risk statistics from log returns.
// Compute is a pure function of its inputs; every degenerate-math case
// substitutes 0 so no NaN or Inf ever reaches the final table.
package metrics

import (
	"math"
	"sort"

	"github.com/ever-flow/ETF/internal/marketdata"
	"github.com/ever-flow/ETF/internal/universe"
	"github.com/ever-flow/ETF/pkg/formulas"
)

const (
	annualFactor = formulas.TradingDaysPerYear

	// Per-market round-trip transaction cost rates subtracted from the
	// annualized mean return.
	transactionCostKR = 0.0015
	transactionCostUS = 0.0030

	epsVolatility = 1e-6
	epsOmega      = 1e-9
)

// Instrument holds the computed statistics for one instrument.
type Instrument struct {
	Ticker           string          `json:"ticker"`
	AnnualReturn     float64         `json:"annual_return"`
	AnnualVolatility float64         `json:"annual_volatility"`
	Sharpe           float64         `json:"sharpe_ratio"`
	Sortino          float64         `json:"sortino_ratio"`
	Calmar           float64         `json:"calmar_ratio"`
	Omega            float64         `json:"omega_ratio"`
	MaxDrawdown      float64         `json:"max_drawdown"`
	UlcerIndex       float64         `json:"ulcer_index"`
	DownsideRisk     float64         `json:"downside_risk"`
	Skewness         float64         `json:"skewness"`
	Kurtosis         float64         `json:"kurtosis"`
	RecentReturn     float64         `json:"recent_return"`
	RecentVolatility float64         `json:"recent_volatility"`
	Market           universe.Market `json:"market"`
	Cluster          int             `json:"cluster"`
}

// Table is the metrics table for one data-load cycle. Tickers preserves a
// deterministic (sorted) iteration order; the table is treated as immutable
// once produced, except for the cluster labels assigned right after
// clustering runs.
type Table struct {
	Tickers []string
	Rows    map[string]*Instrument
}

// Compute builds the metrics table from per-instrument log returns and a
// scalar annualized risk-free rate.
func Compute(returns marketdata.ReturnTable, riskFreeRate float64) *Table {
	tickers := make([]string, 0, len(returns))
	for tk := range returns {
		tickers = append(tickers, tk)
	}
	sort.Strings(tickers)

	table := &Table{
		Tickers: tickers,
		Rows:    make(map[string]*Instrument, len(tickers)),
	}
	for _, tk := range tickers {
		table.Rows[tk] = computeOne(tk, returns[tk], riskFreeRate)
	}
	return table
}

func computeOne(ticker string, rawReturns []float64, riskFreeRate float64) *Instrument {
	market := universe.MarketOf(ticker)
	inst := &Instrument{Ticker: ticker, Market: market}

	returns := formulas.FiniteOnly(rawReturns)
	if len(returns) < 2 {
		return inst
	}

	cost := transactionCostUS
	if market == universe.MarketKR {
		cost = transactionCostKR
	}

	inst.AnnualReturn = formulas.Mean(returns)*annualFactor - cost
	inst.AnnualVolatility = formulas.AnnualizedVolatility(returns)

	if inst.AnnualVolatility > epsVolatility {
		inst.Sharpe = (inst.AnnualReturn - riskFreeRate) / inst.AnnualVolatility
	}

	cumulative := formulas.CumulativeReturns(returns)
	inst.MaxDrawdown = formulas.MaxDrawdown(cumulative)
	inst.UlcerIndex = formulas.UlcerIndex(cumulative)

	dailyRiskFree := riskFreeRate / annualFactor

	// Downside risk: std dev with above-threshold days zeroed, matching the
	// mask-and-fill semantics of the reference implementation.
	downside := make([]float64, len(returns))
	for i, r := range returns {
		if r < dailyRiskFree {
			downside[i] = r
		}
	}
	inst.DownsideRisk = formulas.StdDev(downside) * math.Sqrt(annualFactor)
	if inst.DownsideRisk > epsVolatility {
		inst.Sortino = (inst.AnnualReturn - riskFreeRate) / inst.DownsideRisk
	}

	var gain, loss float64
	for _, r := range returns {
		if excess := r - dailyRiskFree; excess > 0 {
			gain += excess
		} else {
			loss += -excess
		}
	}
	gain /= float64(len(returns))
	loss /= float64(len(returns))
	if loss > epsOmega {
		inst.Omega = gain / loss
	}

	if math.Abs(inst.MaxDrawdown) > epsVolatility {
		inst.Calmar = inst.AnnualReturn / -inst.MaxDrawdown
	}

	inst.Skewness = formulas.Skewness(returns)
	inst.Kurtosis = formulas.ExcessKurtosis(returns)

	// Trailing one-year window; shorter histories leave these at 0.
	if len(returns) >= annualFactor {
		recent := returns[len(returns)-annualFactor:]
		inst.RecentReturn = formulas.Mean(recent) * annualFactor
		inst.RecentVolatility = formulas.AnnualizedVolatility(recent)
	}

	coerceFinite(inst)
	return inst
}

// coerceFinite replaces any NaN/Inf produced by degenerate math with 0.
func coerceFinite(inst *Instrument) {
	inst.AnnualReturn = formulas.Finite(inst.AnnualReturn)
	inst.AnnualVolatility = formulas.Finite(inst.AnnualVolatility)
	inst.Sharpe = formulas.Finite(inst.Sharpe)
	inst.Sortino = formulas.Finite(inst.Sortino)
	inst.Calmar = formulas.Finite(inst.Calmar)
	inst.Omega = formulas.Finite(inst.Omega)
	inst.MaxDrawdown = formulas.Finite(inst.MaxDrawdown)
	inst.UlcerIndex = formulas.Finite(inst.UlcerIndex)
	inst.DownsideRisk = formulas.Finite(inst.DownsideRisk)
	inst.Skewness = formulas.Finite(inst.Skewness)
	inst.Kurtosis = formulas.Finite(inst.Kurtosis)
	inst.RecentReturn = formulas.Finite(inst.RecentReturn)
	inst.RecentVolatility = formulas.Finite(inst.RecentVolatility)
}

// ClusteringFeatures returns the feature matrix used by the clustering
// engine, one row per ticker in table order.
func (t *Table) ClusteringFeatures() [][]float64 {
	features := make([][]float64, 0, len(t.Tickers))
	for _, tk := range t.Tickers {
		row := t.Rows[tk]
		features = append(features, []float64{
			row.AnnualReturn,
			row.AnnualVolatility,
			row.Sharpe,
			row.MaxDrawdown,
			row.Sortino,
			row.Calmar,
			row.Skewness,
			row.Kurtosis,
			row.UlcerIndex,
			row.Omega,
		})
	}
	return features
}

// SetClusters assigns cluster labels in table order. It is the one sanctioned
// mutation of a metrics table, performed once per data-load cycle.
func (t *Table) SetClusters(labels []int) {
	for i, tk := range t.Tickers {
		if i < len(labels) {
			t.Rows[tk].Cluster = labels[i]
		}
	}
}

// Has reports whether the ticker is present in the table.
func (t *Table) Has(ticker string) bool {
	_, ok := t.Rows[ticker]
	return ok
}
