package portfolio

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ever-flow/ETF/internal/marketdata"
	"github.com/ever-flow/ETF/internal/metrics"
)

// seriesFromReturns builds a price series on consecutive days from daily
// simple returns.
func seriesFromReturns(returns []float64) marketdata.Series {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := marketdata.Series{
		Dates:  make([]time.Time, len(returns)+1),
		Closes: make([]float64, len(returns)+1),
	}
	s.Dates[0] = start
	s.Closes[0] = 100
	for i, r := range returns {
		s.Dates[i+1] = start.AddDate(0, 0, i+1)
		s.Closes[i+1] = s.Closes[i] * (1 + r)
	}
	return s
}

// testRun builds an anchor plus three candidates: one tracking the anchor,
// one moving inversely, one independent.
func testRun(t *testing.T) (*metrics.Table, marketdata.PriceTable) {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	n := 120
	base := make([]float64, n)
	inverse := make([]float64, n)
	noise := make([]float64, n)
	for i := range base {
		base[i] = 0.001 + 0.01*rng.NormFloat64()
		inverse[i] = -base[i] + 0.002
		noise[i] = 0.0005 + 0.008*rng.NormFloat64()
	}

	prices := marketdata.PriceTable{
		"ANCHOR":  seriesFromReturns(base),
		"TRACKER": seriesFromReturns(base),
		"INVERSE": seriesFromReturns(inverse),
		"NOISE":   seriesFromReturns(noise),
	}
	table := &metrics.Table{
		Tickers: []string{"ANCHOR", "INVERSE", "NOISE", "TRACKER"},
		Rows: map[string]*metrics.Instrument{
			"ANCHOR":  {Ticker: "ANCHOR", Sharpe: 0.8},
			"TRACKER": {Ticker: "TRACKER", Sharpe: 0.8},
			"INVERSE": {Ticker: "INVERSE", Sharpe: 0.4},
			"NOISE":   {Ticker: "NOISE", Sharpe: 0.5},
		},
	}
	return table, prices
}

func TestComplements_FirstTier(t *testing.T) {
	table, prices := testRun(t)

	comps, err := Complements("ANCHOR", table, prices, []float64{0.5, 1.0}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, comps)

	// Only the independent series has |corr| < 0.5; the tracker and the
	// inverse are both strongly correlated in absolute terms.
	assert.Equal(t, "NOISE", comps[0].Ticker)
	for _, c := range comps {
		assert.Equal(t, 1, c.Tier)
		assert.Less(t, c.Correlation, 0.5)
		assert.NotEqual(t, "ANCHOR", c.Ticker)
	}
}

func TestComplements_TierRelaxation(t *testing.T) {
	table, prices := testRun(t)

	// A first tier nothing can pass forces fallback to the second.
	comps, err := Complements("ANCHOR", table, prices, []float64{1e-9, 1.0}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, comps)
	for _, c := range comps {
		assert.Equal(t, 2, c.Tier)
	}
	// Ordered by absolute correlation ascending.
	for i := 1; i < len(comps); i++ {
		assert.LessOrEqual(t, comps[i-1].Correlation, comps[i].Correlation)
	}
}

func TestComplements_ExcludesNonPositiveSharpe(t *testing.T) {
	table, prices := testRun(t)
	table.Rows["NOISE"].Sharpe = -0.1

	comps, err := Complements("ANCHOR", table, prices, []float64{1.0}, 5)
	require.NoError(t, err)
	for _, c := range comps {
		assert.NotEqual(t, "NOISE", c.Ticker)
		assert.Greater(t, c.Sharpe, 0.0)
	}
}

func TestComplements_UnknownAnchor(t *testing.T) {
	table, prices := testRun(t)

	_, err := Complements("MISSING", table, prices, nil, 5)
	assert.ErrorIs(t, err, ErrUnknownTicker)
}

func TestComplements_AllTiersExhausted(t *testing.T) {
	table, prices := testRun(t)

	_, err := Complements("ANCHOR", table, prices, []float64{1e-12}, 5)
	assert.ErrorIs(t, err, ErrNoComplements)
}

func TestBlendedPath(t *testing.T) {
	_, prices := testRun(t)

	path, err := BlendedPath("ANCHOR", "INVERSE", prices)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	for i, p := range path {
		assert.False(t, math.IsNaN(p.Cumulative), "point %d", i)
		if i > 0 {
			assert.True(t, path[i].Date.After(path[i-1].Date))
		}
	}
	// The inverse leg offsets the anchor, so the blend stays near flat
	// relative to either leg alone.
	final := path[len(path)-1].Cumulative
	assert.Greater(t, final, -0.5)
	assert.Less(t, final, 0.5)
}

func TestBlendedPath_NoSharedHistory(t *testing.T) {
	prices := marketdata.PriceTable{
		"A": seriesFromReturns([]float64{0.01, 0.02}),
	}
	_, err := BlendedPath("A", "B", prices)
	assert.Error(t, err)
}
