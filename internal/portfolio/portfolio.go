// Package portfolio builds on a recommendation run: complementary-instrument
// selection for diversification and blended performance paths.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ever-flow/ETF/internal/marketdata"
	"github.com/ever-flow/ETF/internal/metrics"
	"github.com/ever-flow/ETF/internal/universe"
	"github.com/ever-flow/ETF/pkg/formulas"
)

// ErrUnknownTicker is returned when the anchor ticker was not part of the run.
var ErrUnknownTicker = errors.New("ticker not present in run")

// ErrNoComplements is returned when every correlation tier is exhausted.
var ErrNoComplements = errors.New("no complementary instruments found")

// Complement is a diversification candidate for an anchor instrument.
type Complement struct {
	Ticker      string  `json:"ticker"`
	Name        string  `json:"name"`
	Correlation float64 `json:"correlation"`
	Sharpe      float64 `json:"sharpe_ratio"`
	Tier        int     `json:"tier"` // 1-based index of the |corr| ceiling that admitted it
}

// Complements ranks diversification candidates for the anchor ticker.
// Candidates need a positive Sharpe ratio and an absolute correlation with the
// anchor below one of the configured ceilings; tiers are tried in order and
// the first tier that yields any candidate wins. Results are ordered by
// absolute correlation ascending, then Sharpe descending.
func Complements(anchor string, table *metrics.Table, prices marketdata.PriceTable, tiers []float64, topN int) ([]Complement, error) {
	if !table.Has(anchor) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, anchor)
	}
	if len(tiers) == 0 {
		tiers = []float64{0.5, 1.0}
	}

	type candidate struct {
		ticker  string
		absCorr float64
		sharpe  float64
	}
	var pool []candidate
	for _, tk := range table.Tickers {
		if tk == anchor {
			continue
		}
		row := table.Rows[tk]
		if row.Sharpe <= 0 {
			continue
		}
		_, aligned := prices.AlignedReturns([]string{anchor, tk})
		a, b := aligned[anchor], aligned[tk]
		if len(a) < 2 || len(b) < 2 {
			continue
		}
		corr := formulas.Correlation(formulas.FiniteOnlyPair(a, b))
		if math.IsNaN(corr) {
			continue
		}
		pool = append(pool, candidate{ticker: tk, absCorr: math.Abs(corr), sharpe: row.Sharpe})
	}

	for tierIdx, ceiling := range tiers {
		var admitted []candidate
		for _, c := range pool {
			if c.absCorr < ceiling {
				admitted = append(admitted, c)
			}
		}
		if len(admitted) == 0 {
			continue
		}
		sort.SliceStable(admitted, func(i, j int) bool {
			if admitted[i].absCorr != admitted[j].absCorr {
				return admitted[i].absCorr < admitted[j].absCorr
			}
			if admitted[i].sharpe != admitted[j].sharpe {
				return admitted[i].sharpe > admitted[j].sharpe
			}
			return admitted[i].ticker < admitted[j].ticker
		})
		if topN > 0 && len(admitted) > topN {
			admitted = admitted[:topN]
		}
		out := make([]Complement, len(admitted))
		for i, c := range admitted {
			out[i] = Complement{
				Ticker:      c.ticker,
				Name:        universe.NameOf(c.ticker),
				Correlation: c.absCorr,
				Sharpe:      c.sharpe,
				Tier:        tierIdx + 1,
			}
		}
		return out, nil
	}
	return nil, ErrNoComplements
}

// BlendedPoint is one observation of an equally weighted two-instrument path.
type BlendedPoint struct {
	Date       time.Time `json:"date"`
	Cumulative float64   `json:"cumulative_return"`
}

// BlendedPath simulates a daily-rebalanced 50/50 portfolio of the two
// instruments over their shared trading days.
func BlendedPath(a, b string, prices marketdata.PriceTable) ([]BlendedPoint, error) {
	dates, aligned := prices.AlignedReturns([]string{a, b})
	ra, rb := aligned[a], aligned[b]
	if len(dates) == 0 || len(ra) != len(dates) || len(rb) != len(dates) {
		return nil, fmt.Errorf("%w: %s/%s have no shared history", ErrUnknownTicker, a, b)
	}

	blended := make([]float64, len(dates))
	for i := range blended {
		blended[i] = 0.5*formulas.Finite(ra[i]) + 0.5*formulas.Finite(rb[i])
	}
	cumulative := formulas.CumulativeReturns(blended)

	path := make([]BlendedPoint, len(dates))
	for i, d := range dates {
		path[i] = BlendedPoint{Date: d, Cumulative: cumulative[i] - 1}
	}
	return path, nil
}
