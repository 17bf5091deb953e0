// Package marketdata fetches, cleans and caches historical price series for
// the instrument universe, and derives the risk-free-rate proxy.
package marketdata

import (
	"math"
	"time"

	"github.com/ever-flow/ETF/pkg/formulas"
)

// Series is a time-indexed close-price series for one instrument.
// Dates are ascending and unique after cleaning.
type Series struct {
	Dates  []time.Time `msgpack:"dates"`
	Closes []float64   `msgpack:"closes"`
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Closes) }

// PriceTable holds cleaned close-price series per ticker. Immutable once a
// data-load cycle has produced it.
type PriceTable map[string]Series

// ReturnTable holds per-instrument log-return series. Length per ticker is
// the price series length minus one; non-finite entries mark missing values.
type ReturnTable map[string][]float64

// Returns derives the log-return table from the price table.
func (pt PriceTable) Returns() ReturnTable {
	rt := make(ReturnTable, len(pt))
	for tk, series := range pt {
		rt[tk] = formulas.LogReturns(series.Closes)
	}
	return rt
}

// AlignedReturns computes log returns over the dates shared by every
// requested ticker, so cross-instrument statistics compare the same trading
// days. Tickers missing from the table are skipped. The returned date slice
// covers the return observations (first shared date dropped).
func (pt PriceTable) AlignedReturns(tickers []string) ([]time.Time, map[string][]float64) {
	present := make([]string, 0, len(tickers))
	for _, tk := range tickers {
		if s, ok := pt[tk]; ok && s.Len() > 0 {
			present = append(present, tk)
		}
	}
	if len(present) == 0 {
		return nil, map[string][]float64{}
	}

	shared := make(map[time.Time]int)
	for _, d := range pt[present[0]].Dates {
		shared[d.Truncate(24*time.Hour)] = 1
	}
	for _, tk := range present[1:] {
		for _, d := range pt[tk].Dates {
			key := d.Truncate(24 * time.Hour)
			if shared[key] > 0 {
				shared[key]++
			}
		}
	}

	base := pt[present[0]]
	var dates []time.Time
	for _, d := range base.Dates {
		if shared[d.Truncate(24*time.Hour)] == len(present) {
			dates = append(dates, d.Truncate(24*time.Hour))
		}
	}
	if len(dates) < 2 {
		return nil, map[string][]float64{}
	}

	wanted := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		wanted[d] = i
	}
	out := make(map[string][]float64, len(present))
	for _, tk := range present {
		closes := make([]float64, len(dates))
		s := pt[tk]
		for i, d := range s.Dates {
			if idx, ok := wanted[d.Truncate(24*time.Hour)]; ok {
				closes[idx] = s.Closes[i]
			}
		}
		out[tk] = formulas.LogReturns(closes)
	}
	return dates[1:], out
}

// ValidCounts reports how many finite return observations each ticker has.
func (rt ReturnTable) ValidCounts() map[string]int {
	counts := make(map[string]int, len(rt))
	for tk, returns := range rt {
		n := 0
		for _, r := range returns {
			if !math.IsNaN(r) && !math.IsInf(r, 0) {
				n++
			}
		}
		counts[tk] = n
	}
	return counts
}
