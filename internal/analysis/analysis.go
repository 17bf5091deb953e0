// Package analysis provides follow-up analytics on a recommendation run:
// cross-instrument correlations and technical indicators.
package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/ever-flow/ETF/internal/marketdata"
	"github.com/ever-flow/ETF/pkg/formulas"
)

// Default indicator periods, matching common charting conventions.
const (
	DefaultSMAPeriod = 20
	DefaultEMAPeriod = 20
	DefaultRSIPeriod = 14
)

// ErrNotEnoughHistory is returned when a series is too short for the
// requested indicator periods.
var ErrNotEnoughHistory = errors.New("not enough price history")

// CorrelationMatrix holds pairwise return correlations over the trading days
// shared by all included tickers.
type CorrelationMatrix struct {
	Tickers []string    `json:"tickers"`
	Matrix  [][]float64 `json:"matrix"`
}

// Correlations computes the pairwise correlation matrix of daily log returns
// for the given tickers. Tickers without price data are dropped; the matrix
// covers only the dates every remaining ticker traded.
func Correlations(tickers []string, prices marketdata.PriceTable) (*CorrelationMatrix, error) {
	_, aligned := prices.AlignedReturns(tickers)

	kept := make([]string, 0, len(tickers))
	for _, tk := range tickers {
		if returns, ok := aligned[tk]; ok && len(returns) >= 2 {
			kept = append(kept, tk)
		}
	}
	if len(kept) < 2 {
		return nil, fmt.Errorf("%w: need at least two tickers with overlapping history", ErrNotEnoughHistory)
	}

	n := len(kept)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			corr := formulas.Finite(formulas.Correlation(
				formulas.FiniteOnlyPair(aligned[kept[i]], aligned[kept[j]])))
			matrix[i][j] = corr
			matrix[j][i] = corr
		}
	}
	return &CorrelationMatrix{Tickers: kept, Matrix: matrix}, nil
}

// IndicatorSeries carries a close series with its moving averages and RSI.
// Leading observations where an indicator has not warmed up yet are zero.
type IndicatorSeries struct {
	Ticker string      `json:"ticker"`
	Dates  []time.Time `json:"dates"`
	Close  []float64   `json:"close"`
	SMA    []float64   `json:"sma"`
	EMA    []float64   `json:"ema"`
	RSI    []float64   `json:"rsi"`
}

// IndicatorParams selects the lookback window of each indicator. Zero values
// take the defaults.
type IndicatorParams struct {
	SMAPeriod int
	EMAPeriod int
	RSIPeriod int
}

func (p *IndicatorParams) applyDefaults() {
	if p.SMAPeriod <= 0 {
		p.SMAPeriod = DefaultSMAPeriod
	}
	if p.EMAPeriod <= 0 {
		p.EMAPeriod = DefaultEMAPeriod
	}
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = DefaultRSIPeriod
	}
}

// Indicators computes SMA, EMA and RSI over a ticker's cleaned close series.
func Indicators(ticker string, prices marketdata.PriceTable, params IndicatorParams) (*IndicatorSeries, error) {
	params.applyDefaults()

	series, ok := prices[ticker]
	if !ok {
		return nil, fmt.Errorf("no price data for %s", ticker)
	}
	longest := params.SMAPeriod
	if params.EMAPeriod > longest {
		longest = params.EMAPeriod
	}
	if params.RSIPeriod+1 > longest {
		longest = params.RSIPeriod + 1
	}
	if series.Len() < longest {
		return nil, fmt.Errorf("%w: %s has %d observations, need %d", ErrNotEnoughHistory, ticker, series.Len(), longest)
	}

	return &IndicatorSeries{
		Ticker: ticker,
		Dates:  series.Dates,
		Close:  series.Closes,
		SMA:    talib.Sma(series.Closes, params.SMAPeriod),
		EMA:    talib.Ema(series.Closes, params.EMAPeriod),
		RSI:    talib.Rsi(series.Closes, params.RSIPeriod),
	}, nil
}
