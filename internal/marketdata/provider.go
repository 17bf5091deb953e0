package marketdata

import "context"

// Provider is the external market-data capability. Any conforming source may
// be substituted; the engine ships a Yahoo Finance implementation.
type Provider interface {
	// FetchSeries retrieves the daily close series for one instrument over
	// the trailing lookback window. The returned series may contain gaps and
	// non-finite values; the gateway cleans it.
	FetchSeries(ctx context.Context, ticker string, lookbackYears int) (Series, error)

	// FetchRiskFreeProxy retrieves observations of a risk-free-rate proxy
	// over the lookback window, as annualized fractional rates.
	FetchRiskFreeProxy(ctx context.Context, lookbackYears int) ([]float64, error)
}
