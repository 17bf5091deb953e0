package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/ever-flow/ETF/internal/universe"
)

// riskFreeSymbol is the 13-week US T-bill yield index, quoted in percent.
const riskFreeSymbol = "^IRX"

// YahooProvider implements Provider using the go-yfinance library.
type YahooProvider struct {
	log zerolog.Logger
}

// NewYahooProvider creates a Yahoo Finance market-data provider.
func NewYahooProvider(log zerolog.Logger) *YahooProvider {
	return &YahooProvider{
		log: log.With().Str("component", "yahoo_provider").Logger(),
	}
}

// toYahooSymbol converts a universe identifier to Yahoo's symbology.
// Domestic (KRX) six-digit codes get the .KS suffix; US symbols pass through.
func toYahooSymbol(id string) string {
	if universe.MarketOf(id) == universe.MarketKR {
		return id + ".KS"
	}
	return id
}

// lookbackPeriod maps a lookback window in years to a Yahoo range string.
func lookbackPeriod(years int) string {
	switch {
	case years <= 1:
		return "1y"
	case years <= 2:
		return "2y"
	case years <= 5:
		return "5y"
	default:
		return "10y"
	}
}

// FetchSeries retrieves the daily adjusted close series for one instrument.
func (p *YahooProvider) FetchSeries(ctx context.Context, id string, lookbackYears int) (Series, error) {
	if err := ctx.Err(); err != nil {
		return Series{}, err
	}

	symbol := toYahooSymbol(id)
	t, err := ticker.New(symbol)
	if err != nil {
		return Series{}, fmt.Errorf("failed to create ticker %s: %w", symbol, err)
	}
	defer t.Close()

	params := models.HistoryParams{
		Period:     lookbackPeriod(lookbackYears),
		Interval:   "1d",
		AutoAdjust: true,
	}
	bars, err := t.History(params)
	if err != nil {
		return Series{}, fmt.Errorf("failed to get history for %s: %w", symbol, err)
	}

	series := Series{
		Dates:  make([]time.Time, 0, len(bars)),
		Closes: make([]float64, 0, len(bars)),
	}
	for _, bar := range bars {
		close := bar.Close
		if bar.AdjClose != 0 {
			close = bar.AdjClose
		}
		series.Dates = append(series.Dates, bar.Date)
		series.Closes = append(series.Closes, close)
	}
	return series, nil
}

// FetchRiskFreeProxy retrieves T-bill yield observations over the lookback
// window, converted from percent to fractions.
func (p *YahooProvider) FetchRiskFreeProxy(ctx context.Context, lookbackYears int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := ticker.New(riskFreeSymbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create risk-free ticker: %w", err)
	}
	defer t.Close()

	params := models.HistoryParams{
		Period:   lookbackPeriod(lookbackYears),
		Interval: "1d",
	}
	bars, err := t.History(params)
	if err != nil {
		return nil, fmt.Errorf("failed to get risk-free history: %w", err)
	}

	rates := make([]float64, 0, len(bars))
	for _, bar := range bars {
		if bar.Close > 0 {
			rates = append(rates, bar.Close/100.0)
		}
	}
	return rates, nil
}
