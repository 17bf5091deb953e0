package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ever-flow/ETF/pkg/formulas"
)

// defaultRiskFreeRate is used when the rate proxy is unavailable or empty.
const defaultRiskFreeRate = 0.03

// ErrInsufficientData reports that too few tickers survived fetching to run
// the pipeline.
var ErrInsufficientData = errors.New("insufficient usable ticker data")

// ProgressFunc receives per-ticker fetch progress for the presentation layer.
type ProgressFunc func(ticker string, index, total int, ok bool)

// Gateway retrieves price series for the universe with caching and per-ticker
// retries, and normalizes gaps before anything downstream sees the data.
type Gateway struct {
	provider   Provider
	snapshots  *SnapshotStore
	history    *HistoryStore
	maxRetries int
	minUsable  int
	onProgress ProgressFunc
	log        zerolog.Logger
}

// GatewayConfig holds gateway construction parameters.
type GatewayConfig struct {
	Provider   Provider
	Snapshots  *SnapshotStore
	History    *HistoryStore // optional; nil disables persistence
	MaxRetries int
	MinUsable  int
	OnProgress ProgressFunc // optional
	Log        zerolog.Logger
}

// NewGateway creates a market data gateway. The provider is a required
// capability; a missing provider is a configuration error surfaced at
// startup rather than on first use.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("market data provider is required")
	}
	if cfg.Snapshots == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.MinUsable < 1 {
		cfg.MinUsable = 5
	}
	return &Gateway{
		provider:   cfg.Provider,
		snapshots:  cfg.Snapshots,
		history:    cfg.History,
		maxRetries: cfg.MaxRetries,
		minUsable:  cfg.MinUsable,
		onProgress: cfg.OnProgress,
		log:        cfg.Log.With().Str("component", "gateway").Logger(),
	}, nil
}

// Fetch returns cleaned price series for the requested tickers over the
// trailing lookback window. A valid cache snapshot short-circuits network
// access. Individual ticker failures are collected, not fatal; fewer than
// the minimum usable count is a hard failure.
func (g *Gateway) Fetch(ctx context.Context, tickers []string, lookbackYears int) (PriceTable, []string, []string, error) {
	if snap, _ := g.snapshots.Load(); g.snapshots.Valid(snap, tickers) {
		table := make(PriceTable, len(tickers))
		successes := make([]string, 0, len(tickers))
		for _, tk := range tickers {
			if series, ok := snap.PriceData[tk]; ok {
				table[tk] = series
				successes = append(successes, tk)
			}
		}
		g.log.Info().Int("tickers", len(successes)).Msg("Serving prices from cache snapshot")
		return table, successes, nil, nil
	}

	g.log.Info().Int("tickers", len(tickers)).Int("lookback_years", lookbackYears).Msg("Downloading price data")

	table := make(PriceTable)
	var successes, failures []string

	for i, tk := range tickers {
		series, err := g.fetchOne(ctx, tk, lookbackYears)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, nil, nil, err
			}
			g.log.Warn().Err(err).Str("ticker", tk).Msg("Ticker failed after retries")
			failures = append(failures, tk)
			g.reportProgress(tk, i+1, len(tickers), false)
			continue
		}
		table[tk] = series
		successes = append(successes, tk)
		g.reportProgress(tk, i+1, len(tickers), true)
	}

	if len(successes) < g.minUsable {
		return nil, successes, failures, fmt.Errorf("%w: %d usable tickers, need at least %d",
			ErrInsufficientData, len(successes), g.minUsable)
	}

	snap := &Snapshot{
		PriceData:     table,
		Tickers:       successes,
		DownloadTime:  time.Now(),
		FailedTickers: failures,
	}
	if err := g.snapshots.Save(snap); err != nil {
		// Cache write failure degrades the next request, not this one.
		g.log.Warn().Err(err).Msg("Failed to persist cache snapshot")
	}

	if g.history != nil {
		for tk, series := range table {
			if err := g.history.UpsertSeries(tk, series); err != nil {
				g.log.Warn().Err(err).Str("ticker", tk).Msg("Failed to persist price history")
			}
		}
	}

	return table, successes, failures, nil
}

// fetchOne retrieves and cleans one ticker's series, retrying with
// exponential backoff up to the retry bound.
func (g *Gateway) fetchOne(ctx context.Context, tk string, lookbackYears int) (Series, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		raw, err := g.provider.FetchSeries(ctx, tk, lookbackYears)
		if err == nil {
			cleaned, cleanErr := CleanSeries(raw)
			if cleanErr == nil {
				return cleaned, nil
			}
			err = cleanErr
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Series{}, err
		}
		if attempt < g.maxRetries {
			waitTime := time.Duration(1<<uint(attempt-1)) * time.Second
			g.log.Debug().Err(err).Str("ticker", tk).Int("attempt", attempt).Dur("wait", waitTime).Msg("Retrying")
			select {
			case <-ctx.Done():
				return Series{}, ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}
	return Series{}, lastErr
}

// FetchRiskFreeRate returns the annualized risk-free rate for the lookback
// window. It never fails: an unreachable source or an empty series falls back
// to the default rate.
func (g *Gateway) FetchRiskFreeRate(ctx context.Context, lookbackYears int) float64 {
	rates, err := g.provider.FetchRiskFreeProxy(ctx, lookbackYears)
	if err != nil {
		g.log.Warn().Err(err).Float64("fallback", defaultRiskFreeRate).Msg("Risk-free proxy unavailable")
		return defaultRiskFreeRate
	}
	rates = formulas.FiniteOnly(rates)
	if len(rates) == 0 {
		return defaultRiskFreeRate
	}
	return formulas.Mean(rates)
}

func (g *Gateway) reportProgress(tk string, index, total int, ok bool) {
	if g.onProgress != nil {
		g.onProgress(tk, index, total, ok)
	}
}

// CleanSeries normalizes a raw provider series: infinite values become
// missing, at least two valid observations are required, remaining gaps are
// filled by linear interpolation then forward- and backward-fill, and
// duplicate dates are dropped keeping the first entry.
func CleanSeries(raw Series) (Series, error) {
	if raw.Len() == 0 || len(raw.Dates) != len(raw.Closes) {
		return Series{}, fmt.Errorf("empty or malformed series")
	}

	closes := make([]float64, len(raw.Closes))
	for i, v := range raw.Closes {
		if math.IsInf(v, 0) || v == 0 {
			closes[i] = math.NaN()
		} else {
			closes[i] = v
		}
	}

	valid := 0
	for _, v := range closes {
		if !math.IsNaN(v) {
			valid++
		}
	}
	if valid < 2 {
		return Series{}, fmt.Errorf("fewer than 2 valid observations")
	}

	interpolate(closes)
	forwardFill(closes)
	backwardFill(closes)

	// Deduplicate the time index keeping the first entry, preserving order.
	type point struct {
		date  time.Time
		close float64
	}
	seen := make(map[int64]struct{}, len(raw.Dates))
	points := make([]point, 0, len(raw.Dates))
	for i, d := range raw.Dates {
		key := d.Unix()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		points = append(points, point{date: d, close: closes[i]})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].date.Before(points[j].date) })

	out := Series{
		Dates:  make([]time.Time, len(points)),
		Closes: make([]float64, len(points)),
	}
	for i, p := range points {
		out.Dates[i] = p.date
		out.Closes[i] = p.close
	}
	return out, nil
}

// interpolate fills interior NaN runs linearly between the surrounding valid
// observations.
func interpolate(values []float64) {
	prev := -1
	for i := 0; i < len(values); i++ {
		if math.IsNaN(values[i]) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (values[i] - values[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				values[j] = values[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
}

func forwardFill(values []float64) {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
		} else {
			last = v
		}
	}
}

func backwardFill(values []float64) {
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
		} else {
			next = values[i]
		}
	}
}
