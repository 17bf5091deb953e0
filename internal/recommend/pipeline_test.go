package recommend

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ever-flow/ETF/internal/marketdata"
	"github.com/ever-flow/ETF/internal/profile"
)

// syntheticProvider serves deterministic random-walk prices per ticker so the
// full pipeline can run without network access.
type syntheticProvider struct{}

func (syntheticProvider) FetchSeries(_ context.Context, ticker string, _ int) (marketdata.Series, error) {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	const days = 300
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := marketdata.Series{
		Dates:  make([]time.Time, days),
		Closes: make([]float64, days),
	}
	price := 100.0
	drift := rng.Float64()*0.002 - 0.0005
	vol := 0.005 + rng.Float64()*0.02
	for i := 0; i < days; i++ {
		price *= math.Exp(drift + vol*rng.NormFloat64())
		s.Dates[i] = start.AddDate(0, 0, i)
		s.Closes[i] = price
	}
	return s, nil
}

func (syntheticProvider) FetchRiskFreeProxy(context.Context, int) ([]float64, error) {
	return []float64{0.04, 0.042, 0.041}, nil
}

func newTestPipeline(t *testing.T, peers PeerSource) *Pipeline {
	t.Helper()
	snapshots := marketdata.NewSnapshotStore(
		filepath.Join(t.TempDir(), "cache.msgpack"), 6*time.Hour, zerolog.Nop())
	gw, err := marketdata.NewGateway(marketdata.GatewayConfig{
		Provider:  syntheticProvider{},
		Snapshots: snapshots,
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)

	pipe, err := NewPipeline(PipelineConfig{
		Gateway: gw,
		Peers:   peers,
		Seed:    42,
		TopN:    7,
		Log:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return pipe
}

func TestPipeline_EndToEnd(t *testing.T) {
	pipe := newTestPipeline(t, nil)

	res, err := pipe.Run(context.Background(), basicProfile(), 7)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.GeneratedAt.IsZero())
	require.NotEmpty(t, res.Recommendations)
	assert.LessOrEqual(t, len(res.Recommendations), 7)
	assert.GreaterOrEqual(t, res.Clusters, 1)
	assert.Equal(t, 5, res.LookbackYears)
	assert.InDelta(t, 0.041, res.RiskFreeRate, 1e-9)

	// Ranked descending, with finite display fields.
	for i := 1; i < len(res.Recommendations); i++ {
		assert.GreaterOrEqual(t, res.Recommendations[i-1].Score, res.Recommendations[i].Score)
	}
	for _, rec := range res.Recommendations {
		assert.NotEmpty(t, rec.Name, rec.Ticker)
		assert.NotEmpty(t, rec.Category, rec.Ticker)
		assert.False(t, math.IsNaN(rec.Score), rec.Ticker)
		assert.Greater(t, rec.AUM, 0.0, rec.Ticker)
	}
	assert.NotNil(t, res.Metrics())
	assert.NotEmpty(t, res.Returns())
}

func TestPipeline_DeterministicAcrossRuns(t *testing.T) {
	pipe := newTestPipeline(t, nil)
	p := basicProfile()

	first, err := pipe.Run(context.Background(), p, 7)
	require.NoError(t, err)
	second, err := pipe.Run(context.Background(), p, 7)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Tickers(), second.Tickers())
	require.Equal(t, len(first.Recommendations), len(second.Recommendations))
	for i := range first.Recommendations {
		assert.InDelta(t, first.Recommendations[i].Score, second.Recommendations[i].Score, 1e-12, "rank %d", i)
	}
}

func TestPipeline_ReusesMarketView(t *testing.T) {
	pipe := newTestPipeline(t, nil)
	p := basicProfile()

	first, err := pipe.Run(context.Background(), p, 7)
	require.NoError(t, err)
	second, err := pipe.Run(context.Background(), p, 7)
	require.NoError(t, err)

	// Same lookback within the TTL shares one computed view.
	assert.Same(t, first.Metrics(), second.Metrics())

	// A different lookback builds its own view.
	p.InvestmentHorizon = 1
	third, err := pipe.Run(context.Background(), p, 7)
	require.NoError(t, err)
	assert.NotSame(t, first.Metrics(), third.Metrics())
}

func TestPipeline_InvalidProfile(t *testing.T) {
	pipe := newTestPipeline(t, nil)
	p := basicProfile()
	p.RiskTolerance = 9

	_, err := pipe.Run(context.Background(), p, 7)
	assert.Error(t, err)
}

func TestPipeline_MarketPreferenceRestrictsResults(t *testing.T) {
	pipe := newTestPipeline(t, nil)
	p := basicProfile()
	p.MarketPreference = profile.MarketPrefForeign

	res, err := pipe.Run(context.Background(), p, 20)
	require.NoError(t, err)
	for _, rec := range res.Recommendations {
		assert.Equal(t, "US", rec.Market, rec.Ticker)
	}
}
