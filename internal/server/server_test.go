package server

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ever-flow/ETF/internal/config"
	"github.com/ever-flow/ETF/internal/marketdata"
	"github.com/ever-flow/ETF/internal/recommend"
)

type stubProvider struct{}

func (stubProvider) FetchSeries(_ context.Context, ticker string, _ int) (marketdata.Series, error) {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	const days = 280
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := marketdata.Series{
		Dates:  make([]time.Time, days),
		Closes: make([]float64, days),
	}
	price := 100.0
	for i := 0; i < days; i++ {
		price *= math.Exp(0.0003 + (0.005+rng.Float64()*0.015)*rng.NormFloat64())
		s.Dates[i] = start.AddDate(0, 0, i)
		s.Closes[i] = price
	}
	return s, nil
}

func (stubProvider) FetchRiskFreeProxy(context.Context, int) ([]float64, error) {
	return []float64{0.04}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	snapshots := marketdata.NewSnapshotStore(
		filepath.Join(dir, "cache.msgpack"), 6*time.Hour, zerolog.Nop())
	gw, err := marketdata.NewGateway(marketdata.GatewayConfig{
		Provider:  stubProvider{},
		Snapshots: snapshots,
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)

	pipe, err := recommend.NewPipeline(recommend.PipelineConfig{
		Gateway: gw,
		Seed:    42,
		TopN:    7,
		Log:     zerolog.Nop(),
	})
	require.NoError(t, err)

	return New(Config{
		Log: zerolog.Nop(),
		Cfg: &config.Config{
			DataDir:             dir,
			ComplementCorrTiers: []float64{0.5, 1.0},
		},
		Pipeline: pipe,
		Hub:      NewProgressHub(zerolog.Nop()),
		Port:     0,
	})
}

func postRecommendations(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/recommendations", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

const validBody = `{"profile":{"risk_tolerance":3,"investment_horizon":3,"goal":3,"market_preference":3,"experience":2,"loss_aversion":3,"theme_preference":1},"top_n":5}`

func TestHandleRecommendations(t *testing.T) {
	s := newTestServer(t)

	w := postRecommendations(t, s, validBody)
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		RunID           string `json:"run_id"`
		Recommendations []struct {
			Ticker string  `json:"ticker"`
			Score  float64 `json:"recommendation_score"`
		} `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.NotEmpty(t, res.RunID)
	require.NotEmpty(t, res.Recommendations)
	assert.LessOrEqual(t, len(res.Recommendations), 5)
}

func TestHandleRecommendations_BadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"profile":`},
		{"out of range answer", `{"profile":{"risk_tolerance":9,"investment_horizon":3,"goal":3,"market_preference":3,"experience":2,"loss_aversion":3,"theme_preference":1}}`},
		{"missing answers", `{"profile":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postRecommendations(t, s, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRunFollowUpEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := postRecommendations(t, s, validBody)
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		RunID           string `json:"run_id"`
		Recommendations []struct {
			Ticker string `json:"ticker"`
		} `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotEmpty(t, res.Recommendations)
	first := res.Recommendations[0].Ticker

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		return rec
	}

	t.Run("get run", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, get("/api/runs/"+res.RunID).Code)
	})

	t.Run("correlations", func(t *testing.T) {
		rec := get("/api/runs/" + res.RunID + "/correlations")
		require.Equal(t, http.StatusOK, rec.Code)
		var cm struct {
			Tickers []string    `json:"tickers"`
			Matrix  [][]float64 `json:"matrix"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cm))
		assert.Len(t, cm.Matrix, len(cm.Tickers))
	})

	t.Run("indicators", func(t *testing.T) {
		rec := get("/api/runs/" + res.RunID + "/indicators/" + first)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("complements", func(t *testing.T) {
		rec := get("/api/runs/" + res.RunID + "/complements/" + first)
		// Either a ranked list or a clean 422 when every tier is empty.
		assert.Contains(t, []int{http.StatusOK, http.StatusUnprocessableEntity}, rec.Code)
	})

	t.Run("unknown run", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get("/api/runs/nope/correlations").Code)
	})

	t.Run("unknown ticker complement", func(t *testing.T) {
		rec := get("/api/runs/" + res.RunID + "/complements/NOPE")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/system/health", nil)
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var health struct {
		Status     string `json:"status"`
		Goroutines int    `json:"goroutines"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Greater(t, health.Goroutines, 0)
}

func TestRunStoreEviction(t *testing.T) {
	rs := newRunStore(2)
	for _, id := range []string{"a", "b", "c"} {
		rs.Put(&recommend.Result{RunID: id})
	}

	_, ok := rs.Get("a")
	assert.False(t, ok, "oldest run should be evicted")
	_, ok = rs.Get("b")
	assert.True(t, ok)
	_, ok = rs.Get("c")
	assert.True(t, ok)
}

func TestProgressHub(t *testing.T) {
	hub := NewProgressHub(zerolog.Nop())
	ch, ok := hub.register()
	require.True(t, ok)
	assert.Equal(t, 1, hub.ClientCount())

	hub.OnProgress("QQQ", 1, 10, true)
	select {
	case ev := <-ch:
		assert.Equal(t, "QQQ", ev.Ticker)
		assert.True(t, ev.OK)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())
	_, ok = hub.register()
	assert.False(t, ok)
}
