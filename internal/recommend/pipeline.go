package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ever-flow/ETF/internal/clustering"
	"github.com/ever-flow/ETF/internal/marketdata"
	"github.com/ever-flow/ETF/internal/metrics"
	"github.com/ever-flow/ETF/internal/profile"
	"github.com/ever-flow/ETF/internal/universe"
)

// PeerSource supplies the collaborative-filtering base.
type PeerSource interface {
	All() ([]PeerPreference, error)
}

// csvPeerSource reads peers from a CSV file on every run so edits are picked
// up without a restart.
type csvPeerSource struct {
	path string
}

func (s csvPeerSource) All() ([]PeerPreference, error) {
	return LoadPeerCSV(s.path)
}

// NewCSVPeerSource returns a PeerSource backed by a preferences CSV.
func NewCSVPeerSource(path string) PeerSource {
	return csvPeerSource{path: path}
}

// Result is one complete recommendation run. It is built once and never
// mutated afterwards.
type Result struct {
	RunID           string           `json:"run_id"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Profile         profile.Profile  `json:"profile"`
	RiskScore       float64          `json:"risk_score"`
	ExpectedReturn  float64          `json:"expected_return"`
	LookbackYears   int              `json:"lookback_years"`
	RiskFreeRate    float64          `json:"risk_free_rate"`
	Match           ClusterMatch     `json:"cluster_match"`
	Clusters        int              `json:"clusters"`
	Recommendations []Recommendation `json:"recommendations"`
	FailedTickers   []string         `json:"failed_tickers,omitempty"`

	metrics *metrics.Table
	prices  marketdata.PriceTable
	returns marketdata.ReturnTable
}

// Prices exposes the cleaned price table behind the run.
func (r *Result) Prices() marketdata.PriceTable {
	return r.prices
}

// Metrics exposes the full risk-metric table behind the run for follow-up
// analysis (correlations, complements).
func (r *Result) Metrics() *metrics.Table {
	return r.metrics
}

// Returns exposes the aligned daily return series behind the run.
func (r *Result) Returns() marketdata.ReturnTable {
	return r.returns
}

// Tickers lists the recommended tickers in rank order.
func (r *Result) Tickers() []string {
	out := make([]string, len(r.Recommendations))
	for i, rec := range r.Recommendations {
		out[i] = rec.Ticker
	}
	return out
}

// marketView is the profile-independent part of a run: cleaned prices,
// returns, metrics and cluster assignments for one lookback window. It is
// expensive to build and shared read-only across runs.
type marketView struct {
	prices   marketdata.PriceTable
	returns  marketdata.ReturnTable
	table    *metrics.Table
	clusters clustering.Result
	riskFree float64
	failed   []string
	builtAt  time.Time
}

// Pipeline wires the data gateway, clustering engine and scorer into one
// recommendation flow.
type Pipeline struct {
	gateway  *marketdata.Gateway
	peers    PeerSource
	seed     int64
	topN     int
	cacheTTL time.Duration
	log      zerolog.Logger

	mu    sync.Mutex
	views map[int]*marketView // keyed by lookback years
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Gateway  *marketdata.Gateway
	Peers    PeerSource // optional; nil disables collaborative filtering
	Seed     int64
	TopN     int
	CacheTTL time.Duration // how long a computed market view is reused; default 6h
	Log      zerolog.Logger
}

// NewPipeline validates the wiring and returns a ready pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("market data gateway is required")
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 7
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 6 * time.Hour
	}
	return &Pipeline{
		gateway:  cfg.Gateway,
		peers:    cfg.Peers,
		seed:     cfg.Seed,
		topN:     cfg.TopN,
		cacheTTL: cfg.CacheTTL,
		log:      cfg.Log.With().Str("component", "pipeline").Logger(),
		views:    make(map[int]*marketView),
	}, nil
}

// view returns the market view for a lookback window, rebuilding it when
// missing or older than the cache TTL. The decision to reuse or recompute is
// made here, once, at the pipeline entry.
func (p *Pipeline) view(ctx context.Context, lookback int) (*marketView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.views[lookback]; ok && time.Since(v.builtAt) < p.cacheTTL {
		return v, nil
	}

	prices, _, failed, err := p.gateway.Fetch(ctx, universe.AllTickers(), lookback)
	if err != nil {
		return nil, fmt.Errorf("load market data: %w", err)
	}
	returns := prices.Returns()
	riskFree := p.gateway.FetchRiskFreeRate(ctx, lookback)

	table := metrics.Compute(returns, riskFree)
	clusters := clustering.Cluster(table.ClusteringFeatures(), p.seed)
	table.SetClusters(clusters.Labels)

	v := &marketView{
		prices:   prices,
		returns:  returns,
		table:    table,
		clusters: clusters,
		riskFree: riskFree,
		failed:   failed,
		builtAt:  time.Now(),
	}
	p.views[lookback] = v
	p.log.Info().
		Int("lookback_years", lookback).
		Int("instruments", len(table.Tickers)).
		Int("clusters", clusters.K).
		Msg("Market view built")
	return v, nil
}

// Run executes the full flow for one profile: fetch prices, compute metrics,
// cluster, match, vote and score.
func (p *Pipeline) Run(ctx context.Context, prof profile.Profile, topN int) (*Result, error) {
	if err := prof.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	if topN <= 0 {
		topN = p.topN
	}

	targets := profile.Translate(prof)
	lookback := profile.LookbackYears(prof)
	started := time.Now()

	v, err := p.view(ctx, lookback)
	if err != nil {
		return nil, err
	}

	match := MatchCluster(targets, v.table)

	var votes Votes
	if p.peers != nil {
		peerList, perr := p.peers.All()
		if perr != nil {
			p.log.Warn().Err(perr).Msg("Peer preferences unavailable, skipping collaborative filtering")
		} else {
			votes = CollabVotes(prof, peerList)
		}
	}

	recs, err := Score(prof, targets, v.table, match, votes, topN)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:           uuid.New().String(),
		GeneratedAt:     time.Now().UTC(),
		Profile:         prof,
		RiskScore:       targets.RiskScore,
		ExpectedReturn:  targets.ExpectedReturn,
		LookbackYears:   lookback,
		RiskFreeRate:    v.riskFree,
		Match:           match,
		Clusters:        v.clusters.K,
		Recommendations: recs,
		FailedTickers:   v.failed,
		metrics:         v.table,
		prices:          v.prices,
		returns:         v.returns,
	}
	p.log.Info().
		Str("run_id", result.RunID).
		Int("clusters", v.clusters.K).
		Int("recommendations", len(recs)).
		Dur("elapsed", time.Since(started)).
		Msg("Recommendation run complete")
	return result, nil
}
