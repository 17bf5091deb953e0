package recommend

import (
	"errors"
	"sort"

	"github.com/ever-flow/ETF/internal/metrics"
	"github.com/ever-flow/ETF/internal/profile"
	"github.com/ever-flow/ETF/internal/universe"
	"github.com/ever-flow/ETF/pkg/formulas"
)

// ErrNoCandidates is returned when the market filter leaves nothing to rank.
var ErrNoCandidates = errors.New("no matching instruments, relax constraints")

// defaultWeights is the fallback blend when the profile-derived weights
// degenerate to zero: sortino, drawdown, volatility, theme.
var defaultWeights = [4]float64{0.4, 0.3, 0.2, 0.1}

// themeWeight is the unnormalized theme-signal weight when a theme is chosen.
const themeWeight = 0.2

// Recommendation is one ranked instrument as presented to the user.
type Recommendation struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Market       string  `json:"market"`
	Return1Y     float64 `json:"return_1y"`
	Volatility   float64 `json:"volatility"`
	Sharpe       float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	Sortino      float64 `json:"sortino_ratio"`
	Calmar       float64 `json:"calmar_ratio"`
	Omega        float64 `json:"omega_ratio"`
	AUM          float64 `json:"aum"`
	ExpenseRatio float64 `json:"expense_ratio"`
	Score        float64 `json:"recommendation_score"`
}

// signalWeights derives the blend of the four ranking signals from the
// profile. The raw weights scale with risk tolerance and loss aversion and are
// normalized to sum to one; the theme weight is zero when no theme preference
// is set.
func signalWeights(p profile.Profile, hasTheme bool) [4]float64 {
	w := [4]float64{
		float64(p.RiskTolerance)/5*0.5 + 0.3,
		float64(p.LossAversion) / 5,
		(6 - float64(p.RiskTolerance)) / 5,
	}
	if hasTheme {
		w[3] = themeWeight
	}
	total := w[0] + w[1] + w[2] + w[3]
	if total <= 0 {
		return defaultWeights
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

// Score ranks the candidate instruments for one profile. Candidates are the
// matched cluster's members followed by peer-voted tickers in first-vote
// order, hard filtered by market preference, then scored by a weighted blend
// of min-max scaled Sortino, negated-drawdown, inverted volatility and
// theme-affinity signals.
func Score(p profile.Profile, targets profile.Targets, table *metrics.Table, match ClusterMatch, votes Votes, topN int) ([]Recommendation, error) {
	seen := make(map[string]bool)
	var candidates []string
	for _, tk := range clusterMembers(table, match.Cluster) {
		if !seen[tk] {
			seen[tk] = true
			candidates = append(candidates, tk)
		}
	}
	for _, tk := range votes.Tickers {
		if table.Has(tk) && !seen[tk] {
			seen[tk] = true
			candidates = append(candidates, tk)
		}
	}

	filtered := candidates[:0:0]
	for _, tk := range candidates {
		if targets.MarketWeights[table.Rows[tk].Market] > 0 {
			filtered = append(filtered, tk)
		}
	}
	if len(filtered) == 0 {
		return nil, ErrNoCandidates
	}

	hasTheme := targets.Theme != universe.ThemeNone
	n := len(filtered)
	sortino := make([]float64, n)
	drawdown := make([]float64, n)
	volatility := make([]float64, n)
	theme := make([]float64, n)
	for i, tk := range filtered {
		row := table.Rows[tk]
		sortino[i] = row.Sortino
		drawdown[i] = -row.MaxDrawdown
		volatility[i] = row.AnnualVolatility
		if hasTheme && universe.ThemeOf(tk) == targets.Theme {
			theme[i] = 1
		}
	}
	sortinoSig := formulas.MinMaxScale(sortino)
	drawdownSig := formulas.MinMaxScale(drawdown)
	volSig := formulas.MinMaxScale(volatility)

	w := signalWeights(p, hasTheme)
	recs := make([]Recommendation, 0, n)
	for i, tk := range filtered {
		row := table.Rows[tk]
		aum, expense := universe.FundFacts(tk)
		score := w[0]*sortinoSig[i] + w[1]*drawdownSig[i] + w[2]*(1-volSig[i]) + w[3]*theme[i]
		recs = append(recs, Recommendation{
			Ticker:       tk,
			Name:         universe.NameOf(tk),
			Category:     universe.CategoryOf(tk),
			Market:       string(row.Market),
			Return1Y:     row.AnnualReturn,
			Volatility:   row.AnnualVolatility,
			Sharpe:       row.Sharpe,
			MaxDrawdown:  row.MaxDrawdown,
			Sortino:      row.Sortino,
			Calmar:       row.Calmar,
			Omega:        row.Omega,
			AUM:          aum,
			ExpenseRatio: expense,
			Score:        score,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
	if topN > 0 && len(recs) > topN {
		recs = recs[:topN]
	}
	return recs, nil
}
