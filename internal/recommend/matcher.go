// Package recommend turns risk metrics, cluster assignments and peer
// preferences into a ranked list of instruments for one profile.
package recommend

import (
	"fmt"
	"math"

	"github.com/ever-flow/ETF/internal/metrics"
	"github.com/ever-flow/ETF/internal/profile"
)

// riskScoreVolStep converts the 1-5 risk score into an annualized
// volatility target.
const riskScoreVolStep = 0.05

// ClusterMatch identifies the cluster whose return/volatility centroid sits
// closest to the profile's targets.
type ClusterMatch struct {
	Cluster        int     `json:"cluster"`
	TargetReturn   float64 `json:"target_return"`
	TargetVol      float64 `json:"target_volatility"`
	CentroidReturn float64 `json:"centroid_return"`
	CentroidVol    float64 `json:"centroid_volatility"`
	Explanation    string  `json:"explanation"`
}

// MatchCluster picks the cluster closest to the profile's expected return and
// volatility target in (return, volatility) space.
func MatchCluster(targets profile.Targets, table *metrics.Table) ClusterMatch {
	targetVol := targets.RiskScore * riskScoreVolStep

	type centroid struct {
		ret, vol float64
		count    int
	}
	centroids := make(map[int]*centroid)
	for _, tk := range table.Tickers {
		row := table.Rows[tk]
		c, ok := centroids[row.Cluster]
		if !ok {
			c = &centroid{}
			centroids[row.Cluster] = c
		}
		c.ret += row.AnnualReturn
		c.vol += row.AnnualVolatility
		c.count++
	}

	best := ClusterMatch{Cluster: -1, TargetReturn: targets.ExpectedReturn, TargetVol: targetVol}
	bestDist := math.Inf(1)
	for cluster, c := range centroids {
		ret := c.ret / float64(c.count)
		vol := c.vol / float64(c.count)
		dist := math.Hypot(ret-targets.ExpectedReturn, vol-targetVol)
		if dist < bestDist || (dist == bestDist && cluster < best.Cluster) {
			bestDist = dist
			best.Cluster = cluster
			best.CentroidReturn = ret
			best.CentroidVol = vol
		}
	}

	best.Explanation = fmt.Sprintf(
		"cluster %d matches a %.1f%% return / %.1f%% volatility target (centroid %.1f%% / %.1f%%)",
		best.Cluster,
		best.TargetReturn*100, best.TargetVol*100,
		best.CentroidReturn*100, best.CentroidVol*100,
	)
	return best
}

// clusterMembers returns the tickers assigned to the given cluster, in table
// order.
func clusterMembers(table *metrics.Table, cluster int) []string {
	var members []string
	for _, tk := range table.Tickers {
		if table.Rows[tk].Cluster == cluster {
			members = append(members, tk)
		}
	}
	return members
}
