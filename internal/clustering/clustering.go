// Package clustering partitions the instrument universe by risk profile.
// The metrics feature space is scaled with an outlier-robust scaler, reduced
// to a low-dimensional embedding, and clustered with k-means; embedding
// hyperparameters are chosen by silhouette score and the cluster count by the
// elbow heuristic over within-cluster sum of squares.
package clustering

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ever-flow/ETF/pkg/formulas"
)

const (
	// minViableRows is the smallest dataset the reduction and elbow logic
	// run on; below it the whole universe forms a single cluster.
	minViableRows = 5

	maxComponents  = 3
	defaultK       = 3
	maxK           = 10
	kmeansMaxIters = 100
	kmeansRestarts = 10
)

var (
	neighborOptions = []int{5, 10, 15}
	minDistOptions  = []float64{0.0, 0.1, 0.2}

	errTooSmall     = errors.New("dataset too small for embedding")
	errDisconnected = errors.New("similarity graph has an isolated vertex")
	errEigenFailed  = errors.New("eigendecomposition failed")
)

// Result holds the outcome of one clustering run. Labels are contiguous from
// 0 and stable only within this run.
type Result struct {
	Embedding [][]float64
	Labels    []int
	K         int
}

// Cluster derives the embedding and cluster labels for the given feature
// matrix (one row per instrument). The computation is recomputed in full for
// every metrics table; there is no incremental mode. The seed makes the
// k-means initialization, and therefore the whole run, deterministic.
func Cluster(features [][]float64, seed int64) Result {
	n := len(features)
	if n < minViableRows {
		return Result{Labels: make([]int, n), K: 1}
	}

	scaled := RobustScale(features)
	embedding := bestEmbedding(scaled, seed)

	// Elbow search over within-cluster sum of squares.
	upperK := maxK
	if n-1 < upperK {
		upperK = n - 1
	}
	var ks []int
	var wcss []float64
	for k := 2; k <= upperK; k++ {
		_, inertia := kMeans(embedding, k, seed)
		ks = append(ks, k)
		wcss = append(wcss, inertia)
	}

	bestK := defaultK
	if len(ks) >= 2 {
		if elbow := findElbow(ks, wcss); elbow > 0 {
			bestK = elbow
		}
	}
	if bestK > n-1 {
		bestK = n - 1
	}

	if bestK < 2 {
		return Result{Embedding: embedding, Labels: make([]int, n), K: 1}
	}

	labels, _ := kMeans(embedding, bestK, seed)
	return Result{Embedding: embedding, Labels: labels, K: countDistinct(labels)}
}

// bestEmbedding runs the hyperparameter grid and keeps the embedding whose
// trial partition scores the highest silhouette. If no combination yields a
// valid multi-cluster partition the default hyperparameters are used.
func bestEmbedding(scaled [][]float64, seed int64) [][]float64 {
	n := len(scaled)
	components := maxComponents
	if cols := len(scaled[0]); cols < components {
		components = cols
	}

	bestScore := math.Inf(-1)
	var best [][]float64

	for _, neighbors := range neighborOptions {
		k := neighbors
		if k > n-1 {
			k = n - 1
		}
		if k < 1 {
			continue
		}
		for _, minDist := range minDistOptions {
			embedding, err := spectralEmbedding(scaled, k, minDist, components)
			if err != nil {
				continue
			}
			trialK := n - 1
			if trialK > 3 {
				trialK = 3
			}
			if trialK < 2 {
				continue
			}
			labels, _ := kMeans(embedding, trialK, seed)
			if countDistinct(labels) < 2 {
				continue
			}
			if score := silhouetteScore(embedding, labels); score > bestScore {
				bestScore = score
				best = embedding
			}
		}
	}

	if best == nil {
		k := 15
		if k > n-1 {
			k = n - 1
		}
		if embedding, err := spectralEmbedding(scaled, k, 0.1, components); err == nil {
			return embedding
		}
		// Reduction failed outright; fall back to the first scaled columns.
		best = make([][]float64, n)
		for i, row := range scaled {
			limit := components
			if len(row) < limit {
				limit = len(row)
			}
			best[i] = append([]float64{}, row[:limit]...)
		}
	}
	return best
}

// RobustScale centers each column on its median and scales by its
// interquartile range, zeroing NaN/Inf inputs first. Columns with zero IQR
// are centered only.
func RobustScale(features [][]float64) [][]float64 {
	n := len(features)
	if n == 0 {
		return nil
	}
	cols := len(features[0])

	scaled := make([][]float64, n)
	for i := range scaled {
		scaled[i] = make([]float64, cols)
	}

	column := make([]float64, n)
	for c := 0; c < cols; c++ {
		for r := 0; r < n; r++ {
			column[r] = formulas.Finite(features[r][c])
		}
		median := formulas.Median(column)
		iqr := formulas.Quantile(column, 0.75) - formulas.Quantile(column, 0.25)
		for r := 0; r < n; r++ {
			centered := formulas.Finite(features[r][c]) - median
			if iqr > 0 {
				scaled[r][c] = centered / iqr
			} else {
				scaled[r][c] = centered
			}
		}
	}
	return scaled
}

// spectralEmbedding projects the rows onto the bottom nontrivial eigenvectors
// of the normalized Laplacian of a symmetric k-nearest-neighbor similarity
// graph. minDist acts as a separation floor subtracted from pairwise
// distances before the Gaussian kernel is applied.
func spectralEmbedding(data [][]float64, neighbors int, minDist float64, components int) ([][]float64, error) {
	n := len(data)
	if n < 2 || components < 1 {
		return nil, errTooSmall
	}

	dist := pairwiseDistances(data)

	// Per-point kernel bandwidth: mean distance to the k nearest neighbors.
	sigma := make([]float64, n)
	order := make([]int, n)
	for i := 0; i < n; i++ {
		for j := range order {
			order[j] = j
		}
		sort.Slice(order, func(a, b int) bool { return dist[i][order[a]] < dist[i][order[b]] })
		sum := 0.0
		count := 0
		for _, j := range order[1 : neighbors+1] {
			sum += dist[i][j]
			count++
		}
		sigma[i] = sum / float64(count)
		if sigma[i] <= 0 {
			sigma[i] = 1e-12
		}
	}

	// Symmetric kNN affinity matrix.
	w := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := range order {
			order[j] = j
		}
		sort.Slice(order, func(a, b int) bool { return dist[i][order[a]] < dist[i][order[b]] })
		for _, j := range order[1 : neighbors+1] {
			d := dist[i][j] - minDist
			if d < 0 {
				d = 0
			}
			affinity := math.Exp(-(d * d) / (sigma[i] * sigma[j]))
			if affinity > w.At(i, j) {
				w.SetSym(i, j, affinity)
			}
		}
	}

	// Normalized Laplacian L = I - D^{-1/2} W D^{-1/2}.
	dInvSqrt := make([]float64, n)
	for i := 0; i < n; i++ {
		degree := 0.0
		for j := 0; j < n; j++ {
			degree += w.At(i, j)
		}
		if degree <= 0 {
			return nil, errDisconnected
		}
		dInvSqrt[i] = 1 / math.Sqrt(degree)
	}
	laplacian := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := -dInvSqrt[i] * w.At(i, j) * dInvSqrt[j]
			if i == j {
				v = 1 + v
			}
			laplacian.SetSym(i, j, v)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(laplacian, true) {
		return nil, errEigenFailed
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues come back ascending; skip the trivial constant eigenvector.
	if components > n-1 {
		components = n - 1
	}
	embedding := make([][]float64, n)
	for i := 0; i < n; i++ {
		embedding[i] = make([]float64, components)
		for c := 0; c < components; c++ {
			embedding[i][c] = vectors.At(i, c+1)
		}
	}
	return embedding, nil
}

func pairwiseDistances(data [][]float64) [][]float64 {
	n := len(data)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := euclidean(data[i], data[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// kMeans clusters data into k groups with k-means++ initialization and a
// fixed number of restarts, returning first-occurrence-canonicalized labels
// and the inertia (within-cluster sum of squares) of the best restart.
func kMeans(data [][]float64, k int, seed int64) ([]int, float64) {
	n := len(data)
	if k >= n {
		labels := make([]int, n)
		for i := range labels {
			labels[i] = i % k
		}
		return canonicalize(labels), 0
	}

	rng := rand.New(rand.NewSource(seed))
	bestInertia := math.Inf(1)
	var bestLabels []int

	for restart := 0; restart < kmeansRestarts; restart++ {
		labels, inertia := kMeansOnce(data, k, rng)
		if inertia < bestInertia {
			bestInertia = inertia
			bestLabels = labels
		}
	}
	return canonicalize(bestLabels), bestInertia
}

func kMeansOnce(data [][]float64, k int, rng *rand.Rand) ([]int, float64) {
	n := len(data)
	dims := len(data[0])
	centroids := initPlusPlus(data, k, rng)
	labels := make([]int, n)

	for iter := 0; iter < kmeansMaxIters; iter++ {
		changed := false
		for i, point := range data {
			best := 0
			bestDist := math.Inf(1)
			for c, centroid := range centroids {
				if d := euclidean(point, centroid); d < bestDist {
					bestDist = d
					best = c
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, point := range data {
			counts[labels[i]]++
			for d, v := range point {
				sums[labels[i]][d] += v
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Re-seed an empty cluster from a random point.
				copy(centroids[c], data[rng.Intn(n)])
				continue
			}
			for d := 0; d < dims; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}

		if !changed && iter > 0 {
			break
		}
	}

	inertia := 0.0
	for i, point := range data {
		d := euclidean(point, centroids[labels[i]])
		inertia += d * d
	}
	return labels, inertia
}

func initPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	centroids := make([][]float64, 0, k)
	first := rng.Intn(n)
	centroids = append(centroids, append([]float64{}, data[first]...))

	minDistSq := make([]float64, n)
	for len(centroids) < k {
		total := 0.0
		for i, point := range data {
			best := math.Inf(1)
			for _, centroid := range centroids {
				if d := euclidean(point, centroid); d*d < best {
					best = d * d
				}
			}
			minDistSq[i] = best
			total += best
		}
		var next int
		if total <= 0 {
			next = rng.Intn(n)
		} else {
			target := rng.Float64() * total
			cum := 0.0
			next = n - 1
			for i, d := range minDistSq {
				cum += d
				if cum >= target {
					next = i
					break
				}
			}
		}
		centroids = append(centroids, append([]float64{}, data[next]...))
	}
	return centroids
}

// canonicalize renumbers labels by first occurrence so that the label set is
// contiguous from 0 and independent of centroid ordering.
func canonicalize(labels []int) []int {
	mapping := make(map[int]int)
	out := make([]int, len(labels))
	next := 0
	for i, l := range labels {
		m, ok := mapping[l]
		if !ok {
			m = next
			mapping[l] = m
			next++
		}
		out[i] = m
	}
	return out
}

func countDistinct(labels []int) int {
	set := make(map[int]struct{})
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return len(set)
}

// silhouetteScore computes the mean silhouette coefficient over all points.
func silhouetteScore(data [][]float64, labels []int) float64 {
	n := len(data)
	members := make(map[int][]int)
	for i, l := range labels {
		members[l] = append(members[l], i)
	}
	if len(members) < 2 {
		return -1
	}

	total := 0.0
	counted := 0
	for i := 0; i < n; i++ {
		own := labels[i]
		if len(members[own]) < 2 {
			// Singleton clusters contribute 0 by convention.
			counted++
			continue
		}

		a := 0.0
		for _, j := range members[own] {
			if j != i {
				a += euclidean(data[i], data[j])
			}
		}
		a /= float64(len(members[own]) - 1)

		b := math.Inf(1)
		for l, idxs := range members {
			if l == own {
				continue
			}
			mean := 0.0
			for _, j := range idxs {
				mean += euclidean(data[i], data[j])
			}
			mean /= float64(len(idxs))
			if mean < b {
				b = mean
			}
		}

		denom := math.Max(a, b)
		if denom > 0 {
			total += (b - a) / denom
		}
		counted++
	}
	if counted == 0 {
		return -1
	}
	return total / float64(counted)
}

// findElbow locates the knee of a convex, decreasing curve as the point with
// the greatest perpendicular distance to the chord between the endpoints.
// Returns 0 when no interior point lies below the chord.
func findElbow(ks []int, wcss []float64) int {
	if len(ks) < 3 || len(ks) != len(wcss) {
		return 0
	}

	// Normalize both axes to [0,1] so the distance is scale-free.
	x0, xn := float64(ks[0]), float64(ks[len(ks)-1])
	yMin, yMax := wcss[0], wcss[0]
	for _, y := range wcss {
		if y < yMin {
			yMin = y
		}
		if y > yMax {
			yMax = y
		}
	}
	if xn == x0 || yMax == yMin {
		return 0
	}

	bestDist := 0.0
	bestK := 0
	for i := 1; i < len(ks)-1; i++ {
		xNorm := (float64(ks[i]) - x0) / (xn - x0)
		yNorm := (wcss[i] - yMin) / (yMax - yMin)
		// Chord runs from (0,1) to (1,0); signed distance below it marks
		// the convex knee.
		d := (1 - xNorm - yNorm) / math.Sqrt2
		if d > bestDist {
			bestDist = d
			bestK = ks[i]
		}
	}
	return bestK
}
