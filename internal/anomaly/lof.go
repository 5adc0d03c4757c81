// Package anomaly scores whole days against each other with a
// local-density outlier model, one model per sensor per day-type.
package anomaly

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Model is a fitted local outlier factor model. All state needed to score
// new points against the training set is kept, so the struct serializes
// as-is.
type Model struct {
	K              int         `json:"k"`
	Seed           int64       `json:"seed"`
	Train          [][]float64 `json:"train"`
	KDistances     []float64   `json:"k_distances"`
	LocalDensities []float64   `json:"local_densities"`
	TrainingScores []float64   `json:"training_scores"`
}

// Fit builds a LOF model over the training matrix with the given neighbor
// count. The seed is recorded with the model; it is scoped to this fit
// call so concurrent sensor workers never share random state.
func Fit(train [][]float64, k int, seed int64) (*Model, error) {
	n := len(train)
	if n < 2 {
		return nil, fmt.Errorf("need at least two points to fit, got %d", n)
	}
	if k < 1 {
		k = 1
	}
	if k > n-1 {
		k = n - 1
	}

	m := &Model{K: k, Seed: seed, Train: train}

	neighbors := make([][]int, n)
	m.KDistances = make([]float64, n)
	for i := 0; i < n; i++ {
		idx, dists := nearestNeighbors(train[i], train, k, i)
		neighbors[i] = idx
		m.KDistances[i] = dists[len(dists)-1]
	}

	m.LocalDensities = make([]float64, n)
	for i := 0; i < n; i++ {
		m.LocalDensities[i] = localReachabilityDensity(train[i], neighbors[i], m)
	}

	m.TrainingScores = make([]float64, n)
	for i := 0; i < n; i++ {
		m.TrainingScores[i] = outlierFactor(m.LocalDensities[i], neighbors[i], m)
	}
	return m, nil
}

// Score computes the decision function for rows against the training set:
// the ratio of the neighbors' local densities to the point's own. Scores
// near 1 mean inlier; larger means more isolated.
func (m *Model) Score(rows [][]float64) []float64 {
	scores := make([]float64, len(rows))
	for r, row := range rows {
		idx, _ := nearestNeighbors(row, m.Train, m.K, -1)
		lrd := localReachabilityDensity(row, idx, m)
		scores[r] = outlierFactor(lrd, idx, m)
	}
	return scores
}

// nearestNeighbors returns the k nearest training indices to p and their
// distances, ascending. exclude skips one training index (the point
// itself during fitting).
func nearestNeighbors(p []float64, train [][]float64, k int, exclude int) ([]int, []float64) {
	type candidate struct {
		idx  int
		dist float64
	}
	candidates := make([]candidate, 0, len(train))
	for i, row := range train {
		if i == exclude {
			continue
		}
		candidates = append(candidates, candidate{idx: i, dist: floats.Distance(p, row, 2)})
	}
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].dist != candidates[b].dist {
			return candidates[a].dist < candidates[b].dist
		}
		return candidates[a].idx < candidates[b].idx
	})
	if k > len(candidates) {
		k = len(candidates)
	}

	idx := make([]int, k)
	dists := make([]float64, k)
	for i := 0; i < k; i++ {
		idx[i] = candidates[i].idx
		dists[i] = candidates[i].dist
	}
	return idx, dists
}

// localReachabilityDensity is the inverse of the mean reachability
// distance from p to its neighbors.
func localReachabilityDensity(p []float64, neighbors []int, m *Model) float64 {
	sum := 0.0
	for _, j := range neighbors {
		d := floats.Distance(p, m.Train[j], 2)
		if m.KDistances[j] > d {
			d = m.KDistances[j]
		}
		sum += d
	}
	mean := sum / float64(len(neighbors))
	if mean == 0 {
		// Duplicated points: treat the neighborhood as maximally dense.
		return 1e10
	}
	return 1 / mean
}

// outlierFactor is the mean ratio of neighbor densities to the point's own.
func outlierFactor(lrd float64, neighbors []int, m *Model) float64 {
	sum := 0.0
	for _, j := range neighbors {
		sum += m.LocalDensities[j]
	}
	return sum / (float64(len(neighbors)) * lrd)
}
