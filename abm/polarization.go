package abm

import (
	"fmt"
	"sort"

	"github.com/cdipaolo/goml/cluster"
)

const clusterIterations = 50

// Polarization describes how final opinion positions group together.
type Polarization struct {
	Centroids []float64 `json:"centroids"`
	Sizes     []int     `json:"cluster_sizes"`
	// Spread is half the distance between the outermost centroids.
	Spread float64 `json:"spread"`
}

// ClusterOpinions groups positions into k clusters with k-means. Centroids are
// reported in ascending order and empty clusters are dropped.
//
// The centroids start at the k quantile midpoints of the sorted positions and
// Lloyd iterations run until assignments settle, so equal input always gives
// equal output. goml's Learn is not used because it re-seeds with k-means++
// from the global random source.
func ClusterOpinions(positions []float64, k int) (Polarization, error) {
	if k <= 0 {
		return Polarization{}, fmt.Errorf("ClusterOpinions: k must be > 0, got %d", k)
	}
	if len(positions) < k {
		return Polarization{}, fmt.Errorf("ClusterOpinions: need at least %d positions, got %d", k, len(positions))
	}

	data := make([][]float64, len(positions))
	for i, p := range positions {
		data[i] = []float64{p}
	}
	model := cluster.NewKMeans(k, clusterIterations, data)
	model.Centroids = quantileSeeds(positions, k)

	assign := make([]int, len(positions))
	for i := range assign {
		assign[i] = -1
	}
	for iter := 0; iter < clusterIterations; iter++ {
		changed := false
		sums := make([]float64, k)
		counts := make([]int, k)
		for i, x := range data {
			guess, err := model.Predict(x)
			if err != nil {
				return Polarization{}, fmt.Errorf("ClusterOpinions: predict: %w", err)
			}
			c := int(guess[0])
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
			sums[c] += x[0]
			counts[c]++
		}
		if !changed {
			break
		}
		for c := range model.Centroids {
			if counts[c] > 0 {
				model.Centroids[c][0] = sums[c] / float64(counts[c])
			}
		}
	}

	type group struct {
		centroid float64
		size     int
	}
	counts := make([]int, k)
	for _, c := range assign {
		counts[c]++
	}
	groups := make([]group, 0, k)
	for c, n := range counts {
		if n > 0 {
			groups = append(groups, group{centroid: model.Centroids[c][0], size: n})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].centroid < groups[j].centroid })

	pol := Polarization{
		Centroids: make([]float64, len(groups)),
		Sizes:     make([]int, len(groups)),
	}
	for i, g := range groups {
		pol.Centroids[i] = g.centroid
		pol.Sizes[i] = g.size
	}
	pol.Spread = (pol.Centroids[len(groups)-1] - pol.Centroids[0]) / 2
	return pol, nil
}

// quantileSeeds returns one starting centroid per cluster, taken at the
// midpoint of each of the k equal slices of the sorted positions.
func quantileSeeds(positions []float64, k int) [][]float64 {
	sorted := append([]float64(nil), positions...)
	sort.Float64s(sorted)
	n := len(sorted)
	seeds := make([][]float64, k)
	for i := range seeds {
		idx := min((2*i+1)*n/(2*k), n-1)
		seeds[i] = []float64{sorted[idx]}
	}
	return seeds
}
