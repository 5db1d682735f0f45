package cluster

import (
	"context"
	"math"
	"math/rand"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/vector"
)

// kmeans clusters unit vectors into at most k groups and returns each point's group index
// together with the normalized centroids. Seeding is k-means++ drawn from rng; iteration
// stops after maxIter rounds or once no centroid moves more than tol.
func kmeans(ctx context.Context, points [][]float32, k, maxIter int, tol float64, rng *rand.Rand) ([]int, [][]float32, error) {
	centroids := seedPlusPlus(points, k, rng)
	assign := make([]int, len(points))
	dims := len(points[0])

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for i, p := range points {
			assign[i] = nearestCentroid(p, centroids)
		}

		sums := make([][]float64, len(centroids))
		counts := make([]int, len(centroids))
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, p := range points {
			c := assign[i]
			counts[c]++
			for d, v := range p {
				sums[c][d] += float64(v)
			}
		}

		var shift float64
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			next := make([]float32, dims)
			for d := range next {
				next[d] = float32(sums[c][d] / float64(counts[c]))
			}
			next = vector.Normalize(next)
			shift = math.Max(shift, vector.SquaredL2(next, centroids[c]))
			centroids[c] = next
		}
		if shift <= tol {
			break
		}
	}

	for i, p := range points {
		assign[i] = nearestCentroid(p, centroids)
	}
	return assign, centroids, nil
}

// seedPlusPlus picks k initial centroids, each subsequent one with probability proportional
// to its squared distance from the closest centroid chosen so far.
func seedPlusPlus(points [][]float32, k int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, 0, k)
	first := points[rng.Intn(len(points))]
	centroids = append(centroids, copyVector(first))

	dist := make([]float64, len(points))
	for i, p := range points {
		dist[i] = vector.SquaredL2(p, first)
	}
	for len(centroids) < k {
		var total float64
		for _, d := range dist {
			total += d
		}
		if total == 0 {
			// Every remaining point coincides with a chosen centroid.
			break
		}
		target := rng.Float64() * total
		pick := len(points) - 1
		for i, d := range dist {
			target -= d
			if target < 0 {
				pick = i
				break
			}
		}
		c := copyVector(points[pick])
		centroids = append(centroids, c)
		for i, p := range points {
			if d := vector.SquaredL2(p, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

func nearestCentroid(p []float32, centroids [][]float32) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		if d := vector.SquaredL2(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
