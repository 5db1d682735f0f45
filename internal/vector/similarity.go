package vector

import (
	"github.com/INFO-698-InfoSci-Capstone/summiva/pkg/utils"
)

// SquaredL2 returns the squared Euclidean distance between a and b.
// Vectors of different length are compared over the shorter prefix.
func SquaredL2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// DistanceToSimilarity maps a squared L2 distance between unit vectors to [0,1].
// Distances beyond 2 (opposing vectors) clamp to 0.
func DistanceToSimilarity(d float64) float64 {
	return utils.Clamp01(1 - d/2)
}

// CosineSimilarity returns the cosine of the angle between a and b, in [-1,1].
// Zero vectors and mismatched lengths yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := utils.L2Norm(a), utils.L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return utils.Dot(a, b) / (na * nb)
}

// Normalize returns a unit-length copy of x.
func Normalize(x []float32) []float32 {
	return utils.Normalized(x)
}
