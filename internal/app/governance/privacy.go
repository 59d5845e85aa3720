package governance

import (
	"math"
	"math/rand"
)

// ApplyDifferentialNoise adds Laplace-distributed noise (scale = 1/epsilon)
// to numeric fields before any aggregate export. Inputs are not mutated.
func ApplyDifferentialNoise(fields map[string]float64, epsilon float64) map[string]float64 {
	if epsilon <= 0 {
		epsilon = 0.1
	}
	scale := 1.0 / epsilon
	out := make(map[string]float64, len(fields))
	for k, v := range fields {
		// Inverse-CDF sampling of the Laplace distribution.
		u := rand.Float64() - 0.5
		noise := -scale * math.Copysign(1.0, u) * math.Log(1-2*math.Abs(u))
		out[k] = math.Round((v+noise)*100) / 100
	}
	return out
}
