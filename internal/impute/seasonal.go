package impute

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// seasonalComponent runs an additive seasonal decomposition over x with the
// given period and returns one period of the seasonal component. The trend
// is a centered moving average (half-weighted endpoints for the even
// period), the seasonal component is the per-offset mean of the detrended
// values, centered to zero mean.
func seasonalComponent(x []float64, period int) []float64 {
	n := len(x)
	half := period / 2

	trend := make([]float64, n)
	for i := range trend {
		trend[i] = math.NaN()
	}
	// Centered MA over period+1 points with half weights at both ends.
	window := make([]float64, period+1)
	for i := half; i < n-half; i++ {
		copy(window, x[i-half:i+half+1])
		sum := floats.Sum(window[1:period]) + 0.5*window[0] + 0.5*window[period]
		trend[i] = sum / float64(period)
	}

	offsetSums := make([]float64, period)
	offsetCounts := make([]float64, period)
	for i := 0; i < n; i++ {
		if math.IsNaN(trend[i]) {
			continue
		}
		offsetSums[i%period] += x[i] - trend[i]
		offsetCounts[i%period]++
	}

	seasonal := make([]float64, period)
	for j := 0; j < period; j++ {
		if offsetCounts[j] > 0 {
			seasonal[j] = offsetSums[j] / offsetCounts[j]
		}
	}
	// Center so the seasonal component carries no level.
	mean := stat.Mean(seasonal, nil)
	for j := range seasonal {
		seasonal[j] -= mean
	}
	return seasonal
}
