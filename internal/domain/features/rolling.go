package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// window collects the non-missing values among the Window observations
// ending at i.
func window(values []float64, i int, buf []float64) []float64 {
	buf = buf[:0]
	for j := max(0, i-Window+1); j <= i; j++ {
		if !math.IsNaN(values[j]) {
			buf = append(buf, values[j])
		}
	}
	return buf
}

// rollingMean writes the trailing mean of values into out. A window with
// fewer than MinPeriods observations yields NaN.
func rollingMean(values, out []float64) {
	buf := make([]float64, 0, Window)
	for i := range values {
		w := window(values, i, buf)
		if len(w) < MinPeriods {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Mean(w, nil)
	}
}

// rollingStd writes the trailing sample standard deviation into out. It is
// undefined below two observations and reported as 0.
func rollingStd(values, out []float64) {
	buf := make([]float64, 0, Window)
	for i := range values {
		w := window(values, i, buf)
		if len(w) < 2 {
			out[i] = 0
			continue
		}
		out[i] = stat.StdDev(w, nil)
	}
}
