package training

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// RMSE is the root mean squared error of pred against truth.
func RMSE(truth, pred []float64) float64 {
	if len(truth) == 0 {
		return 0
	}
	return floats.Distance(truth, pred, 2) / math.Sqrt(float64(len(truth)))
}

// MAE is the mean absolute error of pred against truth.
func MAE(truth, pred []float64) float64 {
	if len(truth) == 0 {
		return 0
	}
	return floats.Distance(truth, pred, 1) / float64(len(truth))
}

// WeightedF1 averages the per-class F1 scores weighted by class support.
// Classes absent from truth do not contribute.
func WeightedF1(truth, pred []int) float64 {
	if len(truth) == 0 {
		return 0
	}
	support := map[int]int{}
	tp := map[int]int{}
	predicted := map[int]int{}
	for i, t := range truth {
		support[t]++
		predicted[pred[i]]++
		if pred[i] == t {
			tp[t]++
		}
	}
	var total float64
	for class, n := range support {
		var f1 float64
		if tp[class] > 0 {
			precision := float64(tp[class]) / float64(predicted[class])
			recall := float64(tp[class]) / float64(n)
			f1 = 2 * precision * recall / (precision + recall)
		}
		total += f1 * float64(n)
	}
	return total / float64(len(truth))
}
