package ml_test

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/okian/solara/internal/domain/artifact"
	"github.com/okian/solara/internal/domain/ml"
	"github.com/okian/solara/internal/domain/model"
	"github.com/okian/solara/internal/domain/table"
	"github.com/smartystreets/goconvey/convey"
)

func linearData() ([][]float64, []float64) {
	var rows [][]float64
	var y []float64
	for i := range 40 {
		a := float64(i) / 10
		b := float64((i*7)%5) - 2
		rows = append(rows, []float64{a, b, a - b})
		y = append(y, 2+3*a-b)
	}
	return rows, y
}

func TestEfficiencyRegressor(t *testing.T) {
	columns := []string{"a", "b", "a_minus_b"}

	convey.Convey("Given a noise-free linear target with a collinear column", t, func() {
		rows, y := linearData()
		reg, err := ml.FitEfficiencyRegressor(columns, rows, y)

		convey.Convey("Then fitting should succeed and reproduce the target", func() {
			convey.So(err, convey.ShouldBeNil)
			preds, err := reg.Predict([][]float64{{1, 0, 1}, {2, -1, 3}})
			convey.So(err, convey.ShouldBeNil)
			convey.So(preds[0], convey.ShouldAlmostEqual, 5, 1e-2)
			convey.So(preds[1], convey.ShouldAlmostEqual, 9, 1e-2)
		})

		convey.Convey("Then rows of the wrong width should be refused", func() {
			_, err := reg.Predict([][]float64{{1, 2}})
			convey.So(errors.Is(err, table.ErrSchemaMismatch), convey.ShouldBeTrue)
		})

		convey.Convey("Then a restored regressor should predict identically", func() {
			path := filepath.Join(t.TempDir(), "efficiency_model.json")
			convey.So(reg.Save(path), convey.ShouldBeNil)
			restored, err := ml.LoadEfficiencyRegressor(path, ml.ExpectColumns(columns))
			convey.So(err, convey.ShouldBeNil)
			want, _ := reg.Predict(rows)
			got, _ := restored.Predict(rows)
			convey.So(got, convey.ShouldResemble, want)
		})

		convey.Convey("Then loading against a different column list should fail", func() {
			path := filepath.Join(t.TempDir(), "efficiency_model.json")
			convey.So(reg.Save(path), convey.ShouldBeNil)
			_, err := ml.LoadEfficiencyRegressor(path, ml.ExpectColumns([]string{"b", "a", "a_minus_b"}))
			convey.So(errors.Is(err, table.ErrSchemaMismatch), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given mismatched inputs", t, func() {
		_, errLen := ml.FitEfficiencyRegressor(columns, [][]float64{{1, 2, 3}}, []float64{1, 2})
		_, errEmpty := ml.FitEfficiencyRegressor(columns, nil, nil)
		_, errMissing := ml.LoadEfficiencyRegressor(filepath.Join(t.TempDir(), "none.json"))

		convey.Convey("Then each should fail distinctly", func() {
			convey.So(errors.Is(errLen, ml.ErrLengthMismatch), convey.ShouldBeTrue)
			convey.So(errors.Is(errEmpty, ml.ErrNotEnoughRows), convey.ShouldBeTrue)
			convey.So(errors.Is(errMissing, ml.ErrArtifactNotFound), convey.ShouldBeTrue)
			convey.So(errors.Is(errMissing, artifact.ErrNotFound), convey.ShouldBeTrue)
		})
	})
}

func clusterWithOutlier() [][]float64 {
	var rows [][]float64
	for i := range 200 {
		rows = append(rows, []float64{float64(i%20) * 0.05, float64(i/20) * 0.1})
	}
	return append(rows, []float64{50, 50})
}

func TestAnomalyDetector(t *testing.T) {
	columns := []string{"x", "y"}

	convey.Convey("Given a dense cluster and one distant point", t, func() {
		rows := clusterWithOutlier()
		det, err := ml.FitAnomalyDetector(columns, rows)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the distant point should score higher and be labelled", func() {
			scores, labels, err := det.Predict([][]float64{{0.5, 0.5}, {50, 50}})
			convey.So(err, convey.ShouldBeNil)
			convey.So(scores[1], convey.ShouldBeGreaterThan, scores[0])
			convey.So(scores[1], convey.ShouldBeLessThanOrEqualTo, 1)
			convey.So(labels[0], convey.ShouldEqual, 0)
			convey.So(labels[1], convey.ShouldEqual, 1)
		})

		convey.Convey("Then roughly the contamination share of training rows should be flagged", func() {
			_, labels, _ := det.Predict(rows)
			flagged := 0
			for _, l := range labels {
				flagged += l
			}
			convey.So(flagged, convey.ShouldBeGreaterThanOrEqualTo, 1)
			convey.So(flagged, convey.ShouldBeLessThanOrEqualTo, int(math.Ceil(0.05*float64(len(rows))))+1)
		})

		convey.Convey("Then fitting with the same seed should be deterministic", func() {
			again, _ := ml.FitAnomalyDetector(columns, rows)
			a, _, _ := det.Predict(rows)
			b, _, _ := again.Predict(rows)
			convey.So(b, convey.ShouldResemble, a)
			convey.So(again.Threshold(), convey.ShouldEqual, det.Threshold())
		})

		convey.Convey("Then a restored detector should predict identically", func() {
			path := filepath.Join(t.TempDir(), "anomaly_model.json")
			convey.So(det.Save(path), convey.ShouldBeNil)
			restored, err := ml.LoadAnomalyDetector(path, ml.ExpectColumns(columns))
			convey.So(err, convey.ShouldBeNil)
			wantScores, wantLabels, _ := det.Predict(rows)
			gotScores, gotLabels, _ := restored.Predict(rows)
			convey.So(gotScores, convey.ShouldResemble, wantScores)
			convey.So(gotLabels, convey.ShouldResemble, wantLabels)
		})
	})

	convey.Convey("Given a single row", t, func() {
		_, err := ml.FitAnomalyDetector(columns, [][]float64{{1, 1}})

		convey.Convey("Then fitting should be refused", func() {
			convey.So(errors.Is(err, ml.ErrNotEnoughRows), convey.ShouldBeTrue)
		})
	})
}

func riskData() ([][]float64, []int) {
	var rows [][]float64
	var labels []int
	for i := -30; i <= 30; i++ {
		x := float64(i) / 10
		rows = append(rows, []float64{x, math.Abs(x)})
		switch {
		case x < -1:
			labels = append(labels, 2)
		case x <= 1:
			labels = append(labels, 1)
		default:
			labels = append(labels, 0)
		}
	}
	return rows, labels
}

func TestFailureRiskClassifier(t *testing.T) {
	columns := []string{"x", "abs_x"}

	convey.Convey("Given separable risk classes", t, func() {
		rows, labels := riskData()
		clf, err := ml.FitFailureRiskClassifier(columns, rows, labels)
		convey.So(err, convey.ShouldBeNil)
		probe := [][]float64{{-2.5, 2.5}, {0, 0}, {2.5, 2.5}}

		convey.Convey("Then each region should map to its class", func() {
			got, err := clf.PredictLabel(probe)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldResemble, []int{2, 1, 0})

			levels, _ := clf.PredictRiskLevel(probe)
			convey.So(levels, convey.ShouldResemble, []model.RiskLevel{model.RiskHigh, model.RiskMedium, model.RiskLow})
		})

		convey.Convey("Then probabilities should sum to one", func() {
			proba, _ := clf.PredictProba(probe)
			for _, p := range proba {
				convey.So(p[0]+p[1]+p[2], convey.ShouldAlmostEqual, 1, 1e-9)
			}
		})

		convey.Convey("Then a restored classifier should predict identically", func() {
			path := filepath.Join(t.TempDir(), "classifier_model.json")
			convey.So(clf.Save(path), convey.ShouldBeNil)
			restored, err := ml.LoadFailureRiskClassifier(path, ml.ExpectColumns(columns))
			convey.So(err, convey.ShouldBeNil)
			want, _ := clf.PredictProba(rows)
			got, _ := restored.PredictProba(rows)
			convey.So(got, convey.ShouldResemble, want)
		})
	})

	convey.Convey("Given a label outside the risk classes", t, func() {
		_, err := ml.FitFailureRiskClassifier(columns, [][]float64{{1, 1}}, []int{3})

		convey.Convey("Then fitting should be refused", func() {
			convey.So(errors.Is(err, ml.ErrInvalidLabel), convey.ShouldBeTrue)
		})
	})
}
