package training_test

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/solara/internal/adapters/repository"
	"github.com/okian/solara/internal/domain/features"
	"github.com/okian/solara/internal/domain/table"
	"github.com/okian/solara/internal/training"
	"github.com/okian/solara/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestTrainerRun(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a synthetic plant and an empty models directory", t, func() {
		dir := t.TempDir()
		store := repository.NewFileStore(dir)
		src := training.NewSyntheticSource()
		src.Days = 2

		report, err := training.New(store).Run(ctx, src)

		convey.Convey("Then training should succeed and report sane metrics", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(report.TrainRows, convey.ShouldBeGreaterThan, 0)
			convey.So(report.TestRows, convey.ShouldBeGreaterThan, 0)
			convey.So(report.TrainRows+report.TestRows, convey.ShouldEqual, report.Rows)
			convey.So(math.IsNaN(report.RMSE), convey.ShouldBeFalse)
			convey.So(report.MAE, convey.ShouldBeLessThanOrEqualTo, report.RMSE+1e-12)
			convey.So(report.F1, convey.ShouldBeBetweenOrEqual, 0, 1)
			convey.So(report.AnomalyRate, convey.ShouldBeBetweenOrEqual, 0, 0.1)
		})

		convey.Convey("Then all four artifacts should be written and loadable", func() {
			for _, name := range []string{
				repository.ScalerFile,
				repository.EfficiencyFile,
				repository.AnomalyFile,
				repository.ClassifierFile,
			} {
				_, statErr := os.Stat(filepath.Join(dir, name))
				convey.So(statErr, convey.ShouldBeNil)
			}
			bundle, err := store.LoadBundle(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(bundle.Scaler.Columns(), convey.ShouldResemble, features.FeatureColumns)
		})
	})
}

func TestWithTargets(t *testing.T) {
	convey.Convey("Given two sources with engineered efficiency", t, func() {
		t0 := time.Date(2020, 5, 15, 12, 0, 0, 0, time.UTC)
		f := table.New([]string{features.ColEfficiency})
		f.Append("b", t0, []float64{0.7})
		f.Append("a", t0.Add(15*time.Minute), []float64{0.95})
		f.Append("a", t0, []float64{0.9})
		f.Append("a", t0.Add(30*time.Minute), []float64{0.85})

		out, err := training.WithTargets(f)

		convey.Convey("Then each row should carry its successor's efficiency", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out.Len(), convey.ShouldEqual, 2)
			convey.So(out.Value(0, training.ColTarget), convey.ShouldEqual, 0.95)
			convey.So(out.Value(1, training.ColTarget), convey.ShouldEqual, 0.85)
		})
	})
}

func TestEvaluation(t *testing.T) {
	convey.Convey("Given predictions and truth", t, func() {
		convey.Convey("Then RMSE and MAE should match their definitions", func() {
			convey.So(training.RMSE([]float64{1, 2, 3}, []float64{1, 2, 5}), convey.ShouldAlmostEqual, math.Sqrt(4.0/3.0), 1e-12)
			convey.So(training.MAE([]float64{1, 2, 3}, []float64{2, 2, 1}), convey.ShouldAlmostEqual, 1, 1e-12)
			convey.So(training.RMSE(nil, nil), convey.ShouldEqual, 0)
		})

		convey.Convey("Then weighted F1 should weight classes by support", func() {
			convey.So(training.WeightedF1([]int{0, 1, 2}, []int{0, 1, 2}), convey.ShouldEqual, 1)
			convey.So(training.WeightedF1([]int{0, 0}, []int{1, 1}), convey.ShouldEqual, 0)
			// class 0: p=1 r=0.5 f1=2/3 (support 2); class 1: p=0.5 r=1 f1=2/3 (support 1)
			convey.So(training.WeightedF1([]int{0, 0, 1}, []int{0, 1, 1}), convey.ShouldAlmostEqual, 2.0/3.0, 1e-12)
		})
	})
}
