package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/solara/internal/adapters/repository"
	"github.com/okian/solara/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestParseFlags(t *testing.T) {
	convey.Convey("Given training command lines", t, func() {
		convey.Convey("When CSV paths are missing", func() {
			_, err := parseFlags([]string{"-source", "csv"}, io.Discard)
			convey.So(errors.Is(err, errUsage), convey.ShouldBeTrue)
		})

		convey.Convey("When -source sql has no dsn", func() {
			_, err := parseFlags([]string{"-source", "sql"}, io.Discard)
			convey.So(errors.Is(err, errUsage), convey.ShouldBeTrue)
		})

		convey.Convey("When the source is unknown", func() {
			_, err := parseFlags([]string{"-source", "parquet"}, io.Discard)
			convey.So(errors.Is(err, errUsage), convey.ShouldBeTrue)
		})

		convey.Convey("When CSV paths are given", func() {
			o, err := parseFlags([]string{"-generation-csv", "g.csv", "-weather-csv", "w.csv", "-models-dir", "out"}, io.Discard)
			convey.So(err, convey.ShouldBeNil)
			convey.So(o.generationCSV, convey.ShouldEqual, "g.csv")
			convey.So(o.modelsDir, convey.ShouldEqual, "out")
			convey.So(o.generationTable, convey.ShouldEqual, "generation")
		})
	})
}

func TestRunSynthetic(t *testing.T) {
	convey.Convey("Given a synthetic training run", t, func() {
		dir := filepath.Join(t.TempDir(), "models")
		o, err := parseFlags([]string{"-source", "synthetic", "-synthetic-days", "1", "-models-dir", dir}, io.Discard)
		convey.So(err, convey.ShouldBeNil)

		report, err := run(context.Background(), o)

		convey.Convey("Then the artifacts should be written", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(report.Rows, convey.ShouldBeGreaterThan, 0)
			_, err := repository.NewFileStore(dir).LoadBundle(context.Background())
			convey.So(err, convey.ShouldBeNil)
		})
	})
}
