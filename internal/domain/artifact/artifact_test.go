package artifact_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/solara/internal/domain/artifact"
	"github.com/smartystreets/goconvey/convey"
)

type state struct {
	Weights []float64 `json:"weights"`
}

func TestArtifactRoundTrip(t *testing.T) {
	convey.Convey("Given a component saved into a directory that does not exist yet", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "model.json")
		err := artifact.Save(path, artifact.KindEfficiency, []string{"a", "b"}, state{Weights: []float64{1.5, -2}})

		convey.Convey("Then it should load back with its columns", func() {
			convey.So(err, convey.ShouldBeNil)
			var got state
			cols, err := artifact.Load(path, artifact.KindEfficiency, &got)
			convey.So(err, convey.ShouldBeNil)
			convey.So(cols, convey.ShouldResemble, []string{"a", "b"})
			convey.So(got.Weights, convey.ShouldResemble, []float64{1.5, -2})
		})

		convey.Convey("Then no temp files should be left behind", func() {
			entries, _ := os.ReadDir(filepath.Dir(path))
			convey.So(len(entries), convey.ShouldEqual, 1)
		})

		convey.Convey("Then loading it as another kind should fail", func() {
			var got state
			_, err := artifact.Load(path, artifact.KindAnomaly, &got)
			convey.So(errors.Is(err, artifact.ErrKindMismatch), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a missing or corrupt file", t, func() {
		dir := t.TempDir()
		corrupt := filepath.Join(dir, "corrupt.json")
		_ = os.WriteFile(corrupt, []byte("{not json"), 0o600)
		future := filepath.Join(dir, "future.json")
		_ = os.WriteFile(future, []byte(`{"kind":"scaler","version":99,"model":{}}`), 0o600)

		convey.Convey("Then each failure should be distinguishable", func() {
			var got state
			_, err := artifact.Load(filepath.Join(dir, "absent.json"), artifact.KindScaler, &got)
			convey.So(errors.Is(err, artifact.ErrNotFound), convey.ShouldBeTrue)
			_, err = artifact.Load(corrupt, artifact.KindScaler, &got)
			convey.So(errors.Is(err, artifact.ErrCorrupt), convey.ShouldBeTrue)
			_, err = artifact.Load(future, artifact.KindScaler, &got)
			convey.So(errors.Is(err, artifact.ErrUnsupportedVersion), convey.ShouldBeTrue)
		})
	})
}
