package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a registered landing page", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		Convey("When requesting /", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			Convey("Then it should serve the HTML index", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(w.Body.String(), ShouldContainSubstring, "/predict/solar")
			})
		})

		Convey("When requesting an unknown path", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

			Convey("Then it should return 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When registering on a nil mux", func() {
			So(func() { Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}
