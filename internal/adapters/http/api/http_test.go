package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/competa/internal/adapters/http/api"
	"github.com/okian/competa/internal/adapters/repository"
	service "github.com/okian/competa/internal/app"
	"github.com/okian/competa/internal/domain/aggregate"
	"github.com/okian/competa/internal/domain/types"
	"github.com/okian/competa/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func newHandler() (http.Handler, *service.Service) {
	svc := service.New(
		service.WithLogger(logger.Discard()),
		service.WithStore(repository.NewMemStore()),
	)
	So(svc.Start(context.Background()), ShouldBeNil)
	return api.NewServer(svc, logger.Discard()).Routes(), svc
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder, v any) {
	So(json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(v), ShouldBeNil)
}

func TestServer_Routes(t *testing.T) {
	Convey("Given the API router backed by a running service", t, func() {
		h, svc := newHandler()
		defer svc.Stop()

		Convey("Then health serves Prometheus metrics", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And stats report a started service", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats types.Stats
			decodeBody(w, &stats)
			So(stats.Started, ShouldBeTrue)
			So(stats.RubricNodes, ShouldBeGreaterThan, 0)
		})

		Convey("And the rubric is listed", func() {
			w := do(h, http.MethodGet, "/rubric", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And unknown routes are 404", func() {
			w := do(h, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_Capture(t *testing.T) {
	Convey("Given the API router", t, func() {
		h, svc := newHandler()
		defer svc.Stop()

		Convey("When a color is captured twice for the same selection", func() {
			body := `{"author_id":"t-1","competency_code":"C1.1","color":"fragile"}`
			first := do(h, http.MethodPost, "/students/s-1/captures", body)
			second := do(h, http.MethodPost, "/students/s-1/captures",
				`{"author_id":"t-1","competency_code":"C1.1","color":"mastered"}`)

			Convey("Then the first creates and the second amends", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusOK)

				var a, b types.CaptureResponse
				decodeBody(first, &a)
				decodeBody(second, &b)
				So(b.Event.ID, ShouldEqual, a.Event.ID)
				So(b.Event.StudentID, ShouldEqual, "s-1")
				So(b.Mode, ShouldEqual, "amend")
			})

			Convey("And positions reflect the latest color", func() {
				w := do(h, http.MethodGet, "/students/s-1/positions", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var pos types.StudentPositions
				decodeBody(w, &pos)
				So(pos.Skills["C1"].Mean, ShouldAlmostEqual, 3.0, 1e-9)
			})

			Convey("And a new evaluation is accepted", func() {
				w := do(h, http.MethodPost, "/authors/t-1/new-evaluation", "")
				So(w.Code, ShouldEqual, http.StatusNoContent)
			})

			Convey("And the event can be deleted once", func() {
				var a types.CaptureResponse
				decodeBody(first, &a)
				So(do(h, http.MethodDelete, "/evaluations/"+a.Event.ID, "").Code, ShouldEqual, http.StatusNoContent)
				So(do(h, http.MethodDelete, "/evaluations/"+a.Event.ID, "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("Then domain errors map to status codes", func() {
			So(do(h, http.MethodPost, "/students/s-1/captures", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/students/s-1/captures",
				`{"author_id":"t-1","competency_code":"C1.1","color":"purple"}`).Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(do(h, http.MethodPost, "/students/s-1/captures",
				`{"author_id":"t-1","competency_code":"Z9","color":"fragile"}`).Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(do(h, http.MethodPost, "/students/s-1/captures",
				`{"competency_code":"C1.1","color":"fragile"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/authors/nobody/new-evaluation", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When an override is posted", func() {
			w := do(h, http.MethodPost, "/students/s-1/overrides",
				`{"author_id":"t-1","competency_code":"C1.2","color":"mastered"}`)

			Convey("Then it is stored for the path's student", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var pos types.StudentPositions
				decodeBody(do(h, http.MethodGet, "/students/s-1/positions", ""), &pos)
				So(pos.Skills["C1"].Contributors[0].Source, ShouldEqual, aggregate.SourceManual)
			})
		})
	})
}

func TestServer_BilanAndReconcile(t *testing.T) {
	Convey("Given captures in an enrolled class", t, func() {
		h, svc := newHandler()
		defer svc.Stop()

		So(do(h, http.MethodPost, "/classes/cap-1/students", `{"student_id":"s-1"}`).Code, ShouldEqual, http.StatusNoContent)
		var a types.CaptureResponse
		decodeBody(do(h, http.MethodPost, "/students/s-1/captures",
			`{"author_id":"t-1","competency_code":"C1.1","color":"mastered"}`), &a)

		Convey("When the bilan is requested", func() {
			w := do(h, http.MethodGet, "/students/s-1/bilan?class=cap-1", "")

			Convey("Then every block is reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var report struct {
					Blocks []struct {
						Block       int     `json:"block"`
						Progression float64 `json:"progression"`
					} `json:"blocks"`
				}
				decodeBody(w, &report)
				So(report.Blocks, ShouldHaveLength, 3)
				So(report.Blocks[0].Progression, ShouldEqual, 20.0)
			})
		})

		Convey("When events are reconciled with one unknown id", func() {
			w := do(h, http.MethodPost, "/assignments/devoir-1/reconcile",
				`{"event_ids":["`+a.Event.ID+`","missing"]}`)

			Convey("Then the partial result answers 207", func() {
				So(w.Code, ShouldEqual, http.StatusMultiStatus)
				var res types.ReconcileResponse
				decodeBody(w, &res)
				So(res.Updated, ShouldResemble, []string{a.Event.ID})
				So(res.Failed, ShouldContainKey, "missing")
			})

			Convey("And a different key conflicts unless forced", func() {
				body := `{"event_ids":["` + a.Event.ID + `"]}`
				w := do(h, http.MethodPost, "/assignments/devoir-2/reconcile", body)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(w.Body.String(), ShouldContainSubstring, "tagged_elsewhere")

				w = do(h, http.MethodPost, "/assignments/devoir-2/reconcile",
					`{"event_ids":["`+a.Event.ID+`"],"force":true}`)
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("Then an empty selection is refused", func() {
			w := do(h, http.MethodPost, "/assignments/devoir-1/reconcile", `{"event_ids":[]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

type failingDeps struct {
	api.Dependencies
	err error
}

func (f failingDeps) GetStats(context.Context) (types.Stats, error) {
	return types.Stats{}, f.err
}

func TestServer_Failures(t *testing.T) {
	Convey("Given dependencies that fail", t, func() {
		Convey("When the service is not started", func() {
			h := api.NewServer(failingDeps{err: service.ErrNotStarted}, logger.Discard()).Routes()

			Convey("Then stats answer 503", func() {
				So(do(h, http.MethodGet, "/stats", "").Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When an unexpected error occurs", func() {
			h := api.NewServer(failingDeps{err: errors.New("boom")}, logger.Discard()).Routes()
			w := do(h, http.MethodGet, "/stats", "")

			Convey("Then the body carries code and message", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				var body map[string]string
				decodeBody(w, &body)
				So(body["code"], ShouldEqual, "internal_error")
				So(body["message"], ShouldEqual, "boom")
			})
		})
	})
}

func TestKindErrors(t *testing.T) {
	Convey("Given a wrapped kind error", t, func() {
		cause := errors.New("unexpected EOF")
		err := api.WrapKind("api.capture", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause are reachable", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.capture: bad request: unexpected EOF")
		})

		Convey("And NewKind formats without a cause", func() {
			So(api.NewKind("api.x", api.ErrServe).Error(), ShouldEqual, "api.x: http serve failed")
		})
	})
}
