package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

// value reads the current value of a single-series counter or gauge.
func value(c prometheus.Collector) float64 {
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	if err := (<-ch).Write(&m); err != nil {
		return -1
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it registers under the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.overridesSet.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "competa_scoring_overrides_set_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("school"),
				WithSubsystem("bilan"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names use the custom prefix", func() {
				manager.evaluationsDeleted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "school_bilan_evaluations_deleted_total")
				So(names, ShouldNotContain, "competa_scoring_evaluations_deleted_total")
			})
		})

		Convey("When passing empty options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "competa")
				So(manager.subsystem, ShouldEqual, "scoring")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording capture metrics", func() {
			before := value(globalManager.evaluationsCaptured.WithLabelValues("amend"))
			RecordEvaluationCaptured("amend")
			RecordEvaluationCaptured("create")
			RecordOverrideSet()
			RecordEvaluationDeleted()
			UpdateActiveSessions(3)
			RecordSessionEviction()

			Convey("Then the counters move", func() {
				So(value(globalManager.evaluationsCaptured.WithLabelValues("amend")), ShouldEqual, before+1)
				So(value(globalManager.activeSessions), ShouldEqual, 3)
			})
		})

		Convey("When recording reconcile outcomes", func() {
			before := value(globalManager.reconcileOutcomes.WithLabelValues("updated"))
			RecordReconcileOutcome("updated", 4)

			Convey("Then the count is added", func() {
				So(value(globalManager.reconcileOutcomes.WithLabelValues("updated")), ShouldEqual, before+4)
			})
		})

		Convey("When recording the rest", func() {
			So(func() {
				RecordComputationLatency("bilan", 1.5)
				RecordHTTPRequest("/stats", "GET", "200")
				RecordHTTPRequestDuration("/stats", "GET", "200", 2)
				UpdateRepositoryRecordsTotal(10)
				RecordRepositoryUpdateLatency(1)
				RecordRepositoryQueryLatency(1)
				UpdateQueueSize(2)
				UpdateWorkerActiveCount(4)
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
				RecordErrorByComponent("repository", "not_found")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent writers", t, func() {
		before := value(globalManager.overridesSet)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				RecordOverrideSet()
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			So(value(globalManager.overridesSet), ShouldEqual, before+50)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordOverrideSet()
		families, err := GetRegistry().Gather()

		Convey("Then competa metrics are exposed", func() {
			So(err, ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			So(strings.Join(names, ","), ShouldContainSubstring, "competa_scoring_overrides_set_total")
		})
	})
}
