package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a dedicated registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("calc"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"event": "2020cada"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.calculationRuns.WithLabelValues("predicted_aim", "ok").Inc()

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_calc_calculation_runs_total" {
						found = true
						So(f.GetMetric()[0].GetLabel(), ShouldNotBeEmpty)
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording a calculation run", func() {
			before := testutil.ToFloat64(globalManager.calculationRuns.WithLabelValues("unit", "ok"))
			RecordCalculationRun("unit", "ok")
			after := testutil.ToFloat64(globalManager.calculationRuns.WithLabelValues("unit", "ok"))

			Convey("Then the counter advances by one", func() {
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording alliance failures and queue gauges", func() {
			RecordAllianceFailure("missing_dependency")
			UpdateQueueCapacity(10)
			UpdateQueueSize(3)

			Convey("Then the values are exposed on the custom registry", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 10)

				n, err := testutil.GatherAndCount(GetRegistry(), "calcserver_alliance_failures_total")
				So(err, ShouldBeNil)
				So(n, ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When lint-checking the registry", func() {
			problems, err := testutil.GatherAndLint(GetRegistry())

			Convey("Then metric names follow Prometheus conventions", func() {
				So(err, ShouldBeNil)
				for _, p := range problems {
					So(strings.HasPrefix(p.Metric, "calcserver_"), ShouldBeTrue)
				}
			})
		})
	})
}
