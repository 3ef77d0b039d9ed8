package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with custom options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("board"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.pollCycles.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_board_poll_cycles_total")
			})
		})

		Convey("When two managers share one registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording upstream requests", func() {
			before := testutil.ToFloat64(globalManager.upstreamRequests.WithLabelValues("analyzer-stats", "GET", OutcomeFailure))
			RecordUpstreamRequest("analyzer-stats", "GET", OutcomeFailure, 12)
			RecordUpstreamRequest("analyzer-stats", "GET", OutcomeFailure, 40)

			Convey("Then the counter grows per call", func() {
				after := testutil.ToFloat64(globalManager.upstreamRequests.WithLabelValues("analyzer-stats", "GET", OutcomeFailure))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When updating gauges", func() {
			UpdateBannersActive(3)
			UpdateStreamSubscribers(2)
			UpdateRegionPayloadBytes("processing-stats", 11)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.bannersActive), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.streamSubscribers), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.payloadBytes.WithLabelValues("processing-stats")), ShouldEqual, 11)
			})
		})

		Convey("When recording the remaining helpers", func() {
			Convey("Then nothing panics", func() {
				So(func() {
					RecordPollCycle()
					RecordConsistencyCheck(OutcomeSuccess)
					RecordBannerShown()
					RecordHTTPRequest("state", "GET", "200")
					RecordHTTPRequestDuration("state", "GET", "200", 1.5)
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(12)
				}, ShouldNotPanic)
			})
		})

		Convey("Then the custom registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
