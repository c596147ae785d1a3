package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then every collector is registered on it", func() {
				So(manager, ShouldNotBeNil)
				manager.totalPlayers.Set(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metric names carry the namespace and subsystem", func() {
				manager.rateLimited.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_mmr_rate_limited_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When registering the same names twice on one registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then promauto panics on the duplicate", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording rating changes", func() {
			winsBefore := testutil.ToFloat64(current().updateItemsApplied.WithLabelValues("win"))
			lossesBefore := testutil.ToFloat64(current().updateItemsApplied.WithLabelValues("loss"))
			RecordUpdateApplied(true)
			RecordUpdateApplied(false)
			RecordUpdateApplied(false)

			Convey("Then wins and losses are counted separately", func() {
				So(testutil.ToFloat64(current().updateItemsApplied.WithLabelValues("win"))-winsBefore, ShouldEqual, 1)
				So(testutil.ToFloat64(current().updateItemsApplied.WithLabelValues("loss"))-lossesBefore, ShouldEqual, 2)
			})
		})

		Convey("When recording batches and signature failures", func() {
			before := testutil.ToFloat64(current().updateBatches.WithLabelValues("success"))
			RecordUpdateBatch("success", 4)
			RecordSignatureFailure("update", "invalid_signature")

			Convey("Then the labelled counters move", func() {
				So(testutil.ToFloat64(current().updateBatches.WithLabelValues("success"))-before, ShouldEqual, 1)
				So(testutil.ToFloat64(current().signatureFailures.WithLabelValues("update", "invalid_signature")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When setting gauges", func() {
			UpdateTotalPlayers(42)
			UpdateQueueCapacity(10)
			UpdateQueueSize(3)
			UpdateWorkerActiveCount(2)

			Convey("Then the gauges hold the last value", func() {
				So(testutil.ToFloat64(current().totalPlayers), ShouldEqual, 42)
				So(testutil.ToFloat64(current().queueCapacity), ShouldEqual, 10)
				So(testutil.ToFloat64(current().queueSize), ShouldEqual, 3)
				So(testutil.ToFloat64(current().workerActiveCount), ShouldEqual, 2)
			})
		})

		Convey("When recording every remaining helper", func() {
			So(func() {
				RecordRateLimited()
				RecordWebhookEvent("accepted")
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("queue_full")
				RecordWorkerProcessed(1.5)
				RecordWorkerError()
				RecordHTTPRequest("update", "POST", "200")
				RecordHTTPRequestDuration("update", "POST", "200", 12)
				RecordRepositoryLatency("memory", "apply", 0.2)
				RecordRepositoryError("mongo", "list")
				RecordErrorByComponent("http", "client_error")
				RecordErrorByType("client_error", "medium")
				RecordErrorByEndpoint("update", "POST", "client_error")
				RecordErrorLatency("http", "client_error", 3)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)

			Convey("Then the exposition contains them", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				joined := strings.Join(names, ",")
				So(joined, ShouldContainSubstring, "lounge_mmr_http_requests_total")
				So(joined, ShouldContainSubstring, "lounge_mmr_repository_latency_milliseconds")
				So(joined, ShouldContainSubstring, "lounge_mmr_webhook_events_total")
			})
		})
	})
}

func TestInit(t *testing.T) {
	Convey("Given the global manager rebuilt from configuration", t, func() {
		Init(WithNamespace("eu"), WithConstLabels(map[string]string{"env": "prod"}))
		defer Init()
		RecordRateLimited()

		Convey("Then the exposed registry carries the configured namespace and labels", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			var labels map[string]string
			for _, f := range families {
				if f.GetName() == "eu_mmr_rate_limited_total" {
					labels = map[string]string{}
					for _, l := range f.GetMetric()[0].GetLabel() {
						labels[l.GetName()] = l.GetValue()
					}
				}
			}
			So(labels, ShouldResemble, map[string]string{"env": "prod"})
			So(testutil.ToFloat64(current().rateLimited), ShouldEqual, 1)
		})
	})
}
