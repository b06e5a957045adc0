package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("engine"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.claimsDeleted.Add(2)
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_engine_claims_deleted_total")
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		SetEnabled(true)

		Convey("When workflow counters are recorded", func() {
			before := testutil.ToFloat64(globalManager.claimsSubmitted.WithLabelValues("self", "pending", "false"))
			RecordClaimSubmitted("self", "pending", false)
			RecordClaimResolved("approved")
			RecordClaimsDeleted(3)
			RecordClaimsDeleted(0)
			RecordClaimSkipped()

			Convey("Then the counters move", func() {
				after := testutil.ToFloat64(globalManager.claimsSubmitted.WithLabelValues("self", "pending", "false"))
				So(after-before, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.claimsDeleted), ShouldBeGreaterThanOrEqualTo, 3)
			})
		})

		Convey("When store queries are recorded", func() {
			before := testutil.ToFloat64(globalManager.storeErrors.WithLabelValues("count_week"))
			RecordStoreQuery("count_week", 1.5, nil)
			RecordStoreQuery("count_week", 2.5, errors.New("locked"))

			Convey("Then only failing queries count as errors", func() {
				So(testutil.ToFloat64(globalManager.storeErrors.WithLabelValues("count_week"))-before, ShouldEqual, 1)
			})
		})

		Convey("When recording is disabled", func() {
			SetEnabled(false)
			defer SetEnabled(true)
			before := testutil.ToFloat64(globalManager.awardsCapped)
			RecordAwardCapped()

			Convey("Then nothing changes", func() {
				So(testutil.ToFloat64(globalManager.awardsCapped), ShouldEqual, before)
			})
		})

		Convey("When the remaining helpers are called", func() {
			Convey("Then none of them panic", func() {
				So(func() {
					RecordPointsAwarded("schedule", "first", 1)
					RecordOutOfSeason()
					RecordDefaultedLookup("event_type")
					RecordScoringError()
					RecordHTTPRequest("/claims/self", "POST", "201")
					RecordHTTPRequestDuration("/claims/self", "POST", "201", 3.2)
					RecordRateLimited()
					UpdateParticipants(12)
					UpdatePendingClaims(4)
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(8)
					RecordSystemGCPauseTime(0.4)
				}, ShouldNotPanic)
				So(GetRegistry(), ShouldNotBeNil)
			})
		})
	})
}
